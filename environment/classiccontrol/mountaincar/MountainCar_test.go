package mountaincar

import (
	"math"
	"testing"

	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

type fixedStarter struct {
	state []float64
}

func (f fixedStarter) Start() *mat.VecDense {
	return mat.NewVecDense(len(f.state), append([]float64(nil), f.state...))
}

func TestGoalIsTerminal(t *testing.T) {
	task := NewGoal(fixedStarter{[]float64{0.44, MaxSpeed}}, 100,
		GoalPosition)
	m, _, err := NewContinuous(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	next, done, err := m.Step(mat.NewVecDense(1, []float64{1}))
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("step: episode should end at the goal")
	}
	if next.EndType() != ts.TerminalStateReached {
		t.Errorf("step: expected terminal end type, got %v", next.EndType())
	}

	want := goalReward - 0.1
	if math.Abs(next.Reward-want) > 1e-12 {
		t.Errorf("step: expected reward %v, got %v", want, next.Reward)
	}
}

func TestStepLimit(t *testing.T) {
	task := NewGoal(fixedStarter{[]float64{-0.5, 0}}, 3, GoalPosition)
	m, _, err := NewContinuous(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	var next ts.TimeStep
	for i := 0; i < 3; i++ {
		next, _, err = m.Step(mat.NewVecDense(1, []float64{0}))
		if err != nil {
			t.Fatal(err)
		}
	}

	if !next.Last() || next.EndType() != ts.Timeout {
		t.Errorf("step: expected timeout after 3 steps, got %v", next)
	}
	if next.Reward != 0 {
		t.Errorf("step: expected 0 reward for no force, got %v", next.Reward)
	}
}
