package pendulum

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

func TestUprightIsStable(t *testing.T) {
	task := NewSwingUp(fixedStarter{[]float64{0, 0}}, 5)
	p, step, err := NewContinuous(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if !step.First() {
		t.Errorf("newContinuous: expected first step, got %v", step.StepType)
	}

	action := mat.NewVecDense(1, []float64{0})
	for i := 1; i <= 5; i++ {
		next, done, err := p.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(next.Reward) > 1e-12 {
			t.Errorf("step %v: expected reward 0, got %v", i, next.Reward)
		}
		if math.Abs(next.Observation.AtVec(0)) > 1e-12 {
			t.Errorf("step %v: pendulum should stay upright", i)
		}
		if done != (i == 5) {
			t.Errorf("step %v: unexpected done %v", i, done)
		}
		if i == 5 && next.EndType() != ts.Timeout {
			t.Errorf("step %v: expected timeout, got %v", i, next.EndType())
		}
	}
}

func TestReward(t *testing.T) {
	task := NewSwingUp(fixedStarter{[]float64{1, 2}}, 10)
	p, _, err := NewContinuous(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	// Actions are clipped to the torque bounds before computing the cost
	next, _, err := p.Step(mat.NewVecDense(1, []float64{10}))
	if err != nil {
		t.Fatal(err)
	}

	want := -(1 + 0.1*4 + 0.001*4)
	if math.Abs(next.Reward-want) > 1e-12 {
		t.Errorf("reward: expected %v, got %v", want, next.Reward)
	}
	if next.Reward < task.Min() || next.Reward > task.Max() {
		t.Errorf("reward %v outside of [%v, %v]", next.Reward, task.Min(),
			task.Max())
	}
}

func TestStepErrors(t *testing.T) {
	task := NewSwingUp(fixedStarter{[]float64{0, 0}}, 10)
	p, _, err := NewContinuous(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := p.Step(mat.NewVecDense(2, nil)); err == nil {
		t.Error("step: expected error on action dimension mismatch")
	}

	bad := NewSwingUp(fixedStarter{[]float64{0, 100}}, 10)
	if _, _, err := NewContinuous(bad, 0.99); err == nil {
		t.Error("newContinuous: expected error on illegal start state")
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct{ in, out float64 }{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}

	for _, test := range tests {
		if got := normalizeAngle(test.in); math.Abs(got-test.out) > 1e-9 {
			t.Errorf("normalizeAngle(%v): expected %v, got %v", test.in,
				test.out, got)
		}
	}
}
