package timestep

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEndType(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{1, 2})
	step := New(Mid, 1, 0.99, obs, 3)
	step.SetEnd(TerminalStateReached)
	if step.EndType() != Nil {
		t.Errorf("EndType: middle step should have Nil end type, got %v",
			step.EndType())
	}

	step.StepType = Last
	if step.EndType() != TerminalStateReached {
		t.Errorf("EndType: expected %v, got %v", TerminalStateReached,
			step.EndType())
	}

	step.SetEnd(Timeout)
	if step.EndType() != TerminalStateReached {
		t.Errorf("SetEnd: first end type should be kept, got %v",
			step.EndType())
	}
}

func TestNewTransition(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{1, 2})
	nextObs := mat.NewVecDense(2, []float64{3, 4})
	action := mat.NewVecDense(1, []float64{0.5})

	step := New(First, 0, 0.99, obs, 0)

	tests := []struct {
		name     string
		stepType StepType
		end      EndType
		terminal bool
		reset    bool
	}{
		{"mid", Mid, Nil, false, false},
		{"terminal", Last, TerminalStateReached, true, true},
		{"timeout", Last, Timeout, false, true},
	}

	for _, test := range tests {
		next := New(test.stepType, -1, 0.99, nextObs, 1)
		next.SetEnd(test.end)

		trans, err := NewTransition(step, action, next)
		if err != nil {
			t.Fatalf("%v: %v", test.name, err)
		}

		if trans.Terminal != test.terminal {
			t.Errorf("%v: terminal: expected %v, got %v", test.name,
				test.terminal, trans.Terminal)
		}
		if trans.Reset != test.reset {
			t.Errorf("%v: reset: expected %v, got %v", test.name,
				test.reset, trans.Reset)
		}
		if trans.Reward != -1 {
			t.Errorf("%v: reward: expected -1, got %v", test.name,
				trans.Reward)
		}
	}

	// Transitions own their data
	next := New(Mid, 0, 0.99, nextObs, 1)
	trans, err := NewTransition(step, action, next)
	if err != nil {
		t.Fatal(err)
	}
	obs.SetVec(0, 100)
	if trans.State.AtVec(0) != 1 {
		t.Error("newTransition: state not copied")
	}
}

func TestNewTransitionErrors(t *testing.T) {
	obs := mat.NewVecDense(2, nil)
	action := mat.NewVecDense(1, nil)

	last := New(Last, 0, 0.99, obs, 10)
	if _, err := NewTransition(last, action, New(Mid, 0, 1, obs, 11)); err == nil {
		t.Error("newTransition: expected error from last step")
	}

	short := New(Mid, 0, 0.99, mat.NewVecDense(1, nil), 1)
	if _, err := NewTransition(New(First, 0, 1, obs, 0), action, short); err == nil {
		t.Error("newTransition: expected error on observation mismatch")
	}
}

func TestIsResetTransition(t *testing.T) {
	trans := Transition{Reward: math.NaN()}
	if !trans.IsResetTransition() {
		t.Error("isResetTransition: NaN reward should mark a reset")
	}
	trans.Reward = 0
	if trans.IsResetTransition() {
		t.Error("isResetTransition: finite reward should not mark a reset")
	}
}
