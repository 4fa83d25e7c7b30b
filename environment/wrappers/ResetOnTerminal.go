package wrappers

import (
	"fmt"
	"math"

	env "github.com/hisaki/rlrl/environment"
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

// ResetOnTerminal turns an episodic environment into a continuing one.
// Whenever the wrapped environment reaches a terminal state, it is
// reset and the step returned to the agent is a middle step with a NaN
// reward and the starting observation of the reset environment. Agents
// which learn a reset cost (see sac.ResetSAC) treat NaN rewards as
// reset transitions.
//
// Episodes which are cut off by a step limit still end, since a step
// limit is not part of the environment dynamics. Step numbers keep
// counting through resets.
type ResetOnTerminal struct {
	env.Environment

	currentStep ts.TimeStep
	resets      int
}

// NewResetOnTerminal returns a new ResetOnTerminal wrapping e
func NewResetOnTerminal(e env.Environment) *ResetOnTerminal {
	return &ResetOnTerminal{
		Environment: e,
		currentStep: e.CurrentTimeStep(),
	}
}

// Reset resets the environment
func (r *ResetOnTerminal) Reset() (ts.TimeStep, error) {
	step, err := r.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	r.currentStep = step
	return step, nil
}

// Step takes one step in the wrapped environment, resetting it if a
// terminal state was reached
func (r *ResetOnTerminal) Step(action *mat.VecDense) (ts.TimeStep, bool,
	error) {
	step, _, err := r.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}
	number := r.currentStep.Number + 1

	if step.TerminalStateReached() {
		start, err := r.Environment.Reset()
		if err != nil {
			return ts.TimeStep{}, true, fmt.Errorf("step: could not reset "+
				"after terminal state: %v", err)
		}
		r.resets++

		step = ts.New(ts.Mid, math.NaN(), step.Discount, start.Observation,
			number)
	} else {
		step.Number = number
	}

	r.currentStep = step
	return step, step.Last(), nil
}

// CurrentTimeStep returns the current timestep
func (r *ResetOnTerminal) CurrentTimeStep() ts.TimeStep {
	return r.currentStep
}

// Resets returns the number of times a terminal state caused a reset
func (r *ResetOnTerminal) Resets() int {
	return r.resets
}

// Close closes the wrapped environment
func (r *ResetOnTerminal) Close() error {
	return env.Close(r.Environment)
}
