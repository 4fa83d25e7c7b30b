package timestep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s') tuple of the agent-environment
// interaction.
//
// Terminal is true only when the next state is a terminal state of the
// environment, so that bootstrapping from NextState should be cut off.
// Episodes cut off by a step limit are not terminal. Reset is true
// whenever the episode ended on NextState for any reason.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	NextState *mat.VecDense
	Terminal  bool
	Reset     bool
}

// NewTransition creates a new Transition from a step, the action taken
// at that step, and the next step which resulted from taking the
// action. The vectors are copied.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) (Transition, error) {
	if step.Last() {
		return Transition{}, fmt.Errorf("newTransition: cannot transition " +
			"from the last step in an episode")
	}
	if step.Observation == nil || nextStep.Observation == nil {
		return Transition{}, fmt.Errorf("newTransition: nil observation")
	}
	if action == nil {
		return Transition{}, fmt.Errorf("newTransition: nil action")
	}
	if step.Observation.Len() != nextStep.Observation.Len() {
		return Transition{}, fmt.Errorf("newTransition: observation "+
			"lengths differ (%v != %v)", step.Observation.Len(),
			nextStep.Observation.Len())
	}

	state := mat.VecDenseCopyOf(step.Observation)
	act := mat.VecDenseCopyOf(action)
	nextState := mat.VecDenseCopyOf(nextStep.Observation)

	return Transition{
		State:     state,
		Action:    act,
		Reward:    nextStep.Reward,
		NextState: nextState,
		Terminal:  nextStep.TerminalStateReached(),
		Reset:     nextStep.Last(),
	}, nil
}

// IsResetTransition returns whether the transition moved the
// environment through an automatic reset. Such transitions carry a NaN
// reward.
func (t Transition) IsResetTransition() bool {
	return math.IsNaN(t.Reward)
}
