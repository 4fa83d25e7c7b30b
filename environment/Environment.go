// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes should end. If an episode should end,
// End modifies the TimeStep so that it is the last step in the episode
// and sets its EndType.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment, together with the starting state distribution and the
// episode ending conditions.
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState *mat.VecDense) float64
	AtGoal(state mat.Matrix) bool
	Min() float64 // Minimum possible reward
	Max() float64 // Maximum possible reward
	RewardSpec() Spec
}

// Environment implements a simulated environment
type Environment interface {
	Reset() (ts.TimeStep, error)
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)
	CurrentTimeStep() ts.TimeStep
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Closer is an Environment which holds resources that must be released
// when the environment is no longer needed
type Closer interface {
	Environment
	Close() error
}

// Close closes e if e implements Closer, otherwise it does nothing
func Close(e Environment) error {
	if c, ok := e.(Closer); ok {
		return c.Close()
	}
	return nil
}
