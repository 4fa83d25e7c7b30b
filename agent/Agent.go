// Package agent defines an agent interface
package agent

import (
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Close closes an agent if it is a Closer
func Close(a Agent) error {
	if c, ok := a.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner. If the learner
	// does not yet have enough data, Step does nothing.
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action mat.Vector, nextStep ts.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(ts.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. In evaluation mode,
// policies act greedily and agents do not record transitions.
type Policy interface {
	SelectAction(t ts.TimeStep) *mat.VecDense
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Saver is an agent whose weights and optimiser state can be saved
// to and loaded from a directory
type Saver interface {
	Save(dir string) error
	Load(dir string) error
}

// Statser is an agent which collects training statistics. Stats
// returns the mean of each statistic collected since the last call to
// Stats.
type Statser interface {
	Stats() map[string]float64
}
