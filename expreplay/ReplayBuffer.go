// Package expreplay implements experience replay buffers for
// off-policy agents
package expreplay

import (
	ts "github.com/hisaki/rlrl/timestep"
)

// ReplayBuffer implements a store of past transitions from which
// transitions can be sampled for training.
type ReplayBuffer interface {
	// Append adds a transition to the buffer. The envID identifies the
	// environment which the transition came from in multi-environment
	// training.
	Append(t ts.Transition, envID int) error

	// Sample samples n unique transitions from the buffer
	Sample(n int) (Batch, error)

	// Len returns the number of transitions in the buffer
	Len() int

	// Capacity returns the maximum number of transitions in the buffer
	// and whether the buffer is bounded. If the buffer is unbounded,
	// Capacity returns (0, false).
	Capacity() (int, bool)

	// StopCurrentEpisode notifies the buffer that the current episode
	// of environment envID was interrupted. The next transition
	// appended for envID starts a new episode.
	StopCurrentEpisode(envID int)

	// Save saves the content of the buffer to a file
	Save(filename string) error

	// Load loads the content of the buffer from a file
	Load(filename string) error
}

// Batch is a batch of transitions sampled from a ReplayBuffer. Vector
// data is stored in row-major order, one row per transition.
type Batch struct {
	Size       int
	StateDims  int
	ActionDims int

	State        []float64
	Action       []float64
	Reward       []float64
	NextState    []float64
	Terminal     []bool
	Reset        []bool
	EpisodeStart []bool
	EnvID        []int
}

// NotTerminal returns a slice with 0.0 for each terminal transition and
// 1.0 for every other transition. Multiplying bootstrapped values by
// NotTerminal cuts off bootstrapping at terminal states.
func (b Batch) NotTerminal() []float64 {
	mask := make([]float64, b.Size)
	for i, terminal := range b.Terminal {
		if !terminal {
			mask[i] = 1.0
		}
	}
	return mask
}

// Config implements a JSON serializable configuration of a ReplayBuffer.
// A Capacity <= 0 configures an unbounded buffer.
type Config struct {
	Capacity int
}

// Create returns the ReplayBuffer described by the Config for
// transitions with stateDims dimensional states and actionDims
// dimensional actions.
func (c Config) Create(stateDims, actionDims int,
	seed uint64) (ReplayBuffer, error) {
	return NewUniform(c.Capacity, stateDims, actionDims, seed)
}
