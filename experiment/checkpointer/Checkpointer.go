// Package checkpointer implements periodic saving of agents during an
// experiment
package checkpointer

import ts "github.com/hisaki/rlrl/timestep"

// Serializable is an object that can be saved to and loaded from a
// path, such as an agent.Saver
type Serializable interface {
	Save(path string) error
	Load(path string) error
}

// Checkpointer checkpoints/saves serializable objects based on
// timestep.TimeSteps. Checkpoint should be called once per environment
// step.
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
