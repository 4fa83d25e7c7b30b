package checkpointer

import (
	"fmt"

	"github.com/aunum/log"
	ts "github.com/hisaki/rlrl/timestep"
)

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	steps    int
	object   Serializable // Object to save

	// filename returns the path to save the object to.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// agent1, agent2, ..., agentK), then use FilenameEnumerator.
	// If the name does not matter, use FileTimer:
	//
	//	n := NewNStep(10, object, FileTimer("agent", ""))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps,
// counted over all episodes.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive, got %v",
			n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if another n steps have passed
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	path := n.filename()
	if err := n.object.Save(path); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	log.Infof("checkpoint: saved to %v after %v steps", path, n.steps)
	return nil
}
