package environment

import ts "github.com/hisaki/rlrl/timestep"

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits. Episodes ended by a StepLimit have a Timeout
// EndType.
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination. If the episode
// should be ended, End() will modify the timestep so that its StepType
// field is timestep.Last and its EndType is timestep.Timeout.
func (s StepLimit) End(t *ts.TimeStep) bool {
	if t.Number >= s.episodeSteps {
		t.StepType = ts.Last
		t.SetEnd(ts.Timeout)
		return true
	}
	return false
}

// EpisodeSteps returns the step limit
func (s StepLimit) EpisodeSteps() int {
	return s.episodeSteps
}

// Enders combines multiple Enders into a single Ender. Enders are
// checked in order, and the first Ender to end the episode determines
// the EndType.
type Enders []Ender

// End determines whether any of the Enders ends the episode
func (e Enders) End(t *ts.TimeStep) bool {
	ended := false
	for _, ender := range e {
		if ender.End(t) {
			ended = true
		}
	}
	return ended
}
