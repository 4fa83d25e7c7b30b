package expreplay

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/hisaki/rlrl/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Uniform implements a ReplayBuffer which samples uniformly at random
// without replacement. Bounded Uniform buffers evict their oldest
// transition when a transition is appended to a full buffer.
type Uniform struct {
	capacity   int // <= 0 if unbounded
	stateDims  int
	actionDims int

	states       []float64
	actions      []float64
	rewards      []float64
	nextStates   []float64
	terminals    []bool
	resets       []bool
	episodeStart []bool
	envIDs       []int

	// next is the index to write the next transition to once the
	// buffer is full
	next int
	size int

	// episodeEnded[envID] is true if the next transition from envID
	// starts a new episode
	episodeEnded map[int]bool

	seed uint64
	rng  rand.Source
}

// NewUniform returns a new Uniform replay buffer with the given
// capacity. If capacity <= 0, the buffer is unbounded.
func NewUniform(capacity, stateDims, actionDims int,
	seed uint64) (*Uniform, error) {
	if stateDims <= 0 || actionDims <= 0 {
		return nil, fmt.Errorf("newUniform: state and action dimensions " +
			"must be positive")
	}

	u := &Uniform{
		capacity:     capacity,
		stateDims:    stateDims,
		actionDims:   actionDims,
		episodeEnded: make(map[int]bool),
		seed:         seed,
		rng:          rand.NewSource(seed),
	}

	if capacity > 0 {
		u.states = make([]float64, 0, capacity*stateDims)
		u.actions = make([]float64, 0, capacity*actionDims)
		u.rewards = make([]float64, 0, capacity)
		u.nextStates = make([]float64, 0, capacity*stateDims)
		u.terminals = make([]bool, 0, capacity)
		u.resets = make([]bool, 0, capacity)
		u.episodeStart = make([]bool, 0, capacity)
		u.envIDs = make([]int, 0, capacity)
	}

	return u, nil
}

// Append adds a transition to the buffer
func (u *Uniform) Append(t ts.Transition, envID int) error {
	if t.State == nil || t.Action == nil || t.NextState == nil {
		return &ExpReplayError{Op: "append",
			Err: fmt.Errorf("transition has nil data")}
	}
	if t.State.Len() != u.stateDims || t.NextState.Len() != u.stateDims {
		return &ExpReplayError{Op: "append", Err: fmt.Errorf("expected "+
			"states with %v dimensions", u.stateDims)}
	}
	if t.Action.Len() != u.actionDims {
		return &ExpReplayError{Op: "append", Err: fmt.Errorf("expected "+
			"actions with %v dimensions", u.actionDims)}
	}

	ended, seen := u.episodeEnded[envID]
	start := ended || !seen
	u.episodeEnded[envID] = t.Reset

	state := t.State.RawVector().Data
	action := t.Action.RawVector().Data
	nextState := t.NextState.RawVector().Data

	if u.capacity <= 0 || u.size < u.capacity {
		u.states = append(u.states, state...)
		u.actions = append(u.actions, action...)
		u.rewards = append(u.rewards, t.Reward)
		u.nextStates = append(u.nextStates, nextState...)
		u.terminals = append(u.terminals, t.Terminal)
		u.resets = append(u.resets, t.Reset)
		u.episodeStart = append(u.episodeStart, start)
		u.envIDs = append(u.envIDs, envID)
		u.size++
		return nil
	}

	// Overwrite the oldest transition
	i := u.next
	copy(u.states[i*u.stateDims:(i+1)*u.stateDims], state)
	copy(u.actions[i*u.actionDims:(i+1)*u.actionDims], action)
	u.rewards[i] = t.Reward
	copy(u.nextStates[i*u.stateDims:(i+1)*u.stateDims], nextState)
	u.terminals[i] = t.Terminal
	u.resets[i] = t.Reset
	u.episodeStart[i] = start
	u.envIDs[i] = envID
	u.next = (u.next + 1) % u.capacity

	return nil
}

// Sample samples n unique transitions uniformly at random
func (u *Uniform) Sample(n int) (Batch, error) {
	if n <= 0 {
		return Batch{}, &ExpReplayError{Op: "sample",
			Err: fmt.Errorf("cannot sample %v transitions", n)}
	}
	if u.size == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
	}
	if u.size < n {
		return Batch{}, &ExpReplayError{Op: "sample",
			Err: errInsufficientSamples}
	}

	indices := make([]int, n)
	sampleuv.WithoutReplacement(indices, u.size, u.rng)

	b := Batch{
		Size:         n,
		StateDims:    u.stateDims,
		ActionDims:   u.actionDims,
		State:        make([]float64, 0, n*u.stateDims),
		Action:       make([]float64, 0, n*u.actionDims),
		Reward:       make([]float64, n),
		NextState:    make([]float64, 0, n*u.stateDims),
		Terminal:     make([]bool, n),
		Reset:        make([]bool, n),
		EpisodeStart: make([]bool, n),
		EnvID:        make([]int, n),
	}

	for j, i := range indices {
		b.State = append(b.State, u.states[i*u.stateDims:(i+1)*u.stateDims]...)
		b.Action = append(b.Action,
			u.actions[i*u.actionDims:(i+1)*u.actionDims]...)
		b.NextState = append(b.NextState,
			u.nextStates[i*u.stateDims:(i+1)*u.stateDims]...)
		b.Reward[j] = u.rewards[i]
		b.Terminal[j] = u.terminals[i]
		b.Reset[j] = u.resets[i]
		b.EpisodeStart[j] = u.episodeStart[i]
		b.EnvID[j] = u.envIDs[i]
	}

	return b, nil
}

// Len returns the number of transitions in the buffer
func (u *Uniform) Len() int {
	return u.size
}

// Capacity returns the capacity of the buffer and whether the buffer
// is bounded
func (u *Uniform) Capacity() (int, bool) {
	if u.capacity <= 0 {
		return 0, false
	}
	return u.capacity, true
}

// StopCurrentEpisode notifies the buffer that the current episode of
// environment envID was interrupted
func (u *Uniform) StopCurrentEpisode(envID int) {
	u.episodeEnded[envID] = true
}

// uniformData is the gob-encoded content of a Uniform buffer
type uniformData struct {
	Capacity     int
	StateDims    int
	ActionDims   int
	States       []float64
	Actions      []float64
	Rewards      []float64
	NextStates   []float64
	Terminals    []bool
	Resets       []bool
	EpisodeStart []bool
	EnvIDs       []int
	Next         int
	Size         int
	EpisodeEnded map[int]bool
}

// Save saves the content of the buffer to a file
func (u *Uniform) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return &ExpReplayError{Op: "save", Err: err}
	}
	defer file.Close()

	data := uniformData{
		Capacity:     u.capacity,
		StateDims:    u.stateDims,
		ActionDims:   u.actionDims,
		States:       u.states,
		Actions:      u.actions,
		Rewards:      u.rewards,
		NextStates:   u.nextStates,
		Terminals:    u.terminals,
		Resets:       u.resets,
		EpisodeStart: u.episodeStart,
		EnvIDs:       u.envIDs,
		Next:         u.next,
		Size:         u.size,
		EpisodeEnded: u.episodeEnded,
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return &ExpReplayError{Op: "save", Err: err}
	}
	return nil
}

// Load replaces the content of the buffer with the content saved to a
// file. The saved buffer must store transitions of the same shape.
func (u *Uniform) Load(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return &ExpReplayError{Op: "load", Err: err}
	}
	defer file.Close()

	var data uniformData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return &ExpReplayError{Op: "load", Err: err}
	}

	if data.StateDims != u.stateDims || data.ActionDims != u.actionDims {
		return &ExpReplayError{Op: "load", Err: fmt.Errorf("saved buffer "+
			"stores transitions of shape (%v, %v), expected (%v, %v)",
			data.StateDims, data.ActionDims, u.stateDims, u.actionDims)}
	}

	u.capacity = data.Capacity
	u.states = data.States
	u.actions = data.Actions
	u.rewards = data.Rewards
	u.nextStates = data.NextStates
	u.terminals = data.Terminals
	u.resets = data.Resets
	u.episodeStart = data.EpisodeStart
	u.envIDs = data.EnvIDs
	u.next = data.Next
	u.size = data.Size
	u.episodeEnded = data.EpisodeEnded
	if u.episodeEnded == nil {
		u.episodeEnded = make(map[int]bool)
	}

	return nil
}
