package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/aunum/log"
	"github.com/hisaki/rlrl/agent"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/experiment/checkpointer"
	"github.com/hisaki/rlrl/experiment/tracker"
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/stat"
)

// Online is an Experiment that trains an agent online, optionally
// evaluating the agent on a separate environment every so many steps.
type Online struct {
	environment env.Environment
	agent       agent.Agent

	maxSteps     int
	currentSteps int
	episodes     int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	evalEnv      env.Environment
	evalInterval int
	evalEpisodes int
	evalReturns  [][]float64
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, t determines what data is
// tracked, and c determines when the agent is saved.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *Online {
	return &Online{
		environment:   e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
	}
}

// SetEvaluation makes the experiment evaluate the agent for episodes
// episodes on environment e every interval steps
func (o *Online) SetEvaluation(e env.Environment, interval, episodes int) {
	o.evalEnv = e
	o.evalInterval = interval
	o.evalEpisodes = episodes
}

// AddCheckpointer adds a Checkpointer to the experiment
func (o *Online) AddCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Register registers a Tracker with the Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Agent returns the agent trained in the experiment
func (o *Online) Agent() agent.Agent {
	return o.agent
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

var _ Experiment = &Online{}

// EvalReturns returns the episodic returns of each evaluation run so far
func (o *Online) EvalReturns() [][]float64 {
	return o.evalReturns
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.environment.Reset()
	if err != nil {
		return true, fmt.Errorf("runEpisode: could not reset "+
			"environment: %v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return true, fmt.Errorf("runEpisode: %v", err)
	}
	o.track(step)

	episodeReturn := 0.0
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		action := o.agent.SelectAction(step)
		step, _, err = o.environment.Step(action)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if !math.IsNaN(step.Reward) {
			episodeReturn += step.Reward
		}
		o.track(step)

		if err := o.agent.Observe(action, step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.checkpoint(step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}

		if o.evalEnv != nil && o.currentSteps%o.evalInterval == 0 {
			if err := o.evaluate(); err != nil {
				return true, fmt.Errorf("runEpisode: %v", err)
			}
		}
	}
	o.agent.EndEpisode()
	o.episodes++
	o.logEpisode(episodeReturn)

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return err
		}
		if ended {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the agent and environments of the experiment
func (o *Online) Close() error {
	if err := agent.Close(o.agent); err != nil {
		return err
	}
	if err := env.Close(o.environment); err != nil {
		return err
	}
	if o.evalEnv != nil {
		return env.Close(o.evalEnv)
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}

func (o *Online) evaluate() error {
	returns, err := Evaluate(o.evalEnv, o.agent, o.evalEpisodes)
	if err != nil {
		return err
	}
	o.evalReturns = append(o.evalReturns, returns)
	log.Successf("Step : %d, Eval Return : %.3f", o.currentSteps,
		stat.Mean(returns, nil))
	return nil
}

// logEpisode logs the return of the last episode together with the
// training statistics of the agent
func (o *Online) logEpisode(episodeReturn float64) {
	log.Infof("Epi : %d, Reward Sum : %.3f", o.episodes, episodeReturn)

	s, ok := o.agent.(agent.Statser)
	if !ok {
		return
	}
	stats := s.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Infof("\t%v : %.5f", name, stats[name])
	}
}
