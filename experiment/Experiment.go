// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/environment/envconfig"
	"github.com/hisaki/rlrl/experiment/checkpointer"
	"github.com/hisaki/rlrl/experiment/tracker"
	"github.com/hisaki/rlrl/utils/seeding"
)

// Experiment outlines structs that can run experiments. Experiments
// send each environment TimeStep to their Trackers, which cache the
// data they track to be saved to disk later with Save. Run runs
// episodes until the maximum number of timesteps is reached, and
// RunEpisode runs a single episode.
type Experiment interface {
	Run() error

	// RunEpisode runs a single episode and returns whether the step
	// limit of the experiment was reached
	RunEpisode() (bool, error)

	// Register adds a new Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)

	// Save saves all tracked data to disk
	Save() error
}

// Type names a kind of Experiment
type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment.
//
// If EvalInterval is positive, the agent is evaluated for EvalEpisodes
// episodes every EvalInterval steps on a separate environment created
// from EnvConf. Seeds overrides the seeds derived from the experiment
// seed for individual components.
type Config struct {
	Type
	MaxSteps     int
	EvalInterval int `json:",omitempty"`
	EvalEpisodes int `json:",omitempty"`
	EnvConf      envconfig.Config
	AgentConf    agent.TypedConfig
	Seeds        map[seeding.Component]uint64 `json:",omitempty"`
}

// Validate returns an error if the Config is illegal
func (c Config) Validate() error {
	if c.Type != OnlineExp {
		return fmt.Errorf("validate: no such experiment type %v", c.Type)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("validate: max steps must be positive")
	}
	if c.EvalInterval > 0 && c.EvalEpisodes <= 0 {
		return fmt.Errorf("validate: evaluation needs a positive number " +
			"of episodes")
	}
	if c.AgentConf.Config == nil {
		return fmt.Errorf("validate: missing agent configuration")
	}
	if err := c.EnvConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return c.AgentConf.Validate()
}

// CreateExp creates the experiment that the Config describes. The
// seeds of the environment, agent, and evaluation environment are
// derived from seed. The seeds of the agent's random components are in
// turn derived from the Agent seed, and c.Seeds overrides apply to them
// as well.
func (c Config) CreateExp(seed uint64, t []tracker.Tracker,
	check []checkpointer.Checkpointer) (*Online, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	seeds := seeding.New(seed, c.Seeds)

	e, _, err := c.EnvConf.Create(seeds.Get(seeding.Environment))
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create environment: "+
			"%v", err)
	}
	a, err := c.AgentConf.CreateAgent(e, seeds.Derive(seeding.Agent, c.Seeds))
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	exp := NewOnline(e, a, c.MaxSteps, t, check)
	if c.EvalInterval > 0 {
		evalEnv, _, err := c.EnvConf.Create(seeds.Get(seeding.Evaluation))
		if err != nil {
			return nil, fmt.Errorf("createExp: could not create "+
				"evaluation environment: %v", err)
		}
		exp.SetEvaluation(evalEnv, c.EvalInterval, c.EvalEpisodes)
	}
	return exp, nil
}
