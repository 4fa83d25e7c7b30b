package sac

import (
	"fmt"

	"github.com/hisaki/rlrl/agent"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/expreplay"
	"github.com/hisaki/rlrl/initwfn"
	"github.com/hisaki/rlrl/solver"
	"github.com/hisaki/rlrl/utils/seeding"
)

func init() {
	// Register the Config types so that they can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.SAC, Config{})
	agent.Register(agent.ResetSAC, ResetConfig{})
}

// Config implements a configuration of a SAC agent
type Config struct {
	// Hidden layer sizes of the policy and of both critics. All hidden
	// layers use ReLU activations.
	PolicyLayers []int
	CriticLayers []int

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn

	// Solvers are cloned for each network they optimize
	PolicySolver      *solver.Solver
	CriticSolver      *solver.Solver
	TemperatureSolver *solver.Solver

	ExpReplay       expreplay.Config
	BatchSize       int
	ReplayStartSize int

	Tau   float64
	Gamma float64

	InitTemperature  float64
	LearnTemperature bool

	// TargetEntropy defaults to the negative number of action
	// dimensions if not set
	TargetEntropy *float64 `json:",omitempty"`

	CalcStats bool
}

// DefaultConfig returns the default SAC configuration
func DefaultConfig() Config {
	adam, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		panic(err)
	}

	return Config{
		PolicyLayers:      []int{256, 256},
		CriticLayers:      []int{256, 256},
		InitWFn:           initwfn.NewGlorotU(1.0),
		PolicySolver:      adam,
		CriticSolver:      adam.Clone(),
		TemperatureSolver: adam.Clone(),
		ExpReplay:         expreplay.Config{Capacity: 1_000_000},
		BatchSize:         256,
		ReplayStartSize:   10_000,
		Tau:               5e-3,
		Gamma:             0.99,
		InitTemperature:   1.0,
		LearnTemperature:  true,
		CalcStats:         true,
	}
}

// CreateAgent creates the SAC agent that the Config describes
func (c Config) CreateAgent(e env.Environment,
	seeds seeding.Seeds) (agent.Agent, error) {
	s, err := New(e, c, seeds)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ValidAgent returns whether the argument agent is a SAC agent
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*SAC)
	return ok
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if len(c.PolicyLayers) == 0 || len(c.CriticLayers) == 0 {
		return fmt.Errorf("policy and critics require at least one hidden " +
			"layer")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer specified")
	}
	if c.PolicySolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("policy and critic solvers must be specified")
	}
	if c.LearnTemperature && c.TemperatureSolver == nil {
		return fmt.Errorf("temperature solver must be specified to learn " +
			"the temperature")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %v", c.BatchSize)
	}
	if c.ReplayStartSize < c.BatchSize {
		return fmt.Errorf("replay start size %v must be at least the batch "+
			"size %v", c.ReplayStartSize, c.BatchSize)
	}
	if capacity := c.ExpReplay.Capacity; capacity > 0 &&
		capacity <= c.ReplayStartSize {
		return fmt.Errorf("replay capacity %v must exceed the replay start "+
			"size %v", capacity, c.ReplayStartSize)
	}
	if c.Tau < 0 || c.Tau > 1 {
		return fmt.Errorf("tau must be in [0, 1], got %v", c.Tau)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.InitTemperature <= 0 {
		return fmt.Errorf("initial temperature must be positive, got %v",
			c.InitTemperature)
	}
	return nil
}

// Type returns the type of agent created by the Config
func (c Config) Type() agent.Type {
	return agent.SAC
}

// targetEntropy returns the target entropy for actionDims dimensional
// actions
func (c Config) targetEntropy(actionDims int) float64 {
	if c.TargetEntropy != nil {
		return *c.TargetEntropy
	}
	return -float64(actionDims)
}

// ResetConfig implements a configuration of a ResetSAC agent
type ResetConfig struct {
	Config

	// Hidden layer sizes of the reset Q network
	ResetQLayers []int

	// Solver cloned for the reset Q network, reset rate, and reset cost
	ResetSolver *solver.Solver

	// TargetTerminalProbability is the rate of resets the reset cost
	// is adjusted to achieve
	TargetTerminalProbability float64
}

// DefaultResetConfig returns the default ResetSAC configuration
func DefaultResetConfig() ResetConfig {
	c := DefaultConfig()
	return ResetConfig{
		Config:                    c,
		ResetQLayers:              []int{64, 64},
		ResetSolver:               c.CriticSolver.Clone(),
		TargetTerminalProbability: 1.0 / 1000,
	}
}

// CreateAgent creates the ResetSAC agent that the Config describes
func (c ResetConfig) CreateAgent(e env.Environment,
	seeds seeding.Seeds) (agent.Agent, error) {
	r, err := NewReset(e, c, seeds)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ValidAgent returns whether the argument agent is a ResetSAC agent
func (c ResetConfig) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*ResetSAC)
	return ok
}

// Validate checks a ResetConfig for errors
func (c ResetConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if len(c.ResetQLayers) == 0 {
		return fmt.Errorf("reset Q network requires at least one hidden " +
			"layer")
	}
	if c.ResetSolver == nil {
		return fmt.Errorf("reset solver must be specified")
	}
	if p := c.TargetTerminalProbability; p < 0 || p > 1 {
		return fmt.Errorf("target terminal probability must be in [0, 1], "+
			"got %v", p)
	}
	return nil
}

// Type returns the type of agent created by the ResetConfig
func (c ResetConfig) Type() agent.Type {
	return agent.ResetSAC
}
