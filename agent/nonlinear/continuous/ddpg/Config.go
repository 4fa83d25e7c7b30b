package ddpg

import (
	"fmt"

	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/agent/explorer"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/expreplay"
	"github.com/hisaki/rlrl/initwfn"
	"github.com/hisaki/rlrl/solver"
	"github.com/hisaki/rlrl/utils/seeding"
)

func init() {
	// Register the Config type so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.DDPG, Config{})
}

// Config implements a configuration of a DDPG agent
type Config struct {
	// Hidden layer sizes of the actor and critic. All hidden layers use
	// ReLU activations.
	ActorLayers  []int
	CriticLayers []int

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn

	ActorSolver  *solver.Solver
	CriticSolver *solver.Solver

	ExpReplay       expreplay.Config
	BatchSize       int
	ReplayStartSize int

	Tau   float64
	Gamma float64

	// Exploration strategy and the standard deviation of its noise
	Explorer         explorer.Type
	ExplorationScale float64

	CalcStats bool
}

// DefaultConfig returns the default DDPG configuration
func DefaultConfig() Config {
	actorSolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		panic(err)
	}

	return Config{
		ActorLayers:      []int{256, 256},
		CriticLayers:     []int{256, 256},
		InitWFn:          initwfn.NewGlorotU(1.0),
		ActorSolver:      actorSolver,
		CriticSolver:     actorSolver.Clone(),
		ExpReplay:        expreplay.Config{Capacity: 1_000_000},
		BatchSize:        256,
		ReplayStartSize:  25_000,
		Tau:              5e-3,
		Gamma:            0.99,
		Explorer:         explorer.TypeGaussian,
		ExplorationScale: 0.1,
		CalcStats:        true,
	}
}

// CreateAgent creates the DDPG agent that the Config describes
func (c Config) CreateAgent(e env.Environment,
	seeds seeding.Seeds) (agent.Agent, error) {
	d, err := New(e, c, seeds)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ValidAgent returns whether the argument agent is a DDPG agent
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DDPG)
	return ok
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if len(c.ActorLayers) == 0 || len(c.CriticLayers) == 0 {
		return fmt.Errorf("actor and critic require at least one hidden " +
			"layer")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer specified")
	}
	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("actor and critic solvers must be specified")
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
	if c.Explorer != explorer.TypeGaussian &&
		c.Explorer != explorer.TypeGreedy {
		return fmt.Errorf("no such explorer %q", c.Explorer)
	}
	if c.ExplorationScale < 0 {
		return fmt.Errorf("exploration scale must be non-negative")
	}
	return nil
}

// Type returns the type of agent created by the Config
func (c Config) Type() agent.Type {
	return agent.DDPG
}
