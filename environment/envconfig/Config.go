// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks. Environment
// configurations in this package are JSON serializable.
package envconfig

import (
	"fmt"

	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/environment/classiccontrol/mountaincar"
	"github.com/hisaki/rlrl/environment/classiccontrol/pendulum"
	"github.com/hisaki/rlrl/environment/gym"
	"github.com/hisaki/rlrl/environment/wrappers"
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/spatial/r1"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	MountainCar EnvName = "MountainCar"
	Pendulum    EnvName = "Pendulum"
	Gym         EnvName = "Gym"
)

// Config implements a specific configuration of a specific environment.
// The classic control environments are created with their default
// tasks: Goal for MountainCar and SwingUp for Pendulum. Gym
// environments are looked up by GymID.
type Config struct {
	Environment EnvName
	GymID       string `json:",omitempty"`

	// EpisodeCutoff is the step limit of the classic control
	// environments. MaxEpisodeSteps is the step limit Gym applies to
	// the Gym environment, used to tell timeouts from terminal states.
	EpisodeCutoff   int
	MaxEpisodeSteps int `json:",omitempty"`

	Discount float64

	// NormalizeActions wraps the environment so that agents act in
	// [-1, 1]. ResetOnTerminal wraps the environment so that terminal
	// states reset the environment without ending the episode.
	NormalizeActions bool
	ResetOnTerminal  bool
}

// Validate returns an error if the Config is illegal
func (c Config) Validate() error {
	switch c.Environment {
	case MountainCar, Pendulum:
		if c.EpisodeCutoff <= 0 {
			return fmt.Errorf("validate: episode cutoff must be positive")
		}
	case Gym:
		if c.GymID == "" {
			return fmt.Errorf("validate: gym environments need a GymID")
		}
	default:
		return fmt.Errorf("validate: no such environment %v", c.Environment)
	}

	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1]")
	}
	return nil
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	var e env.Environment
	var err error
	switch c.Environment {
	case MountainCar:
		e, err = CreateMountainCar(c.EpisodeCutoff, seed, c.Discount)

	case Pendulum:
		e, err = CreatePendulum(c.EpisodeCutoff, seed, c.Discount)

	case Gym:
		var g *gym.GymEnv
		g, _, err = gym.New(c.GymID, c.Discount, c.MaxEpisodeSteps, seed)
		if err == nil {
			e = g
		}
	}
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	if c.NormalizeActions {
		e, err = wrappers.NewNormalizeActionSpace(e)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
	}

	if c.ResetOnTerminal {
		e = wrappers.NewResetOnTerminal(e)
	}

	return e, e.CurrentTimeStep(), nil
}

// CreateMountainCar is a factory for creating the continuous-action
// MountainCar environment with default physical parameters and the
// Goal task.
func CreateMountainCar(cutoff int, seed uint64,
	discount float64) (env.Environment, error) {
	position := r1.Interval{Min: -0.6, Max: -0.4}
	velocity := r1.Interval{Min: 0.0, Max: 0.0}

	s := env.NewUniformStarter([]r1.Interval{position, velocity}, seed)
	task := mountaincar.NewGoal(s, cutoff, mountaincar.GoalPosition)

	m, _, err := mountaincar.NewContinuous(task, discount)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreatePendulum is a factory for creating the continuous-action
// Pendulum environment with default physical parameters and the
// SwingUp task.
func CreatePendulum(cutoff int, seed uint64,
	discount float64) (env.Environment, error) {
	angle := r1.Interval{Min: -pendulum.AngleBound, Max: pendulum.AngleBound}
	speed := r1.Interval{Min: -1.0, Max: 1.0}

	s := env.NewUniformStarter([]r1.Interval{angle, speed}, seed)
	task := pendulum.NewSwingUp(s, cutoff)

	p, _, err := pendulum.NewContinuous(task, discount)
	if err != nil {
		return nil, err
	}
	return p, nil
}
