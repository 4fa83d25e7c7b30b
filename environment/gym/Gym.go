// Package gym provides access to OpenAI Gym environments.
//
// All environments with Box action spaces can be used. Gym signals the
// end of an episode with a single done flag, so a GymEnv is told the
// step limit that Gym applies to the environment (MaxEpisodeSteps) in
// order to tell episodes cut off by the step limit apart from episodes
// which reached a terminal state.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym.
package gym

import (
	"fmt"
	"math"

	env "github.com/hisaki/rlrl/environment"
	ts "github.com/hisaki/rlrl/timestep"
	"github.com/samuelfneumann/gogym"
	"gonum.org/v1/gonum/mat"
)

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	name            string
	currentStep     ts.TimeStep
	discount        float64
	maxEpisodeSteps int
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite. If maxEpisodeSteps > 0, episodes
// ending on or after that many steps are considered to have timed out,
// otherwise every episode end is considered to be a terminal state.
func New(name string, discount float64, maxEpisodeSteps int,
	seed uint64) (*GymEnv, ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}

	if _, ok := goGymEnv.ActionSpace().(*gogym.BoxSpace); !ok {
		goGymEnv.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: environment %v does "+
			"not have continuous actions", name)
	}

	goGymEnv.Seed(int(seed))
	gymEnv := &GymEnv{
		Environment:     goGymEnv,
		name:            name,
		discount:        discount,
		maxEpisodeSteps: maxEpisodeSteps,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		goGymEnv.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	return gymEnv, t, nil
}

// Step takes a single environmental step
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
		if g.maxEpisodeSteps > 0 && t.Number >= g.maxEpisodeSteps {
			t.SetEnd(ts.Timeout)
		} else {
			t.SetEnd(ts.TerminalStateReached)
		}
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	low, high := bounds(g.ObservationSpace())
	shape := mat.NewVecDense(low.Len(), nil)

	return env.NewSpec(shape, env.Observation, low, high, env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() env.Spec {
	low, high := bounds(g.ActionSpace())
	shape := mat.NewVecDense(low.Len(), nil)

	return env.NewSpec(shape, env.Action, low, high, env.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(shape, env.Discount, low, low, env.Continuous)
}

// RewardSpec returns the reward specification of the environment. Gym
// does not expose reward ranges through GoGym, so rewards are
// considered unbounded.
func (g *GymEnv) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{-math.MaxFloat64})
	high := mat.NewVecDense(1, []float64{math.MaxFloat64})

	return env.NewSpec(shape, env.Reward, low, high, env.Continuous)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

func (g *GymEnv) String() string {
	return fmt.Sprintf("GymEnv(%v)", g.name)
}

// boundedSpace is a GoGym space with lower and upper bounds
type boundedSpace interface {
	Low() []*mat.VecDense
	High() []*mat.VecDense
}

// bounds returns the bounds of a GoGym space
func bounds(space boundedSpace) (low, high *mat.VecDense) {
	switch space.(type) {
	case *gogym.BoxSpace, *gogym.DiscreteSpace:
		return space.Low()[0], space.High()[0]
	default:
		panic("bounds: invalid space type, package gym supports " +
			"only GoGym's BoxSpace or DiscreteSpace")
	}
}

// Shutdown releases the resources GoGym holds for the Python
// interpreter. No GymEnv may be used after Shutdown is called.
func Shutdown() {
	gogym.Close()
}
