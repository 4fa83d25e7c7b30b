package mountaincar

import (
	env "github.com/hisaki/rlrl/environment"
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
)

const (
	// Commonly used goal position
	GoalPosition float64 = 0.45

	goalReward float64 = 100.0
)

// Goal implements the continuous-action task of driving the car up the
// hill to a goal position. Rewards are -0.1u² for a force u, plus a
// bonus of 100 for the action which transitions the car to the goal.
//
// Reaching the goal is a terminal state. Episodes are also cut off
// after a step limit.
type Goal struct {
	env.Starter
	env.Enders
	goalX float64
}

// NewGoal creates and returns a new Goal task given a Starter, which
// determines the starting states; the maximum number of episode
// steps; and the goal x position.
func NewGoal(s env.Starter, episodeSteps int, goalX float64) *Goal {
	atGoal := func(state *mat.VecDense) bool {
		return state.AtVec(0) >= goalX
	}
	goalEnder := env.NewFunctionEnder(atGoal, ts.TerminalStateReached)
	enders := env.Enders{goalEnder, env.NewStepLimit(episodeSteps)}

	return &Goal{s, enders, goalX}
}

// AtGoal returns whether the argument state is at the goal
func (g *Goal) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) >= g.goalX
}

// GetReward returns the reward for taking action in state and
// transitioning to nextState
func (g *Goal) GetReward(_, action, nextState *mat.VecDense) float64 {
	force := action.AtVec(0)
	reward := -0.1 * force * force

	if g.AtGoal(nextState) {
		reward += goalReward
	}
	return reward
}

// Min returns the minimum attainable reward over all timesteps
func (g *Goal) Min() float64 {
	return -0.1 * MaxContinuousAction * MaxContinuousAction
}

// Max returns the maximum attainable reward over all timesteps
func (g *Goal) Max() float64 { return goalReward }

// RewardSpec returns the reward specification of the Task
func (g *Goal) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.Min()})
	upperBound := mat.NewVecDense(1, []float64{g.Max()})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
