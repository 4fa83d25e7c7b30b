package pendulum

import (
	"math"

	env "github.com/hisaki/rlrl/environment"
	"gonum.org/v1/gonum/mat"
)

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Rewards are the negative cost
// -(θ² + 0.1θ̇² + 0.001u²) of the state before the action and the
// applied torque u, so that holding the pendulum upright with no torque
// gives the maximum reward of 0.
//
// Episodes end after a fixed number of steps and never reach a terminal
// state.
type SwingUp struct {
	env.Starter
	env.StepLimit
}

// NewSwingUp creates and returns a new SwingUp task
func NewSwingUp(s env.Starter, episodeSteps int) *SwingUp {
	return &SwingUp{s, env.NewStepLimit(episodeSteps)}
}

// GetReward gets the reward for taking action in state
func (s *SwingUp) GetReward(state, action, _ *mat.VecDense) float64 {
	th, thdot := state.AtVec(0), state.AtVec(1)
	u := action.AtVec(0)

	return -(th*th + 0.1*thdot*thdot + 0.001*u*u)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -(math.Pi*math.Pi + 0.1*SpeedBound*SpeedBound +
		0.001*TorqueBound*TorqueBound)
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 0.0
}

// RewardSpec returns the reward specification of the Task
func (s *SwingUp) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{s.Min()})
	upperBound := mat.NewVecDense(1, []float64{s.Max()})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
