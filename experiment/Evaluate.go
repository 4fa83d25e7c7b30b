package experiment

import (
	"fmt"
	"math"

	"github.com/hisaki/rlrl/agent"
	env "github.com/hisaki/rlrl/environment"
)

// Evaluate runs the agent greedily for the given number of episodes on
// e and returns the return of each episode. The agent does not learn
// or record transitions, and is returned to its previous mode
// afterwards. NaN rewards are not added to the returns.
//
// Evaluation only selects actions, so the agent may be evaluated in
// the middle of a training episode on another environment.
func Evaluate(e env.Environment, a agent.Agent, episodes int) ([]float64,
	error) {
	if !a.IsEval() {
		a.Eval()
		defer a.Train()
	}

	returns := make([]float64, episodes)
	for i := range returns {
		step, err := e.Reset()
		if err != nil {
			return nil, fmt.Errorf("evaluate: %v", err)
		}

		for !step.Last() {
			step, _, err = e.Step(a.SelectAction(step))
			if err != nil {
				return nil, fmt.Errorf("evaluate: %v", err)
			}
			if !math.IsNaN(step.Reward) {
				returns[i] += step.Reward
			}
		}
	}
	return returns, nil
}
