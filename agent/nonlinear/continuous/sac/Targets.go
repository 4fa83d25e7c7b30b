package sac

import (
	"github.com/hisaki/rlrl/utils/floatutils"
	"gonum.org/v1/gonum/stat"
)

// softTargets returns the soft Bellman targets of the critics,
//
//	r + γ(1 - terminal)(min(Q1', Q2')(s', a') - α log π(a'|s'))
//
// where nextQ holds min(Q1', Q2')(s', a') and nextLogProb holds
// log π(a'|s') for each transition.
func softTargets(reward, notTerminal, nextQ, nextLogProb []float64,
	gamma, temperature float64) []float64 {
	target := make([]float64, len(reward))
	for i := range target {
		softQ := nextQ[i] - temperature*nextLogProb[i]
		target[i] = reward[i] + gamma*notTerminal[i]*softQ
	}
	return target
}

// resetRewards returns a copy of reward with the NaN rewards of reset
// transitions replaced by -cost
func resetRewards(reward []float64, cost float64) []float64 {
	return floatutils.ReplaceNaN(reward, -cost)
}

// resetTargets returns the targets of the reset Q network and of the
// reset rate. With n the reset indicator of each transition, these are
//
//	R(s, a) ← n - ρ' + R'(s', a')
//	ρ       ← mean(n - R'(s, a) + R'(s', a'))
//
// where currentQ holds R'(s, a) and nextQ holds R'(s', a').
func resetTargets(reward, currentQ, nextQ []float64,
	targetRate float64) ([]float64, float64) {
	reset := floatutils.NaNMask(reward)
	qTarget := make([]float64, len(reward))
	rateTargets := make([]float64, len(reward))
	for i := range reset {
		qTarget[i] = reset[i] - targetRate + nextQ[i]
		rateTargets[i] = reset[i] - currentQ[i] + nextQ[i]
	}
	return qTarget, stat.Mean(rateTargets, nil)
}
