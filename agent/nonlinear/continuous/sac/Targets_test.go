package sac

import (
	"math"
	"testing"

	"github.com/hisaki/rlrl/expreplay"
	"gonum.org/v1/gonum/floats"
)

func TestSoftTargets(t *testing.T) {
	// A middle transition, a terminal transition, and a transition
	// through an automatic reset
	batch := expreplay.Batch{
		Size:     3,
		Reward:   []float64{1, 2, math.NaN()},
		Terminal: []bool{false, true, false},
	}
	nextQ := []float64{10, 20, 30}
	nextLogProb := []float64{-1, -2, -3}

	reward := resetRewards(batch.Reward, 0.5)
	if !math.IsNaN(batch.Reward[2]) {
		t.Fatal("resetRewards: modified the batch rewards")
	}
	if !floats.Equal(reward, []float64{1, 2, -0.5}) {
		t.Fatalf("resetRewards: expected [1 2 -0.5], got %v", reward)
	}

	got := softTargets(reward, batch.NotTerminal(), nextQ, nextLogProb,
		0.9, 0.1)
	want := []float64{
		1 + 0.9*(10+0.1*1),
		2,
		-0.5 + 0.9*(30+0.1*3),
	}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("softTargets: expected %v, got %v", want, got)
	}

	// Without entropy regularization the target is the hard Bellman
	// target
	got = softTargets(reward, batch.NotTerminal(), nextQ, nextLogProb,
		0.9, 0)
	want = []float64{1 + 0.9*10, 2, -0.5 + 0.9*30}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("softTargets: expected %v, got %v", want, got)
	}
}

func TestResetTargets(t *testing.T) {
	reward := []float64{1, math.NaN(), 0, math.NaN()}
	currentQ := []float64{0.5, 1, -1, 2}
	nextQ := []float64{1, 2, 3, 4}

	qTarget, rateTarget := resetTargets(reward, currentQ, nextQ, 0.25)

	wantQ := []float64{0.75, 2.75, 2.75, 4.75}
	if !floats.EqualApprox(qTarget, wantQ, 1e-12) {
		t.Errorf("resetTargets: expected reset Q targets %v, got %v",
			wantQ, qTarget)
	}

	// mean(0.5, 2, 4, 3)
	if math.Abs(rateTarget-2.375) > 1e-12 {
		t.Errorf("resetTargets: expected reset rate target 2.375, got %v",
			rateTarget)
	}

	// Without resets and with equal values the reset rate target is 0
	_, rateTarget = resetTargets([]float64{0, 0}, []float64{1, 1},
		[]float64{1, 1}, 0)
	if rateTarget != 0 {
		t.Errorf("resetTargets: expected reset rate target 0, got %v",
			rateTarget)
	}
}
