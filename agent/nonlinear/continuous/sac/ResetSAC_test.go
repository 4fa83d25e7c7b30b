package sac

import (
	"math"
	"testing"

	"github.com/hisaki/rlrl/environment/envconfig"
	"github.com/hisaki/rlrl/utils/seeding"
	"gonum.org/v1/gonum/mat"
)

func smallResetConfig() ResetConfig {
	c := DefaultResetConfig()
	c.Config = smallConfig()
	c.ResetQLayers = []int{4}
	return c
}

func TestResetSACUpdates(t *testing.T) {
	e := newResettingEnv(3)
	r, err := NewReset(e, smallResetConfig(), seeding.New(1, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// The first update happens once the buffer holds 9 transitions
	run(t, r, e, 9)
	if r.Updates() != 1 {
		t.Fatalf("step: expected 1 update, got %v", r.Updates())
	}

	// The reset rate starts at 0, below the target terminal
	// probability, so the first cost update decreases the cost
	if c := r.ResetCost(); c >= 0 {
		t.Errorf("step: expected negative reset cost, got %v", c)
	}

	// NaN rewards never reach the critics
	checkStats(t, r.Stats(), "q1_pred", "q2_pred", "q_loss",
		"policy_loss", "reset_q", "reset_rate", "reset_cost",
		"reset_cost_loss")

	run(t, r, e, 20)
	if rate := r.ResetRate(); rate < 0 || rate > 1 {
		t.Errorf("step: reset rate %v outside [0, 1]", rate)
	}
	if rate := r.TargetResetRate(); rate < 0 || rate > 1 {
		t.Errorf("step: target reset rate %v outside [0, 1]", rate)
	}
}

func TestResetSACWithResetOnTerminal(t *testing.T) {
	c := envconfig.Config{
		Environment:      envconfig.MountainCar,
		EpisodeCutoff:    50,
		Discount:         0.99,
		NormalizeActions: true,
		ResetOnTerminal:  true,
	}
	e, _, err := c.Create(2)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewReset(e, smallResetConfig(), seeding.New(2, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	run(t, r, e, 20)
	if r.Updates() == 0 {
		t.Fatal("step: expected updates after the replay start size")
	}
	checkStats(t, r.Stats(), "q_loss", "reset_q", "reset_rate")
}

func TestResetSACSaveLoad(t *testing.T) {
	e := newResettingEnv(4)
	r, err := NewReset(e, smallResetConfig(), seeding.New(3, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	run(t, r, e, 15)

	dir := t.TempDir()
	if err := r.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewReset(e, smallResetConfig(), seeding.New(4, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if err := loaded.Load(dir); err != nil {
		t.Fatal(err)
	}

	if loaded.ResetCost() != r.ResetCost() {
		t.Errorf("load: expected reset cost %v, got %v", r.ResetCost(),
			loaded.ResetCost())
	}
	if loaded.ResetRate() != r.ResetRate() {
		t.Errorf("load: expected reset rate %v, got %v", r.ResetRate(),
			loaded.ResetRate())
	}
	if loaded.TargetResetRate() != r.TargetResetRate() {
		t.Errorf("load: expected target reset rate %v, got %v",
			r.TargetResetRate(), loaded.TargetResetRate())
	}

	r.Eval()
	loaded.Eval()
	step := e.CurrentTimeStep()
	if !mat.EqualApprox(r.SelectAction(step), loaded.SelectAction(step),
		1e-12) {
		t.Error("load: loaded agent acts differently")
	}
}

func TestNewResetRejectsSACConfig(t *testing.T) {
	_, err := NewReset(newResettingEnv(3), smallConfig(), seeding.New(0, nil))
	if err == nil {
		t.Error("newReset: expected error on SAC configuration")
	}
}

func TestResetConfigCreatesResetSAC(t *testing.T) {
	a, err := smallResetConfig().CreateAgent(newResettingEnv(3),
		seeding.New(0, nil))
	if err != nil {
		t.Fatal(err)
	}
	r, ok := a.(*ResetSAC)
	if !ok {
		t.Fatalf("createAgent: expected *ResetSAC, got %T", a)
	}
	defer r.Close()

	if math.IsNaN(r.ResetRate()) || r.ResetRate() != 0 {
		t.Errorf("createAgent: expected initial reset rate 0, got %v",
			r.ResetRate())
	}
}
