package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/agent/nonlinear/continuous/sac"
	"github.com/hisaki/rlrl/environment/envconfig"
	"github.com/hisaki/rlrl/experiment"
	"github.com/hisaki/rlrl/experiment/checkpointer"
	"github.com/hisaki/rlrl/experiment/tracker"
	"github.com/hisaki/rlrl/expreplay"
)

func TestNewEnvConfig(t *testing.T) {
	c := newEnvConfig("Pendulum", 0, 0.9)
	if c.Environment != envconfig.Pendulum || c.EpisodeCutoff != 200 {
		t.Errorf("newEnvConfig: unexpected Pendulum config %+v", c)
	}

	c = newEnvConfig("HalfCheetah-v2", 500, 0.99)
	if c.Environment != envconfig.Gym || c.GymID != "HalfCheetah-v2" ||
		c.MaxEpisodeSteps != 500 {
		t.Errorf("newEnvConfig: unexpected Gym config %+v", c)
	}
	if !c.NormalizeActions {
		t.Error("newEnvConfig: actions should be normalized")
	}
}

func TestNewAgentConfig(t *testing.T) {
	tests := map[string]agent.Type{
		"sac":       agent.SAC,
		"ddpg":      agent.DDPG,
		"sac-reset": agent.ResetSAC,
	}
	for name, want := range tests {
		c, err := newAgentConfig(name, 0.9, 100, 32)
		if err != nil {
			t.Fatal(err)
		}
		if c.Type() != want {
			t.Errorf("newAgentConfig: expected %v for %v, got %v", want, name,
				c.Type())
		}
		if err := c.Validate(); err != nil {
			t.Errorf("newAgentConfig: %v: %v", name, err)
		}
	}

	if _, err := newAgentConfig("dqn", 0.9, 100, 32); err == nil {
		t.Error("newAgentConfig: expected error on unknown agent")
	}
}

func trainConfig() experiment.Config {
	a := sac.DefaultConfig()
	a.PolicyLayers = []int{8}
	a.CriticLayers = []int{8}
	a.BatchSize = 4
	a.ReplayStartSize = 8
	a.ExpReplay = expreplay.Config{Capacity: 100}

	return experiment.Config{
		Type:         experiment.OnlineExp,
		MaxSteps:     20,
		EvalInterval: 10,
		EvalEpisodes: 1,
		EnvConf:      newEnvConfig("Pendulum", 10, 0.99),
		AgentConf:    agent.NewTypedConfig(a),
	}
}

func TestTrain(t *testing.T) {
	c := trainConfig()
	out := t.TempDir()
	if err := Train(c, 1, out, true, checkpointer.Enumerate); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"config.json", "returns.bin",
		"episode_lengths.bin", "eval_returns.json", "learning_curve.png",
		"checkpoint1",
		"checkpoint2", "agent"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("train: missing output %v: %v", name, err)
		}
	}

	returns, err := tracker.LoadData(filepath.Join(out, "returns.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(returns) != 2 {
		t.Errorf("train: expected 2 episode returns, got %v", len(returns))
	}
}

func TestTrainTimedCheckpoints(t *testing.T) {
	out := t.TempDir()
	if err := Train(trainConfig(), 1, out, true, checkpointer.Time); err != nil {
		t.Fatal(err)
	}

	checkpoints, err := filepath.Glob(filepath.Join(out, "checkpoint-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(checkpoints) != 2 {
		t.Errorf("train: expected 2 timed checkpoints, got %v", checkpoints)
	}

	err = Train(trainConfig(), 1, t.TempDir(), true, checkpointer.Naming("x"))
	if err == nil {
		t.Error("train: expected error on unknown checkpoint naming")
	}
}
