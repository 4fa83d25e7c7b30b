package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aunum/log"
	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/agent/nonlinear/continuous/ddpg"
	"github.com/hisaki/rlrl/agent/nonlinear/continuous/sac"
	"github.com/hisaki/rlrl/environment/envconfig"
	"github.com/hisaki/rlrl/experiment"
	"github.com/hisaki/rlrl/experiment/checkpointer"
	"github.com/hisaki/rlrl/experiment/tracker"
	"github.com/spf13/cobra"
)

var (
	envID        string
	agentName    string
	seed         uint64
	maxStep      int
	episodeSteps int
	gamma        float64
	tInit        int
	batchSize    int
	evalInterval int
	evalEpisodes int
	saveAgent    bool
	naming       string
	outDir       string
	configFile   string
)

// Default step limits of the built-in environments
var defaultEpisodeSteps = map[envconfig.EnvName]int{
	envconfig.Pendulum:    200,
	envconfig.MountainCar: 999,
	envconfig.Gym:         1000,
}

// TrainCommand returns the command which trains an agent online
func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an agent online, evaluating it periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := experimentConfig()
			if err != nil {
				return err
			}
			return Train(c, seed, outDir, saveAgent,
				checkpointer.Naming(naming))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envID, "env-id", "Pendulum", "environment: Pendulum, "+
		"MountainCar, or an OpenAI Gym id")
	flags.StringVar(&agentName, "agent", "sac", "agent: sac, ddpg, or "+
		"sac-reset")
	flags.Uint64Var(&seed, "seed", 0, "experiment seed")
	flags.IntVar(&maxStep, "max-step", 1000000, "number of training steps")
	flags.IntVar(&episodeSteps, "episode-steps", 0, "episode step limit, "+
		"0 for the environment default")
	flags.Float64Var(&gamma, "gamma", 0.99, "discount factor")
	flags.IntVar(&tInit, "t-init", 10000, "steps before updates start")
	flags.IntVar(&batchSize, "batch-size", 256, "minibatch size")
	flags.IntVar(&evalInterval, "eval-interval", 10000, "steps between "+
		"evaluations, 0 to disable")
	flags.IntVar(&evalEpisodes, "eval-episodes", 10, "episodes per "+
		"evaluation")
	flags.BoolVar(&saveAgent, "save-agent", false, "save the agent at "+
		"every evaluation and after training")
	flags.StringVar(&naming, "checkpoint-naming", "enumerate", "naming "+
		"of agent checkpoints: enumerate or time")
	flags.StringVar(&outDir, "out", "results", "output directory")
	flags.StringVar(&configFile, "config", "", "JSON experiment "+
		"configuration, overrides all other experiment flags")

	return cmd
}

// experimentConfig returns the experiment configuration given by the
// configuration file if there is one, otherwise by the flags
func experimentConfig() (experiment.Config, error) {
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return experiment.Config{}, fmt.Errorf("could not read "+
				"config: %v", err)
		}
		var c experiment.Config
		if err := json.Unmarshal(data, &c); err != nil {
			return experiment.Config{}, fmt.Errorf("could not parse "+
				"config: %v", err)
		}
		return c, nil
	}

	envConf := newEnvConfig(envID, episodeSteps, gamma)
	agentConf, err := newAgentConfig(agentName, gamma, tInit, batchSize)
	if err != nil {
		return experiment.Config{}, err
	}
	envConf.ResetOnTerminal = agentConf.Type() == agent.ResetSAC

	return experiment.Config{
		Type:         experiment.OnlineExp,
		MaxSteps:     maxStep,
		EvalInterval: evalInterval,
		EvalEpisodes: evalEpisodes,
		EnvConf:      envConf,
		AgentConf:    agent.NewTypedConfig(agentConf),
	}, nil
}

// newEnvConfig returns the configuration of a built-in environment if
// id names one, otherwise of a Gym environment
func newEnvConfig(id string, steps int, discount float64) envconfig.Config {
	c := envconfig.Config{
		Discount:         discount,
		NormalizeActions: true,
	}
	switch name := envconfig.EnvName(id); name {
	case envconfig.Pendulum, envconfig.MountainCar:
		c.Environment = name
	default:
		c.Environment = envconfig.Gym
		c.GymID = id
	}

	if steps <= 0 {
		steps = defaultEpisodeSteps[c.Environment]
	}
	c.EpisodeCutoff = steps
	c.MaxEpisodeSteps = steps
	return c
}

// newAgentConfig returns the default configuration of the named agent
// with the given hyperparameters
func newAgentConfig(name string, discount float64, start,
	batch int) (agent.Config, error) {
	switch strings.ToLower(name) {
	case "ddpg":
		c := ddpg.DefaultConfig()
		c.Gamma = discount
		c.ReplayStartSize = start
		c.BatchSize = batch
		c.CalcStats = true
		return c, nil

	case "sac":
		c := sac.DefaultConfig()
		c.Gamma = discount
		c.ReplayStartSize = start
		c.BatchSize = batch
		c.CalcStats = true
		return c, nil

	case "sac-reset":
		c := sac.DefaultResetConfig()
		c.Gamma = discount
		c.ReplayStartSize = start
		c.BatchSize = batch
		c.CalcStats = true
		return c, nil
	}
	return nil, fmt.Errorf("no such agent %v", name)
}

// Train runs the experiment c, saving the training returns and episode
// lengths, the evaluation returns, a learning curve, and optionally the
// agent to out. If save is set, the agent is checkpointed at every
// evaluation into files named by naming.
func Train(c experiment.Config, seed uint64, out string, save bool,
	naming checkpointer.Naming) error {
	var checkpoints func() string
	if save {
		var err error
		checkpoints, err = naming.Filenames(filepath.Join(out,
			"checkpoint"), "")
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, "config.json"), c); err != nil {
		return err
	}

	returns := tracker.NewReturn(filepath.Join(out, "returns.bin"))
	trackers := []tracker.Tracker{
		returns,
		tracker.NewEpisodeLength(filepath.Join(out, "episode_lengths.bin")),
	}
	exp, err := c.CreateExp(seed, trackers, nil)
	if err != nil {
		return err
	}
	defer exp.Close()

	saver, canSave := exp.Agent().(agent.Saver)
	if save && !canSave {
		log.Warningf("train: agent %T cannot be saved", exp.Agent())
	}
	if save && canSave && c.EvalInterval > 0 {
		check, err := checkpointer.NewNStep(c.EvalInterval, saver,
			checkpoints)
		if err != nil {
			return err
		}
		exp.AddCheckpointer(check)
	}

	log.Infof("train: %v on %v for %v steps", c.AgentConf.Type,
		envName(c.EnvConf), c.MaxSteps)
	if err := exp.Run(); err != nil {
		return err
	}
	if err := exp.Save(); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, "eval_returns.json"),
		exp.EvalReturns()); err != nil {
		return err
	}

	if err := plotLearningCurve(filepath.Join(out, "learning_curve.png"),
		returns.Returns(), exp.EvalReturns()); err != nil {
		log.Warningf("train: %v", err)
	}

	if save && canSave {
		if err := saver.Save(filepath.Join(out, "agent")); err != nil {
			return err
		}
	}
	log.Successf("train: finished %v steps, results in %v", exp.Steps(), out)
	return nil
}

func envName(c envconfig.Config) string {
	if c.Environment == envconfig.Gym {
		return c.GymID
	}
	return string(c.Environment)
}

func writeJSON(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
