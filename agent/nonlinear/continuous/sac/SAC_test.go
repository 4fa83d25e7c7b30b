package sac

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/hisaki/rlrl/agent"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/environment/envconfig"
	"github.com/hisaki/rlrl/expreplay"
	ts "github.com/hisaki/rlrl/timestep"
	"github.com/hisaki/rlrl/utils/seeding"
	"gonum.org/v1/gonum/mat"
)

func newTestEnv(t *testing.T, normalize bool) env.Environment {
	c := envconfig.Config{
		Environment:      envconfig.Pendulum,
		EpisodeCutoff:    20,
		Discount:         0.99,
		NormalizeActions: normalize,
	}
	e, _, err := c.Create(1)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func smallConfig() Config {
	c := DefaultConfig()
	c.PolicyLayers = []int{8}
	c.CriticLayers = []int{8}
	c.BatchSize = 4
	c.ReplayStartSize = 8
	c.ExpReplay = expreplay.Config{Capacity: 100}
	c.CalcStats = true
	return c
}

// run runs the agent for steps environment steps, updating the agent
// after each step
func run(t *testing.T, a agent.Agent, e env.Environment, steps int) {
	step, err := e.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ObserveFirst(step); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < steps; i++ {
		action := a.SelectAction(step)
		for j := 0; j < action.Len(); j++ {
			if v := action.AtVec(j); v < -1 || v > 1 {
				t.Fatalf("selectAction: action %v outside [-1, 1]", v)
			}
		}

		step, _, err = e.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Observe(action, step); err != nil {
			t.Fatal(err)
		}
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}

		if step.Last() {
			a.EndEpisode()
			step, err = e.Reset()
			if err != nil {
				t.Fatal(err)
			}
			if err := a.ObserveFirst(step); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func checkStats(t *testing.T, stats map[string]float64, names ...string) {
	for _, name := range names {
		v, ok := stats[name]
		if !ok {
			t.Errorf("stats: missing statistic %v", name)
		} else if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("stats: statistic %v is %v", name, v)
		}
	}
}

func TestSACUpdates(t *testing.T) {
	e := newTestEnv(t, true)
	s, err := New(e, smallConfig(), seeding.New(1, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	run(t, s, e, 8)
	if s.Updates() != 0 {
		t.Errorf("step: expected no updates before the replay start size, "+
			"got %v", s.Updates())
	}

	run(t, s, e, 10)
	if s.Updates() == 0 {
		t.Fatal("step: expected updates after the replay start size")
	}

	checkStats(t, s.Stats(), "q1_pred", "q2_pred", "q_loss", "policy_loss",
		"temperature", "entropy", "temperature_loss")
	if len(s.Stats()) != 0 {
		t.Error("stats: statistics not flushed")
	}
}

func TestSACFixedTemperature(t *testing.T) {
	e := newTestEnv(t, true)
	c := smallConfig()
	c.LearnTemperature = false
	c.InitTemperature = 0.2
	s, err := New(e, c, seeding.New(1, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	run(t, s, e, 12)
	if s.Updates() == 0 {
		t.Fatal("step: expected updates after the replay start size")
	}
	if s.Temperature() != 0.2 {
		t.Errorf("step: fixed temperature changed to %v", s.Temperature())
	}
	if _, ok := s.Stats()["temperature_loss"]; ok {
		t.Error("stats: temperature loss recorded for a fixed temperature")
	}
}

func TestSACLearnsTemperature(t *testing.T) {
	e := newTestEnv(t, true)
	s, err := New(e, smallConfig(), seeding.New(5, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got := s.Temperature(); math.Abs(got-1) > 1e-12 {
		t.Fatalf("new: expected initial temperature 1, got %v", got)
	}
	run(t, s, e, 12)
	if s.Temperature() == 1 {
		t.Error("step: temperature was not updated")
	}
	if s.Temperature() <= 0 {
		t.Errorf("step: temperature must be positive, got %v",
			s.Temperature())
	}
}

func TestSACEval(t *testing.T) {
	e := newTestEnv(t, true)
	s, err := New(e, smallConfig(), seeding.New(2, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Eval()
	if !s.IsEval() {
		t.Fatal("eval: agent not in evaluation mode")
	}
	run(t, s, e, 5)
	if s.replay.Len() != 0 {
		t.Errorf("observe: evaluation transitions were recorded")
	}

	step := e.CurrentTimeStep()
	if !mat.Equal(s.SelectAction(step), s.SelectAction(step)) {
		t.Error("selectAction: evaluation actions should be deterministic")
	}

	s.Train()
	run(t, s, e, 5)
	if s.replay.Len() != 5 {
		t.Errorf("observe: expected 5 transitions, got %v", s.replay.Len())
	}
}

func TestSACSaveLoad(t *testing.T) {
	e := newTestEnv(t, true)
	s, err := New(e, smallConfig(), seeding.New(3, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	run(t, s, e, 12)

	dir := t.TempDir()
	if err := s.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := New(e, smallConfig(), seeding.New(4, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if err := loaded.Load(dir); err != nil {
		t.Fatal(err)
	}

	if math.Abs(loaded.Temperature()-s.Temperature()) > 1e-12 {
		t.Errorf("load: expected temperature %v, got %v", s.Temperature(),
			loaded.Temperature())
	}

	s.Eval()
	loaded.Eval()
	step := e.CurrentTimeStep()
	if !mat.EqualApprox(s.SelectAction(step), loaded.SelectAction(step),
		1e-12) {
		t.Error("load: loaded agent acts differently")
	}
	if loaded.replay.Len() != s.replay.Len() {
		t.Errorf("load: expected %v transitions, got %v", s.replay.Len(),
			loaded.replay.Len())
	}
}

func TestSACRequiresNormalizedActions(t *testing.T) {
	_, err := New(newTestEnv(t, false), smallConfig(), seeding.New(0, nil))
	if err == nil {
		t.Error("new: expected error on unnormalized action space")
	}
}

func TestConfigValidate(t *testing.T) {
	c := smallConfig()
	c.ReplayStartSize = 2
	if err := c.Validate(); err == nil {
		t.Error("validate: expected error on replay start size smaller " +
			"than the batch size")
	}

	c = smallConfig()
	c.InitTemperature = 0
	if err := c.Validate(); err == nil {
		t.Error("validate: expected error on non-positive temperature")
	}

	r := DefaultResetConfig()
	r.TargetTerminalProbability = 2
	if err := r.Validate(); err == nil {
		t.Error("validate: expected error on terminal probability " +
			"outside [0, 1]")
	}
}

func TestTargetEntropy(t *testing.T) {
	c := smallConfig()
	if got := c.targetEntropy(3); got != -3 {
		t.Errorf("targetEntropy: expected -3, got %v", got)
	}

	h := 0.5
	c.TargetEntropy = &h
	if got := c.targetEntropy(3); got != h {
		t.Errorf("targetEntropy: expected %v, got %v", h, got)
	}
}

func TestTypedConfigJSON(t *testing.T) {
	for _, c := range []agent.Config{smallConfig(), DefaultResetConfig()} {
		data, err := json.Marshal(agent.NewTypedConfig(c))
		if err != nil {
			t.Fatal(err)
		}

		var typed agent.TypedConfig
		if err := json.Unmarshal(data, &typed); err != nil {
			t.Fatal(err)
		}
		if typed.Type != c.Type() {
			t.Errorf("unmarshalJSON: expected type %v, got %v", c.Type(),
				typed.Type)
		}
	}
}

// resettingEnv is a continuing environment with a two-dimensional
// random walk as its state. Every period steps the environment resets,
// which is signalled by a NaN reward.
type resettingEnv struct {
	period int
	step   ts.TimeStep
}

func newResettingEnv(period int) *resettingEnv {
	return &resettingEnv{period: period}
}

func (r *resettingEnv) Reset() (ts.TimeStep, error) {
	r.step = ts.New(ts.First, 0, 0.99, mat.NewVecDense(2, nil), 0)
	return r.step, nil
}

func (r *resettingEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	n := r.step.Number + 1
	obs := mat.NewVecDense(2, nil)
	reward := -a.AtVec(0) * a.AtVec(0)

	if n%r.period == 0 {
		reward = math.NaN()
	} else {
		for i := 0; i < obs.Len(); i++ {
			obs.SetVec(i, r.step.Observation.AtVec(i)+0.1*a.AtVec(0))
		}
	}

	r.step = ts.New(ts.Mid, reward, 0.99, obs, n)
	return r.step, false, nil
}

func (r *resettingEnv) CurrentTimeStep() ts.TimeStep { return r.step }

func (r *resettingEnv) RewardSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Reward,
		mat.NewVecDense(1, []float64{-1}), mat.NewVecDense(1, []float64{0}),
		env.Continuous)
}

func (r *resettingEnv) DiscountSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Discount,
		mat.NewVecDense(1, []float64{0.99}),
		mat.NewVecDense(1, []float64{0.99}), env.Continuous)
}

func (r *resettingEnv) ObservationSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(2, nil), env.Observation,
		mat.NewVecDense(2, []float64{-10, -10}),
		mat.NewVecDense(2, []float64{10, 10}), env.Continuous)
}

func (r *resettingEnv) ActionSpec() env.Spec {
	return env.NewNormalizedActionSpec(1)
}

func TestEndEpisodeInterruptsEpisode(t *testing.T) {
	e := newTestEnv(t, true)
	s, err := New(e, smallConfig(), seeding.New(7, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// observe takes steps environment steps from a new episode
	observe := func(steps int) {
		step, err := e.Reset()
		if err != nil {
			t.Fatal(err)
		}
		if err := s.ObserveFirst(step); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < steps; i++ {
			action := s.SelectAction(step)
			step, _, err = e.Step(action)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Observe(action, step); err != nil {
				t.Fatal(err)
			}
		}
	}

	// The first episode is cut off before its last step
	observe(3)
	s.EndEpisode()
	observe(2)

	b, err := s.replay.Sample(s.replay.Len())
	if err != nil {
		t.Fatal(err)
	}
	starts := 0
	for _, start := range b.EpisodeStart {
		if start {
			starts++
		}
	}
	if starts != 2 {
		t.Errorf("endEpisode: expected 2 episode starts in the buffer, "+
			"got %v", starts)
	}
}
