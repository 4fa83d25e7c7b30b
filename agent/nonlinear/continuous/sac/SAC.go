// Package sac implements the Soft Actor-Critic algorithm and its
// variant which learns a cost of resetting the environment
package sac

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aunum/log"
	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/agent/nonlinear/continuous/policy"
	"github.com/hisaki/rlrl/agent/statistics"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/expreplay"
	"github.com/hisaki/rlrl/network"
	"github.com/hisaki/rlrl/solver"
	ts "github.com/hisaki/rlrl/timestep"
	"github.com/hisaki/rlrl/utils/seeding"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SAC implements the Soft Actor-Critic algorithm with twin critics
// and an optionally learned temperature.
//
// As in the ddpg package, every network is trained in its own graph
// and weights are copied between graphs. The critics are trained
// together in one graph with one solver each. The policy is trained in
// a graph holding copies of both critics. A third graph holds a copy of
// the policy and the target critics to compute bootstrap values, and a
// fourth graph holds the log temperature.
type SAC struct {
	// Action selection
	behaviour *policy.SquashedGaussian
	warmup    distuv.Uniform
	noise     *policy.Noise
	eval      bool

	// Critic training graph
	q1, q2        network.NeuralNet
	criticState   *G.Node
	criticAction  *G.Node
	criticTarget  *G.Node
	criticVM      G.VM
	q1Solver      *solver.Solver
	q2Solver      *solver.Solver
	criticLossVal G.Value

	// Target graph
	targetPolicy     network.NeuralNet
	targetQ1         network.NeuralNet
	targetQ2         network.NeuralNet
	targetNextState  *G.Node
	targetNoise      *G.Node
	targetMinQVal    G.Value
	targetActionVal  G.Value
	targetLogProbVal G.Value
	targetVM         G.VM

	// Policy training graph
	policy            network.NeuralNet
	policyNoise       *G.Node
	policyQ1          network.NeuralNet
	policyQ2          network.NeuralNet
	policyTemperature *G.Node
	policyVM          G.VM
	policySolver      *solver.Solver
	policyLossVal     G.Value
	policyLogProbVal  G.Value

	// Temperature graph, nil if the temperature is fixed
	logTemperature     *G.Node
	entropyGap         *G.Node
	temperatureVM      G.VM
	temperatureSolver  *solver.Solver
	temperatureLossVal G.Value
	fixedTemperature   float64
	targetEntropy      float64

	replay          expreplay.ReplayBuffer
	prevStep        ts.TimeStep
	actionDims      int
	batchSize       int
	replayStartSize int
	tau             float64
	gamma           float64
	updates         int

	stats *statistics.Statistics
}

// New returns a new SAC agent acting in environment e. The environment
// must have a normalized action space. The replay buffer, action noise,
// behaviour policy, and warmup actions use the Replay, Explorer, Policy,
// and Warmup seeds.
func New(e env.Environment, c agent.Config,
	seeds seeding.Seeds) (*SAC, error) {
	if !c.ValidAgent(&SAC{}) {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}
	config, ok := c.(Config)
	if !ok {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}

	s, err := newSAC(e, config, seeds)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return s, nil
}

// newSAC constructs a SAC agent from a Config
func newSAC(e env.Environment, config Config,
	seeds seeding.Seeds) (*SAC, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	actionSpec := e.ActionSpec()
	if actionSpec.Cardinality != env.Continuous {
		return nil, fmt.Errorf("actions must be continuous")
	}
	if !actionSpec.IsNormalized() {
		return nil, fmt.Errorf("action space must be normalized to [-1, 1]")
	}

	stateDims := e.ObservationSpec().Dims()
	actionDims := actionSpec.Dims()
	initWFn := config.InitWFn.InitWFn()

	replay, err := config.ExpReplay.Create(stateDims, actionDims,
		seeds.Get(seeding.Replay))
	if err != nil {
		return nil, fmt.Errorf("could not construct experience replay "+
			"buffer: %v", err)
	}

	noise, err := policy.NewNoise(actionDims, seeds.Get(seeding.Explorer))
	if err != nil {
		return nil, err
	}

	s := &SAC{
		noise:            noise,
		replay:           replay,
		actionDims:       actionDims,
		batchSize:        config.BatchSize,
		replayStartSize:  config.ReplayStartSize,
		tau:              config.Tau,
		gamma:            config.Gamma,
		fixedTemperature: config.InitTemperature,
		targetEntropy:    config.targetEntropy(actionDims),
		warmup: distuv.Uniform{
			Min: -1,
			Max: 1,
			Src: rand.NewSource(seeds.Get(seeding.Warmup)),
		},
	}
	if config.CalcStats {
		s.stats = statistics.New()
	}

	if err := s.buildCritics(stateDims, actionDims, config.CriticLayers,
		initWFn); err != nil {
		return nil, fmt.Errorf("could not construct critics: %v", err)
	}
	s.q1Solver = config.CriticSolver.Clone()
	s.q2Solver = config.CriticSolver.Clone()

	if err := s.buildPolicy(stateDims, actionDims, config.PolicyLayers,
		initWFn); err != nil {
		return nil, fmt.Errorf("could not construct policy: %v", err)
	}
	s.policySolver = config.PolicySolver.Clone()

	if err := s.buildTargets(stateDims); err != nil {
		return nil, fmt.Errorf("could not construct target networks: %v",
			err)
	}

	if config.LearnTemperature {
		if err := s.buildTemperature(config.InitTemperature); err != nil {
			return nil, fmt.Errorf("could not construct temperature: %v",
				err)
		}
		s.temperatureSolver = config.TemperatureSolver.Clone()
	}

	behaviourNet, err := s.policy.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("could not construct behaviour policy: %v",
			err)
	}
	s.behaviour, err = policy.NewSquashedGaussian(behaviourNet,
		seeds.Get(seeding.Policy))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// buildCritics builds the critic training graph, minimizing
// ½(MSE(Q1(s, a), y) + MSE(Q2(s, a), y)) for an input target y
func (s *SAC) buildCritics(stateDims, actionDims int, layers []int,
	init G.InitWFn) error {
	g := G.NewGraph()
	s.criticState = newInput(g, "State", s.batchSize, stateDims)
	s.criticAction = newInput(g, "Action", s.batchSize, actionDims)
	s.criticTarget = newInput(g, "Target", s.batchSize, 1)
	inputs := []*G.Node{s.criticState, s.criticAction}

	var err error
	s.q1, err = network.NewSingleHeadMLP(inputs, g, "q1", layers, init)
	if err != nil {
		return err
	}
	s.q2, err = network.NewSingleHeadMLP(inputs, g, "q2", layers, init)
	if err != nil {
		return err
	}

	loss1 := mse(s.q1.Prediction()[0], s.criticTarget)
	loss2 := mse(s.q2.Prediction()[0], s.criticTarget)
	loss := G.Must(G.Add(loss1, loss2))
	loss = G.Must(G.Mul(loss, G.NewConstant(0.5)))
	G.Read(loss, &s.criticLossVal)

	learnables := append(G.Nodes(nil), s.q1.Learnables()...)
	learnables = append(learnables, s.q2.Learnables()...)
	if _, err := G.Grad(loss, learnables...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	s.criticVM = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return nil
}

// buildPolicy builds the policy training graph, minimizing
// α·mean(log π(a|s)) - mean(min(Q1, Q2)(s, a)) for reparameterized
// actions a with respect to the policy's weights only
func (s *SAC) buildPolicy(stateDims, actionDims int, layers []int,
	init G.InitWFn) error {
	g := G.NewGraph()
	pol, err := policy.NewSquashedGaussianNet(stateDims, actionDims,
		s.batchSize, g, "policy", layers, init)
	if err != nil {
		return err
	}
	s.policy = pol

	nodes, err := policy.NewSquashedGaussianNodes(pol)
	if err != nil {
		return err
	}
	s.policyNoise = nodes.Noise

	inputs := []*G.Node{pol.Input(), nodes.Action}
	s.policyQ1, err = s.q1.CloneWithInputTo(inputs, g)
	if err != nil {
		return err
	}
	s.policyQ2, err = s.q2.CloneWithInputTo(inputs, g)
	if err != nil {
		return err
	}
	minQ, err := minNode(s.policyQ1.Prediction()[0],
		s.policyQ2.Prediction()[0])
	if err != nil {
		return err
	}

	s.policyTemperature = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(1),
		G.WithName("Temperature"),
		G.WithInit(G.Zeroes()),
	)
	temperature := G.Must(G.Sum(s.policyTemperature))

	entropyTerm := G.Must(G.Mul(temperature, G.Must(G.Mean(nodes.LogProb))))
	loss := G.Must(G.Sub(entropyTerm, G.Must(G.Mean(minQ))))
	G.Read(loss, &s.policyLossVal)
	G.Read(nodes.LogProb, &s.policyLogProbVal)

	if _, err := G.Grad(loss, pol.Learnables()...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	s.policyVM = G.NewTapeMachine(g, G.BindDualValues(pol.Learnables()...))
	return nil
}

// buildTargets builds the graph which samples a' ~ π(·|s') and
// computes min(Q1', Q2')(s', a') and log π(a'|s')
func (s *SAC) buildTargets(stateDims int) error {
	g := G.NewGraph()
	s.targetNextState = newInput(g, "NextState", s.batchSize, stateDims)

	var err error
	s.targetPolicy, err = s.policy.CloneWithInputTo(
		[]*G.Node{s.targetNextState}, g)
	if err != nil {
		return err
	}
	nodes, err := policy.NewSquashedGaussianNodes(s.targetPolicy)
	if err != nil {
		return err
	}
	s.targetNoise = nodes.Noise

	inputs := []*G.Node{s.targetNextState, nodes.Action}
	s.targetQ1, err = s.q1.CloneWithInputTo(inputs, g)
	if err != nil {
		return err
	}
	s.targetQ2, err = s.q2.CloneWithInputTo(inputs, g)
	if err != nil {
		return err
	}
	minQ, err := minNode(s.targetQ1.Prediction()[0],
		s.targetQ2.Prediction()[0])
	if err != nil {
		return err
	}

	G.Read(minQ, &s.targetMinQVal)
	G.Read(nodes.Action, &s.targetActionVal)
	G.Read(nodes.LogProb, &s.targetLogProbVal)
	s.targetVM = G.NewTapeMachine(g)
	return nil
}

// buildTemperature builds the graph learning log α by minimizing
// -log α · (mean(log π(a|s)) + H̄) for an input entropy gap
func (s *SAC) buildTemperature(initTemperature float64) error {
	g := G.NewGraph()
	s.logTemperature = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(1),
		G.WithName("LogTemperature"),
		G.WithValue(tensor.New(
			tensor.WithShape(1),
			tensor.WithBacking([]float64{math.Log(initTemperature)}),
		)),
	)
	s.entropyGap = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(1),
		G.WithName("EntropyGap"),
		G.WithInit(G.Zeroes()),
	)

	loss := G.Must(G.HadamardProd(s.logTemperature, s.entropyGap))
	loss = G.Must(G.Neg(G.Must(G.Sum(loss))))
	G.Read(loss, &s.temperatureLossVal)

	if _, err := G.Grad(loss, s.logTemperature); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	s.temperatureVM = G.NewTapeMachine(g,
		G.BindDualValues(s.logTemperature))
	return nil
}

// Temperature returns the current entropy temperature α
func (s *SAC) Temperature() float64 {
	if s.logTemperature == nil {
		return s.fixedTemperature
	}
	return math.Exp(s.logTemperature.Value().Data().([]float64)[0])
}

// SelectAction selects an action at timestep t. While training, the
// agent acts uniformly at random until the replay buffer holds
// ReplayStartSize transitions, then samples from the policy. In
// evaluation mode, the greedy action tanh(μ(s)) is taken.
func (s *SAC) SelectAction(t ts.TimeStep) *mat.VecDense {
	if !s.eval && s.replay.Len() < s.replayStartSize {
		action := mat.NewVecDense(s.actionDims, nil)
		for i := 0; i < s.actionDims; i++ {
			action.SetVec(i, s.warmup.Rand())
		}
		return action
	}
	return s.behaviour.SelectAction(t)
}

// ObserveFirst observes and records the first timestep in an episode
func (s *SAC) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		log.Warningf("observeFirst: should only be called on the first "+
			"timestep (current timestep = %d)", t.Number)
	}
	s.prevStep = t
	return nil
}

// Observe records the transition from the previous timestep to nextStep
// taking action. Transitions are only recorded while training.
func (s *SAC) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	defer func() { s.prevStep = nextStep }()
	if s.eval {
		return nil
	}

	transition, err := ts.NewTransition(s.prevStep,
		mat.VecDenseCopyOf(action), nextStep)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	if err := s.replay.Append(transition, 0); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v", err)
	}
	return nil
}

// ready returns whether the agent should update and logs the first
// update
func (s *SAC) ready() bool {
	if s.eval || s.replay.Len() <= s.replayStartSize {
		return false
	}
	if s.updates == 0 {
		log.Info("sac: start update")
	}
	return true
}

// Step updates the agent if the replay buffer holds more than
// ReplayStartSize transitions
func (s *SAC) Step() error {
	if !s.ready() {
		return nil
	}

	batch, err := s.replay.Sample(s.batchSize)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	if _, err := s.updateCritics(batch, batch.Reward); err != nil {
		return fmt.Errorf("step: could not update critics: %v", err)
	}
	if err := s.updatePolicyAndTemperature(batch); err != nil {
		return fmt.Errorf("step: could not update policy: %v", err)
	}
	if err := s.syncTargets(); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	s.updates++
	return nil
}

// updateCritics takes one gradient step on each critic towards
// reward + γ(1 - terminal)(min(Q1', Q2')(s', a') - α log π(a'|s')) with
// a' ~ π(·|s'). The sampled next actions are returned in row-major
// order.
func (s *SAC) updateCritics(batch expreplay.Batch,
	reward []float64) ([]float64, error) {
	if err := network.Set(s.targetPolicy, s.policy); err != nil {
		return nil, err
	}
	if err := network.SetValue(s.targetNextState, batch.NextState); err != nil {
		return nil, err
	}
	if err := network.SetValue(s.targetNoise,
		s.noise.Sample(batch.Size)); err != nil {
		return nil, err
	}
	if err := s.targetVM.RunAll(); err != nil {
		return nil, err
	}
	nextQ := network.Values(s.targetMinQVal)
	nextLogProb := network.Values(s.targetLogProbVal)
	nextAction := network.Values(s.targetActionVal)
	s.targetVM.Reset()

	target := softTargets(reward, batch.NotTerminal(), nextQ, nextLogProb,
		s.gamma, s.Temperature())

	if err := network.SetValue(s.criticState, batch.State); err != nil {
		return nil, err
	}
	if err := network.SetValue(s.criticAction, batch.Action); err != nil {
		return nil, err
	}
	if err := network.SetValue(s.criticTarget, target); err != nil {
		return nil, err
	}
	if err := s.criticVM.RunAll(); err != nil {
		return nil, err
	}
	defer s.criticVM.Reset()

	if s.stats != nil {
		s.stats.Extend("q1_pred", network.Values(s.q1.Output()[0]))
		s.stats.Extend("q2_pred", network.Values(s.q2.Output()[0]))
		s.stats.Append("q_loss", network.Scalar(s.criticLossVal))
	}

	if err := s.q1Solver.Step(s.q1.Model()); err != nil {
		return nil, err
	}
	if err := s.q2Solver.Step(s.q2.Model()); err != nil {
		return nil, err
	}
	return nextAction, nil
}

// updatePolicyAndTemperature takes one gradient step on the policy,
// then one on the temperature using the log probabilities of the
// policy step
func (s *SAC) updatePolicyAndTemperature(batch expreplay.Batch) error {
	if err := network.Set(s.policyQ1, s.q1); err != nil {
		return err
	}
	if err := network.Set(s.policyQ2, s.q2); err != nil {
		return err
	}

	temperature := s.Temperature()
	if err := s.policy.SetInput(batch.State); err != nil {
		return err
	}
	if err := network.SetValue(s.policyNoise,
		s.noise.Sample(batch.Size)); err != nil {
		return err
	}
	if err := network.SetValue(s.policyTemperature,
		[]float64{temperature}); err != nil {
		return err
	}
	if err := s.policyVM.RunAll(); err != nil {
		return err
	}
	logProb := network.Values(s.policyLogProbVal)
	policyLoss := network.Scalar(s.policyLossVal)

	err := s.policySolver.Step(s.policy.Model())
	s.policyVM.Reset()
	if err != nil {
		return err
	}
	if err := network.Set(s.behaviour.Network(), s.policy); err != nil {
		return err
	}

	meanLogProb := stat.Mean(logProb, nil)
	if s.stats != nil {
		s.stats.Append("policy_loss", policyLoss)
		s.stats.Append("temperature", temperature)
		s.stats.Append("entropy", -meanLogProb)
	}

	if s.logTemperature == nil {
		return nil
	}

	gap := meanLogProb + s.targetEntropy
	if err := network.SetValue(s.entropyGap, []float64{gap}); err != nil {
		return err
	}
	if err := s.temperatureVM.RunAll(); err != nil {
		return err
	}
	defer s.temperatureVM.Reset()

	if s.stats != nil {
		s.stats.Append("temperature_loss",
			network.Scalar(s.temperatureLossVal))
	}
	return s.temperatureSolver.Step(
		G.NodesToValueGrads(G.Nodes{s.logTemperature}))
}

// syncTargets soft-updates the target critics
func (s *SAC) syncTargets() error {
	if err := network.Polyak(s.targetQ1, s.q1, s.tau); err != nil {
		return fmt.Errorf("could not update target critic: %v", err)
	}
	if err := network.Polyak(s.targetQ2, s.q2, s.tau); err != nil {
		return fmt.Errorf("could not update target critic: %v", err)
	}
	return nil
}

// EndEpisode performs cleanup at the end of an episode. If the episode
// ended before its last timestep, such as when an experiment runs out
// of steps, the replay buffer is told that the episode was interrupted.
func (s *SAC) EndEpisode() {
	if !s.eval && !s.prevStep.Last() {
		s.replay.StopCurrentEpisode(0)
	}
}

// Eval sets the agent to evaluation mode
func (s *SAC) Eval() {
	s.eval = true
	s.behaviour.Eval()
}

// Train sets the agent to training mode
func (s *SAC) Train() {
	s.eval = false
	s.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (s *SAC) IsEval() bool { return s.eval }

// Updates returns the number of updates performed
func (s *SAC) Updates() int { return s.updates }

// Stats returns the mean of each statistic collected since the last
// call to Stats. If statistics are not collected, nil is returned.
func (s *SAC) Stats() map[string]float64 {
	if s.stats == nil {
		return nil
	}
	return s.stats.Flush()
}

// Save saves the weights of the agent, its temperature, and its
// replay buffer to dir
func (s *SAC) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := network.Save(filepath.Join(dir, "networks.bin"),
		s.networks()...); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	scalars := map[string]float64{"temperature": s.Temperature()}
	if err := saveScalars(filepath.Join(dir, "scalars.bin"),
		scalars); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := s.replay.Save(filepath.Join(dir, "replay.bin")); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load loads weights, the temperature, and the replay buffer saved
// with Save
func (s *SAC) Load(dir string) error {
	if err := network.Load(filepath.Join(dir, "networks.bin"),
		s.networks()...); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	copies := [][2]network.NeuralNet{
		{s.behaviour.Network(), s.policy},
		{s.targetPolicy, s.policy},
		{s.policyQ1, s.q1},
		{s.policyQ2, s.q2},
	}
	for _, c := range copies {
		if err := network.Set(c[0], c[1]); err != nil {
			return fmt.Errorf("load: %v", err)
		}
	}

	scalars, err := loadScalars(filepath.Join(dir, "scalars.bin"))
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if temperature, ok := scalars["temperature"]; ok {
		if s.logTemperature == nil {
			s.fixedTemperature = temperature
		} else {
			s.logTemperature.Value().Data().([]float64)[0] =
				math.Log(temperature)
		}
	}

	if err := s.replay.Load(filepath.Join(dir, "replay.bin")); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return nil
}

// networks returns the networks which are saved by Save
func (s *SAC) networks() []network.NeuralNet {
	return []network.NeuralNet{s.policy, s.q1, s.q2, s.targetQ1, s.targetQ2}
}

// Close closes the agent's VMs
func (s *SAC) Close() error {
	vms := []G.VM{s.criticVM, s.policyVM, s.targetVM}
	if s.temperatureVM != nil {
		vms = append(vms, s.temperatureVM)
	}
	for _, vm := range vms {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return s.behaviour.Close()
}

var (
	_ agent.Closer  = &SAC{}
	_ agent.Saver   = &SAC{}
	_ agent.Statser = &SAC{}
)

func newInput(g *G.ExprGraph, name string, batch, features int) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName(name),
		G.WithInit(G.Zeroes()),
	)
}

// mse returns the mean squared error between pred and target
func mse(pred, target *G.Node) *G.Node {
	loss := G.Must(G.Sub(pred, target))
	loss = G.Must(G.Square(loss))
	return G.Must(G.Mean(loss))
}

// minNode returns the elementwise minimum of a and b computed as
// ½(a + b - |a - b|)
func minNode(a, b *G.Node) (*G.Node, error) {
	sum, err := G.Add(a, b)
	if err != nil {
		return nil, err
	}
	diff, err := G.Sub(a, b)
	if err != nil {
		return nil, err
	}
	abs, err := G.Abs(diff)
	if err != nil {
		return nil, err
	}
	twiceMin, err := G.Sub(sum, abs)
	if err != nil {
		return nil, err
	}
	return G.Mul(twiceMin, G.NewConstant(0.5))
}

func saveScalars(filename string, scalars map[string]float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(scalars)
}

func loadScalars(filename string) (map[string]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var scalars map[string]float64
	if err := gob.NewDecoder(file).Decode(&scalars); err != nil {
		return nil, err
	}
	return scalars, nil
}
