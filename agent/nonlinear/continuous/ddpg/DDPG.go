// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm
package ddpg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aunum/log"
	"github.com/hisaki/rlrl/agent"
	"github.com/hisaki/rlrl/agent/explorer"
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
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DDPG implements the Deep Deterministic Policy Gradient algorithm.
//
// Each network lives in its own computational graph: the critic is
// trained in one graph, the actor is trained in a second graph holding
// a copy of the critic, and the target actor and critic compute
// bootstrap values in a third graph. Actions are selected by a
// behaviour copy of the actor with a batch size of 1. Weights are
// copied between graphs after each update.
type DDPG struct {
	// Action selection
	behaviour *policy.Deterministic
	explorer  explorer.Explorer
	warmup    distuv.Uniform
	eval      bool

	// Actor training graph
	actor        network.NeuralNet
	actorCritic  network.NeuralNet
	actorVM      G.VM
	actorSolver  *solver.Solver
	actorLossVal G.Value

	// Critic training graph
	critic        network.NeuralNet
	criticState   *G.Node
	criticAction  *G.Node
	criticTarget  *G.Node
	criticVM      G.VM
	criticSolver  *solver.Solver
	criticLossVal G.Value

	// Target graph
	targetActor     network.NeuralNet
	targetCritic    network.NeuralNet
	targetNextState *G.Node
	targetVM        G.VM

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

// New returns a new DDPG agent acting in environment e. The
// environment must have a normalized action space. The replay buffer,
// explorer, and warmup actions use the Replay, Explorer, and Warmup
// seeds.
func New(e env.Environment, c agent.Config,
	seeds seeding.Seeds) (*DDPG, error) {
	if !c.ValidAgent(&DDPG{}) {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}
	config, ok := c.(Config)
	if !ok {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	actionSpec := e.ActionSpec()
	if actionSpec.Cardinality != env.Continuous {
		return nil, fmt.Errorf("new: actions must be continuous")
	}
	if !actionSpec.IsNormalized() {
		return nil, fmt.Errorf("new: action space must be normalized to " +
			"[-1, 1]")
	}

	stateDims := e.ObservationSpec().Dims()
	actionDims := actionSpec.Dims()
	batch := config.BatchSize
	initWFn := config.InitWFn.InitWFn()

	replay, err := config.ExpReplay.Create(stateDims, actionDims,
		seeds.Get(seeding.Replay))
	if err != nil {
		return nil, fmt.Errorf("new: could not construct experience "+
			"replay buffer: %v", err)
	}

	d := &DDPG{
		replay:          replay,
		actionDims:      actionDims,
		batchSize:       batch,
		replayStartSize: config.ReplayStartSize,
		tau:             config.Tau,
		gamma:           config.Gamma,
		warmup: distuv.Uniform{
			Min: -1,
			Max: 1,
			Src: rand.NewSource(seeds.Get(seeding.Warmup)),
		},
	}
	if config.CalcStats {
		d.stats = statistics.New()
	}

	d.explorer, err = explorer.New(config.Explorer, config.ExplorationScale,
		-1, 1, seeds.Get(seeding.Explorer))
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if err := d.buildCritic(stateDims, actionDims, config.CriticLayers,
		initWFn); err != nil {
		return nil, fmt.Errorf("new: could not construct critic: %v", err)
	}
	d.criticSolver = config.CriticSolver.Clone()

	if err := d.buildActor(stateDims, actionDims, config.ActorLayers,
		initWFn); err != nil {
		return nil, fmt.Errorf("new: could not construct actor: %v", err)
	}
	d.actorSolver = config.ActorSolver.Clone()

	if err := d.buildTargets(stateDims); err != nil {
		return nil, fmt.Errorf("new: could not construct target networks: "+
			"%v", err)
	}

	behaviourNet, err := d.actor.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not construct behaviour "+
			"policy: %v", err)
	}
	d.behaviour, err = policy.NewDeterministic(behaviourNet)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return d, nil
}

// buildCritic builds the critic training graph, minimizing the mean
// squared error between Q(s, a) and an input target
func (d *DDPG) buildCritic(stateDims, actionDims int, layers []int,
	init G.InitWFn) error {
	g := G.NewGraph()
	d.criticState = newInput(g, "State", d.batchSize, stateDims)
	d.criticAction = newInput(g, "Action", d.batchSize, actionDims)
	d.criticTarget = newInput(g, "Target", d.batchSize, 1)

	critic, err := network.NewSingleHeadMLP(
		[]*G.Node{d.criticState, d.criticAction}, g, "critic", layers, init)
	if err != nil {
		return err
	}
	d.critic = critic

	loss := G.Must(G.Sub(critic.Prediction()[0], d.criticTarget))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))
	G.Read(loss, &d.criticLossVal)

	if _, err := G.Grad(loss, critic.Learnables()...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	d.criticVM = G.NewTapeMachine(g, G.BindDualValues(critic.Learnables()...))
	return nil
}

// buildActor builds the actor training graph, minimizing
// -mean Q(s, μ(s)) with respect to the actor's weights only
func (d *DDPG) buildActor(stateDims, actionDims int, layers []int,
	init G.InitWFn) error {
	g := G.NewGraph()
	actor, err := policy.NewDeterministicNet(stateDims, actionDims,
		d.batchSize, g, "actor", layers, init)
	if err != nil {
		return err
	}
	d.actor = actor

	action, err := policy.DeterministicAction(actor)
	if err != nil {
		return err
	}
	d.actorCritic, err = d.critic.CloneWithInputTo(
		[]*G.Node{actor.Input(), action}, g)
	if err != nil {
		return err
	}

	loss := G.Must(G.Mean(d.actorCritic.Prediction()[0]))
	loss = G.Must(G.Neg(loss))
	G.Read(loss, &d.actorLossVal)

	if _, err := G.Grad(loss, actor.Learnables()...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	d.actorVM = G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))
	return nil
}

// buildTargets builds the graph computing Q'(s', μ'(s'))
func (d *DDPG) buildTargets(stateDims int) error {
	g := G.NewGraph()
	d.targetNextState = newInput(g, "NextState", d.batchSize, stateDims)

	var err error
	d.targetActor, err = d.actor.CloneWithInputTo(
		[]*G.Node{d.targetNextState}, g)
	if err != nil {
		return err
	}
	nextAction, err := policy.DeterministicAction(d.targetActor)
	if err != nil {
		return err
	}
	d.targetCritic, err = d.critic.CloneWithInputTo(
		[]*G.Node{d.targetNextState, nextAction}, g)
	if err != nil {
		return err
	}

	d.targetVM = G.NewTapeMachine(g)
	return nil
}

// SelectAction selects an action at timestep t. While training, the
// agent acts uniformly at random until the replay buffer holds
// ReplayStartSize transitions, then adds exploration noise to the
// actor's action. In evaluation mode, the actor's action is taken.
func (d *DDPG) SelectAction(t ts.TimeStep) *mat.VecDense {
	if d.eval {
		return d.behaviour.SelectAction(t)
	}

	if d.replay.Len() < d.replayStartSize {
		action := mat.NewVecDense(d.actionDims, nil)
		for i := 0; i < d.actionDims; i++ {
			action.SetVec(i, d.warmup.Rand())
		}
		return action
	}

	return d.explorer.SelectAction(d.behaviour.SelectAction(t))
}

// ObserveFirst observes and records the first timestep in an episode
func (d *DDPG) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		log.Warningf("observeFirst: should only be called on the first "+
			"timestep (current timestep = %d)", t.Number)
	}
	d.prevStep = t
	return nil
}

// Observe records the transition from the previous timestep to nextStep
// taking action. Transitions are only recorded while training.
func (d *DDPG) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	defer func() { d.prevStep = nextStep }()
	if d.eval {
		return nil
	}

	transition, err := ts.NewTransition(d.prevStep,
		mat.VecDenseCopyOf(action), nextStep)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	if err := d.replay.Append(transition, 0); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v", err)
	}
	return nil
}

// Step updates the agent if the replay buffer holds more than
// ReplayStartSize transitions
func (d *DDPG) Step() error {
	if d.eval || d.replay.Len() <= d.replayStartSize {
		return nil
	}
	if d.updates == 0 {
		log.Info("ddpg: start update")
	}

	batch, err := d.replay.Sample(d.batchSize)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	if err := d.updateCritic(batch); err != nil {
		return fmt.Errorf("step: could not update critic: %v", err)
	}
	if err := d.updateActor(batch); err != nil {
		return fmt.Errorf("step: could not update actor: %v", err)
	}
	if err := d.syncTargets(); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	d.updates++
	return nil
}

// updateCritic takes one gradient step on the critic towards
// r + γ(1 - terminal)Q'(s', μ'(s'))
func (d *DDPG) updateCritic(batch expreplay.Batch) error {
	if err := network.SetValue(d.targetNextState, batch.NextState); err != nil {
		return err
	}
	if err := d.targetVM.RunAll(); err != nil {
		return err
	}
	nextQ := network.Values(d.targetCritic.Output()[0])
	d.targetVM.Reset()

	target := bellmanTargets(batch.Reward, batch.NotTerminal(), nextQ,
		d.gamma)

	if err := network.SetValue(d.criticState, batch.State); err != nil {
		return err
	}
	if err := network.SetValue(d.criticAction, batch.Action); err != nil {
		return err
	}
	if err := network.SetValue(d.criticTarget, target); err != nil {
		return err
	}
	if err := d.criticVM.RunAll(); err != nil {
		return err
	}
	defer d.criticVM.Reset()

	if d.stats != nil {
		d.stats.Extend("q_pred", network.Values(d.critic.Output()[0]))
		d.stats.Extend("q_target", target)
		d.stats.Append("q_loss", network.Scalar(d.criticLossVal))
	}

	return d.criticSolver.Step(d.critic.Model())
}

// updateActor takes one gradient step on the actor to maximize
// Q(s, μ(s))
func (d *DDPG) updateActor(batch expreplay.Batch) error {
	if err := network.Set(d.actorCritic, d.critic); err != nil {
		return err
	}
	if err := d.actor.SetInput(batch.State); err != nil {
		return err
	}
	if err := d.actorVM.RunAll(); err != nil {
		return err
	}
	defer d.actorVM.Reset()

	if d.stats != nil {
		d.stats.Append("policy_loss", network.Scalar(d.actorLossVal))
	}

	if err := d.actorSolver.Step(d.actor.Model()); err != nil {
		return err
	}
	return network.Set(d.behaviour.Network(), d.actor)
}

// syncTargets soft-updates the target networks
func (d *DDPG) syncTargets() error {
	if err := network.Polyak(d.targetActor, d.actor, d.tau); err != nil {
		return fmt.Errorf("could not update target actor: %v", err)
	}
	if err := network.Polyak(d.targetCritic, d.critic, d.tau); err != nil {
		return fmt.Errorf("could not update target critic: %v", err)
	}
	return nil
}

// EndEpisode performs cleanup at the end of an episode. If the episode
// ended before its last timestep, the replay buffer is told that the
// episode was interrupted.
func (d *DDPG) EndEpisode() {
	if !d.eval && !d.prevStep.Last() {
		d.replay.StopCurrentEpisode(0)
	}
}

// Eval sets the agent to evaluation mode
func (d *DDPG) Eval() {
	d.eval = true
	d.behaviour.Eval()
}

// Train sets the agent to training mode
func (d *DDPG) Train() {
	d.eval = false
	d.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (d *DDPG) IsEval() bool { return d.eval }

// Updates returns the number of updates performed
func (d *DDPG) Updates() int { return d.updates }

// Stats returns the mean of each statistic collected since the last
// call to Stats. If statistics are not collected, nil is returned.
func (d *DDPG) Stats() map[string]float64 {
	if d.stats == nil {
		return nil
	}
	return d.stats.Flush()
}

// Save saves the weights of the agent and its replay buffer to dir
func (d *DDPG) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := network.Save(filepath.Join(dir, "networks.bin"), d.actor,
		d.critic, d.targetActor, d.targetCritic); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := d.replay.Save(filepath.Join(dir, "replay.bin")); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load loads weights and the replay buffer saved with Save
func (d *DDPG) Load(dir string) error {
	if err := network.Load(filepath.Join(dir, "networks.bin"), d.actor,
		d.critic, d.targetActor, d.targetCritic); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := network.Set(d.behaviour.Network(), d.actor); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := network.Set(d.actorCritic, d.critic); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := d.replay.Load(filepath.Join(dir, "replay.bin")); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return nil
}

// Close closes the agent's VMs
func (d *DDPG) Close() error {
	for _, vm := range []G.VM{d.actorVM, d.criticVM, d.targetVM} {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return d.behaviour.Close()
}

var (
	_ agent.Closer  = &DDPG{}
	_ agent.Saver   = &DDPG{}
	_ agent.Statser = &DDPG{}
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

// bellmanTargets returns r + γ(1 - terminal)Q'(s', μ'(s')) for each
// transition, where nextQ holds Q'(s', μ'(s'))
func bellmanTargets(reward, notTerminal, nextQ []float64,
	gamma float64) []float64 {
	target := make([]float64, len(reward))
	for i := range target {
		target[i] = reward[i] + gamma*notTerminal[i]*nextQ[i]
	}
	return target
}
