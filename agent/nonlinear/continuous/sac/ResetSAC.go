package sac

import (
	"fmt"
	"path/filepath"

	"github.com/hisaki/rlrl/agent"
	env "github.com/hisaki/rlrl/environment"
	"github.com/hisaki/rlrl/expreplay"
	"github.com/hisaki/rlrl/network"
	"github.com/hisaki/rlrl/solver"
	"github.com/hisaki/rlrl/utils/floatutils"
	"github.com/hisaki/rlrl/utils/seeding"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ResetSAC implements SAC in environments which are reset on reaching
// terminal states instead of ending the episode. Transitions through a
// reset carry a NaN reward.
//
// The agent learns the rate ρ at which it resets the environment with
// the help of a reset Q network R(s, a), an average-reward value
// function of the reset indicator. A learned reset cost c replaces the
// NaN rewards in the critic targets and is adjusted so that the reset
// rate approaches a target terminal probability.
type ResetSAC struct {
	*SAC

	// Reset Q training graph
	resetQ       network.NeuralNet
	resetState   *G.Node
	resetAction  *G.Node
	resetTarget  *G.Node
	resetQVM     G.VM
	resetQSolver *solver.Solver

	// Reset Q target graph, which evaluates R' on a batch of next
	// state-actions stacked on top of a batch of state-actions
	targetResetQ      network.NeuralNet
	targetResetState  *G.Node
	targetResetAction *G.Node
	targetResetVM     G.VM

	// Reset rate graph
	resetRate        *G.Node
	resetRateTarget  *G.Node
	resetRateVM      G.VM
	resetRateSolver  *solver.Solver
	targetResetRate  float64
	resetRateLossVal G.Value

	// Reset cost graph
	resetCost        *G.Node
	resetCostGap     *G.Node
	resetCostVM      G.VM
	resetCostSolver  *solver.Solver
	resetCostLossVal G.Value

	targetTerminalProbability float64
}

// NewReset returns a new ResetSAC agent acting in environment e. The
// environment must have a normalized action space.
func NewReset(e env.Environment, c agent.Config,
	seeds seeding.Seeds) (*ResetSAC, error) {
	if !c.ValidAgent(&ResetSAC{}) {
		return nil, fmt.Errorf("newReset: invalid configuration type: %T", c)
	}
	config, ok := c.(ResetConfig)
	if !ok {
		return nil, fmt.Errorf("newReset: invalid configuration type: %T", c)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newReset: %v", err)
	}

	s, err := newSAC(e, config.Config, seeds)
	if err != nil {
		return nil, fmt.Errorf("newReset: %v", err)
	}

	r := &ResetSAC{
		SAC:                       s,
		resetQSolver:              config.ResetSolver.Clone(),
		resetRateSolver:           config.ResetSolver.Clone(),
		resetCostSolver:           config.ResetSolver.Clone(),
		targetTerminalProbability: config.TargetTerminalProbability,
	}

	stateDims := e.ObservationSpec().Dims()
	actionDims := e.ActionSpec().Dims()
	if err := r.buildResetQ(stateDims, actionDims, config.ResetQLayers,
		config.InitWFn.InitWFn()); err != nil {
		return nil, fmt.Errorf("newReset: could not construct reset Q "+
			"network: %v", err)
	}
	if err := r.buildResetRate(); err != nil {
		return nil, fmt.Errorf("newReset: could not construct reset "+
			"rate: %v", err)
	}
	if err := r.buildResetCost(); err != nil {
		return nil, fmt.Errorf("newReset: could not construct reset "+
			"cost: %v", err)
	}

	return r, nil
}

// buildResetQ builds the reset Q training graph, minimizing the mean
// squared error between R(s, a) and an input target, and the graph of
// its target network
func (r *ResetSAC) buildResetQ(stateDims, actionDims int, layers []int,
	init G.InitWFn) error {
	g := G.NewGraph()
	r.resetState = newInput(g, "State", r.batchSize, stateDims)
	r.resetAction = newInput(g, "Action", r.batchSize, actionDims)
	r.resetTarget = newInput(g, "Target", r.batchSize, 1)

	var err error
	r.resetQ, err = network.NewSingleHeadMLP(
		[]*G.Node{r.resetState, r.resetAction}, g, "resetQ", layers, init)
	if err != nil {
		return err
	}

	loss := mse(r.resetQ.Prediction()[0], r.resetTarget)
	if _, err := G.Grad(loss, r.resetQ.Learnables()...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	r.resetQVM = G.NewTapeMachine(g,
		G.BindDualValues(r.resetQ.Learnables()...))

	targetG := G.NewGraph()
	r.targetResetState = newInput(targetG, "State", 2*r.batchSize,
		stateDims)
	r.targetResetAction = newInput(targetG, "Action", 2*r.batchSize,
		actionDims)
	r.targetResetQ, err = r.resetQ.CloneWithInputTo(
		[]*G.Node{r.targetResetState, r.targetResetAction}, targetG)
	if err != nil {
		return err
	}
	r.targetResetVM = G.NewTapeMachine(targetG)

	return nil
}

// buildResetRate builds the graph learning ρ by minimizing (ρ - t)²
// for an input target t
func (r *ResetSAC) buildResetRate() error {
	g := G.NewGraph()
	r.resetRate = newScalar(g, "ResetRate", 0)
	r.resetRateTarget = newScalar(g, "ResetRateTarget", 0)

	loss := G.Must(G.Sub(r.resetRate, r.resetRateTarget))
	loss = G.Must(G.Sum(G.Must(G.Square(loss))))
	G.Read(loss, &r.resetRateLossVal)

	if _, err := G.Grad(loss, r.resetRate); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	r.resetRateVM = G.NewTapeMachine(g, G.BindDualValues(r.resetRate))
	return nil
}

// buildResetCost builds the graph learning c by minimizing
// -c·(ρ - p*) for an input gap ρ - p*
func (r *ResetSAC) buildResetCost() error {
	g := G.NewGraph()
	r.resetCost = newScalar(g, "ResetCost", 0)
	r.resetCostGap = newScalar(g, "ResetRateGap", 0)

	loss := G.Must(G.HadamardProd(r.resetCost, r.resetCostGap))
	loss = G.Must(G.Neg(G.Must(G.Sum(loss))))
	G.Read(loss, &r.resetCostLossVal)

	if _, err := G.Grad(loss, r.resetCost); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}
	r.resetCostVM = G.NewTapeMachine(g, G.BindDualValues(r.resetCost))
	return nil
}

// ResetRate returns the current estimate of the reset rate ρ
func (r *ResetSAC) ResetRate() float64 {
	return r.resetRate.Value().Data().([]float64)[0]
}

// TargetResetRate returns the soft-updated target reset rate ρ'
func (r *ResetSAC) TargetResetRate() float64 {
	return r.targetResetRate
}

// ResetCost returns the current reset cost c
func (r *ResetSAC) ResetCost() float64 {
	return r.resetCost.Value().Data().([]float64)[0]
}

// Step updates the agent if the replay buffer holds more than
// ReplayStartSize transitions. The critics are updated first with NaN
// rewards replaced by -c, then the reset Q network, reset rate, and
// reset cost, then the policy and temperature, and finally the target
// networks.
func (r *ResetSAC) Step() error {
	if !r.ready() {
		return nil
	}

	batch, err := r.replay.Sample(r.batchSize)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	reward := resetRewards(batch.Reward, r.ResetCost())
	nextAction, err := r.updateCritics(batch, reward)
	if err != nil {
		return fmt.Errorf("step: could not update critics: %v", err)
	}
	if err := r.updateReset(batch, nextAction); err != nil {
		return fmt.Errorf("step: could not update reset cost: %v", err)
	}
	if err := r.updatePolicyAndTemperature(batch); err != nil {
		return fmt.Errorf("step: could not update policy: %v", err)
	}
	if err := r.syncResetTargets(); err != nil {
		return fmt.Errorf("step: %v", err)
	}
	if err := r.syncTargets(); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	r.updates++
	return nil
}

// updateReset takes one gradient step on each of the reset Q network,
// the reset rate, and the reset cost. The targets of the reset Q network
// and reset rate are evaluated at a', the next actions sampled for the
// critic update.
func (r *ResetSAC) updateReset(batch expreplay.Batch,
	nextAction []float64) error {
	size := batch.Size

	states := make([]float64, 0, 2*len(batch.State))
	states = append(states, batch.NextState...)
	states = append(states, batch.State...)
	actions := make([]float64, 0, 2*len(batch.Action))
	actions = append(actions, nextAction...)
	actions = append(actions, batch.Action...)

	if err := network.SetValue(r.targetResetState, states); err != nil {
		return err
	}
	if err := network.SetValue(r.targetResetAction, actions); err != nil {
		return err
	}
	if err := r.targetResetVM.RunAll(); err != nil {
		return err
	}
	targetQ := network.Values(r.targetResetQ.Output()[0])
	r.targetResetVM.Reset()
	nextQ, currentQ := targetQ[:size], targetQ[size:]

	qTarget, rateTarget := resetTargets(batch.Reward, currentQ, nextQ,
		r.targetResetRate)
	if err := r.updateResetQ(batch, qTarget); err != nil {
		return err
	}

	// The reset cost is adjusted by the reset rate before this update
	rate := r.ResetRate()
	cost := r.ResetCost()

	if err := network.SetValue(r.resetRateTarget,
		[]float64{rateTarget}); err != nil {
		return err
	}
	if err := r.resetRateVM.RunAll(); err != nil {
		return err
	}
	rateLoss := network.Scalar(r.resetRateLossVal)
	err := r.resetRateSolver.Step(G.NodesToValueGrads(G.Nodes{r.resetRate}))
	r.resetRateVM.Reset()
	if err != nil {
		return err
	}

	gap := rate - r.targetTerminalProbability
	if err := network.SetValue(r.resetCostGap, []float64{gap}); err != nil {
		return err
	}
	if err := r.resetCostVM.RunAll(); err != nil {
		return err
	}
	costLoss := network.Scalar(r.resetCostLossVal)
	err = r.resetCostSolver.Step(G.NodesToValueGrads(G.Nodes{r.resetCost}))
	r.resetCostVM.Reset()
	if err != nil {
		return err
	}

	rateData := r.resetRate.Value().Data().([]float64)
	rateData[0] = floatutils.Clip(rateData[0], 0, 1)

	if r.stats != nil {
		r.stats.Append("reset_rate", rate)
		r.stats.Append("reset_rate_loss", rateLoss)
		r.stats.Append("reset_cost", cost)
		r.stats.Append("reset_cost_loss", costLoss)
	}
	return nil
}

// updateResetQ takes one gradient step on the reset Q network towards
// target
func (r *ResetSAC) updateResetQ(batch expreplay.Batch,
	target []float64) error {
	if err := network.SetValue(r.resetState, batch.State); err != nil {
		return err
	}
	if err := network.SetValue(r.resetAction, batch.Action); err != nil {
		return err
	}
	if err := network.SetValue(r.resetTarget, target); err != nil {
		return err
	}
	if err := r.resetQVM.RunAll(); err != nil {
		return err
	}
	defer r.resetQVM.Reset()

	if r.stats != nil {
		r.stats.Extend("reset_q", network.Values(r.resetQ.Output()[0]))
	}
	return r.resetQSolver.Step(r.resetQ.Model())
}

// syncResetTargets soft-updates the target reset rate and target reset
// Q network
func (r *ResetSAC) syncResetTargets() error {
	r.targetResetRate = (1-r.tau)*r.targetResetRate + r.tau*r.ResetRate()
	if err := network.Polyak(r.targetResetQ, r.resetQ, r.tau); err != nil {
		return fmt.Errorf("could not update target reset Q network: %v",
			err)
	}
	return nil
}

// Save saves the agent and its reset cost state to dir
func (r *ResetSAC) Save(dir string) error {
	if err := r.SAC.Save(dir); err != nil {
		return err
	}
	if err := network.Save(filepath.Join(dir, "reset_networks.bin"),
		r.resetQ, r.targetResetQ); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	scalars := map[string]float64{
		"reset_rate":        r.ResetRate(),
		"target_reset_rate": r.targetResetRate,
		"reset_cost":        r.ResetCost(),
	}
	if err := saveScalars(filepath.Join(dir, "reset_scalars.bin"),
		scalars); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load loads an agent saved with Save
func (r *ResetSAC) Load(dir string) error {
	if err := r.SAC.Load(dir); err != nil {
		return err
	}
	if err := network.Load(filepath.Join(dir, "reset_networks.bin"),
		r.resetQ, r.targetResetQ); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	scalars, err := loadScalars(filepath.Join(dir, "reset_scalars.bin"))
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}
	r.resetRate.Value().Data().([]float64)[0] = scalars["reset_rate"]
	r.targetResetRate = scalars["target_reset_rate"]
	r.resetCost.Value().Data().([]float64)[0] = scalars["reset_cost"]
	return nil
}

// Close closes the agent's VMs
func (r *ResetSAC) Close() error {
	if err := r.SAC.Close(); err != nil {
		return err
	}
	for _, vm := range []G.VM{r.resetQVM, r.targetResetVM, r.resetRateVM,
		r.resetCostVM} {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return nil
}

var (
	_ agent.Closer  = &ResetSAC{}
	_ agent.Saver   = &ResetSAC{}
	_ agent.Statser = &ResetSAC{}
)

// newScalar returns a new vector node of size 1 holding value
func newScalar(g *G.ExprGraph, name string, value float64) *G.Node {
	return G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(1),
		G.WithName(name),
		G.WithValue(tensor.New(
			tensor.WithShape(1),
			tensor.WithBacking([]float64{value}),
		)),
	)
}
