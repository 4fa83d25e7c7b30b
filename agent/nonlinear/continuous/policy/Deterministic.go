// Package policy implements neural network policies for continuous
// actions in [-1, 1]
package policy

import (
	"fmt"

	"github.com/hisaki/rlrl/network"
	ts "github.com/hisaki/rlrl/timestep"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

// NewDeterministicNet returns the MLP of a deterministic policy. The
// hidden layers use ReLU activations and a final linear layer outputs
// one unit per action dimension. Actions are computed from the network
// with DeterministicAction.
func NewDeterministicNet(features, actionDims, batch int, g *G.ExprGraph,
	prefix string, hiddenSizes []int,
	init G.InitWFn) (*network.MultiHeadMLP, error) {
	biases := make([]bool, len(hiddenSizes))
	for i := range biases {
		biases[i] = true
	}

	net, err := network.NewMultiHeadMLP(features, batch, actionDims, g,
		prefix, hiddenSizes, biases, init, network.ReLUs(len(hiddenSizes)))
	if err != nil {
		return nil, fmt.Errorf("newDeterministicNet: %v", err)
	}
	return net, nil
}

// DeterministicAction adds a node to the graph of net which squashes
// the network's prediction into [-1, 1] with tanh
func DeterministicAction(net network.NeuralNet) (*G.Node, error) {
	action, err := G.Tanh(net.Prediction()[0])
	if err != nil {
		return nil, fmt.Errorf("deterministicAction: %v", err)
	}
	return action, nil
}

// Deterministic implements a deterministic policy which selects the
// action tanh(μ(s)) for the network prediction μ(s). Deterministic
// policies do not explore; exploration is left to the agent.
type Deterministic struct {
	net        network.NeuralNet
	vm         G.VM
	actionVal  G.Value
	actionDims int
	eval       bool
}

// NewDeterministic returns a new Deterministic policy which selects
// actions using net. The network must have a batch size of 1 and own
// its input node.
func NewDeterministic(net network.NeuralNet) (*Deterministic, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newDeterministic: action selection "+
			"requires a batch size of 1 \n\twant(1) \n\thave(%v)",
			net.BatchSize())
	}

	action, err := DeterministicAction(net)
	if err != nil {
		return nil, fmt.Errorf("newDeterministic: %v", err)
	}

	d := &Deterministic{
		net:        net,
		actionDims: net.Outputs(),
	}
	G.Read(action, &d.actionVal)
	d.vm = G.NewTapeMachine(net.Graph())

	return d, nil
}

// SelectAction selects and returns an action at the argument timestep
// t.
func (d *Deterministic) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs := t.Observation.RawVector().Data
	if err := d.net.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}

	if err := d.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer d.vm.Reset()

	return mat.NewVecDense(d.actionDims, network.Values(d.actionVal))
}

// Network returns the network of the policy
func (d *Deterministic) Network() network.NeuralNet {
	return d.net
}

// Eval sets the policy to evaluation mode
func (d *Deterministic) Eval() { d.eval = true }

// Train sets the policy to training mode
func (d *Deterministic) Train() { d.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (d *Deterministic) IsEval() bool { return d.eval }

// Close closes the policy's VM
func (d *Deterministic) Close() error {
	return d.vm.Close()
}
