package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MultiHeadMLP implements a multi-layered perceptron with multiple
// output nodes, one for each value that should be predicted.
type MultiHeadMLP struct {
	g          *G.ExprGraph
	prefix     string
	layers     []*fcLayer
	input      *G.Node
	ownsInput  bool
	numOutputs int
	numInputs  int
	batchSize  int

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP, whose
// nodes are named with prefix.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit is always added such that given any
// input, the output will be outputs. The function works such that for
// index i, hiddenSizes[i] is the number of nodes in hidden layer i;
// biases[i] is true if the hidden layer will contain a bias unit and
// false otherwise; and activations[i] is the activation function for
// hidden layer i. The parameter init determines the weight
// initialization scheme.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	prefix string, hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (*MultiHeadMLP, error) {
	input := newInput(g, prefix, batch, features)

	net, err := newMultiHeadMLPFromInput([]*G.Node{input}, outputs, g,
		prefix, hiddenSizes, biases, init, activations, true)
	if err != nil {
		return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
	}
	net.ownsInput = true

	return net, nil
}

// NewMultiHeadMLPFromInputs returns a new MultiHeadMLP which uses the
// concatenation of inputs along the feature dimension as its input.
// See NewMultiHeadMLP for details on the other arguments.
func NewMultiHeadMLPFromInputs(inputs []*G.Node, outputs int,
	g *G.ExprGraph, prefix string, hiddenSizes []int, biases []bool,
	init G.InitWFn, activations []*Activation) (*MultiHeadMLP, error) {
	net, err := newMultiHeadMLPFromInput(inputs, outputs, g, prefix,
		hiddenSizes, biases, init, activations, true)
	if err != nil {
		return nil, fmt.Errorf("newMultiHeadMLPFromInputs: %v", err)
	}
	return net, nil
}

// newMultiHeadMLPFromInput returns a new multi-head output MLP that
// uses the concatenation of the input nodes as input. If addFinalLayer
// is true, a final linear layer with outputs units is added after the
// hidden layers, otherwise the last hidden layer must have outputs
// units.
func newMultiHeadMLPFromInput(inputs []*G.Node, outputs int, g *G.ExprGraph,
	prefix string, hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, addFinalLayer bool) (*MultiHeadMLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("outputs must be positive")
	}

	input, err := concat(inputs, g)
	if err != nil {
		return nil, err
	}
	batch, features := input.Shape()[0], input.Shape()[1]

	// Copy configuration so that appending the final layer never
	// modifies the caller's slices
	hiddenSizes = append([]int(nil), hiddenSizes...)
	biases = append([]bool(nil), biases...)
	activations = append([]*Activation(nil), activations...)

	if addFinalLayer {
		hiddenSizes = append(hiddenSizes, outputs)
		biases = append(biases, true)
		activations = append(activations, Identity())
	} else if len(hiddenSizes) == 0 ||
		outputs != hiddenSizes[len(hiddenSizes)-1] {
		return nil, fmt.Errorf("claimed output is of size %v but final "+
			"network layer has a different size", outputs)
	}

	layers := newFCLayers(g, features, hiddenSizes, biases, activations,
		init, prefix)

	net := &MultiHeadMLP{
		g:           g,
		prefix:      prefix,
		layers:      layers,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("could not compute forward pass: %v", err)
	}
	return net, nil
}

// Graph returns the computational graph of the MultiHeadMLP.
func (m *MultiHeadMLP) Graph() *G.ExprGraph {
	return m.g
}

// Prefix returns the prefix used to name the nodes of the network
func (m *MultiHeadMLP) Prefix() string {
	return m.prefix
}

// CloneWithInputTo clones the MultiHeadMLP to graph g with the
// concatenation of inputs as input
func (m *MultiHeadMLP) CloneWithInputTo(inputs []*G.Node,
	g *G.ExprGraph) (NeuralNet, error) {
	return m.cloneWithInputTo(inputs, g)
}

func (m *MultiHeadMLP) cloneWithInputTo(inputs []*G.Node,
	g *G.ExprGraph) (*MultiHeadMLP, error) {
	input, err := concat(inputs, g)
	if err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: %v", err)
	}
	if input.Shape()[1] != m.numInputs {
		return nil, fmt.Errorf("cloneWithInputTo: invalid number of "+
			"features\n\twant(%v)\n\thave(%v)", m.numInputs,
			input.Shape()[1])
	}

	layers := make([]*fcLayer, len(m.layers))
	for i := range m.layers {
		layers[i] = m.layers[i].cloneTo(g)
	}

	net := &MultiHeadMLP{
		g:           g,
		prefix:      m.prefix,
		layers:      layers,
		input:       input,
		numOutputs:  m.numOutputs,
		numInputs:   m.numInputs,
		batchSize:   input.Shape()[0],
		hiddenSizes: m.hiddenSizes,
		biases:      m.biases,
		activations: m.activations,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: could not compute "+
			"forward pass: %v", err)
	}
	return net, nil
}

// CloneWithBatch clones a MultiHeadMLP to a new graph with a new input
// batch size.
func (m *MultiHeadMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	g := G.NewGraph()
	input := newInput(g, m.prefix, batchSize, m.numInputs)

	net, err := m.cloneWithInputTo([]*G.Node{input}, g)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	net.ownsInput = true

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (m *MultiHeadMLP) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features in a single input vector
func (m *MultiHeadMLP) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs from the network
func (m *MultiHeadMLP) Outputs() int {
	return m.numOutputs
}

// Input returns the input node of the network
func (m *MultiHeadMLP) Input() *G.Node {
	return m.input
}

// SetInput sets the value of the input node before running the forward
// pass.
func (m *MultiHeadMLP) SetInput(input []float64) error {
	if !m.ownsInput {
		return fmt.Errorf("setInput: network %v does not own its input "+
			"node", m.prefix)
	}
	return SetValue(m.input, input)
}

// Learnables returns the learnable nodes in a MultiHeadMLP
func (m *MultiHeadMLP) Learnables() G.Nodes {
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.weights)
			if l.bias != nil {
				learnables = append(learnables, l.bias)
			}
		}
		m.learnables = G.Nodes(learnables)
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients.
func (m *MultiHeadMLP) Model() []G.ValueGrad {
	if m.model == nil {
		m.model = G.NodesToValueGrads(m.Learnables())
	}
	return m.model
}

// fwd performs the forward pass of the MultiHeadMLP on the input node
func (m *MultiHeadMLP) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// Output returns the output of the MultiHeadMLP computed by the last
// run of a VM on the network's graph
func (m *MultiHeadMLP) Output() []G.Value {
	return []G.Value{m.predVal}
}

// Prediction returns the node of the computational graph that stores
// the output of the MultiHeadMLP
func (m *MultiHeadMLP) Prediction() []*G.Node {
	return []*G.Node{m.prediction}
}

// newInput adds an input matrix node to g
func newInput(g *G.ExprGraph, prefix string, batch, features int) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName(prefix+"Input"),
		G.WithInit(G.Zeroes()),
	)
}

// concat concatenates matrix nodes of graph g along the feature
// dimension
func concat(inputs []*G.Node, g *G.ExprGraph) (*G.Node, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input nodes")
	}
	for _, input := range inputs {
		if input.Graph() != g {
			return nil, fmt.Errorf("not all inputs have the same graph")
		}
		if !input.IsMatrix() {
			return nil, fmt.Errorf("input %v must be a matrix",
				input.Name())
		}
	}

	if len(inputs) == 1 {
		return inputs[0], nil
	}
	return G.Concat(1, inputs...)
}
