package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// TreeMLP implements a multi-layered perceptron with a root network and
// multiple leaf networks that use the output of the root network as
// their own inputs. A diagram of a tree MLP:
//
//	                  ╭─→ Leaf Network 1 ─→ Output
//	Input ─→ Root Net ┼─→ ...            ─→ ...
//	                  ╰─→ Leaf Network N ─→ Output
//
// Prediction returns one node per leaf network.
type TreeMLP struct {
	prefix       string
	rootNetwork  *MultiHeadMLP
	leafNetworks []*MultiHeadMLP
	ownsInput    bool

	numOutputs int // Number of outputs per leaf network

	learnables G.Nodes
	model      []G.ValueGrad
}

// validateTreeMLP validates the arguments of NewTreeMLP() to ensure
// they are legal.
func validateTreeMLP(numOutputs int, rootHiddenSizes []int, rootBiases []bool,
	rootActivations []*Activation, leafHiddenSizes [][]int,
	leafBiases [][]bool, leafActivations [][]*Activation) error {
	if len(rootHiddenSizes) == 0 {
		return fmt.Errorf("root network must have at least one hidden layer")
	}

	if len(rootHiddenSizes) != len(rootActivations) {
		msg := "invalid number of root activations\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(rootHiddenSizes), len(rootActivations))
	}

	if len(rootHiddenSizes) != len(rootBiases) {
		msg := "invalid number of root biases\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(rootHiddenSizes), len(rootBiases))
	}

	if len(leafHiddenSizes) == 0 {
		return fmt.Errorf("there must be at least one leaf network")
	}

	if numOutputs <= 0 {
		return fmt.Errorf("there must be more than 0 outputs per leaf network")
	}

	if len(leafHiddenSizes) != len(leafActivations) ||
		len(leafHiddenSizes) != len(leafBiases) {
		return fmt.Errorf("leaf hidden sizes, biases, and activations must " +
			"describe the same number of leaf networks")
	}
	return nil
}

// NewTreeMLP returns a new TreeMLP.
//
// The root network has number of layers equal to len(rootHiddenSizes).
// For index i, rootHiddenSizes[i] determines the number of hidden units
// in that layer, rootBiases[i] determines if a bias unit is added to
// the hidden layer, and rootActivations[i] determines the activation
// function to apply to that hidden layer.
//
// The number of leaf networks is defined by len(leafHiddenSizes).
// For indices i and j, leafHiddenSizes[i][j], leafBiases[i][j], and
// leafActivations[i][j] determine the number of hidden units, the bias,
// and the activation of layer j in leaf network i. For all leaf
// networks, a final linear layer with a bias and no activation is added
// to ensure the output of each leaf network has outputs units. To
// create leaf networks which are only a single linear layer, set
// leafHiddenSizes = [][]int{{}, {}, ..., {}} (similarly for leafBiases
// and leafActivations).
func NewTreeMLP(features, batch, outputs int, g *G.ExprGraph, prefix string,
	rootHiddenSizes []int, rootBiases []bool, rootActivations []*Activation,
	leafHiddenSizes [][]int, leafBiases [][]bool,
	leafActivations [][]*Activation, init G.InitWFn) (*TreeMLP, error) {
	err := validateTreeMLP(outputs, rootHiddenSizes, rootBiases,
		rootActivations, leafHiddenSizes, leafBiases, leafActivations)
	if err != nil {
		return nil, fmt.Errorf("newTreeMLP: %v", err)
	}

	input := newInput(g, prefix, batch, features)

	rootOutputs := rootHiddenSizes[len(rootHiddenSizes)-1]
	root, err := newMultiHeadMLPFromInput([]*G.Node{input}, rootOutputs, g,
		prefix+"Root", rootHiddenSizes, rootBiases, init, rootActivations,
		false)
	if err != nil {
		return nil, fmt.Errorf("newTreeMLP: could not construct root "+
			"network: %v", err)
	}

	leaves := make([]*MultiHeadMLP, len(leafHiddenSizes))
	for i := range leafHiddenSizes {
		leafPrefix := fmt.Sprintf("%vLeaf%d", prefix, i)
		leaves[i], err = newMultiHeadMLPFromInput(root.Prediction(), outputs,
			g, leafPrefix, leafHiddenSizes[i], leafBiases[i], init,
			leafActivations[i], true)
		if err != nil {
			return nil, fmt.Errorf("newTreeMLP: could not construct leaf "+
				"network %v: %v", i, err)
		}
	}

	return &TreeMLP{
		prefix:       prefix,
		rootNetwork:  root,
		leafNetworks: leaves,
		ownsInput:    true,
		numOutputs:   outputs,
	}, nil
}

// Graph returns the computational graph of the network
func (t *TreeMLP) Graph() *G.ExprGraph {
	return t.rootNetwork.Graph()
}

// Prefix returns the prefix used to name the nodes of the network
func (t *TreeMLP) Prefix() string {
	return t.prefix
}

// CloneWithInputTo clones the TreeMLP to graph g with the
// concatenation of inputs as input
func (t *TreeMLP) CloneWithInputTo(inputs []*G.Node,
	g *G.ExprGraph) (NeuralNet, error) {
	return t.cloneWithInputTo(inputs, g)
}

func (t *TreeMLP) cloneWithInputTo(inputs []*G.Node,
	g *G.ExprGraph) (*TreeMLP, error) {
	root, err := t.rootNetwork.cloneWithInputTo(inputs, g)
	if err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: could not clone root "+
			"network: %v", err)
	}

	leaves := make([]*MultiHeadMLP, len(t.leafNetworks))
	for i := range t.leafNetworks {
		leaves[i], err = t.leafNetworks[i].cloneWithInputTo(root.Prediction(),
			g)
		if err != nil {
			return nil, fmt.Errorf("cloneWithInputTo: could not clone "+
				"leaf network %v: %v", i, err)
		}
	}

	return &TreeMLP{
		prefix:       t.prefix,
		rootNetwork:  root,
		leafNetworks: leaves,
		numOutputs:   t.numOutputs,
	}, nil
}

// CloneWithBatch clones the TreeMLP to a new graph with a new input
// batch size
func (t *TreeMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	g := G.NewGraph()
	input := newInput(g, t.prefix, batchSize, t.Features())

	net, err := t.cloneWithInputTo([]*G.Node{input}, g)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	net.ownsInput = true

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (t *TreeMLP) BatchSize() int {
	return t.rootNetwork.BatchSize()
}

// Features returns the number of features in a single input vector
func (t *TreeMLP) Features() int {
	return t.rootNetwork.Features()
}

// Outputs returns the number of outputs per leaf network
func (t *TreeMLP) Outputs() int {
	return t.numOutputs
}

// Leaves returns the number of leaf networks
func (t *TreeMLP) Leaves() int {
	return len(t.leafNetworks)
}

// Input returns the input node of the network
func (t *TreeMLP) Input() *G.Node {
	return t.rootNetwork.Input()
}

// SetInput sets the value of the input node before running the forward
// pass.
func (t *TreeMLP) SetInput(input []float64) error {
	if !t.ownsInput {
		return fmt.Errorf("setInput: network %v does not own its input "+
			"node", t.prefix)
	}
	return SetValue(t.Input(), input)
}

// Learnables returns the learnable nodes of the root network followed
// by the learnable nodes of each leaf network
func (t *TreeMLP) Learnables() G.Nodes {
	if t.learnables == nil {
		learnables := append(G.Nodes(nil), t.rootNetwork.Learnables()...)
		for _, leaf := range t.leafNetworks {
			learnables = append(learnables, leaf.Learnables()...)
		}
		t.learnables = learnables
	}
	return t.learnables
}

// Model returns the learnables nodes with their gradients.
func (t *TreeMLP) Model() []G.ValueGrad {
	if t.model == nil {
		t.model = G.NodesToValueGrads(t.Learnables())
	}
	return t.model
}

// Output returns the output of each leaf network
func (t *TreeMLP) Output() []G.Value {
	out := make([]G.Value, len(t.leafNetworks))
	for i, leaf := range t.leafNetworks {
		out[i] = leaf.Output()[0]
	}
	return out
}

// Prediction returns the output node of each leaf network
func (t *TreeMLP) Prediction() []*G.Node {
	pred := make([]*G.Node, len(t.leafNetworks))
	for i, leaf := range t.leafNetworks {
		pred[i] = leaf.Prediction()[0]
	}
	return pred
}
