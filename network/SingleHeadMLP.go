package network

import G "gorgonia.org/gorgonia"

// NewSingleHeadMLP returns an MLP with a single linear output computed
// from the concatenation of inputs along the feature axis. Every hidden
// layer has a bias and a ReLU activation. State-action value functions
// are built this way.
//
// See NewMultiHeadMLPFromInputs for more details.
func NewSingleHeadMLP(inputs []*G.Node, g *G.ExprGraph, prefix string,
	hiddenSizes []int, init G.InitWFn) (*MultiHeadMLP, error) {
	biases := make([]bool, len(hiddenSizes))
	for i := range biases {
		biases[i] = true
	}
	return NewMultiHeadMLPFromInputs(inputs, 1, g, prefix, hiddenSizes,
		biases, init, ReLUs(len(hiddenSizes)))
}
