package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayers adds the weights of fully connected layers to graph g.
// Layer i has hiddenSizes[i] units, a bias unit if biases[i] is true,
// and activation activations[i]. Nodes are named by prefix.
func newFCLayers(g *G.ExprGraph, features int, hiddenSizes []int,
	biases []bool, activations []*Activation, init G.InitWFn,
	prefix string) []*fcLayer {
	layers := make([]*fcLayer, len(hiddenSizes))

	in := features
	for i, out := range hiddenSizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(fmt.Sprintf("%vL%dW", prefix, i)),
			G.WithInit(init),
		)

		var bias *G.Node
		if biases[i] {
			bias = G.NewMatrix(
				g,
				tensor.Float64,
				G.WithShape(1, out),
				G.WithName(fmt.Sprintf("%vL%dB", prefix, i)),
				G.WithInit(G.Zeroes()),
			)
		}

		layers[i] = &fcLayer{weights, bias, activations[i]}
		in = out
	}
	return layers
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}

	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
		if err != nil {
			return nil, err
		}
	}

	return f.act.fwd(x)
}

// cloneTo clones an fcLayer to a new computational graph, copying its
// weights
func (f *fcLayer) cloneTo(g *G.ExprGraph) *fcLayer {
	var bias *G.Node
	if f.bias != nil {
		bias = cloneLearnable(f.bias, g)
	}

	return &fcLayer{
		weights: cloneLearnable(f.weights, g),
		bias:    bias,
		act:     f.act,
	}
}

// cloneLearnable creates a node in graph g with the same name and shape
// as node, holding a copy of node's value
func cloneLearnable(node *G.Node, g *G.ExprGraph) *G.Node {
	value := node.Value().(*tensor.Dense).Clone().(*tensor.Dense)

	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(node.Shape().Clone()...),
		G.WithName(node.Name()),
		G.WithValue(value),
	)
}
