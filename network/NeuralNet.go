// Package network implements neural networks built on Gorgonia
// expression graphs.
//
// Each network is given a name prefix which is used to name all of its
// nodes. Networks with distinct prefixes can be built in the same
// graph, and a network cloned to another graph keeps its prefix so
// that the clone can live alongside other networks in that graph.
// Weights are never shared between graphs; they are copied between
// networks with Set and Polyak.
package network

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet implements a neural network in a Gorgonia expression graph
type NeuralNet interface {
	Graph() *G.ExprGraph
	Prefix() string

	// CloneWithBatch clones the network to a new graph with a new input
	// node of the given batch size
	CloneWithBatch(int) (NeuralNet, error)

	// CloneWithInputTo clones the network to graph g, using the
	// concatenation of inputs along the feature dimension as input
	CloneWithInputTo(inputs []*G.Node, g *G.ExprGraph) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	// Input returns the input node of the network. SetInput sets its
	// value and can only be used if the network owns its input node,
	// that is if the network was not built on other nodes.
	Input() *G.Node
	SetInput([]float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() []G.Value
	Prediction() []*G.Node
}

// Set sets the weights of dest to be equal to the weights of source.
// Weights are copied in place.
func Set(dest, source NeuralNet) error {
	return apply(dest, source, func(d, s []float64) {
		copy(d, s)
	})
}

// Polyak sets the weights of dest to be the Polyak average between the
// weights of dest and the weights of source:
//
//	dest ← (1 - tau) * dest + tau * source
func Polyak(dest, source NeuralNet, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1], got %v", tau)
	}

	return apply(dest, source, func(d, s []float64) {
		floats.Scale(1-tau, d)
		floats.AddScaled(d, tau, s)
	})
}

// apply applies f to the data of each pair of learnables of dest and
// source, after checking that the networks are compatible
func apply(dest, source NeuralNet, f func(d, s []float64)) error {
	destNodes := dest.Learnables()
	sourceNodes := source.Learnables()
	if len(destNodes) != len(sourceNodes) {
		return fmt.Errorf("incompatible networks: %v != %v learnables",
			len(destNodes), len(sourceNodes))
	}

	for i := range destNodes {
		d, err := data(destNodes[i])
		if err != nil {
			return err
		}
		s, err := data(sourceNodes[i])
		if err != nil {
			return err
		}
		if len(d) != len(s) {
			return fmt.Errorf("incompatible networks: learnable %v has "+
				"size %v != %v", i, len(d), len(s))
		}
		f(d, s)
	}
	return nil
}

// Snapshot returns a copy of the weights of a network
func Snapshot(net NeuralNet) ([][]float64, error) {
	nodes := net.Learnables()
	weights := make([][]float64, len(nodes))

	for i := range nodes {
		d, err := data(nodes[i])
		if err != nil {
			return nil, fmt.Errorf("snapshot: %v", err)
		}
		weights[i] = append([]float64(nil), d...)
	}
	return weights, nil
}

// Restore sets the weights of a network to weights previously returned
// by Snapshot
func Restore(net NeuralNet, weights [][]float64) error {
	nodes := net.Learnables()
	if len(nodes) != len(weights) {
		return fmt.Errorf("restore: expected %v learnables, got %v",
			len(nodes), len(weights))
	}

	for i := range nodes {
		d, err := data(nodes[i])
		if err != nil {
			return fmt.Errorf("restore: %v", err)
		}
		if len(d) != len(weights[i]) {
			return fmt.Errorf("restore: learnable %v has size %v != %v", i,
				len(d), len(weights[i]))
		}
		copy(d, weights[i])
	}
	return nil
}

// SetValue sets the value of an input node to a new tensor with the
// shape of the node, backed by value
func SetValue(node *G.Node, value []float64) error {
	if size := node.Shape().TotalSize(); size != len(value) {
		return fmt.Errorf("setValue: node %v expects %v values, got %v",
			node.Name(), size, len(value))
	}

	t := tensor.New(
		tensor.WithBacking(value),
		tensor.WithShape(node.Shape().Clone()...),
	)
	return G.Let(node, t)
}

// Values returns a copy of the data of a value, which must hold
// float64s
func Values(v G.Value) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v.Data().([]float64)...)
}

// data returns the backing data of a learnable node
func data(node *G.Node) ([]float64, error) {
	if node.Value() == nil {
		return nil, fmt.Errorf("node %v has no value", node.Name())
	}

	d, ok := node.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %v does not hold float64 data",
			node.Name())
	}
	return d, nil
}

// Scalar returns the single float64 held by a value, which must be a
// scalar or hold exactly one float64
func Scalar(v G.Value) float64 {
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		if len(d) == 1 {
			return d[0]
		}
	}
	panic(fmt.Sprintf("scalar: value %v is not a single float64", v))
}
