package network

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

func newTestMLP(t *testing.T, g *G.ExprGraph, prefix string,
	batch int) *MultiHeadMLP {
	net, err := NewMultiHeadMLP(3, batch, 2, g, prefix, []int{5, 4},
		[]bool{true, true}, G.GlorotU(1.0), ReLUs(2))
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func forward(t *testing.T, net NeuralNet, input []float64) [][]float64 {
	if err := net.SetInput(input); err != nil {
		t.Fatal(err)
	}

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	out := make([][]float64, 0, len(net.Output()))
	for _, v := range net.Output() {
		out = append(out, Values(v))
	}
	return out
}

func TestMultiHeadMLP(t *testing.T) {
	net := newTestMLP(t, G.NewGraph(), "net", 2)

	if net.Features() != 3 || net.Outputs() != 2 || net.BatchSize() != 2 {
		t.Errorf("newMultiHeadMLP: unexpected shape (%v, %v, %v)",
			net.Features(), net.Outputs(), net.BatchSize())
	}
	if len(net.Learnables()) != 6 {
		t.Errorf("learnables: expected 6 learnables, got %v",
			len(net.Learnables()))
	}

	out := forward(t, net, []float64{1, 2, 3, 4, 5, 6})
	if len(out) != 1 || len(out[0]) != 4 {
		t.Fatalf("output: expected 1 output with 4 values, got %v", out)
	}

	if err := net.SetInput([]float64{1}); err == nil {
		t.Error("setInput: expected error on input size mismatch")
	}
}

func TestSetAndPolyak(t *testing.T) {
	src := newTestMLP(t, G.NewGraph(), "net", 1)
	dest := newTestMLP(t, G.NewGraph(), "net", 1)
	input := []float64{0.5, -1, 2}

	if err := Set(dest, src); err != nil {
		t.Fatal(err)
	}
	want := forward(t, src, input)[0]
	got := forward(t, dest, input)[0]
	if !floats.EqualApprox(want, got, 1e-12) {
		t.Errorf("set: expected output %v, got %v", want, got)
	}

	// Polyak averaging with tau = 0.5 moves weights halfway
	destWeights, _ := Snapshot(dest)
	other := newTestMLP(t, G.NewGraph(), "net", 1)
	otherWeights, _ := Snapshot(other)
	if err := Polyak(dest, other, 0.5); err != nil {
		t.Fatal(err)
	}
	averaged, _ := Snapshot(dest)
	for i := range averaged {
		for j := range averaged[i] {
			expected := 0.5*destWeights[i][j] + 0.5*otherWeights[i][j]
			if math.Abs(averaged[i][j]-expected) > 1e-12 {
				t.Fatalf("polyak: expected %v, got %v", expected,
					averaged[i][j])
			}
		}
	}

	if err := Polyak(dest, other, 2); err == nil {
		t.Error("polyak: expected error for tau > 1")
	}

	small, err := NewMultiHeadMLP(3, 1, 2, G.NewGraph(), "net", []int{4},
		[]bool{true}, G.GlorotU(1.0), ReLUs(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := Set(small, src); err == nil {
		t.Error("set: expected error on incompatible networks")
	}
}

func TestSnapshotRestore(t *testing.T) {
	net := newTestMLP(t, G.NewGraph(), "net", 1)
	input := []float64{1, 1, 1}
	before := forward(t, net, input)[0]

	weights, err := Snapshot(net)
	if err != nil {
		t.Fatal(err)
	}

	other := newTestMLP(t, G.NewGraph(), "net", 1)
	if err := Restore(other, weights); err != nil {
		t.Fatal(err)
	}
	after := forward(t, other, input)[0]
	if !floats.EqualApprox(before, after, 1e-12) {
		t.Errorf("restore: expected output %v, got %v", before, after)
	}

	if err := Restore(other, weights[:1]); err == nil {
		t.Error("restore: expected error on missing learnables")
	}
}

func TestCloneWithBatch(t *testing.T) {
	net := newTestMLP(t, G.NewGraph(), "net", 1)
	clone, err := net.CloneWithBatch(2)
	if err != nil {
		t.Fatal(err)
	}

	single := forward(t, net, []float64{1, 2, 3})[0]
	batch := forward(t, clone, []float64{1, 2, 3, 1, 2, 3})[0]

	if !floats.EqualApprox(single, batch[:2], 1e-12) ||
		!floats.EqualApprox(single, batch[2:], 1e-12) {
		t.Errorf("cloneWithBatch: expected %v for each sample, got %v",
			single, batch)
	}
}

func TestCloneWithInputTo(t *testing.T) {
	net := newTestMLP(t, G.NewGraph(), "q", 1)

	g := G.NewGraph()
	state := newInput(g, "state", 1, 2)
	action := newInput(g, "action", 1, 1)
	clone, err := net.CloneWithInputTo([]*G.Node{state, action}, g)
	if err != nil {
		t.Fatal(err)
	}
	if err := clone.SetInput([]float64{1, 2, 3}); err == nil {
		t.Error("setInput: clone should not own its input")
	}

	if err := SetValue(state, []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(action, []float64{3}); err != nil {
		t.Fatal(err)
	}
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	want := forward(t, net, []float64{1, 2, 3})[0]
	got := Values(clone.Output()[0])
	if !floats.EqualApprox(want, got, 1e-12) {
		t.Errorf("cloneWithInputTo: expected %v, got %v", want, got)
	}

	wrong := newInput(g, "wrong", 1, 5)
	if _, err := net.CloneWithInputTo([]*G.Node{wrong}, g); err == nil {
		t.Error("cloneWithInputTo: expected error on feature mismatch")
	}
}

func TestTreeMLP(t *testing.T) {
	g := G.NewGraph()
	net, err := NewTreeMLP(3, 1, 2, g, "policy", []int{4}, []bool{true},
		ReLUs(1), [][]int{{}, {}}, [][]bool{{}, {}},
		[][]*Activation{{}, {}}, G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	if net.Leaves() != 2 {
		t.Errorf("leaves: expected 2, got %v", net.Leaves())
	}
	// root weights and bias, plus weights and bias per leaf
	if len(net.Learnables()) != 6 {
		t.Errorf("learnables: expected 6, got %v", len(net.Learnables()))
	}

	out := forward(t, net, []float64{1, 2, 3})
	if len(out) != 2 || len(out[0]) != 2 || len(out[1]) != 2 {
		t.Errorf("output: unexpected output shape %v", out)
	}

	clone, err := net.CloneWithBatch(1)
	if err != nil {
		t.Fatal(err)
	}
	cloneOut := forward(t, clone, []float64{1, 2, 3})
	for i := range out {
		if !floats.EqualApprox(out[i], cloneOut[i], 1e-12) {
			t.Errorf("cloneWithBatch: leaf %v expected %v, got %v", i,
				out[i], cloneOut[i])
		}
	}
}

func TestActivationJSON(t *testing.T) {
	acts := []*Activation{ReLU(), TanH(), Identity()}
	data, err := json.Marshal(acts)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["relu","tanh","identity"]` {
		t.Errorf("marshalJSON: unexpected encoding %s", data)
	}

	var decoded []*Activation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for i := range acts {
		if decoded[i].String() != acts[i].String() {
			t.Errorf("unmarshalJSON: expected %v, got %v", acts[i],
				decoded[i])
		}
	}

	var bad Activation
	if err := json.Unmarshal([]byte(`"sigmoid"`), &bad); err == nil {
		t.Error("unmarshalJSON: expected error for unknown activation")
	}
}

func TestSingleHeadMLP(t *testing.T) {
	g := G.NewGraph()
	state := newInput(g, "state", 4, 3)
	action := newInput(g, "action", 4, 2)
	net, err := NewSingleHeadMLP([]*G.Node{state, action}, g, "q",
		[]int{6}, G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	if net.Features() != 5 || net.Outputs() != 1 || net.BatchSize() != 4 {
		t.Errorf("newSingleHeadMLP: unexpected shape: features %v, "+
			"outputs %v, batch %v", net.Features(), net.Outputs(),
			net.BatchSize())
	}
	if got := len(net.Learnables()); got != 4 {
		t.Errorf("newSingleHeadMLP: expected 4 learnables, got %v", got)
	}
}
