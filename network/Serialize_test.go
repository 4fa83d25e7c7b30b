package network

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestSaveLoad(t *testing.T) {
	first := newTestMLP(t, G.NewGraph(), "first", 1)
	second := newTestMLP(t, G.NewGraph(), "second", 1)
	input := []float64{0.2, 0.4, -0.6}

	filename := filepath.Join(t.TempDir(), "weights.bin")
	if err := Save(filename, first, second); err != nil {
		t.Fatal(err)
	}

	loadedFirst := newTestMLP(t, G.NewGraph(), "first", 1)
	loadedSecond := newTestMLP(t, G.NewGraph(), "second", 1)
	if err := Load(filename, loadedFirst, loadedSecond); err != nil {
		t.Fatal(err)
	}

	pairs := [][2]NeuralNet{{first, loadedFirst}, {second, loadedSecond}}
	for _, pair := range pairs {
		want := forward(t, pair[0], input)[0]
		got := forward(t, pair[1], input)[0]
		if !floats.EqualApprox(want, got, 1e-12) {
			t.Errorf("load: network %v: expected output %v, got %v",
				pair[0].Prefix(), want, got)
		}
	}

	if err := Load(filename, loadedFirst); err == nil {
		t.Error("load: expected error on network count mismatch")
	}
}

func TestScalar(t *testing.T) {
	if v := Scalar(G.NewF64(2.5)); v != 2.5 {
		t.Errorf("scalar: expected 2.5, got %v", v)
	}

	single := tensor.New(tensor.WithBacking([]float64{-1}),
		tensor.WithShape(1))
	if v := Scalar(single); v != -1 {
		t.Errorf("scalar: expected -1, got %v", v)
	}
}
