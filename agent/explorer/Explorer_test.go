package explorer

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestGaussianClips(t *testing.T) {
	g, err := NewGaussian(10, -1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	greedy := mat.NewVecDense(3, []float64{0.9, -0.9, 0})
	for i := 0; i < 1000; i++ {
		action := g.SelectAction(greedy)
		for j := 0; j < action.Len(); j++ {
			if a := action.AtVec(j); a < -1 || a > 1 {
				t.Fatalf("selectAction: action %v outside [-1, 1]", a)
			}
		}
	}

	if greedy.AtVec(0) != 0.9 {
		t.Error("selectAction: greedy action was modified")
	}
}

func TestGaussianNoise(t *testing.T) {
	g, err := NewGaussian(0.1, -100, 100, 2)
	if err != nil {
		t.Fatal(err)
	}

	greedy := mat.NewVecDense(1, []float64{0.5})
	samples := make([]float64, 10000)
	for i := range samples {
		samples[i] = g.SelectAction(greedy).AtVec(0)
	}

	mean, std := stat.MeanStdDev(samples, nil)
	if mean < 0.49 || mean > 0.51 {
		t.Errorf("selectAction: expected mean near 0.5, got %v", mean)
	}
	if std < 0.09 || std > 0.11 {
		t.Errorf("selectAction: expected standard deviation near 0.1, "+
			"got %v", std)
	}
}

func TestNewGaussianErrors(t *testing.T) {
	if _, err := NewGaussian(-1, -1, 1, 0); err == nil {
		t.Error("newGaussian: expected error on negative scale")
	}
	if _, err := NewGaussian(1, 1, -1, 0); err == nil {
		t.Error("newGaussian: expected error on empty interval")
	}
}

func TestGreedy(t *testing.T) {
	greedy := mat.NewVecDense(2, []float64{0.3, -0.2})
	if !mat.Equal(Greedy{}.SelectAction(greedy), greedy) {
		t.Error("selectAction: greedy explorer changed the action")
	}
}

func TestNew(t *testing.T) {
	e, err := New(TypeGaussian, 0.5, -1, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := e.(*Gaussian); !ok || g.Scale != 0.5 {
		t.Errorf("new: expected Gaussian explorer with scale 0.5, got %v", e)
	}

	e, err = New(TypeGreedy, 0.5, -1, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(Greedy); !ok {
		t.Errorf("new: expected Greedy explorer, got %T", e)
	}

	if _, err := New("Boltzmann", 1, -1, 1, 0); err == nil {
		t.Error("new: expected error on unknown explorer type")
	}
	if _, err := New(TypeGaussian, -1, -1, 1, 0); err == nil {
		t.Error("new: expected error on negative scale")
	}
}
