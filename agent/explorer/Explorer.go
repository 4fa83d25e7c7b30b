// Package explorer implements exploration strategies which perturb the
// greedy actions of deterministic policies
package explorer

import (
	"fmt"

	"github.com/hisaki/rlrl/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Explorer selects an exploratory action given a greedy action
type Explorer interface {
	SelectAction(greedy *mat.VecDense) *mat.VecDense
}

// Type names an exploration strategy so that it can be selected in
// configuration files
type Type string

const (
	TypeGaussian Type = "Gaussian"
	TypeGreedy   Type = "Greedy"
)

// New returns a new Explorer of type t. Gaussian explorers add noise
// with standard deviation scale and clip actions to [low, high].
func New(t Type, scale, low, high float64, seed uint64) (Explorer, error) {
	switch t {
	case TypeGaussian:
		return NewGaussian(scale, low, high, seed)
	case TypeGreedy:
		return Greedy{}, nil
	}
	return nil, fmt.Errorf("new: no such explorer %q", t)
}

// Gaussian adds independent Gaussian noise with standard deviation
// Scale to each dimension of the greedy action, then clips the result
// to [Low, High].
type Gaussian struct {
	Scale float64
	Low   float64
	High  float64

	normal distuv.Normal
}

// NewGaussian returns a new Gaussian explorer
func NewGaussian(scale, low, high float64, seed uint64) (*Gaussian, error) {
	if scale < 0 {
		return nil, fmt.Errorf("newGaussian: scale must be non-negative")
	}
	if low > high {
		return nil, fmt.Errorf("newGaussian: low %v > high %v", low, high)
	}

	return &Gaussian{
		Scale: scale,
		Low:   low,
		High:  high,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}, nil
}

// SelectAction returns a noisy copy of the greedy action
func (g *Gaussian) SelectAction(greedy *mat.VecDense) *mat.VecDense {
	action := mat.NewVecDense(greedy.Len(), nil)
	for i := 0; i < greedy.Len(); i++ {
		noisy := greedy.AtVec(i) + g.Scale*g.normal.Rand()
		action.SetVec(i, floatutils.Clip(noisy, g.Low, g.High))
	}
	return action
}

// Greedy does not explore
type Greedy struct{}

// SelectAction returns the greedy action unchanged
func (Greedy) SelectAction(greedy *mat.VecDense) *mat.VecDense {
	return greedy
}
