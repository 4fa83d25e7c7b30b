// Package wrappers implements wrappers which change how agents see
// and act in environments
package wrappers

import (
	"fmt"

	env "github.com/hisaki/rlrl/environment"
	ts "github.com/hisaki/rlrl/timestep"
	"github.com/hisaki/rlrl/utils/floatutils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalizeActionSpace wraps a continuous-action environment so that
// agents act in [-1, 1] in each action dimension. Actions are clipped
// to [-1, 1] and then affinely rescaled to the bounds of the wrapped
// environment:
//
//	a_env = low + (a + 1) * (high - low) / 2
type NormalizeActionSpace struct {
	env.Environment

	low, high []float64
}

// NewNormalizeActionSpace returns a new NormalizeActionSpace wrapping e
func NewNormalizeActionSpace(e env.Environment) (*NormalizeActionSpace,
	error) {
	spec := e.ActionSpec()
	if spec.Cardinality != env.Continuous {
		return nil, fmt.Errorf("newNormalizeActionSpace: actions must be " +
			"continuous")
	}

	low := mat.VecDenseCopyOf(spec.LowerBound).RawVector().Data
	high := mat.VecDenseCopyOf(spec.UpperBound).RawVector().Data
	for i := range low {
		if floats.HasNaN([]float64{low[i], high[i]}) || high[i] <= low[i] {
			return nil, fmt.Errorf("newNormalizeActionSpace: illegal "+
				"action bounds [%v, %v] at dimension %v", low[i], high[i], i)
		}
	}

	return &NormalizeActionSpace{
		Environment: e,
		low:         low,
		high:        high,
	}, nil
}

// Step rescales the action to the wrapped environment's action bounds
// and takes one step in the wrapped environment
func (n *NormalizeActionSpace) Step(action *mat.VecDense) (ts.TimeStep,
	bool, error) {
	if action.Len() != len(n.low) {
		return ts.TimeStep{}, true, fmt.Errorf("step: expected action "+
			"with %v dimensions, got %v", len(n.low), action.Len())
	}

	return n.Environment.Step(n.Rescale(action))
}

// Rescale returns the action of the wrapped environment corresponding
// to the normalized action
func (n *NormalizeActionSpace) Rescale(action *mat.VecDense) *mat.VecDense {
	scaled := mat.NewVecDense(action.Len(), nil)
	for i := 0; i < action.Len(); i++ {
		a := floatutils.Clip(action.AtVec(i), -1, 1)
		scaled.SetVec(i, n.low[i]+(a+1.0)*(n.high[i]-n.low[i])/2.0)
	}
	return scaled
}

// ActionSpec returns the normalized action specification
func (n *NormalizeActionSpace) ActionSpec() env.Spec {
	return env.NewNormalizedActionSpec(len(n.low))
}

// Close closes the wrapped environment
func (n *NormalizeActionSpace) Close() error {
	return env.Close(n.Environment)
}
