package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("shape length %v must match lower bounds length %v",
			shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("shape length %v must match upper bounds length %v",
			shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// Dims returns the number of dimensions described by the Spec
func (s Spec) Dims() int {
	return s.Shape.Len()
}

// IsNormalized returns whether every dimension described by the Spec
// is bounded by [-1, 1]
func (s Spec) IsNormalized() bool {
	for i := 0; i < s.LowerBound.Len(); i++ {
		if s.LowerBound.AtVec(i) != -1 || s.UpperBound.AtVec(i) != 1 {
			return false
		}
	}
	return true
}

// NewNormalizedActionSpec returns a continuous action Spec with each of
// the dims dimensions bounded by [-1, 1]
func NewNormalizedActionSpec(dims int) Spec {
	low := make([]float64, dims)
	high := make([]float64, dims)
	for i := range low {
		low[i] = -1
		high[i] = 1
	}

	return NewSpec(mat.NewVecDense(dims, nil), Action,
		mat.NewVecDense(dims, low), mat.NewVecDense(dims, high), Continuous)
}
