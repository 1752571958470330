package ahp

import (
	"errors"
	"fmt"
)

// DefaultConsistencyLimit is the largest consistency ratio a model accepts
const DefaultConsistencyLimit = 0.1

// ErrCriteriaCount is returned for a matrix that does not cover every criterion
var ErrCriteriaCount = errors.New("comparison matrix does not match the criteria")

// Criterion identifies one input of the priority score
type Criterion string

// Criteria in matrix order
const (
	Damage     Criterion = "damage"
	Confidence Criterion = "confidence"
	Pavement   Criterion = "pavement"
	Repair     Criterion = "repair"
	Age        Criterion = "age"
	WaterPipe  Criterion = "waterPipe"
	GasPipe    Criterion = "gasPipe"
	Traffic    Criterion = "traffic"
	Drainage   Criterion = "drainage"
)

// Criteria lists every criterion in matrix row order
var Criteria = []Criterion{Damage, Confidence, Pavement, Repair, Age, WaterPipe, GasPipe, Traffic, Drainage}

// DefaultMatrix returns the reference judgments on the 1-9 scale. Damage
// severity dominates; pipe recency and drainage matter least.
func DefaultMatrix() Matrix {
	return Matrix{
		{1, 3, 5, 5, 5, 7, 7, 3, 5},
		{1.0 / 3, 1, 3, 3, 3, 5, 5, 3, 3},
		{1.0 / 5, 1.0 / 3, 1, 1, 1, 3, 3, 1, 3},
		{1.0 / 5, 1.0 / 3, 1, 1, 1, 3, 3, 1, 3},
		{1.0 / 5, 1.0 / 3, 1, 1, 1, 3, 3, 1, 3},
		{1.0 / 7, 1.0 / 5, 1.0 / 3, 1.0 / 3, 1.0 / 3, 1, 1, 1.0 / 3, 1},
		{1.0 / 7, 1.0 / 5, 1.0 / 3, 1.0 / 3, 1.0 / 3, 1, 1, 1.0 / 3, 1},
		{1.0 / 3, 1.0 / 3, 1, 1, 1, 3, 3, 1, 3},
		{1.0 / 5, 1.0 / 3, 1.0 / 3, 1.0 / 3, 1.0 / 3, 1, 1, 1.0 / 3, 1},
	}
}

// Model holds the weights derived from a validated comparison matrix. A
// Model is immutable and safe to share.
type Model struct {
	matrix      Matrix
	weights     []float64
	consistency Consistency
}

// NewModel validates matrix, derives its weights and rejects it when the
// consistency ratio exceeds limit. A non-positive limit means
// DefaultConsistencyLimit.
func NewModel(matrix Matrix, limit float64) (*Model, error) {
	if limit <= 0 {
		limit = DefaultConsistencyLimit
	}
	if len(matrix) != len(Criteria) {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrCriteriaCount, len(matrix), len(Criteria))
	}

	weights, err := DeriveWeights(matrix)
	if err != nil {
		return nil, err
	}
	consistency, err := ConsistencyRatio(matrix)
	if err != nil {
		return nil, err
	}
	if consistency.Ratio > limit {
		return nil, fmt.Errorf("%w: CR %.4f exceeds %.4f", ErrInconsistent, consistency.Ratio, limit)
	}

	m := make(Matrix, len(matrix))
	for i, row := range matrix {
		m[i] = append([]float64(nil), row...)
	}
	return &Model{matrix: m, weights: weights, consistency: consistency}, nil
}

// DefaultModel builds the model of DefaultMatrix
func DefaultModel() (*Model, error) {
	return NewModel(DefaultMatrix(), DefaultConsistencyLimit)
}

// Weights returns a copy of the weights in Criteria order
func (m *Model) Weights() []float64 {
	return append([]float64(nil), m.weights...)
}

// WeightOf returns the weight of one criterion
func (m *Model) WeightOf(c Criterion) float64 {
	for i, name := range Criteria {
		if name == c {
			return m.weights[i]
		}
	}
	return 0
}

// Consistency returns the consistency measures of the matrix
func (m *Model) Consistency() Consistency {
	return m.consistency
}
