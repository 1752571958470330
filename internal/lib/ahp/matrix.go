package ahp

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotSquare     = errors.New("comparison matrix must be square and non-empty")
	ErrNotPositive   = errors.New("comparison matrix entries must be strictly positive")
	ErrNotReciprocal = errors.New("comparison matrix must be reciprocal")
	ErrInconsistent  = errors.New("comparison matrix is inconsistent")
)

// ReciprocalTolerance is the relative tolerance of m[i][j]*m[j][i] == 1
const ReciprocalTolerance = 1e-6

// Saaty's random consistency index by matrix size
var randomIndex = []float64{0, 0, 0, 0.58, 0.90, 1.12, 1.24, 1.32, 1.41, 1.45, 1.49, 1.51, 1.48, 1.56, 1.57, 1.59}

// RandomIndex returns Saaty's random index for an n×n matrix. Sizes beyond
// the table use its last entry.
func RandomIndex(n int) float64 {
	if n < 0 {
		return 0
	}
	if n >= len(randomIndex) {
		return randomIndex[len(randomIndex)-1]
	}
	return randomIndex[n]
}

// Matrix is a pairwise comparison matrix: m[i][j] is how much more important
// criterion i is than criterion j
type Matrix [][]float64

// Size returns the number of criteria
func (m Matrix) Size() int {
	return len(m)
}

// Validate checks that m is square, strictly positive and reciprocal
func (m Matrix) Validate() error {
	n := len(m)
	if n == 0 {
		return ErrNotSquare
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrNotSquare, i, len(row), n)
		}
		for j, v := range row {
			if !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: [%d][%d] = %v", ErrNotPositive, i, j, v)
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(m[i][j]*m[j][i]-1) > ReciprocalTolerance {
				return fmt.Errorf("%w: [%d][%d]·[%d][%d] = %v", ErrNotReciprocal, i, j, j, i, m[i][j]*m[j][i])
			}
		}
	}
	return nil
}

// DeriveWeights normalizes each column by its sum and averages the rows of
// the result. The weights of a valid matrix are positive and sum to 1.
func DeriveWeights(m Matrix) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	n := len(m)
	columnSums := make([]float64, n)
	for _, row := range m {
		for j, v := range row {
			columnSums[j] += v
		}
	}

	weights := make([]float64, n)
	for i, row := range m {
		sum := 0.0
		for j, v := range row {
			sum += v / columnSums[j]
		}
		weights[i] = sum / float64(n)
	}
	return weights, nil
}

// Consistency describes how coherent a comparison matrix is
type Consistency struct {
	LambdaMax float64 `json:"lambda_max"`
	Index     float64 `json:"consistency_index"` // CI = (λmax - n) / (n - 1)
	Ratio     float64 `json:"consistency_ratio"` // CR = CI / RI
}

// ConsistencyRatio estimates λmax as the mean of (Aw)_i / w_i for the derived
// weights. Matrices of size 1 and 2 are always consistent.
func ConsistencyRatio(m Matrix) (Consistency, error) {
	weights, err := DeriveWeights(m)
	if err != nil {
		return Consistency{}, err
	}

	n := len(m)
	if n <= 2 {
		return Consistency{LambdaMax: float64(n)}, nil
	}

	lambda := 0.0
	for i, row := range m {
		aw := 0.0
		for j, v := range row {
			aw += v * weights[j]
		}
		lambda += aw / weights[i]
	}
	lambda /= float64(n)

	ci := (lambda - float64(n)) / float64(n-1)
	return Consistency{
		LambdaMax: lambda,
		Index:     ci,
		Ratio:     ci / RandomIndex(n),
	}, nil
}
