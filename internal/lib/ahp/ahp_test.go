package ahp

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/network"
)

func TestDeriveWeights_DefaultMatrix(t *testing.T) {
	weights, err := DeriveWeights(DefaultMatrix())
	require.NoError(t, err)
	require.Len(t, weights, 9)

	want := []float64{0.33559, 0.19464, 0.08910, 0.08910, 0.08910, 0.03441, 0.03441, 0.09449, 0.03915}
	for i := range want {
		assert.InDelta(t, want[i], weights[i], 1e-5, "criterion %s", Criteria[i])
	}

	sum := 0.0
	for i, w := range weights {
		sum += w
		if i > 0 {
			assert.Greater(t, weights[0], w, "damage should outweigh %s", Criteria[i])
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDeriveWeights_RandomReciprocalMatrices(t *testing.T) {
	scale := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	rng := rand.New(rand.NewSource(5))

	for k := 0; k < 100; k++ {
		n := 1 + rng.Intn(10)
		m := make(Matrix, n)
		for i := range m {
			m[i] = make([]float64, n)
			m[i][i] = 1
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v := scale[rng.Intn(len(scale))]
				if rng.Intn(2) == 0 {
					v = 1 / v
				}
				m[i][j], m[j][i] = v, 1/v
			}
		}

		weights, err := DeriveWeights(m)
		require.NoError(t, err)
		sum := 0.0
		for _, w := range weights {
			assert.Greater(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestDeriveWeights_ConsistentMatrix(t *testing.T) {
	m := Matrix{
		{1, 2, 4},
		{0.5, 1, 2},
		{0.25, 0.5, 1},
	}
	weights, err := DeriveWeights(m)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/7, weights[0], 1e-12)
	assert.InDelta(t, 2.0/7, weights[1], 1e-12)
	assert.InDelta(t, 1.0/7, weights[2], 1e-12)

	c, err := ConsistencyRatio(m)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, c.LambdaMax, 1e-9)
	assert.InDelta(t, 0.0, c.Ratio, 1e-9)
}

func TestMatrix_Validate(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix
		err  error
	}{
		{"empty", Matrix{}, ErrNotSquare},
		{"ragged", Matrix{{1, 2}, {0.5}}, ErrNotSquare},
		{"zero entry", Matrix{{1, 0}, {0, 1}}, ErrNotPositive},
		{"negative entry", Matrix{{1, -2}, {-0.5, 1}}, ErrNotPositive},
		{"not reciprocal", Matrix{{1, 3}, {0.5, 1}}, ErrNotReciprocal},
		{"diagonal not one", Matrix{{2, 1}, {1, 1}}, ErrNotReciprocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.m.Validate(), tt.err)
			_, err := DeriveWeights(tt.m)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, Matrix{{1}}.Validate())
	assert.NoError(t, DefaultMatrix().Validate())
}

func TestConsistencyRatio_DefaultMatrix(t *testing.T) {
	c, err := ConsistencyRatio(DefaultMatrix())
	require.NoError(t, err)
	assert.InDelta(t, 9.25683, c.LambdaMax, 1e-5)
	assert.InDelta(t, 0.032104, c.Index, 1e-6)
	assert.InDelta(t, 0.022141, c.Ratio, 1e-6)
}

func TestNewModel(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		model, err := DefaultModel()
		require.NoError(t, err)
		assert.InDelta(t, 0.022141, model.Consistency().Ratio, 1e-6)
		assert.InDelta(t, 0.33559, model.WeightOf(Damage), 1e-5)
		assert.Equal(t, 0.0, model.WeightOf("unknown"))
	})

	t.Run("rejects inconsistent judgments", func(t *testing.T) {
		m := DefaultMatrix()
		// drainage suddenly dominates damage and confidence
		m[0][8], m[8][0] = 1.0/9, 9
		m[1][8], m[8][1] = 1.0/9, 9

		c, err := ConsistencyRatio(m)
		require.NoError(t, err)
		assert.InDelta(t, 0.4304, c.Ratio, 1e-4)

		_, err = NewModel(m, 0)
		assert.ErrorIs(t, err, ErrInconsistent)

		// an explicit looser limit lets it through
		_, err = NewModel(m, 0.5)
		assert.NoError(t, err)
	})

	t.Run("rejects wrong size", func(t *testing.T) {
		_, err := NewModel(Matrix{{1, 2, 4}, {0.5, 1, 2}, {0.25, 0.5, 1}}, 0)
		assert.ErrorIs(t, err, ErrCriteriaCount)
	})

	t.Run("rejects non reciprocal", func(t *testing.T) {
		m := DefaultMatrix()
		m[2][3] = 7
		_, err := NewModel(m, 0)
		assert.ErrorIs(t, err, ErrNotReciprocal)
	})

	t.Run("copies its matrix", func(t *testing.T) {
		m := DefaultMatrix()
		model, err := NewModel(m, 0)
		require.NoError(t, err)
		m[0][1] = 100
		assert.Equal(t, 3.0, model.matrix[0][1])

		w := model.Weights()
		w[0] = 0
		assert.InDelta(t, 0.33559, model.Weights()[0], 1e-5)
	})
}

func TestNormalize(t *testing.T) {
	s := Normalize(network.Attributes{
		DamageSeverity: "D40",
		Confidence:     0.8,
		PavementType:   "asphalt",
		AgeYears:       25,
		TrafficVolume:  "medium",
		Drainage:       "fair",
	})
	assert.Equal(t, CriterionScores{
		Damage:     0.4,
		Confidence: 0.8,
		Pavement:   1.0,
		Repair:     0,
		Age:        0.5,
		WaterPipe:  0,
		GasPipe:    0,
		Traffic:    0.5,
		Drainage:   0.5,
	}, s)

	t.Run("dataset labels", func(t *testing.T) {
		s := Normalize(network.Attributes{PavementType: "コンクリート", TrafficVolume: "多", Drainage: "不良"})
		assert.Equal(t, 0.8, s.Pavement)
		assert.Equal(t, 1.0, s.Traffic)
		assert.Equal(t, 0.0, s.Drainage)
	})

	t.Run("unmapped categories", func(t *testing.T) {
		s := Normalize(network.Attributes{DamageSeverity: "X99", PavementType: "gravel", TrafficVolume: "?", Drainage: "unknown"})
		assert.Equal(t, 0.0, s.Damage)
		assert.Equal(t, UnknownPavementScore, s.Pavement)
		assert.Equal(t, UnknownTrafficScore, s.Traffic)
		assert.Equal(t, UnknownDrainageScore, s.Drainage)
	})

	t.Run("caps", func(t *testing.T) {
		s := Normalize(network.Attributes{RepairYears: 45, AgeYears: 80, WaterPipeYears: 1, GasPipeYears: 250})
		assert.Equal(t, 1.0, s.Repair)
		assert.Equal(t, 1.0, s.Age)
		assert.InDelta(t, 0.51, s.WaterPipe, 1e-12)
		assert.Equal(t, 1.0, s.GasPipe)
	})

	assert.Equal(t, 0.44, DamageSeverity(" d44 "))
}

func TestScoreAttributes_RegressionFixture(t *testing.T) {
	model, err := DefaultModel()
	require.NoError(t, err)

	attrs := network.Attributes{
		DamageSeverity: "D40",
		Confidence:     0.8,
		PavementType:   "asphalt",
		AgeYears:       25,
		TrafficVolume:  "medium",
		Drainage:       "fair",
	}
	assert.Equal(t, 0.490, model.ScoreAttributes(attrs))

	attrs.RepairYears = 15
	assert.Equal(t, 0.535, model.ScoreAttributes(attrs))
}

func TestScoreAttributes_Bounds(t *testing.T) {
	model, err := DefaultModel()
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	codes := []string{"D50", "D40", "D20", "D43", "D44", "D10", "S00", "D00", ""}
	pavements := []string{"asphalt", "concrete", "other", "dirt"}
	levels := []string{"low", "medium", "high", "good", "fair", "poor", ""}

	for i := 0; i < 500; i++ {
		score := model.ScoreAttributes(network.Attributes{
			DamageSeverity: codes[rng.Intn(len(codes))],
			Confidence:     rng.Float64(),
			PavementType:   pavements[rng.Intn(len(pavements))],
			RepairYears:    rng.Float64() * 60,
			AgeYears:       rng.Float64() * 100,
			WaterPipeYears: rng.Float64() * 200,
			GasPipeYears:   rng.Float64() * 200,
			TrafficVolume:  levels[rng.Intn(len(levels))],
			Drainage:       levels[rng.Intn(len(levels))],
		})
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		assert.Equal(t, score, math.Round(score*1000)/1000)
	}
}

func TestScoreAll_BunkyoNetwork(t *testing.T) {
	model, err := DefaultModel()
	require.NoError(t, err)
	n, err := network.LoadGeoJSON(bytes.NewReader(dataset.BunkyoRoads))
	require.NoError(t, err)

	scores := model.ScoreAll(n.Roads())
	require.Len(t, scores.Ordered, 10)
	require.Len(t, scores.ByID, 10)

	want := map[string]float64{
		"bunkyo-001": 0.619,
		"bunkyo-002": 0.540,
		"bunkyo-003": 0.598,
		"bunkyo-004": 0.427,
		"bunkyo-005": 0.686,
		"bunkyo-006": 0.324,
		"bunkyo-007": 0.368,
		"bunkyo-008": 0.627,
		"bunkyo-009": 0.439,
		"bunkyo-010": 0.573,
	}
	assert.Equal(t, want, scores.ByID)

	for i, s := range scores.Ordered {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, n.Roads()[i].ID, s.RoadID)
		assert.Equal(t, scores.ByID[s.RoadID], s.Score)
	}

	counts := DefaultBands().Count(scores.Ordered)
	assert.Equal(t, BandCounts{Severe: 0, Moderate: 6, Minor: 4, None: 0, Total: 10}, counts)
}

func TestBands(t *testing.T) {
	b := DefaultBands()
	require.NoError(t, b.Validate())

	assert.Equal(t, BandSevere, b.Classify(0.7))
	assert.Equal(t, BandModerate, b.Classify(0.699))
	assert.Equal(t, BandModerate, b.Classify(0.5))
	assert.Equal(t, BandMinor, b.Classify(0.2))
	assert.Equal(t, BandNone, b.Classify(0.199))

	assert.Error(t, Bands{Severe: 0.3, Moderate: 0.5, Minor: 0.2}.Validate())
}
