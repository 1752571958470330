package ahp

import (
	"math"

	"github.com/roadwatch/server/internal/lib/network"
)

// RoadScore is the priority of one road
type RoadScore struct {
	Index  int     `json:"index"`
	RoadID string  `json:"road_id"`
	Score  float64 `json:"score"`
}

// Scores holds the priorities of a whole network
type Scores struct {
	ByID    map[string]float64 `json:"by_id"`
	Ordered []RoadScore        `json:"ordered"` // network order
}

// Round3 rounds to three decimal places
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ScoreAttributes is the weighted sum of the normalized attributes, rounded
// to three decimals
func (m *Model) ScoreAttributes(a network.Attributes) float64 {
	return Round3(m.weightedSum(Normalize(a)))
}

// ScoreRoad scores one road
func (m *Model) ScoreRoad(road *network.RoadSegment) float64 {
	return m.ScoreAttributes(road.Attributes)
}

// ScoreAll scores every road keyed by identifier, keeping network order in
// Ordered for positional callers
func (m *Model) ScoreAll(roads []*network.RoadSegment) Scores {
	scores := Scores{
		ByID:    make(map[string]float64, len(roads)),
		Ordered: make([]RoadScore, 0, len(roads)),
	}
	for i, road := range roads {
		s := m.ScoreRoad(road)
		scores.ByID[road.ID] = s
		scores.Ordered = append(scores.Ordered, RoadScore{Index: i, RoadID: road.ID, Score: s})
	}
	return scores
}

func (m *Model) weightedSum(s CriterionScores) float64 {
	total := 0.0
	for i, v := range s.Values() {
		total += m.weights[i] * v
	}
	return total
}
