package ahp

import (
	"math"
	"strings"

	"github.com/roadwatch/server/internal/lib/network"
)

// Fallbacks for categories missing from the lookup tables
const (
	UnknownPavementScore = 0.1
	UnknownTrafficScore  = 0.5
	UnknownDrainageScore = 0.5
)

// damage class codes to severities in [0, 0.5]; other codes score 0
var damageSeverity = map[string]float64{
	"D50": 0.5,
	"D40": 0.4,
	"D20": 0.2,
	"D43": 0.43,
	"D44": 0.44,
	"D10": 0.2,
	"S00": 0.0,
}

// Category tables accept the English label and the label of the source
// dataset.
var (
	pavementScores = map[string]float64{
		"asphalt":  1.0,
		"アスファルト":   1.0,
		"concrete": 0.8,
		"コンクリート":   0.8,
		"other":    0.5,
		"その他":      0.5,
	}
	trafficScores = map[string]float64{
		"low":    0.2,
		"少":      0.2,
		"medium": 0.5,
		"中":      0.5,
		"high":   1.0,
		"多":      1.0,
	}
	drainageScores = map[string]float64{
		"good": 1.0,
		"良":    1.0,
		"fair": 0.5,
		"普通":   0.5,
		"poor": 0.0,
		"不良":   0.0,
	}
)

// CriterionScores are the per-criterion inputs of the weighted sum
type CriterionScores struct {
	Damage     float64 `json:"damage"`
	Confidence float64 `json:"confidence"`
	Pavement   float64 `json:"pavement"`
	Repair     float64 `json:"repair"`
	Age        float64 `json:"age"`
	WaterPipe  float64 `json:"waterPipe"`
	GasPipe    float64 `json:"gasPipe"`
	Traffic    float64 `json:"traffic"`
	Drainage   float64 `json:"drainage"`
}

// Values returns the scores in Criteria order
func (s CriterionScores) Values() []float64 {
	return []float64{s.Damage, s.Confidence, s.Pavement, s.Repair, s.Age, s.WaterPipe, s.GasPipe, s.Traffic, s.Drainage}
}

// Normalize maps raw road attributes to criterion scores. Unknown categories
// fall back to fixed defaults instead of failing.
func Normalize(a network.Attributes) CriterionScores {
	return CriterionScores{
		Damage:     damageSeverity[strings.ToUpper(strings.TrimSpace(a.DamageSeverity))],
		Confidence: a.Confidence,
		Pavement:   lookup(pavementScores, a.PavementType, UnknownPavementScore),
		Repair:     math.Min(a.RepairYears/30, 1),
		Age:        math.Min(a.AgeYears/50, 1),
		WaterPipe:  pipeScore(a.WaterPipeYears),
		GasPipe:    pipeScore(a.GasPipeYears),
		Traffic:    lookup(trafficScores, a.TrafficVolume, UnknownTrafficScore),
		Drainage:   lookup(drainageScores, a.Drainage, UnknownDrainageScore),
	}
}

// DamageSeverity returns the severity of a damage class code
func DamageSeverity(code string) float64 {
	return damageSeverity[strings.ToUpper(strings.TrimSpace(code))]
}

// pipeScore: any recorded pipe work floors the score at 0.5
func pipeScore(years float64) float64 {
	if years <= 0 {
		return 0
	}
	return 0.5 + math.Min(years/100, 0.5)
}

func lookup(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return fallback
}
