package ahp

import "fmt"

// Band is a priority class of an AHP score
type Band string

const (
	BandSevere   Band = "severe"
	BandModerate Band = "moderate"
	BandMinor    Band = "minor"
	BandNone     Band = "none"
)

// Bands are the lower bounds of each priority class
type Bands struct {
	Severe   float64 `yaml:"severe" json:"severe"`
	Moderate float64 `yaml:"moderate" json:"moderate"`
	Minor    float64 `yaml:"minor" json:"minor"`
}

// DefaultBands returns the dashboard thresholds
func DefaultBands() Bands {
	return Bands{Severe: 0.7, Moderate: 0.5, Minor: 0.2}
}

// Validate checks the bounds are ordered inside [0,1]
func (b Bands) Validate() error {
	if !(0 <= b.Minor && b.Minor <= b.Moderate && b.Moderate <= b.Severe && b.Severe <= 1) {
		return fmt.Errorf("AHP bands must satisfy 0 <= minor <= moderate <= severe <= 1, got %+v", b)
	}
	return nil
}

// Classify returns the band of score
func (b Bands) Classify(score float64) Band {
	switch {
	case score >= b.Severe:
		return BandSevere
	case score >= b.Moderate:
		return BandModerate
	case score >= b.Minor:
		return BandMinor
	default:
		return BandNone
	}
}

// BandCounts is the number of roads per priority class
type BandCounts struct {
	Severe   int `json:"severe"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
	None     int `json:"none"`
	Total    int `json:"total"`
}

// Count tallies scores by band
func (b Bands) Count(scores []RoadScore) BandCounts {
	var c BandCounts
	for _, s := range scores {
		c.Total++
		switch b.Classify(s.Score) {
		case BandSevere:
			c.Severe++
		case BandModerate:
			c.Moderate++
		case BandMinor:
			c.Minor++
		default:
			c.None++
		}
	}
	return c
}
