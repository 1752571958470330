package grouping

import "time"

// DamageBand names the severity band of an observation damage score
type DamageBand string

const (
	BandNone     DamageBand = "none"
	BandMinor    DamageBand = "minor"
	BandModerate DamageBand = "moderate"
	BandSevere   DamageBand = "severe"
)

// BandOf classifies a damage score: none <= 0 < minor <= 2 < moderate <= 4 < severe
func BandOf(score float64) DamageBand {
	switch {
	case score <= 0:
		return BandNone
	case score <= 2:
		return BandMinor
	case score <= 4:
		return BandModerate
	default:
		return BandSevere
	}
}

// Statistics counts observations per damage band
type Statistics struct {
	NoDamage         int       `json:"no_damage"`
	MinorDamage      int       `json:"minor_damage"`
	ModerateDamage   int       `json:"moderate_damage"`
	SevereDamage     int       `json:"severe_damage"`
	TotalAssessments int       `json:"total_assessments"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Add counts one more damage score
func (s *Statistics) Add(score float64) {
	s.TotalAssessments++
	switch BandOf(score) {
	case BandNone:
		s.NoDamage++
	case BandMinor:
		s.MinorDamage++
	case BandModerate:
		s.ModerateDamage++
	case BandSevere:
		s.SevereDamage++
	}
}

// Merge adds the counts of other. LastUpdated keeps the later of both.
func (s *Statistics) Merge(other Statistics) {
	s.NoDamage += other.NoDamage
	s.MinorDamage += other.MinorDamage
	s.ModerateDamage += other.ModerateDamage
	s.SevereDamage += other.SevereDamage
	s.TotalAssessments += other.TotalAssessments
	if other.LastUpdated.After(s.LastUpdated) {
		s.LastUpdated = other.LastUpdated
	}
}

// DamageStatistics counts the observations of a batch
func DamageStatistics(observations []Observation, now time.Time) Statistics {
	stats := Statistics{LastUpdated: now}
	for _, obs := range observations {
		stats.Add(obs.DamageScore)
	}
	return stats
}
