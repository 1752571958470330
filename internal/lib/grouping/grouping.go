package grouping

import (
	"sort"
	"time"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/network"
	"github.com/roadwatch/server/internal/lib/snapping"
)

// Observation is one geotagged damage measurement
type Observation struct {
	ID          string         `json:"id"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	DamageScore float64        `json:"damage_score"`
	DamageClass string         `json:"damage_class,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"` // detector confidence in [0,1]
	Timestamp   time.Time      `json:"timestamp"`
}

// ConfidenceOrZero returns the detector confidence, 0 when absent
func (o Observation) ConfidenceOrZero() float64 {
	if o.Confidence == nil {
		return 0
	}
	return *o.Confidence
}

// RepresentativePoint is the worst observation of a road
type RepresentativePoint struct {
	ObservationID string         `json:"observation_id"`
	Coordinate    geo.Coordinate `json:"coordinate"`
	DamageScore   float64        `json:"damage_score"`
	DamageClass   string         `json:"damage_class,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// RoadGroup collects the observations snapped to one road
type RoadGroup struct {
	RoadID         string               `json:"road_id"`
	Road           *network.RoadSegment `json:"-"`
	Observations   []Observation        `json:"observations"`
	Representative *RepresentativePoint `json:"representative"`
}

// Grouper groups observations by their nearest road
type Grouper struct {
	snapper snapping.Snapper
	now     func() time.Time
}

// NewGrouper creates a Grouper stamping representatives with the wall clock
func NewGrouper(snapper snapping.Snapper) *Grouper {
	return &Grouper{snapper: snapper, now: time.Now}
}

// WithClock replaces the clock used for LastUpdated
func (g *Grouper) WithClock(now func() time.Time) *Grouper {
	g.now = now
	return g
}

// GroupByRoad groups observations against roads with a linear scan
func GroupByRoad(observations []Observation, roads []*network.RoadSegment) []RoadGroup {
	return NewGrouper(snapping.NewLinearSnapper(roads)).Group(observations)
}

// Group snaps every observation and groups them by road identifier. Groups
// appear in the order their road was first hit. Observations that cannot be
// snapped are dropped.
func (g *Grouper) Group(observations []Observation) []RoadGroup {
	groups := []RoadGroup{}
	index := make(map[string]int)

	for _, obs := range observations {
		res, ok := g.snapper.Snap(obs.Coordinate)
		if !ok {
			continue
		}

		i, exists := index[res.Road.ID]
		if !exists {
			i = len(groups)
			index[res.Road.ID] = i
			groups = append(groups, RoadGroup{RoadID: res.Road.ID, Road: res.Road})
		}
		groups[i].Observations = append(groups[i].Observations, obs)
	}

	now := g.now()
	for i := range groups {
		groups[i].Representative = SelectRepresentative(groups[i].Observations, now)
	}
	return groups
}

// SelectRepresentative picks the observation with the greatest damage score,
// then the greatest confidence (absent counts as 0). The earliest observation
// wins any remaining tie. Returns nil for an empty slice.
func SelectRepresentative(observations []Observation, lastUpdated time.Time) *RepresentativePoint {
	if len(observations) == 0 {
		return nil
	}

	worst := observations[0]
	for _, obs := range observations[1:] {
		if obs.DamageScore > worst.DamageScore ||
			(obs.DamageScore == worst.DamageScore && obs.ConfidenceOrZero() > worst.ConfidenceOrZero()) {
			worst = obs
		}
	}

	return &RepresentativePoint{
		ObservationID: worst.ID,
		Coordinate:    worst.Coordinate,
		DamageScore:   worst.DamageScore,
		DamageClass:   worst.DamageClass,
		Confidence:    worst.Confidence,
		LastUpdated:   lastUpdated,
	}
}

// TrajectoryFromObservations orders observations by timestamp into a
// trajectory. Equal timestamps keep their input order.
func TrajectoryFromObservations(observations []Observation) []snapping.TrajectoryPoint {
	sorted := make([]Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := make([]snapping.TrajectoryPoint, len(sorted))
	for i, obs := range sorted {
		points[i] = snapping.TrajectoryPoint{Coordinate: obs.Coordinate, DamageScore: obs.DamageScore}
	}
	return points
}
