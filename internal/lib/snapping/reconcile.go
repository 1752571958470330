package snapping

import (
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/network"
)

// DefaultConnectionThreshold is the endpoint distance in meters under which two
// roads are treated as meeting
const DefaultConnectionThreshold = 50.0

// TrajectoryPoint is one ordered sample of a traversal
type TrajectoryPoint struct {
	Coordinate  geo.Coordinate `json:"coordinate"`
	DamageScore float64        `json:"damage_score"`
}

// TraversedRoad is a road emitted by the reconciler with the damage score
// aggregated for the traversal that first reached it
type TraversedRoad struct {
	Road        *network.RoadSegment `json:"-"`
	RoadID      string               `json:"road_id"`
	DamageScore float64              `json:"damage_score"`
}

// Feature renders the road geometry with the traversal annotations
func (t TraversedRoad) Feature() *geojson.Feature {
	f := t.Road.Feature()
	f.Properties["damageScore"] = t.DamageScore
	f.Properties["encodedPolyline"] = geo.EncodePolyline(t.Road.Coordinates)
	return f
}

// Transition records a change of road between two consecutive samples.
// Roads that do not meet are reported with Connected false; no connecting
// roads are searched for.
type Transition struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Connected bool    `json:"connected"`
	GapMeters float64 `json:"gap_meters"`
}

// Path is the reconciled traversal: each road once, in first-visit order
type Path struct {
	Roads       []TraversedRoad `json:"roads"`
	Transitions []Transition    `json:"transitions"`
}

// Empty reports whether nothing could be reconciled
func (p Path) Empty() bool {
	return len(p.Roads) == 0
}

// FeatureCollection renders the traversed roads in order
func (p Path) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range p.Roads {
		fc.Append(r.Feature())
	}
	return fc
}

// Reconciler turns ordered trajectories into traversed roads
type Reconciler struct {
	snapper   Snapper
	threshold float64
}

// NewReconciler creates a Reconciler. A non-positive threshold means
// DefaultConnectionThreshold.
func NewReconciler(snapper Snapper, threshold float64) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultConnectionThreshold
	}
	return &Reconciler{snapper: snapper, threshold: threshold}
}

// ReconcilePath snaps the trajectory against roads with a linear scan and the
// default connection threshold
func ReconcilePath(points []TrajectoryPoint, roads []*network.RoadSegment) Path {
	return NewReconciler(NewLinearSnapper(roads), DefaultConnectionThreshold).Reconcile(points)
}

// Reconcile snaps every point and walks consecutive pairs. A pair on the same
// road annotates it with the mean of both scores. A pair across two roads
// annotates each road with the score of its own point and records a
// Transition. A road already emitted keeps its first annotation. Points that
// fail to snap are skipped.
func (r *Reconciler) Reconcile(points []TrajectoryPoint) Path {
	type snapped struct {
		result SnapResult
		score  float64
	}

	var snaps []snapped
	for _, p := range points {
		res, ok := r.snapper.Snap(p.Coordinate)
		if !ok {
			continue
		}
		snaps = append(snaps, snapped{result: res, score: p.DamageScore})
	}

	path := Path{Roads: []TraversedRoad{}, Transitions: []Transition{}}
	seen := make(map[string]bool)
	emit := func(road *network.RoadSegment, score float64) {
		if seen[road.ID] {
			return
		}
		seen[road.ID] = true
		path.Roads = append(path.Roads, TraversedRoad{Road: road, RoadID: road.ID, DamageScore: score})
	}

	if len(snaps) == 1 {
		emit(snaps[0].result.Road, snaps[0].score)
		return path
	}

	for i := 0; i < len(snaps)-1; i++ {
		current, next := snaps[i], snaps[i+1]

		if current.result.Road.ID == next.result.Road.ID {
			emit(current.result.Road, (current.score+next.score)/2)
			continue
		}

		emit(current.result.Road, current.score)
		emit(next.result.Road, next.score)

		connected, gap := RoadsConnected(current.result.Road, next.result.Road, r.threshold)
		path.Transitions = append(path.Transitions, Transition{
			From:      current.result.Road.ID,
			To:        next.result.Road.ID,
			Connected: connected,
			GapMeters: gap,
		})
	}

	return path
}

// RoadsConnected reports whether any endpoint pairing of a and b lies closer
// than threshold meters, together with the smallest endpoint gap
func RoadsConnected(a, b *network.RoadSegment, threshold float64) (bool, float64) {
	gap := math.Inf(1)
	for _, pa := range []geo.Coordinate{a.Start(), a.End()} {
		for _, pb := range []geo.Coordinate{b.Start(), b.End()} {
			gap = math.Min(gap, geo.GreatCircleDistance(pa, pb))
		}
	}
	return gap < threshold, gap
}
