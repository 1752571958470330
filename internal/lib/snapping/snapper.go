package snapping

import (
	"math"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/network"
)

// SnapResult is a coordinate projected onto the nearest road
type SnapResult struct {
	Point        geo.Coordinate       `json:"point"`         // projected coordinate
	Road         *network.RoadSegment `json:"-"`             // matched road
	SegmentIndex int                  `json:"segment_index"` // 0 <= i <= len(Road.Coordinates)-2
	Distance     float64              `json:"distance"`      // meters from the raw point
}

// RoadID returns the matched road identifier, empty for a zero result
func (s SnapResult) RoadID() string {
	if s.Road == nil {
		return ""
	}
	return s.Road.ID
}

// Snapper finds the nearest road of a fixed network
type Snapper interface {
	// Snap projects point onto the nearest road. ok is false only when the
	// network has no roads.
	Snap(point geo.Coordinate) (result SnapResult, ok bool)
	// Roads returns the roads the snapper searches, in network order
	Roads() []*network.RoadSegment
}

// SnapToNearestRoad scans every sub-segment of every road and keeps the global
// minimum. Exactly equal distances keep the first road and sub-segment
// encountered, so results depend on the order of roads.
func SnapToNearestRoad(point geo.Coordinate, roads []*network.RoadSegment) (SnapResult, bool) {
	best := SnapResult{Distance: math.Inf(1)}
	found := false

	for _, road := range roads {
		for i := 0; i < len(road.Coordinates)-1; i++ {
			projected, d := geo.ClosestPointOnSegment(point, road.Coordinates[i], road.Coordinates[i+1])
			if d < best.Distance {
				best = SnapResult{
					Point:        projected,
					Road:         road,
					SegmentIndex: i,
					Distance:     d,
				}
				found = true
			}
		}
	}

	if !found {
		return SnapResult{}, false
	}
	return best, true
}

// linearSnapper is the brute-force Snapper
type linearSnapper struct {
	roads []*network.RoadSegment
}

// NewLinearSnapper returns a Snapper that scans every road on each call
func NewLinearSnapper(roads []*network.RoadSegment) Snapper {
	return &linearSnapper{roads: roads}
}

func (s *linearSnapper) Snap(point geo.Coordinate) (SnapResult, bool) {
	return SnapToNearestRoad(point, s.roads)
}

func (s *linearSnapper) Roads() []*network.RoadSegment {
	return s.roads
}
