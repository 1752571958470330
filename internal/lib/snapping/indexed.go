package snapping

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/network"
)

// DefaultSearchRadius is the first search radius of the indexed snapper in meters
const DefaultSearchRadius = 250.0

// segmentRef locates one sub-segment inside the network
type segmentRef struct {
	road    int
	segment int
}

// indexedSnapper answers the same queries as SnapToNearestRoad through an
// R-tree of sub-segment bounding boxes
type indexedSnapper struct {
	roads  []*network.RoadSegment
	tree   rtree.RTreeG[segmentRef]
	radius float64
	// corner of the network bounds and the length of its diagonal
	anchor   geo.Coordinate
	diagonal float64
}

// NewIndexedSnapper builds the R-tree for roads once. radius is the initial
// search radius in meters; zero or negative means DefaultSearchRadius.
func NewIndexedSnapper(roads []*network.RoadSegment, radius float64) Snapper {
	if radius <= 0 {
		radius = DefaultSearchRadius
	}
	s := &indexedSnapper{roads: roads, radius: radius}

	var minLon, minLat, maxLon, maxLat = math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	for ri, road := range roads {
		for si := 0; si < len(road.Coordinates)-1; si++ {
			a, b := road.Coordinates[si], road.Coordinates[si+1]
			lo := [2]float64{math.Min(a.Lon(), b.Lon()), math.Min(a.Lat(), b.Lat())}
			hi := [2]float64{math.Max(a.Lon(), b.Lon()), math.Max(a.Lat(), b.Lat())}
			s.tree.Insert(lo, hi, segmentRef{road: ri, segment: si})

			minLon, minLat = math.Min(minLon, lo[0]), math.Min(minLat, lo[1])
			maxLon, maxLat = math.Max(maxLon, hi[0]), math.Max(maxLat, hi[1])
		}
	}
	if s.tree.Len() > 0 {
		s.anchor = geo.Coordinate{minLon, minLat}
		s.diagonal = geo.GreatCircleDistance(s.anchor, geo.Coordinate{maxLon, maxLat})
	}
	return s
}

func (s *indexedSnapper) Roads() []*network.RoadSegment {
	return s.roads
}

func (s *indexedSnapper) Snap(point geo.Coordinate) (SnapResult, bool) {
	if s.tree.Len() == 0 {
		return SnapResult{}, false
	}

	// Grow the search box until it hits something. A point far outside the
	// network falls back to a full scan.
	var candidates []segmentRef
	for r := s.radius; ; r *= 2 {
		candidates = s.search(point, r)
		if len(candidates) > 0 {
			break
		}
		if r > s.diagonal+geo.GreatCircleDistance(point, s.anchor) {
			return SnapToNearestRoad(point, s.roads)
		}
	}

	// The nearest hit bounds the answer; anything closer must intersect a
	// box of that size.
	best := s.nearest(point, candidates)
	candidates = s.search(point, best.Distance+1)
	if len(candidates) == 0 {
		return best, true
	}
	return s.nearest(point, candidates), true
}

// search returns every sub-segment whose bounding box intersects a box of
// radius meters around point
func (s *indexedSnapper) search(point geo.Coordinate, radius float64) []segmentRef {
	dLat := radius / geo.EarthRadius * 180 / math.Pi
	lat := math.Min(math.Abs(point.Lat())+dLat, 89.9)
	dLon := radius / (geo.EarthRadius * math.Cos(lat*math.Pi/180)) * 180 / math.Pi * 1.1

	var out []segmentRef
	s.tree.Search(
		[2]float64{point.Lon() - dLon, point.Lat() - dLat},
		[2]float64{point.Lon() + dLon, point.Lat() + dLat},
		func(_, _ [2]float64, ref segmentRef) bool {
			out = append(out, ref)
			return true
		},
	)
	return out
}

// nearest evaluates candidates in network order so that ties resolve exactly
// like the linear scan
func (s *indexedSnapper) nearest(point geo.Coordinate, candidates []segmentRef) SnapResult {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].road != candidates[j].road {
			return candidates[i].road < candidates[j].road
		}
		return candidates[i].segment < candidates[j].segment
	})

	best := SnapResult{Distance: math.Inf(1)}
	for _, c := range candidates {
		road := s.roads[c.road]
		projected, d := geo.ClosestPointOnSegment(point, road.Coordinates[c.segment], road.Coordinates[c.segment+1])
		if d < best.Distance {
			best = SnapResult{
				Point:        projected,
				Road:         road,
				SegmentIndex: c.segment,
				Distance:     d,
			}
		}
	}
	return best
}
