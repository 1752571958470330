package geo

import (
	"errors"
	"math"
	"strconv"

	"github.com/twpayne/go-polyline"
)

// EarthRadius is the mean Earth radius in meters used by every distance here
const EarthRadius = 6371000.0

// GreatCircleDistance calculates surface distance in meters between two points
// using the Haversine formula. Antipodal inputs lose some precision.
func GreatCircleDistance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dlat := (b.Lat() - a.Lat()) * math.Pi / 180
	dlon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// DistancePointToSegment returns the distance in meters from point to the
// segment start→end.
//
// The foot of the perpendicular is found in raw longitude/latitude space
// (t clamped to [0,1]) and then measured with GreatCircleDistance. This planar
// parametrization ignores the cos(latitude) shrink of longitude degrees, so it
// is only accurate at the scale of a city district. When the planar foot ends
// up farther than one of the endpoints, the endpoint is used, which keeps the
// result bounded by both endpoint distances.
func DistancePointToSegment(point, start, end Coordinate) float64 {
	_, d := closestOnSegment(point, start, end)
	return d
}

// ProjectPointOnSegment returns the point of segment start→end used by
// DistancePointToSegment. This is usually the clamped planar foot of the
// perpendicular, but it is start or end whenever that endpoint is closer to
// point by great-circle distance, even if the planar foot lies strictly inside
// the segment. A zero-length segment projects to start.
func ProjectPointOnSegment(point, start, end Coordinate) Coordinate {
	q, _ := closestOnSegment(point, start, end)
	return q
}

// ClosestPointOnSegment returns both the point chosen by ProjectPointOnSegment
// and its distance
func ClosestPointOnSegment(point, start, end Coordinate) (Coordinate, float64) {
	return closestOnSegment(point, start, end)
}

func closestOnSegment(point, start, end Coordinate) (Coordinate, float64) {
	dx := end.Lon() - start.Lon()
	dy := end.Lat() - start.Lat()
	lengthSquared := dx*dx + dy*dy

	// Degenerate segment, also avoids dividing by zero below
	if lengthSquared == 0 {
		return start, GreatCircleDistance(point, start)
	}

	t := ((point.Lon()-start.Lon())*dx + (point.Lat()-start.Lat())*dy) / lengthSquared
	t = math.Max(0, math.Min(1, t))

	projected := Coordinate{start.Lon() + t*dx, start.Lat() + t*dy}
	best, bestDistance := projected, GreatCircleDistance(point, projected)

	if d := GreatCircleDistance(point, start); d < bestDistance {
		best, bestDistance = start, d
	}
	if d := GreatCircleDistance(point, end); d < bestDistance {
		best, bestDistance = end, d
	}
	return best, bestDistance
}

// PointToPolyline returns the minimum distance from point to the polyline and
// the index of the sub-segment that realizes it. The first sub-segment wins
// ties. A single-point polyline reports index 0 and the direct distance.
func PointToPolyline(point Coordinate, line []Coordinate) (float64, int, error) {
	if len(line) == 0 {
		return 0, 0, errors.New("polyline has no points")
	}
	if len(line) == 1 {
		return GreatCircleDistance(point, line[0]), 0, nil
	}

	minDistance := math.Inf(1)
	minIndex := 0
	for i := 0; i < len(line)-1; i++ {
		d := DistancePointToSegment(point, line[i], line[i+1])
		if d < minDistance {
			minDistance = d
			minIndex = i
		}
	}
	return minDistance, minIndex, nil
}

// PolylineLength sums the great-circle length of every sub-segment
func PolylineLength(line []Coordinate) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += GreatCircleDistance(line[i], line[i+1])
	}
	return total
}

// EncodePolyline encodes a lon-first coordinate sequence as a Google encoded
// polyline, which is latitude first on the wire.
func EncodePolyline(line []Coordinate) string {
	coords := make([][]float64, len(line))
	for i, c := range line {
		coords[i] = []float64{c.Lat(), c.Lon()}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a Google encoded polyline into lon-first coordinates
func DecodePolyline(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	line := make([]Coordinate, len(coords))
	for i, coord := range coords {
		line[i] = FromLatLon(coord[0], coord[1])
		if err := Validate(line[i]); err != nil {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}
	return line, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
