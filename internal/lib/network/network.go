package network

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/server/internal/lib/geo"
)

var (
	// ErrMissingID is returned when a road feature carries no identifier
	ErrMissingID = errors.New("road feature has no identifier")
	// ErrDuplicateID is returned when two road features share an identifier
	ErrDuplicateID = errors.New("duplicate road identifier")
	// ErrTooFewCoordinates is returned for polylines with fewer than 2 points
	ErrTooFewCoordinates = errors.New("road polyline must have at least 2 points")
)

// Network is the immutable reference road network. It is safe for
// concurrent readers.
type Network struct {
	roads []*RoadSegment
	byID  map[string]*RoadSegment
	bound orb.Bound
}

// LoadFile reads a GeoJSON FeatureCollection from path
func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open road network: %w", err)
	}
	defer f.Close()
	return LoadGeoJSON(f)
}

// LoadGeoJSON reads a GeoJSON FeatureCollection of LineString roads
func LoadGeoJSON(r io.Reader) (*Network, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read road network: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse road network: %w", err)
	}
	return FromFeatureCollection(fc)
}

// FromFeatureCollection builds a Network from parsed GeoJSON. Non-LineString
// features are skipped. Every LineString must carry a unique identifier,
// either as the feature id or as the roadId property.
func FromFeatureCollection(fc *geojson.FeatureCollection) (*Network, error) {
	n := &Network{byID: make(map[string]*RoadSegment)}

	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}

		id := featureID(f)
		if id == "" {
			return nil, fmt.Errorf("feature %d: %w", i, ErrMissingID)
		}
		if _, exists := n.byID[id]; exists {
			return nil, fmt.Errorf("feature %d: %w: %s", i, ErrDuplicateID, id)
		}
		if len(ls) < 2 {
			return nil, fmt.Errorf("road %s: %w", id, ErrTooFewCoordinates)
		}

		coords := make([]geo.Coordinate, len(ls))
		for j, p := range ls {
			if err := geo.Validate(p); err != nil {
				return nil, fmt.Errorf("road %s point %d: %w", id, j, err)
			}
			coords[j] = p
		}

		props := f.Properties.Clone()
		road := &RoadSegment{
			ID:          id,
			Name:        stringProp(props, KeyRoadName, stringProp(props, KeyName, "")),
			Index:       len(n.roads),
			Coordinates: coords,
			Attributes:  attributesFromProperties(props),
			Properties:  props,
		}

		if len(n.roads) == 0 {
			n.bound = road.Bound()
		} else {
			n.bound = n.bound.Union(road.Bound())
		}
		n.roads = append(n.roads, road)
		n.byID[id] = road
	}

	return n, nil
}

// New builds a Network from already constructed segments, re-validating
// them and assigning positional indexes. Used by tests and tools.
func New(roads ...RoadSegment) (*Network, error) {
	fc := geojson.NewFeatureCollection()
	for i := range roads {
		f := roads[i].Feature()
		if roads[i].Name != "" {
			f.Properties[KeyRoadName] = roads[i].Name
		}
		setAttributeProperties(f.Properties, roads[i].Attributes)
		fc.Append(f)
	}
	return FromFeatureCollection(fc)
}

// Roads returns the segments in load order. The slice is a copy; the
// segments are shared and must not be modified.
func (n *Network) Roads() []*RoadSegment {
	out := make([]*RoadSegment, len(n.roads))
	copy(out, n.roads)
	return out
}

// Road looks up a segment by identifier
func (n *Network) Road(id string) (*RoadSegment, bool) {
	r, ok := n.byID[id]
	return r, ok
}

// Len returns the number of roads
func (n *Network) Len() int {
	return len(n.roads)
}

// Bound returns the bounding box of the whole network
func (n *Network) Bound() orb.Bound {
	return n.bound
}

// FeatureCollection renders the network as GeoJSON in load order
func (n *Network) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range n.roads {
		fc.Append(r.Feature())
	}
	return fc
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return stringProp(f.Properties, KeyRoadID, "")
}

func attributesFromProperties(p geojson.Properties) Attributes {
	return Attributes{
		DamageSeverity: stringProp(p, KeyDamageSeverity, ""),
		Confidence:     floatProp(p, KeyConfidenceLevel),
		PavementType:   stringProp(p, KeyPavementType, ""),
		RepairYears:    floatProp(p, KeyRepairHistory),
		AgeYears:       floatProp(p, KeyConstruction),
		WaterPipeYears: floatProp(p, KeyWaterPipe),
		GasPipeYears:   floatProp(p, KeyGasPipe),
		TrafficVolume:  stringProp(p, KeyTrafficVolume, ""),
		Drainage:       stringProp(p, KeyDrainage, ""),
		RoadClass:      stringProp(p, KeyRoadClass, ""),
	}
}

func setAttributeProperties(p geojson.Properties, a Attributes) {
	p[KeyDamageSeverity] = a.DamageSeverity
	p[KeyConfidenceLevel] = a.Confidence
	p[KeyPavementType] = a.PavementType
	p[KeyRepairHistory] = a.RepairYears
	p[KeyConstruction] = a.AgeYears
	p[KeyWaterPipe] = a.WaterPipeYears
	p[KeyGasPipe] = a.GasPipeYears
	p[KeyTrafficVolume] = a.TrafficVolume
	p[KeyDrainage] = a.Drainage
	p[KeyRoadClass] = a.RoadClass
}

func stringProp(p geojson.Properties, key, def string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return def
}

// floatProp reads numeric attributes, accepting numeric strings. Missing or
// unparseable values read as zero.
func floatProp(p geojson.Properties, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
