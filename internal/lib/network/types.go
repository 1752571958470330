package network

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/server/internal/lib/geo"
)

// Property keys of the reference dataset
const (
	KeyRoadID          = "roadId"
	KeyRoadName        = "roadName"
	KeyName            = "name"
	KeyDamageSeverity  = "Damage Severity"
	KeyConfidenceLevel = "Confidence Level"
	KeyPavementType    = "Type of Pavement"
	KeyRepairHistory   = "Road Repair History"
	KeyConstruction    = "Year of Construction"
	KeyWaterPipe       = "Presence of Water Pipe"
	KeyGasPipe         = "Presence of Gas Pipe"
	KeyTrafficVolume   = "Traffic Volume"
	KeyDrainage        = "Drainage Performance"
	KeyRoadClass       = "Road Classification"
)

// Attributes holds the static per-road inputs of the priority score
type Attributes struct {
	DamageSeverity string  `json:"damage_severity"` // detector class code, e.g. D40
	Confidence     float64 `json:"confidence"`
	PavementType   string  `json:"pavement_type"`
	RepairYears    float64 `json:"repair_years"`
	AgeYears       float64 `json:"age_years"`
	// Years since nearby pipe repairs; zero means no pipe work nearby
	WaterPipeYears float64 `json:"water_pipe_years"`
	GasPipeYears   float64 `json:"gas_pipe_years"`
	TrafficVolume  string  `json:"traffic_volume"`
	Drainage       string  `json:"drainage"`
	RoadClass      string  `json:"road_class"`
}

// RoadSegment is one polyline of the reference network. Segments are built
// once by the loader and never mutated afterwards.
type RoadSegment struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Index       int                `json:"index"` // position in the network
	Coordinates []geo.Coordinate   `json:"coordinates"`
	Attributes  Attributes         `json:"attributes"`
	Properties  geojson.Properties `json:"-"`
}

// Start returns the first coordinate of the polyline
func (r *RoadSegment) Start() geo.Coordinate {
	return r.Coordinates[0]
}

// End returns the last coordinate of the polyline
func (r *RoadSegment) End() geo.Coordinate {
	return r.Coordinates[len(r.Coordinates)-1]
}

// SegmentCount is the number of sub-segments (len(Coordinates)-1)
func (r *RoadSegment) SegmentCount() int {
	return len(r.Coordinates) - 1
}

// LineString returns a copy of the geometry as an orb.LineString
func (r *RoadSegment) LineString() orb.LineString {
	ls := make(orb.LineString, len(r.Coordinates))
	copy(ls, r.Coordinates)
	return ls
}

// Bound returns the bounding box of the polyline
func (r *RoadSegment) Bound() orb.Bound {
	return orb.LineString(r.Coordinates).Bound()
}

// Feature renders the segment as a GeoJSON feature with a copy of its
// original properties
func (r *RoadSegment) Feature() *geojson.Feature {
	f := geojson.NewFeature(r.LineString())
	f.ID = r.ID
	if r.Properties != nil {
		f.Properties = r.Properties.Clone()
	}
	f.Properties[KeyRoadID] = r.ID
	return f
}
