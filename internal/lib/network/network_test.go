package network

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/geo"
)

func TestLoadGeoJSON_Bunkyo(t *testing.T) {
	net, err := LoadGeoJSON(bytes.NewReader(dataset.BunkyoRoads))
	require.NoError(t, err)
	require.Equal(t, 10, net.Len())

	roads := net.Roads()
	for i, r := range roads {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, "bunkyo-001", roads[0].ID)
	assert.Equal(t, "bunkyo-010", roads[9].ID)

	road, ok := net.Road("bunkyo-001")
	require.True(t, ok)
	assert.Equal(t, "本郷通り", road.Name)
	assert.Equal(t, geo.Coordinate{139.7516, 35.708}, road.Start())
	assert.Equal(t, geo.Coordinate{139.7626, 35.715}, road.End())
	assert.Equal(t, 2, road.SegmentCount())
	assert.Equal(t, Attributes{
		DamageSeverity: "D40",
		Confidence:     0.82,
		PavementType:   "アスファルト",
		RepairYears:    12,
		AgeYears:       35,
		WaterPipeYears: 20,
		GasPipeYears:   0,
		TrafficVolume:  "多",
		Drainage:       "普通",
		RoadClass:      "幹線道路",
	}, road.Attributes)

	_, ok = net.Road("bunkyo-999")
	assert.False(t, ok)

	bound := net.Bound()
	assert.True(t, bound.Contains(road.Start()))
	assert.Len(t, net.FeatureCollection().Features, 10)
}

func TestRoadsReturnsCopy(t *testing.T) {
	net, err := LoadGeoJSON(bytes.NewReader(dataset.BunkyoRoads))
	require.NoError(t, err)

	roads := net.Roads()
	roads[0] = nil
	assert.NotNil(t, net.Roads()[0])
}

func TestLoadGeoJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "missing id",
			input:   `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[139.75,35.70],[139.76,35.71]]}}]}`,
			wantErr: ErrMissingID,
		},
		{
			name: "duplicate id",
			input: `{"type":"FeatureCollection","features":[
				{"type":"Feature","id":"r1","properties":{},"geometry":{"type":"LineString","coordinates":[[139.75,35.70],[139.76,35.71]]}},
				{"type":"Feature","properties":{"roadId":"r1"},"geometry":{"type":"LineString","coordinates":[[139.75,35.70],[139.76,35.71]]}}]}`,
			wantErr: ErrDuplicateID,
		},
		{
			name:    "single point",
			input:   `{"type":"FeatureCollection","features":[{"type":"Feature","id":"r1","properties":{},"geometry":{"type":"LineString","coordinates":[[139.75,35.70]]}}]}`,
			wantErr: ErrTooFewCoordinates,
		},
		{
			name:    "out of range",
			input:   `{"type":"FeatureCollection","features":[{"type":"Feature","id":"r1","properties":{},"geometry":{"type":"LineString","coordinates":[[35.70,139.75],[35.71,139.76]]}}]}`,
			wantErr: geo.ErrInvalidCoordinate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGeoJSON(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := LoadGeoJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestLoadGeoJSON_SkipsOtherGeometries(t *testing.T) {
	net, err := LoadGeoJSON(strings.NewReader(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"poi","properties":{},"geometry":{"type":"Point","coordinates":[139.75,35.70]}},
		{"type":"Feature","id":7,"properties":{"name":"Side street","Confidence Level":"0.5"},"geometry":{"type":"LineString","coordinates":[[139.75,35.70],[139.76,35.71]]}}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, net.Len())

	road, ok := net.Road("7")
	require.True(t, ok)
	assert.Equal(t, "Side street", road.Name)
	assert.Equal(t, 0.5, road.Attributes.Confidence)
}

func TestNew(t *testing.T) {
	net, err := New(
		RoadSegment{ID: "a", Name: "A", Coordinates: []geo.Coordinate{{0, 0}, {0.001, 0}}, Attributes: Attributes{TrafficVolume: "多"}},
		RoadSegment{ID: "b", Coordinates: []geo.Coordinate{{0.001, 0}, {0.002, 0}}},
	)
	require.NoError(t, err)
	require.Equal(t, 2, net.Len())

	a, _ := net.Road("a")
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, "多", a.Attributes.TrafficVolume)
	b, _ := net.Road("b")
	assert.Equal(t, 1, b.Index)

	_, err = New(RoadSegment{ID: "a", Coordinates: []geo.Coordinate{{0, 0}}})
	assert.ErrorIs(t, err, ErrTooFewCoordinates)
}
