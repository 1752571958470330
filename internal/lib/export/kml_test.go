package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
	"github.com/roadwatch/server/internal/lib/network"
	"github.com/roadwatch/server/internal/lib/snapping"
)

func testGroups(t *testing.T) []grouping.RoadGroup {
	t.Helper()
	n, err := network.New(
		network.RoadSegment{ID: "hongo", Name: "本郷通り", Coordinates: []geo.Coordinate{{139.75, 35.70}, {139.76, 35.71}}},
		network.RoadSegment{ID: "kasuga", Coordinates: []geo.Coordinate{{139.76, 35.71}, {139.77, 35.71}}},
	)
	require.NoError(t, err)

	conf := 0.6
	stamp := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	return grouping.NewGrouper(snapping.NewLinearSnapper(n.Roads())).
		WithClock(func() time.Time { return stamp }).
		Group([]grouping.Observation{
			{ID: "a", Coordinate: geo.Coordinate{139.752, 35.702}, DamageScore: 4.5, DamageClass: "D20", Confidence: &conf},
			{ID: "b", Coordinate: geo.Coordinate{139.765, 35.7101}, DamageScore: 0.5},
		})
}

func TestWriteKML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteKML(&buf, MapDocument{
		Name:           "Bunkyo damage",
		Description:    "batch 1",
		Groups:         testGroups(t),
		IncludeMarkers: true,
	})
	require.NoError(t, err)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<name>Bunkyo damage</name>")
	assert.Contains(t, out, `<Style id="damage-severe">`)
	assert.Contains(t, out, `<Style id="damage-minor">`)

	// named road falls back to its id when unnamed
	assert.Contains(t, out, "<name>本郷通り</name>")
	assert.Contains(t, out, "<name>kasuga</name>")
	assert.Contains(t, out, "<styleUrl>#damage-severe</styleUrl>")
	assert.Contains(t, out, "<styleUrl>#damage-minor</styleUrl>")
	assert.Contains(t, out, "ポットホール")

	// longitude first on the wire
	assert.Contains(t, out, "139.75,35.7")
	assert.Contains(t, out, `<Data name="roadId">`)
	assert.Contains(t, out, "<value>2025-04-01T09:30:00Z</value>")

	assert.Contains(t, out, "<name>Intersections</name>")
	assert.Equal(t, 3, strings.Count(out, "<Point>"))
}

func TestWriteKML_WithoutMarkers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, MapDocument{Name: "roads", Groups: testGroups(t)}))
	assert.NotContains(t, buf.String(), "Intersections")
	assert.Equal(t, 2, strings.Count(buf.String(), "<LineString>"))
}

func TestStyleID(t *testing.T) {
	assert.Equal(t, "damage-minor", StyleID(grouping.DamageColor(1)))
	assert.Equal(t, "damage-moderate", StyleID(grouping.DamageColor(2)))
	assert.Equal(t, "damage-severe", StyleID(grouping.DamageColor(5)))
}
