package export

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	kml "github.com/twpayne/go-kml"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
)

// MapDocument is the content of an exported damage map
type MapDocument struct {
	Name        string
	Description string
	Groups      []grouping.RoadGroup
	// Adds the endpoint markers of every group in their own folder
	IncludeMarkers bool
}

var styleColors = map[string]color.RGBA{
	grouping.ColorGreen:  {R: 0x22, G: 0xc5, B: 0x5e, A: 0xff},
	grouping.ColorYellow: {R: 0xea, G: 0xb3, B: 0x08, A: 0xff},
	grouping.ColorRed:    {R: 0xef, G: 0x44, B: 0x44, A: 0xff},
}

// StyleID returns the shared style used for a damage colour
func StyleID(damageColor string) string {
	switch damageColor {
	case grouping.ColorGreen:
		return "damage-minor"
	case grouping.ColorYellow:
		return "damage-moderate"
	default:
		return "damage-severe"
	}
}

// WriteKML renders the colored roads of doc as a KML document
func WriteKML(w io.Writer, doc MapDocument) error {
	document := kml.Document(kml.Name(doc.Name))
	if doc.Description != "" {
		document.Add(kml.Description(doc.Description))
	}

	styles := make(map[string]string)
	for _, c := range []string{grouping.ColorGreen, grouping.ColorYellow, grouping.ColorRed} {
		s := kml.SharedStyle(StyleID(c),
			kml.LineStyle(kml.Color(styleColors[c]), kml.Width(4)),
			kml.IconStyle(kml.Color(styleColors[c]), kml.Scale(0.8)),
		)
		styles[c] = s.URL()
		document.Add(s)
	}

	roads := kml.Folder(kml.Name("Roads"))
	for _, g := range doc.Groups {
		if g.Representative == nil {
			continue
		}
		rep := g.Representative
		name := g.Road.Name
		if name == "" {
			name = g.RoadID
		}

		roads.Add(kml.Placemark(
			kml.Name(name),
			kml.Description(describe(rep, len(g.Observations))),
			kml.StyleURL(styles[grouping.DamageColor(rep.DamageScore)]),
			extendedData(g.RoadID, rep),
			kml.LineString(kml.Coordinates(coordinates(g.Road.Coordinates)...)),
		))
	}
	document.Add(roads)

	if doc.IncludeMarkers {
		markers := kml.Folder(kml.Name("Intersections"))
		for _, f := range grouping.IntersectionMarkers(doc.Groups) {
			p, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			score, _ := f.Properties["damageScore"].(float64)
			id, _ := f.Properties["intersectionId"].(string)
			markers.Add(kml.Placemark(
				kml.Name(id),
				kml.StyleURL(styles[grouping.DamageColor(score)]),
				kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()})),
			))
		}
		document.Add(markers)
	}

	if err := kml.KML(document).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func coordinates(line []geo.Coordinate) []kml.Coordinate {
	out := make([]kml.Coordinate, len(line))
	for i, c := range line {
		out[i] = kml.Coordinate{Lon: c.Lon(), Lat: c.Lat()}
	}
	return out
}

func describe(rep *grouping.RepresentativePoint, count int) string {
	d := fmt.Sprintf("damage %.1f from %d observation(s)", rep.DamageScore, count)
	if rep.DamageClass != "" {
		d += fmt.Sprintf(", %s (%s)", rep.DamageClass, grouping.DamageClassDescription(rep.DamageClass))
	}
	return d
}

func extendedData(roadID string, rep *grouping.RepresentativePoint) *kml.CompoundElement {
	confidence := 0.0
	if rep.Confidence != nil {
		confidence = *rep.Confidence
	}

	return kml.ExtendedData(
		data("roadId", roadID),
		data("damageScore", strconv.FormatFloat(rep.DamageScore, 'f', -1, 64)),
		data("damageClass", rep.DamageClass),
		data("confidence", strconv.FormatFloat(confidence, 'f', -1, 64)),
		data("lastUpdated", rep.LastUpdated.Format(time.RFC3339)),
	)
}

// data builds <Data name="..."><value>...</value></Data>
func data(name, value string) *kml.CompoundElement {
	d := kml.Data(kml.Value(value))
	d.Attr = append(d.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: name})
	return d
}
