package grouping

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/server/internal/lib/geo"
)

// Damage colours used by the map layer
const (
	ColorGreen  = "#22c55e"
	ColorYellow = "#eab308"
	ColorRed    = "#ef4444"
)

// UnknownDamageDescription labels damage classes without a description
const UnknownDamageDescription = "不明な損傷"

var damageClassDescriptions = map[string]string{
	"D00": "線状ひび割れ",
	"D01": "線状ひび割れ",
	"D10": "亀甲状ひび割れ",
	"D11": "亀甲状ひび割れ",
	"D20": "ポットホール",
	"D40": "縦断ひび割れ",
	"D43": "段差",
	"D44": "沈下・陥没",
	"D50": "路肩の欠損",
}

// DamageClassDescription returns the label of a detector class. An empty class
// has an empty label; unknown classes get UnknownDamageDescription.
func DamageClassDescription(class string) string {
	if class == "" {
		return ""
	}
	if d, ok := damageClassDescriptions[class]; ok {
		return d
	}
	return UnknownDamageDescription
}

// DamageColor maps a damage score to its map colour
func DamageColor(score float64) string {
	switch {
	case score <= 1:
		return ColorGreen
	case score <= 3:
		return ColorYellow
	default:
		return ColorRed
	}
}

func representativeProperties(p *RepresentativePoint) geojson.Properties {
	props := geojson.Properties{
		"damageScore":            p.DamageScore,
		"damageClass":            p.DamageClass,
		"damageClassDescription": DamageClassDescription(p.DamageClass),
		"confidence":             0.0,
		"lastUpdated":            p.LastUpdated.Format(time.RFC3339),
		"color":                  DamageColor(p.DamageScore),
	}
	if p.Confidence != nil {
		props["confidence"] = *p.Confidence
	}
	return props
}

// ColoredRoadFeatures renders each group's road with the representative
// attributes laid over the road's own properties. Groups without a
// representative are skipped.
func ColoredRoadFeatures(groups []RoadGroup) []*geojson.Feature {
	features := []*geojson.Feature{}
	for _, g := range groups {
		if g.Representative == nil {
			continue
		}

		f := g.Road.Feature()
		for k, v := range representativeProperties(g.Representative) {
			f.Properties[k] = v
		}
		f.Properties["roadId"] = g.RoadID
		features = append(features, f)
	}
	return features
}

// IntersectionMarkers emits point markers at the first and last coordinate of
// every grouped road, each coordinate once across all groups. The first group
// to reach a coordinate supplies its attributes. Endpoints stand in for
// intersections; shared endpoints are not checked.
func IntersectionMarkers(groups []RoadGroup) []*geojson.Feature {
	markers := []*geojson.Feature{}
	seen := make(map[string]bool)

	for _, g := range groups {
		if g.Representative == nil {
			continue
		}

		for _, c := range []geo.Coordinate{g.Road.Start(), g.Road.End()} {
			key := geo.Key(c)
			if seen[key] {
				continue
			}
			seen[key] = true

			f := geojson.NewFeature(c)
			f.Properties = representativeProperties(g.Representative)
			f.Properties["intersectionId"] = "intersection-" + key
			f.Properties["roadId"] = g.RoadID
			markers = append(markers, f)
		}
	}
	return markers
}
