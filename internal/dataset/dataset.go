// Package dataset embeds the reference road network shipped with the server.
package dataset

import _ "embed"

// BunkyoRoads is the Bunkyo ward reference network as a GeoJSON
// FeatureCollection of LineStrings carrying the AHP attributes.
//
//go:embed bunkyo_roads.geojson
var BunkyoRoads []byte

// BunkyoBounds is the approximate extent of the ward (west, south, east, north)
var BunkyoBounds = [4]float64{139.7300, 35.6880, 139.7720, 35.7280}
