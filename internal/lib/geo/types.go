package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Coordinate is a WGS84 position stored longitude first, the GeoJSON order.
// It is an orb.Point so geometries can be handed to orb/geojson directly.
type Coordinate = orb.Point

// ErrInvalidCoordinate is returned for positions outside the WGS84 ranges.
// A latitude/longitude swap usually surfaces here first.
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// NewCoordinate creates a Coordinate from longitude and latitude with validation
func NewCoordinate(longitude, latitude float64) (Coordinate, error) {
	c := Coordinate{longitude, latitude}
	if err := Validate(c); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// FromLatLon builds a Coordinate from a latitude-first pair. Use it at every
// boundary where the source is latitude first (EXIF, GPS CSV, encoded
// polylines, Kafka detections).
func FromLatLon(latitude, longitude float64) Coordinate {
	return Coordinate{longitude, latitude}
}

// Validate checks that c is inside the WGS84 ranges
func Validate(c Coordinate) error {
	if c.Lat() < -90 || c.Lat() > 90 || c.Lon() < -180 || c.Lon() > 180 {
		return fmt.Errorf("%w: got [%g, %g]", ErrInvalidCoordinate, c.Lon(), c.Lat())
	}
	return nil
}

// Key renders a coordinate the way the map layer keys markers, "lon,lat".
func Key(c Coordinate) string {
	return formatFloat(c.Lon()) + "," + formatFloat(c.Lat())
}
