package services

import (
	"bytes"

	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/network"
)

// LoadNetwork loads the GeoJSON network at path, or the embedded Bunkyo
// network when path is empty
func LoadNetwork(path string) (*network.Network, error) {
	if path == "" {
		return network.LoadGeoJSON(bytes.NewReader(dataset.BunkyoRoads))
	}
	return network.LoadFile(path)
}
