package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
)

// MaxDamageScore is the top of the observation damage scale
const MaxDamageScore = 5

// Prediction is one object found by the damage detector
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// AssessPredictions converts detector output into a damage score: the best
// confidence times 5, rounded and clamped to [0,5]. The class and confidence
// of that prediction are returned with it. No predictions means no damage.
func AssessPredictions(predictions []Prediction) (score float64, class string, confidence *float64) {
	if len(predictions) == 0 {
		return 0, "", nil
	}

	best := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}

	score = math.Round(best.Confidence * MaxDamageScore)
	score = math.Min(MaxDamageScore, math.Max(0, score))
	c := best.Confidence
	return score, best.Class, &c
}

// Detection is a detector event published by vehicles. Positions arrive
// latitude first as in the vehicle telemetry.
type Detection struct {
	DetectionID string       `json:"detection_id"`
	VehicleID   string       `json:"vehicle_id"`
	SessionID   string       `json:"session_id"`
	Timestamp   time.Time    `json:"timestamp"`
	VehicleLat  *float64     `json:"vehicle_lat,omitempty"`
	VehicleLon  *float64     `json:"vehicle_lon,omitempty"`
	Predictions []Prediction `json:"predictions"`
}

// ParseDetection decodes one detection message
func ParseDetection(data []byte) (*Detection, error) {
	var d Detection
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode detection: %w", err)
	}
	if d.VehicleLat == nil || d.VehicleLon == nil {
		return nil, fmt.Errorf("detection %s has no GPS position", d.DetectionID)
	}
	return &d, nil
}

// Observation converts the detection, swapping to longitude first
func (d *Detection) Observation() (grouping.Observation, error) {
	c := geo.FromLatLon(*d.VehicleLat, *d.VehicleLon)
	if err := geo.Validate(c); err != nil {
		return grouping.Observation{}, fmt.Errorf("detection %s: %w", d.DetectionID, err)
	}

	score, class, confidence := AssessPredictions(d.Predictions)
	return grouping.Observation{
		ID:          d.DetectionID,
		Coordinate:  c,
		DamageScore: score,
		DamageClass: class,
		Confidence:  confidence,
		Timestamp:   d.Timestamp,
	}, nil
}
