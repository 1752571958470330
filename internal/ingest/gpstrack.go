package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
)

// ErrEmptyTrack is returned when a GPS log has no usable fix
var ErrEmptyTrack = errors.New("GPS track has no fixes")

// Column positions of logger exports without a recognised header
const (
	defaultTimeColumn = 0
	defaultLatColumn  = 3
	defaultLonColumn  = 4
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
}

// GPSFix is one sample of a GPS log
type GPSFix struct {
	Time       time.Time      `json:"time"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// GPSTrack is a GPS log sorted by time
type GPSTrack struct {
	fixes []GPSFix
}

// NewGPSTrack sorts fixes by time
func NewGPSTrack(fixes []GPSFix) *GPSTrack {
	sorted := append([]GPSFix(nil), fixes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return &GPSTrack{fixes: sorted}
}

// ReadGPSCSV parses a GPS log. The first row is a header; timestamp,
// latitude and longitude columns are found by name (timestamp/time,
// latitude/lat, longitude/lon/lng) or fall back to columns 0, 3 and 4.
// Rows that do not parse are skipped.
func ReadGPSCSV(r io.Reader) (*GPSTrack, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read GPS header: %w", err)
	}
	timeCol, latCol, lonCol := gpsColumns(header)

	var fixes []GPSFix
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read GPS row: %w", err)
		}
		if len(row) <= max(timeCol, latCol, lonCol) {
			continue
		}

		ts, err := parseTime(row[timeCol])
		if err != nil {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		c := geo.FromLatLon(lat, lon)
		if geo.Validate(c) != nil {
			continue
		}
		fixes = append(fixes, GPSFix{Time: ts, Coordinate: c})
	}

	if len(fixes) == 0 {
		return nil, ErrEmptyTrack
	}
	return NewGPSTrack(fixes), nil
}

func gpsColumns(header []string) (timeCol, latCol, lonCol int) {
	timeCol, latCol, lonCol = -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp", "time", "datetime":
			timeCol = i
		case "latitude", "lat":
			latCol = i
		case "longitude", "lon", "lng":
			lonCol = i
		}
	}
	if timeCol < 0 || latCol < 0 || lonCol < 0 {
		return defaultTimeColumn, defaultLatColumn, defaultLonColumn
	}
	return timeCol, latCol, lonCol
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Len returns the number of fixes
func (t *GPSTrack) Len() int {
	return len(t.fixes)
}

// Fixes returns a copy of the fixes in time order
func (t *GPSTrack) Fixes() []GPSFix {
	return append([]GPSFix(nil), t.fixes...)
}

// Start is the time of the first fix
func (t *GPSTrack) Start() time.Time {
	if len(t.fixes) == 0 {
		return time.Time{}
	}
	return t.fixes[0].Time
}

// Nearest returns the fix closest in time to Start()+offset. The recording
// is assumed to start with the first fix. The earlier fix wins ties.
func (t *GPSTrack) Nearest(offset time.Duration) (GPSFix, bool) {
	if len(t.fixes) == 0 {
		return GPSFix{}, false
	}
	target := t.Start().Add(offset)

	i := sort.Search(len(t.fixes), func(i int) bool {
		return !t.fixes[i].Time.Before(target)
	})
	switch {
	case i == 0:
		return t.fixes[0], true
	case i == len(t.fixes):
		return t.fixes[len(t.fixes)-1], true
	}

	before, after := t.fixes[i-1], t.fixes[i]
	if after.Time.Sub(target) < target.Sub(before.Time) {
		return after, true
	}
	return before, true
}

// FrameAssessment is the detector output of one extracted video frame
type FrameAssessment struct {
	Index       int          `json:"index"`
	Predictions []Prediction `json:"predictions"`
}

// FrameObservations places video frames extracted every interval on the
// track and turns each into an observation. Frame timestamps are the
// matched offset from the start of the track.
func (t *GPSTrack) FrameObservations(frames []FrameAssessment, interval time.Duration) []grouping.Observation {
	var out []grouping.Observation
	for _, f := range frames {
		offset := time.Duration(f.Index) * interval
		fix, ok := t.Nearest(offset)
		if !ok {
			continue
		}

		score, class, confidence := AssessPredictions(f.Predictions)
		out = append(out, grouping.Observation{
			Coordinate:  fix.Coordinate,
			DamageScore: score,
			DamageClass: class,
			Confidence:  confidence,
			Timestamp:   t.Start().Add(offset),
		})
	}
	return out
}
