package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/lib/ahp"
	"github.com/roadwatch/server/internal/lib/export"
	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
	"github.com/roadwatch/server/internal/lib/network"
	"github.com/roadwatch/server/internal/lib/snapping"
)

// batchKind namespaces batches in the session cache
const batchKind = "batch"

var (
	// ErrInvalidObservation is returned when a submitted observation is out of range
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrEmptyBatch is returned when a batch has no observations
	ErrEmptyBatch = errors.New("batch has no observations")
	// ErrUnknownRoad is returned for road identifiers not in the network
	ErrUnknownRoad = errors.New("unknown road")
)

// Batch is one submitted set of observations as kept in the session cache
type Batch struct {
	ID           string                 `json:"id"`
	Source       string                 `json:"source"`
	CreatedAt    time.Time              `json:"created_at"`
	Observations []grouping.Observation `json:"observations"`
	OutsideArea  int                    `json:"outside_area"`
}

// BatchResult is everything derived from a batch
type BatchResult struct {
	BatchID      string                     `json:"batch_id"`
	Source       string                     `json:"source"`
	CreatedAt    time.Time                  `json:"created_at"`
	Groups       []grouping.RoadGroup       `json:"groups"`
	ColoredRoads *geojson.FeatureCollection `json:"colored_roads"`
	Markers      *geojson.FeatureCollection `json:"markers"`
	Path         snapping.Path              `json:"path"`
	Statistics   grouping.Statistics        `json:"statistics"`
	OutsideArea  int                        `json:"outside_area"`
	Unsnapped    int                        `json:"unsnapped"`
}

// BatchSummary lists a batch without its derived data
type BatchSummary struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	Observations int       `json:"observations"`
	OutsideArea  int       `json:"outside_area"`
}

// Statistics combines observation counts across live batches with the AHP
// priority classes of the network
type Statistics struct {
	Observations grouping.Statistics `json:"observations"`
	Roads        ahp.BandCounts      `json:"roads"`
	OutsideArea  int                 `json:"outside_area"`
	Batches      int                 `json:"batches"`
}

// RoadPriority is the AHP score of one road with its class
type RoadPriority struct {
	ahp.RoadScore
	Band ahp.Band `json:"band"`
}

// AssessmentService snaps, groups and scores road damage observations and
// keeps processed batches for the session TTL
type AssessmentService struct {
	network    *network.Network
	snapper    snapping.Snapper
	reconciler *snapping.Reconciler
	model      *ahp.Model
	bands      ahp.Bands
	bounds     config.Bounds
	scores     ahp.Scores
	batches    *cache.Store[Batch]
	now        func() time.Time
}

// NewAssessmentService builds the snapper and the AHP model from cfg and
// scores the network once
func NewAssessmentService(net *network.Network, c *cache.Cache, cfg *config.Config) (*AssessmentService, error) {
	model, err := ahp.NewModel(cfg.AHP.ComparisonMatrix(), cfg.AHP.ConsistencyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build AHP model: %w", err)
	}

	var snapper snapping.Snapper
	if cfg.Snapping.Indexed {
		snapper = snapping.NewIndexedSnapper(net.Roads(), cfg.Snapping.SearchRadius)
	} else {
		snapper = snapping.NewLinearSnapper(net.Roads())
	}

	s := &AssessmentService{
		network:    net,
		snapper:    snapper,
		reconciler: snapping.NewReconciler(snapper, cfg.Snapping.ConnectionThreshold),
		model:      model,
		bands:      cfg.AHP.Bands,
		bounds:     cfg.Network.Bounds,
		scores:     model.ScoreAll(net.Roads()),
		batches:    cache.NewStore[Batch](c, batchKind, cfg.Session.TTL),
		now:        time.Now,
	}
	return s, nil
}

// WithClock replaces the clock stamping new batches
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// Network returns the reference network
func (s *AssessmentService) Network() *network.Network {
	return s.network
}

// Model returns the AHP model in use
func (s *AssessmentService) Model() *ahp.Model {
	return s.model
}

// Submit validates and stores a batch and returns its derived result.
// Observations without an ID get one. Observations outside the district are
// counted but still processed.
func (s *AssessmentService) Submit(ctx context.Context, source string, observations []grouping.Observation) (*BatchResult, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyBatch
	}

	batch := Batch{
		ID:           uuid.NewString(),
		Source:       source,
		CreatedAt:    s.now().UTC(),
		Observations: make([]grouping.Observation, len(observations)),
	}
	for i, obs := range observations {
		if err := validateObservation(obs); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		if obs.ID == "" {
			obs.ID = uuid.NewString()
		}
		if !s.bounds.Contains(obs.Coordinate.Lon(), obs.Coordinate.Lat()) {
			batch.OutsideArea++
		}
		batch.Observations[i] = obs
	}

	// Stored last so a failed submission leaves no batch behind
	result := s.result(batch)
	if err := s.batches.Put(batch.ID, batch); err != nil {
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}

	logging.Infow(ctx, "Processed observation batch",
		"batch_id", batch.ID, "source", source, "observations", len(observations),
		"roads", len(result.Groups), "outside_area", batch.OutsideArea, "unsnapped", result.Unsnapped)
	return result, nil
}

// SubmitObservations stores a batch discarding the result
func (s *AssessmentService) SubmitObservations(ctx context.Context, source string, observations []grouping.Observation) error {
	_, err := s.Submit(ctx, source, observations)
	return err
}

func validateObservation(obs grouping.Observation) error {
	if err := geo.Validate(obs.Coordinate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidObservation, err)
	}
	if obs.DamageScore < 0 || obs.DamageScore > 5 {
		return fmt.Errorf("%w: damage score %g outside [0,5]", ErrInvalidObservation, obs.DamageScore)
	}
	if obs.Confidence != nil && (*obs.Confidence < 0 || *obs.Confidence > 1) {
		return fmt.Errorf("%w: confidence %g outside [0,1]", ErrInvalidObservation, *obs.Confidence)
	}
	return nil
}

// result derives groups, map layers, the reconciled path and statistics.
// Representatives carry the batch creation time so results are stable
// across reads.
func (s *AssessmentService) result(b Batch) *BatchResult {
	groups := grouping.NewGrouper(s.snapper).
		WithClock(func() time.Time { return b.CreatedAt }).
		Group(b.Observations)

	grouped := 0
	for _, g := range groups {
		grouped += len(g.Observations)
	}

	colored := geojson.NewFeatureCollection()
	colored.Features = grouping.ColoredRoadFeatures(groups)
	markers := geojson.NewFeatureCollection()
	markers.Features = grouping.IntersectionMarkers(groups)

	return &BatchResult{
		BatchID:      b.ID,
		Source:       b.Source,
		CreatedAt:    b.CreatedAt,
		Groups:       groups,
		ColoredRoads: colored,
		Markers:      markers,
		Path:         s.reconciler.Reconcile(grouping.TrajectoryFromObservations(b.Observations)),
		Statistics:   grouping.DamageStatistics(b.Observations, b.CreatedAt),
		OutsideArea:  b.OutsideArea,
		Unsnapped:    len(b.Observations) - grouped,
	}
}

// Batch returns the result of a stored batch
func (s *AssessmentService) Batch(ctx context.Context, id string) (*BatchResult, error) {
	b, err := s.batches.Get(id)
	if err != nil {
		return nil, err
	}
	return s.result(b), nil
}

// Batches lists the live batches ordered by creation time
func (s *AssessmentService) Batches(ctx context.Context) ([]BatchSummary, error) {
	batches, err := s.batches.List()
	if err != nil {
		return nil, err
	}

	out := make([]BatchSummary, 0, len(batches))
	for _, b := range batches {
		out = append(out, BatchSummary{
			ID:           b.ID,
			Source:       b.Source,
			CreatedAt:    b.CreatedAt,
			Observations: len(b.Observations),
			OutsideArea:  b.OutsideArea,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteBatch forgets one batch
func (s *AssessmentService) DeleteBatch(ctx context.Context, id string) error {
	if _, err := s.batches.Get(id); err != nil {
		return err
	}
	s.batches.Delete(id)
	logging.Infow(ctx, "Deleted observation batch", "batch_id", id)
	return nil
}

// ClearSession forgets every batch and reports how many were removed
func (s *AssessmentService) ClearSession(ctx context.Context) int {
	n := s.batches.Clear()
	logging.Infow(ctx, "Cleared session", "batches", n)
	return n
}

// Snap snaps one point to the network
func (s *AssessmentService) Snap(point geo.Coordinate) (snapping.SnapResult, bool) {
	return s.snapper.Snap(point)
}

// Reconcile reduces an ordered trajectory to the roads it traversed
func (s *AssessmentService) Reconcile(points []snapping.TrajectoryPoint) snapping.Path {
	return s.reconciler.Reconcile(points)
}

// RoadScores returns the AHP priority of every road in network order
func (s *AssessmentService) RoadScores() []RoadPriority {
	out := make([]RoadPriority, len(s.scores.Ordered))
	for i, rs := range s.scores.Ordered {
		out[i] = RoadPriority{RoadScore: rs, Band: s.bands.Classify(rs.Score)}
	}
	return out
}

// RoadScore returns the AHP priority of one road
func (s *AssessmentService) RoadScore(id string) (RoadPriority, error) {
	road, ok := s.network.Road(id)
	if !ok {
		return RoadPriority{}, fmt.Errorf("%w: %q", ErrUnknownRoad, id)
	}
	for _, rs := range s.scores.Ordered {
		if rs.RoadID == road.ID {
			return RoadPriority{RoadScore: rs, Band: s.bands.Classify(rs.Score)}, nil
		}
	}
	return RoadPriority{}, fmt.Errorf("%w: %q", ErrUnknownRoad, id)
}

// PriorityFeatures renders the network with ahpScore and priority properties
func (s *AssessmentService) PriorityFeatures() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, road := range s.network.Roads() {
		score := s.scores.ByID[road.ID]
		f := road.Feature()
		f.Properties["ahpScore"] = score
		f.Properties["priority"] = string(s.bands.Classify(score))
		fc.Append(f)
	}
	return fc
}

// Statistics counts observations of every live batch and the AHP classes of
// the network
func (s *AssessmentService) Statistics(ctx context.Context) (Statistics, error) {
	batches, err := s.batches.List()
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Observations: grouping.Statistics{LastUpdated: s.now().UTC()},
		Roads:        s.bands.Count(s.scores.Ordered),
		Batches:      len(batches),
	}
	for _, b := range batches {
		stats.Observations.Merge(grouping.DamageStatistics(b.Observations, time.Time{}))
		stats.OutsideArea += b.OutsideArea
	}
	return stats, nil
}

// ExportKML writes the colored roads of a batch as KML
func (s *AssessmentService) ExportKML(ctx context.Context, id string, includeMarkers bool, w io.Writer) error {
	result, err := s.Batch(ctx, id)
	if err != nil {
		return err
	}
	return export.WriteKML(w, export.MapDocument{
		Name:           "Road damage " + result.BatchID,
		Description:    fmt.Sprintf("%s, %d observations", result.Source, result.Statistics.TotalAssessments),
		Groups:         result.Groups,
		IncludeMarkers: includeMarkers,
	})
}
