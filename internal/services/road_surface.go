package services

import (
	"context"
	"errors"

	"github.com/dpup/prefab/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/roadwatch/server/api/v1"
	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
)

// RoadSurfaceService implements the gRPC RoadSurfaceService on top of the
// assessment service
type RoadSurfaceService struct {
	api.UnimplementedRoadSurfaceServiceServer
	assessment *AssessmentService
}

// NewRoadSurfaceService creates a new RoadSurfaceService
func NewRoadSurfaceService(assessment *AssessmentService) *RoadSurfaceService {
	return &RoadSurfaceService{assessment: assessment}
}

type snapPointRequest struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type submitRequest struct {
	Source       string                 `json:"source"`
	Observations []grouping.Observation `json:"observations"`
}

type batchRequest struct {
	BatchID string `json:"batch_id"`
}

// SnapPoint snaps one coordinate
func (s *RoadSurfaceService) SnapPoint(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in snapPointRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	point := geo.Coordinate{in.Longitude, in.Latitude}
	if err := geo.Validate(point); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, ok := s.assessment.Snap(point)
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "network has no roads")
	}
	return respond(ctx, map[string]any{
		"road_id":       res.RoadID(),
		"point":         res.Point,
		"segment_index": res.SegmentIndex,
		"distance":      res.Distance,
	})
}

// SubmitObservations processes a batch
func (s *RoadSurfaceService) SubmitObservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in submitRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Source == "" {
		in.Source = "grpc"
	}

	result, err := s.assessment.Submit(ctx, in.Source, in.Observations)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(ctx, result)
}

// GetBatch returns a stored batch result
func (s *RoadSurfaceService) GetBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in batchRequest
	if err := api.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.BatchID == "" {
		return nil, status.Error(codes.InvalidArgument, "batch_id is required")
	}

	result, err := s.assessment.Batch(ctx, in.BatchID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(ctx, result)
}

// ScoreRoads returns the AHP priorities of the network
func (s *RoadSurfaceService) ScoreRoads(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(ctx, map[string]any{
		"scores":      s.assessment.RoadScores(),
		"consistency": s.assessment.Model().Consistency(),
	})
}

// GetStatistics returns observation and priority counts
func (s *RoadSurfaceService) GetStatistics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.assessment.Statistics(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(ctx, stats)
}

// ClearSession forgets every batch
func (s *RoadSurfaceService) ClearSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(ctx, map[string]any{"cleared": s.assessment.ClearSession(ctx)})
}

func respond(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		logging.Errorw(ctx, "Failed to encode response", "error", err)
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// toStatus maps service errors onto gRPC status codes
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidObservation), errors.Is(err, ErrEmptyBatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, ErrUnknownRoad):
		return status.Error(codes.NotFound, err.Error())
	default:
		logging.Errorw(ctx, "Request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
