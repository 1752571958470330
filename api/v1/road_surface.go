// Package v1 declares the RoadSurfaceService gRPC API. Messages are
// google.protobuf.Struct documents carrying the same JSON bodies as the
// HTTP API, so no generated message types are needed.
package v1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dpup/prefab/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RoadSurfaceService_SnapPoint_FullMethodName          = "/roadwatch.v1.RoadSurfaceService/SnapPoint"
	RoadSurfaceService_SubmitObservations_FullMethodName = "/roadwatch.v1.RoadSurfaceService/SubmitObservations"
	RoadSurfaceService_GetBatch_FullMethodName           = "/roadwatch.v1.RoadSurfaceService/GetBatch"
	RoadSurfaceService_ScoreRoads_FullMethodName         = "/roadwatch.v1.RoadSurfaceService/ScoreRoads"
	RoadSurfaceService_GetStatistics_FullMethodName      = "/roadwatch.v1.RoadSurfaceService/GetStatistics"
	RoadSurfaceService_ClearSession_FullMethodName       = "/roadwatch.v1.RoadSurfaceService/ClearSession"
)

// RoadSurfaceServiceServer is the server API for RoadSurfaceService
type RoadSurfaceServiceServer interface {
	// SnapPoint: {longitude, latitude} -> {road_id, point, segment_index, distance}
	SnapPoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SubmitObservations: {source, observations} -> batch result
	SubmitObservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetBatch: {batch_id} -> batch result
	GetBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ScoreRoads: {} -> {scores}
	ScoreRoads(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetStatistics: {} -> statistics
	GetStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ClearSession: {} -> {cleared}
	ClearSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRoadSurfaceServiceServer must be embedded for forward compatibility
type UnimplementedRoadSurfaceServiceServer struct{}

func (UnimplementedRoadSurfaceServiceServer) SnapPoint(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SnapPoint")
}
func (UnimplementedRoadSurfaceServiceServer) SubmitObservations(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SubmitObservations")
}
func (UnimplementedRoadSurfaceServiceServer) GetBatch(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetBatch")
}
func (UnimplementedRoadSurfaceServiceServer) ScoreRoads(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ScoreRoads")
}
func (UnimplementedRoadSurfaceServiceServer) GetStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetStatistics")
}
func (UnimplementedRoadSurfaceServiceServer) ClearSession(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ClearSession")
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// RegisterRoadSurfaceServiceServer registers srv with s
func RegisterRoadSurfaceServiceServer(s grpc.ServiceRegistrar, srv RoadSurfaceServiceServer) {
	s.RegisterService(&RoadSurfaceService_ServiceDesc, srv)
}

// unaryHandler adapts one server method to the grpc.MethodDesc handler shape
func unaryHandler(fullMethod string, call func(RoadSurfaceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		ctx = logging.EnsureLogger(ctx)
		if interceptor == nil {
			return call(srv.(RoadSurfaceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RoadSurfaceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RoadSurfaceService_ServiceDesc is the grpc.ServiceDesc for RoadSurfaceService
var RoadSurfaceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "roadwatch.v1.RoadSurfaceService",
	HandlerType: (*RoadSurfaceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SnapPoint",
			Handler:    unaryHandler(RoadSurfaceService_SnapPoint_FullMethodName, RoadSurfaceServiceServer.SnapPoint),
		},
		{
			MethodName: "SubmitObservations",
			Handler:    unaryHandler(RoadSurfaceService_SubmitObservations_FullMethodName, RoadSurfaceServiceServer.SubmitObservations),
		},
		{
			MethodName: "GetBatch",
			Handler:    unaryHandler(RoadSurfaceService_GetBatch_FullMethodName, RoadSurfaceServiceServer.GetBatch),
		},
		{
			MethodName: "ScoreRoads",
			Handler:    unaryHandler(RoadSurfaceService_ScoreRoads_FullMethodName, RoadSurfaceServiceServer.ScoreRoads),
		},
		{
			MethodName: "GetStatistics",
			Handler:    unaryHandler(RoadSurfaceService_GetStatistics_FullMethodName, RoadSurfaceServiceServer.GetStatistics),
		},
		{
			MethodName: "ClearSession",
			Handler:    unaryHandler(RoadSurfaceService_ClearSession_FullMethodName, RoadSurfaceServiceServer.ClearSession),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roadwatch/v1/road_surface.proto",
}

// RoadSurfaceServiceClient is the client API for RoadSurfaceService
type RoadSurfaceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRoadSurfaceServiceClient creates a client on cc
func NewRoadSurfaceServiceClient(cc grpc.ClientConnInterface) *RoadSurfaceServiceClient {
	return &RoadSurfaceServiceClient{cc: cc}
}

func (c *RoadSurfaceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RoadSurfaceServiceClient) SnapPoint(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_SnapPoint_FullMethodName, in, opts...)
}

func (c *RoadSurfaceServiceClient) SubmitObservations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_SubmitObservations_FullMethodName, in, opts...)
}

func (c *RoadSurfaceServiceClient) GetBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_GetBatch_FullMethodName, in, opts...)
}

func (c *RoadSurfaceServiceClient) ScoreRoads(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_ScoreRoads_FullMethodName, in, opts...)
}

func (c *RoadSurfaceServiceClient) GetStatistics(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_GetStatistics_FullMethodName, in, opts...)
}

func (c *RoadSurfaceServiceClient) ClearSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RoadSurfaceService_ClearSession_FullMethodName, in, opts...)
}

// ToStruct converts any JSON-encodable object into a Struct
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("message is not a JSON object: %w", err)
	}
	return s, nil
}

// FromStruct decodes a Struct into v as if it were a JSON body
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
