package v1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStructRoundTrip(t *testing.T) {
	type point struct {
		Longitude float64 `json:"longitude"`
		Latitude  float64 `json:"latitude"`
	}

	s, err := ToStruct(point{Longitude: 139.7516, Latitude: 35.708})
	require.NoError(t, err)
	assert.Equal(t, 139.7516, s.AsMap()["longitude"])

	var back point
	require.NoError(t, FromStruct(s, &back))
	assert.Equal(t, point{Longitude: 139.7516, Latitude: 35.708}, back)

	require.NoError(t, FromStruct(nil, &back))
}

func TestToStruct_RejectsNonObjects(t *testing.T) {
	_, err := ToStruct([]int{1, 2})
	assert.Error(t, err)

	_, err = ToStruct(func() {})
	assert.Error(t, err)
}

func TestUnimplementedServer(t *testing.T) {
	var srv UnimplementedRoadSurfaceServiceServer
	_, err := srv.SnapPoint(context.Background(), nil)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestServiceDesc(t *testing.T) {
	assert.Equal(t, "roadwatch.v1.RoadSurfaceService", RoadSurfaceService_ServiceDesc.ServiceName)
	names := make([]string, 0, len(RoadSurfaceService_ServiceDesc.Methods))
	for _, m := range RoadSurfaceService_ServiceDesc.Methods {
		names = append(names, m.MethodName)
	}
	assert.Equal(t, []string{"SnapPoint", "SubmitObservations", "GetBatch", "ScoreRoads", "GetStatistics", "ClearSession"}, names)
}
