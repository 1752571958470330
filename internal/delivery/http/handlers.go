package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/gofiber/fiber/v2"

	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/ingest"
	"github.com/roadwatch/server/internal/lib/ahp"
	"github.com/roadwatch/server/internal/lib/geo"
	"github.com/roadwatch/server/internal/lib/grouping"
	"github.com/roadwatch/server/internal/lib/snapping"
	"github.com/roadwatch/server/internal/services"
)

// defaultFrameInterval is the spacing of frames extracted from dashcam video
const defaultFrameInterval = 10 * time.Second

// Handler contains all HTTP handlers
type Handler struct {
	svc *services.AssessmentService
}

// NewHandler creates a new handler
func NewHandler(svc *services.AssessmentService) *Handler {
	return &Handler{svc: svc}
}

// SnapRequest is a single point to snap
type SnapRequest struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// ReconcileRequest is an ordered trajectory
type ReconcileRequest struct {
	Points []snapping.TrajectoryPoint `json:"points"`
}

// BatchRequest is a batch of observations
type BatchRequest struct {
	Source       string                 `json:"source"`
	Observations []grouping.Observation `json:"observations"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "roadwatch",
		"roads":   h.svc.Network().Len(),
	})
}

// GetRoads returns the network with AHP priorities as GeoJSON
func (h *Handler) GetRoads(c *fiber.Ctx) error {
	return c.JSON(h.svc.PriorityFeatures())
}

// GetRoadScores returns the AHP score of every road in network order
func (h *Handler) GetRoadScores(c *fiber.Ctx) error {
	scores := h.svc.RoadScores()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    scores,
		"count":   len(scores),
	})
}

// GetRoadScore returns the AHP score of one road
func (h *Handler) GetRoadScore(c *fiber.Ctx) error {
	score, err := h.svc.RoadScore(c.Params("id"))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    score,
	})
}

// GetModel returns the criterion weights and the matrix consistency
func (h *Handler) GetModel(c *fiber.Ctx) error {
	model := h.svc.Model()
	weights := make(map[string]float64, len(ahp.Criteria))
	for _, criterion := range ahp.Criteria {
		weights[string(criterion)] = model.WeightOf(criterion)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"weights":     weights,
		"consistency": model.Consistency(),
	})
}

// Snap projects one point onto the nearest road
func (h *Handler) Snap(c *fiber.Ctx) error {
	var req SnapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	point := geo.Coordinate{req.Longitude, req.Latitude}
	if err := geo.Validate(point); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, ok := h.svc.Snap(point)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "No road to snap to")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"road_id": res.RoadID(),
		"data":    res,
	})
}

// Reconcile reduces a trajectory to the roads it traversed
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	var req ReconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	for _, p := range req.Points {
		if err := geo.Validate(p.Coordinate); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	path := h.svc.Reconcile(req.Points)
	return c.JSON(fiber.Map{
		"success":  true,
		"data":     path,
		"features": path.FeatureCollection(),
	})
}

// SubmitBatch processes a batch of observations
func (h *Handler) SubmitBatch(c *fiber.Ctx) error {
	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Source == "" {
		req.Source = "api"
	}

	result, err := h.svc.Submit(c.UserContext(), req.Source, req.Observations)
	if err != nil {
		return toFiberError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// SubmitVideoBatch places detector results of dashcam frames on an uploaded
// GPS log. Form fields: gps (CSV file), frames (JSON array of frame
// assessments) and interval (seconds between frames, default 10).
func (h *Handler) SubmitVideoBatch(c *fiber.Ctx) error {
	file, err := c.FormFile("gps")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing gps file")
	}
	f, err := file.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Unreadable gps file")
	}
	defer f.Close()

	track, err := ingest.ReadGPSCSV(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var frames []ingest.FrameAssessment
	if err := json.Unmarshal([]byte(c.FormValue("frames")), &frames); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid frames")
	}

	interval := defaultFrameInterval
	if s := c.FormValue("interval"); s != "" {
		d, err := time.ParseDuration(s + "s")
		if err != nil || d <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid interval")
		}
		interval = d
	}

	result, err := h.svc.Submit(c.UserContext(), "video:"+file.Filename, track.FrameObservations(frames, interval))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// ListBatches returns the live batches
func (h *Handler) ListBatches(c *fiber.Ctx) error {
	batches, err := h.svc.Batches(c.UserContext())
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    batches,
		"count":   len(batches),
	})
}

// GetBatch returns the full result of one batch
func (h *Handler) GetBatch(c *fiber.Ctx) error {
	result, err := h.svc.Batch(c.UserContext(), c.Params("id"))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// GetBatchRoads returns the colored roads of a batch as GeoJSON
func (h *Handler) GetBatchRoads(c *fiber.Ctx) error {
	result, err := h.svc.Batch(c.UserContext(), c.Params("id"))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(result.ColoredRoads)
}

// GetBatchMarkers returns the endpoint markers of a batch as GeoJSON
func (h *Handler) GetBatchMarkers(c *fiber.Ctx) error {
	result, err := h.svc.Batch(c.UserContext(), c.Params("id"))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(result.Markers)
}

// GetBatchPath returns the reconciled traversal of a batch as GeoJSON
func (h *Handler) GetBatchPath(c *fiber.Ctx) error {
	result, err := h.svc.Batch(c.UserContext(), c.Params("id"))
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(result.Path.FeatureCollection())
}

// GetBatchKML downloads the colored roads of a batch as KML
func (h *Handler) GetBatchKML(c *fiber.Ctx) error {
	id := c.Params("id")

	var buf bytes.Buffer
	if err := h.svc.ExportKML(c.UserContext(), id, c.QueryBool("markers", false), &buf); err != nil {
		return toFiberError(c, err)
	}

	c.Attachment("roadwatch-" + id + ".kml")
	c.Set(fiber.HeaderContentType, "application/vnd.google-earth.kml+xml")
	return c.Send(buf.Bytes())
}

// DeleteBatch forgets one batch
func (h *Handler) DeleteBatch(c *fiber.Ctx) error {
	if err := h.svc.DeleteBatch(c.UserContext(), c.Params("id")); err != nil {
		return toFiberError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearSession forgets every batch
func (h *Handler) ClearSession(c *fiber.Ctx) error {
	n := h.svc.ClearSession(c.UserContext())
	return c.JSON(fiber.Map{
		"success": true,
		"cleared": n,
	})
}

// GetStatistics returns observation and priority counts
func (h *Handler) GetStatistics(c *fiber.Ctx) error {
	stats, err := h.svc.Statistics(c.UserContext())
	if err != nil {
		return toFiberError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// toFiberError maps service errors onto HTTP status codes
func toFiberError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidObservation), errors.Is(err, services.ErrEmptyBatch):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, services.ErrUnknownRoad):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		logging.Errorw(c.UserContext(), "Request failed", "path", c.Path(), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
	}
}
