package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/server/internal/cache"
	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/network"
	"github.com/roadwatch/server/internal/services"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	net, err := network.LoadGeoJSON(bytes.NewReader(dataset.BunkyoRoads))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	svc, err := services.NewAssessmentService(net, cache.NewCache(), cfg)
	require.NoError(t, err)
	return NewApp(svc, cfg.Server)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

const batchBody = `{
	"source": "dashcam",
	"observations": [
		{"id": "A", "coordinate": [139.7625, 35.7165], "damage_score": 4, "damage_class": "D40", "confidence": 0.8, "timestamp": "2025-04-01T09:00:00Z"},
		{"id": "B", "coordinate": [139.7675, 35.7135], "damage_score": 2, "timestamp": "2025-04-01T09:01:00Z"},
		{"id": "C", "coordinate": [139.7635, 35.7065], "damage_score": 1, "timestamp": "2025-04-01T09:02:00Z"}
	]
}`

func submit(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/batches", batchBody)
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	return data["batch_id"].(string)
}

func TestHealthCheck(t *testing.T) {
	status, body := doJSON(t, newTestApp(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 10.0, body["roads"])
}

func TestBatchEndpoints(t *testing.T) {
	app := newTestApp(t)
	id := submit(t, app)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/batches/"+id, "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Len(t, data["groups"], 2)
	assert.Equal(t, "dashcam", data["source"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches/"+id+"/roads", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FeatureCollection", body["type"])
	features := body["features"].([]any)
	require.Len(t, features, 2)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "bunkyo-004", props["roadId"])
	assert.Equal(t, "#ef4444", props["color"])
	assert.Equal(t, "縦断ひび割れ", props["damageClassDescription"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches/"+id+"/markers", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["features"], 4)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches/"+id+"/path", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["features"], 2)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/batches/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
}

func TestSubmitBatch_BadInput(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/batches", `{"observations": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, true, body["error"])

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/batches",
		`{"observations": [{"coordinate": [139.75, 35.70], "damage_score": 9}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "invalid observation")

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/batches", `{"observations": `)
	assert.Equal(t, http.StatusBadRequest, status)

	// a batch with one bad observation is not stored
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/batches",
		`{"observations": [{"coordinate": [139.7625, 35.7165], "damage_score": 4}, {"coordinate": [139.75, 35.70], "damage_score": 9}]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/batches", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, body["count"])
}

func TestSubmitBatch_LogsThroughRequestContext(t *testing.T) {
	app := newTestApp(t)

	// submit logging needs the logger NewApp puts on the request context
	assert.NotPanics(t, func() {
		submit(t, app)
	})
	status, body := doJSON(t, app, http.MethodGet, "/api/v1/batches", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])
}

func TestBatchKML(t *testing.T) {
	app := newTestApp(t)
	id := submit(t, app)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id+"/map.kml?markers=true", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "roadwatch-"+id+".kml")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<kml")
	assert.Equal(t, 4, strings.Count(string(raw), "<Point>"))

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/batches/missing/map.kml", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitVideoBatch(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("gps", "drive-0401.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("timestamp,device,speed,lat,lon\n" +
		"2025-04-01 09:00:00,d,0,35.7165,139.7625\n" +
		"2025-04-01 09:00:05,d,0,35.7135,139.7675\n"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("frames", `[{"index":0,"predictions":[{"class":"D20","confidence":0.9}]},{"index":1}]`))
	require.NoError(t, w.WriteField("interval", "5"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/video", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Data services.BatchResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "video:drive-0401.csv", body.Data.Source)
	require.Len(t, body.Data.Groups, 1)
	assert.Equal(t, "bunkyo-004", body.Data.Groups[0].RoadID)
	assert.Equal(t, 5.0, body.Data.Groups[0].Representative.DamageScore)
	assert.Equal(t, 2, body.Data.Statistics.TotalAssessments)
}

func TestSnapAndReconcile(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/snap", `{"longitude": 139.7516, "latitude": 35.7080}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bunkyo-001", body["road_id"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/snap", `{"longitude": 35.7, "latitude": 139.75}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/reconcile", `{"points": [
		{"coordinate": [139.7625, 35.7165], "damage_score": 4},
		{"coordinate": [139.7675, 35.7135], "damage_score": 2}
	]}`)
	require.Equal(t, http.StatusOK, status)
	roads := body["data"].(map[string]any)["roads"].([]any)
	require.Len(t, roads, 1)
	assert.Equal(t, 3.0, roads[0].(map[string]any)["damage_score"])
}

func TestScoresAndStatistics(t *testing.T) {
	app := newTestApp(t)
	submit(t, app)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/roads/scores", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10.0, body["count"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/roads/bunkyo-005/score", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, 0.686, data["score"])
	assert.Equal(t, "moderate", data["band"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/roads/nope/score", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/roads", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["features"], 10)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/model", "")
	require.Equal(t, http.StatusOK, status)
	consistency := body["consistency"].(map[string]any)
	assert.InDelta(t, 0.0221, consistency["consistency_ratio"], 1e-3)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/statistics", "")
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, 3.0, data["observations"].(map[string]any)["total_assessments"])
	assert.Equal(t, 6.0, data["roads"].(map[string]any)["moderate"])

	status, body = doJSON(t, app, http.MethodDelete, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["cleared"])
}
