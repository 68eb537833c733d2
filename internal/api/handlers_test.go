package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack-bench/internal/algorithm"
	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/metrics"
	"knapsack-bench/internal/service"
	"knapsack-bench/internal/store"
)

const classicBody = `{
	"instance": {
		"id": "classic",
		"capacity": 50,
		"items": [
			{"id": "a", "value": 60, "weight": 10},
			{"id": "b", "value": 100, "weight": 20},
			{"id": "c", "value": 120, "weight": 30}
		]
	},
	"solver": "%s"
}`

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	collectors := metrics.New()
	svc := service.NewOptimizerService(service.Options{
		Defaults: service.SolverOptions{MaxIterations: 6000, Seed: 123},
		Backend:  algorithm.NewHybridBackend(0),
		Store:    st,
		Metrics:  collectors,
	})

	app := fiber.New()
	app.Use(RequestSizeLimiter(64 * 1024))
	SetupRoutes(app, svc, collectors.Registry)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
	}
	return resp.StatusCode, decoded
}

func errorCode(t *testing.T, body map[string]any) float64 {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	return envelope["code"].(float64)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/healthz", "/actuator/health"} {
		status, body := do(t, app, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "UP", body["status"])
	}
}

func TestSolveEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/knapsack/solve", fmt.Sprintf(classicBody, "exact"))
	require.Equal(t, http.StatusOK, status, body)

	assert.Equal(t, "Optimal", body["status"])
	solution := body["solution"].(map[string]any)
	assert.Equal(t, 220.0, solution["objective_value"])
	assert.Equal(t, []any{"b", "c"}, solution["selection"])
	assert.Equal(t, true, body["stored"])
}

func TestSolveEndpointErrors(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/knapsack/solve", `{"instance":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 400.0, errorCode(t, body))

	status, body = do(t, app, http.MethodPost, "/api/v1/knapsack/solve", fmt.Sprintf(classicBody, "simplex"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 400.0, errorCode(t, body))

	status, body = do(t, app, http.MethodPost, "/api/v1/knapsack/solve", `{"instance":{"items":[{"value":1,"weight":-1}],"capacity":3}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"].(map[string]any)["message"], "weight must be >= 0")
}

func TestRequestSizeLimiter(t *testing.T) {
	app := newTestApp(t)

	big := `{"pad":"` + strings.Repeat("x", 70*1024) + `"}`
	status, body := do(t, app, http.MethodPost, "/api/v1/knapsack/solve", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, 413.0, errorCode(t, body))
}

func TestReportAndRunsEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/knapsack/report?challenger=greedy&baseline=exact", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, 422.0, errorCode(t, body))

	status, _ = do(t, app, http.MethodGet, "/api/v1/knapsack/report?challenger=greedy", "")
	assert.Equal(t, http.StatusBadRequest, status)

	for _, solver := range []string{"greedy", "exact"} {
		status, _ := do(t, app, http.MethodPost, "/api/v1/knapsack/solve", fmt.Sprintf(classicBody, solver))
		require.Equal(t, http.StatusOK, status)
	}

	status, body = do(t, app, http.MethodGet, "/api/v1/knapsack/report?challenger=greedy&baseline=exact", "")
	require.Equal(t, http.StatusOK, status, body)
	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "classic", row["instance_id"])
	assert.Equal(t, -60.0, row["delta_objective"])

	status, body = do(t, app, http.MethodGet, "/api/v1/knapsack/runs", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["count"])

	status, body = do(t, app, http.MethodGet, "/api/v1/knapsack/runs?solver=Exact", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])

	status, body = do(t, app, http.MethodGet, "/api/v1/knapsack/report?challenger=GREEDY&baseline=Exact", "")
	require.Equal(t, http.StatusOK, status, body)
	row = body["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, -60.0, row["delta_objective"])
}

func TestCompareEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/knapsack/compare", `{
		"challenger": [{"locator": "a.json", "record": {"instance_id": "inst", "status": "Feasible", "objective": 5}}],
		"baseline": []
	}`)
	require.Equal(t, http.StatusOK, status, body)

	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Nil(t, row["baseline"])
	assert.Nil(t, row["delta_objective"])
	assert.Contains(t, row, "delta_objective")

	status, body = do(t, app, http.MethodPost, "/api/v1/knapsack/compare", `{"challenger": [], "baseline": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, 422.0, errorCode(t, body))
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, http.MethodPost, "/api/v1/knapsack/solve", fmt.Sprintf(classicBody, "greedy"))
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `knapbench_solves_total{solver="greedy",status="Feasible"} 1`)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 400, StatusCode(fmt.Errorf("wrap: %w", domain.ErrInvalidInstance)))
	assert.Equal(t, 400, StatusCode(domain.ErrInvalidConfig))
	assert.Equal(t, 422, StatusCode(domain.ErrEmptyInput))
	assert.Equal(t, 500, StatusCode(domain.ErrBackendUnavailable))
	assert.Equal(t, 500, StatusCode(fmt.Errorf("disk full")))
}
