package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartcity/traffic-analyzer/internal/repository/postgres"
	"github.com/smartcity/traffic-analyzer/internal/service"
	"github.com/smartcity/traffic-analyzer/pkg/metrics"
)

func newTestApp(t *testing.T) (*fiber.App, *service.AnalysisService, *postgres.MockRepository) {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("traffic_analyzer", reg)
	repo := postgres.NewMockRepository()
	svc := service.NewAnalysisService(
		service.NewDelegationClient(service.DefaultDelegationConfig(), collector),
		repo, collector, service.DefaultSampleLimit,
	)
	app := fiber.New()
	SetupRoutes(app, svc, reg)
	return app, svc, repo
}

func uploadRequest(t *testing.T, path, field, name, content string) *multipartRequest {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &multipartRequest{path: path, body: buf.Bytes(), contentType: w.FormDataContentType()}
}

type multipartRequest struct {
	path        string
	body        []byte
	contentType string
}

func doJSON(t *testing.T, app *fiber.App, method, path string, r *multipartRequest) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if r != nil {
		req = httptest.NewRequest(method, r.path, bytes.NewReader(r.body))
		req.Header.Set("Content-Type", r.contentType)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func trafficCSV() string {
	var b strings.Builder
	b.WriteString("timestamp,location_id,vehicle_count,avg_speed_kmh\n")
	for day := 1; day <= 6; day++ {
		for _, hc := range [][2]int{{2, 40}, {8, 120}, {12, 100}, {17, 200}} {
			count := hc[1]
			if day == 3 && hc[0] == 8 {
				count = 300
			}
			fmt.Fprintf(&b, "2024-01-%02d %02d:00:00,LOC_01,%d,50\n", day, hc[0], count)
		}
	}
	return b.String()
}

func TestAnalyzeEndpoint(t *testing.T) {
	app, svc, repo := newTestApp(t)

	for _, path := range []string{"/api/v1/analyze", "/analyze"} {
		status, body := doJSON(t, app, fiber.MethodPost, path,
			uploadRequest(t, path, "file", "traffic.csv", trafficCSV()))

		if status != fiber.StatusOK {
			t.Fatalf("%s: status = %d, body = %v", path, status, body)
		}
		if body["success"] != true {
			t.Errorf("%s: success = %v", path, body["success"])
		}

		processed := body["processed_data"].(map[string]any)
		if processed["total_records"].(float64) != 24 {
			t.Errorf("total_records = %v", processed["total_records"])
		}
		first := processed["raw_data"].([]any)[0].(map[string]any)
		if first["timestamp"] != "2024-01-01 02:00:00" {
			t.Errorf("first timestamp = %v", first["timestamp"])
		}

		analysis := body["analysis"].(map[string]any)
		anomalies := analysis["anomalies"].([]any)
		if len(anomalies) != 1 {
			t.Fatalf("anomalies = %v", anomalies)
		}
		a := anomalies[0].(map[string]any)
		if a["deviation_pct"].(float64) != 100 || a["severity"] != "high" {
			t.Errorf("anomaly = %v", a)
		}
		if analysis["source"] != "local" {
			t.Errorf("source = %v", analysis["source"])
		}
		if _, ok := analysis["insights"].(string); !ok {
			t.Errorf("insights = %v", analysis["insights"])
		}

		baselines := body["baselines"].(map[string]any)
		loc := baselines["LOC_01"].(map[string]any)
		hour8 := loc["vehicle_count"].(map[string]any)["8"].(map[string]any)
		if hour8["mean"].(float64) != 150 {
			t.Errorf("baseline = %v", hour8)
		}
	}

	svc.WaitBackground()
	if n := len(repo.Runs()); n != 2 {
		t.Errorf("recorded runs = %d, want 2", n)
	}
}

func TestAnalyzeEndpointValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	csv := "timestamp,location_id,vehicle_count\n2024-01-01 00:00:00,A,x\n"
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/analyze",
		uploadRequest(t, "/api/v1/analyze", "file", "bad.csv", csv))

	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if body["error"] != "Invalid CSV format" {
		t.Errorf("error = %v", body["error"])
	}
	details := body["details"].([]any)
	want := []string{
		"Missing required columns: avg_speed_kmh",
		"Column 'vehicle_count' must be numeric",
		"CSV must contain at least 10 records for analysis",
	}
	if len(details) != len(want) {
		t.Fatalf("details = %v", details)
	}
	for i, w := range want {
		if details[i] != w {
			t.Errorf("details[%d] = %v, want %q", i, details[i], w)
		}
	}
}

func TestAnalyzeEndpointParseError(t *testing.T) {
	app, _, _ := newTestApp(t)

	csv := strings.Replace(trafficCSV(), "2024-01-02 12:00:00", "sometime", 1)
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/analyze",
		uploadRequest(t, "/api/v1/analyze", "file", "bad.csv", csv))

	if status != fiber.StatusBadRequest || body["error"] != "CSV parsing error" {
		t.Errorf("status = %d, body = %v", status, body)
	}
}

func TestAnalyzeEndpointMissingFile(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/analyze",
		uploadRequest(t, "/api/v1/analyze", "upload", "traffic.csv", trafficCSV()))

	if status != fiber.StatusBadRequest || body["error"] != "Missing file" {
		t.Errorf("status = %d, body = %v", status, body)
	}
}

func TestHealthAndRoot(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/health", nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["backend"] != "healthy" || body["analysis_service"] != "local_mode" || body["database"] != "ok" {
		t.Errorf("health = %v", body)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/", nil)
	if status != fiber.StatusOK || body["message"] != "Traffic Pattern Analyzer API" {
		t.Errorf("root = %d %v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	doJSON(t, app, fiber.MethodPost, "/api/v1/analyze",
		uploadRequest(t, "/api/v1/analyze", "file", "traffic.csv", trafficCSV()))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), `traffic_analyzer_analysis_requests_total{outcome="ok"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", data)
	}
}
