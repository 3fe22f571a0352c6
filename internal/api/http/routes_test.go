package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/growth-observations/internal/fetch"
	"github.com/i474232898/growth-observations/internal/growth"
)

type stubSource struct {
	body string
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) SearchObservations(ctx context.Context, query string) (growth.Bundle, error) {
	if s.err != nil {
		return growth.Bundle{}, s.err
	}
	var b growth.Bundle
	err := json.Unmarshal([]byte(s.body), &b)
	return b, err
}

const heightBody = `{"data":[{"resource":{"effectiveDateTime":"2024-01-01","valueQuantity":{"value":70,"unit":"cm"},"code":{"coding":[{"code":"height"}]}}}]}`

func newTestApp(src growth.ObservationSource) *fiber.App {
	app := fiber.New()
	reader := growth.NewReader(src, fetch.NewCache[growth.Bundle](fetch.Options{}), "")
	RegisterRoutes(app, reader, time.Second)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string) (int, growthResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body growthResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
	}
	return resp.StatusCode, body
}

func TestGrowthWithoutPatientIsIdle(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/growth")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body.IsLoading || body.Error != nil {
		t.Fatalf("expected idle response, got %+v", body)
	}
	if body.GrowthData.Height == nil || len(body.GrowthData.Height) != 0 || len(body.GrowthData.Weight) != 0 {
		t.Fatalf("expected empty arrays, got %+v", body.GrowthData)
	}
}

func TestGrowthEmptyArraysSerializeAsArrays(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/growth?patient=", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	want := `{"growthData":{"height":[],"weight":[]},"isLoading":false,"error":null}`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}
}

func TestGrowthRejectsInvalidPatientID(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	id := strings.Repeat("a", 65)
	for _, target := range []string{
		"/api/v1/growth?patient=a%2Fb",
		"/api/v1/growth?patient=" + id,
	} {
		status, _ := doJSON(t, app, http.MethodGet, target)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, status)
		}
	}
}

func TestGrowthWaitReturnsSeries(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/growth?patient=123&wait=true")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body.IsLoading || body.Error != nil {
		t.Fatalf("expected settled response, got %+v", body)
	}
	want := growth.Measurement{Date: "1/1/2024", Value: 70, Unit: "cm"}
	if len(body.GrowthData.Height) != 1 || body.GrowthData.Height[0] != want {
		t.Fatalf("expected height %+v, got %+v", want, body.GrowthData.Height)
	}
	if len(body.GrowthData.Weight) != 0 {
		t.Fatalf("expected no weight, got %+v", body.GrowthData.Weight)
	}
}

func TestGrowthWithoutWaitReportsLoading(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	_, body := doJSON(t, app, http.MethodGet, "/api/v1/growth?patient=123")
	if !body.IsLoading {
		t.Fatalf("expected loading on first request, got %+v", body)
	}
}

func TestGrowthSurfacesFetchError(t *testing.T) {
	app := newTestApp(&stubSource{err: errors.New("upstream unavailable")})

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/growth?patient=123&wait=true")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body.Error == nil || *body.Error != "upstream unavailable" {
		t.Fatalf("expected error message, got %+v", body.Error)
	}
}

func TestRefreshRequiresPatient(t *testing.T) {
	app := newTestApp(&stubSource{body: heightBody})

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/growth/refresh")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, status)
	}

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/growth/refresh?patient=123")
	if status != http.StatusOK || len(body.GrowthData.Height) != 1 {
		t.Fatalf("expected refreshed series, got %d %+v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	fetch.NewMetrics(reg, "growth")

	app := fiber.New()
	RegisterMetrics(app, reg)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "growth_cache_hits_total") {
		t.Fatalf("expected cache metrics in exposition, got %s", raw)
	}
}
