package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/auth"
	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/observability"
	"nearmiss-dashboard/core/store"
	"nearmiss-dashboard/core/utils"
)

func setupServer(t *testing.T, keys ...string) *httptest.Server {
	t.Helper()
	logger := utils.NewDiscardLogger()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "api.db"),
		ListenAddr: "127.0.0.1:0",
		CORS:       config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Auth:       config.AuthConfig{APIKeys: keys},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	policy := testPolicy(t)
	km, err := auth.NewKeyManager(cfg.Auth, policy)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	metrics, err := observability.NewMetrics(db)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	srv := NewServer(cfg, ServerDeps{
		Incidents: incidents.NewService(store.NewIncidentsStore(db), cfg.Incidents, logger),
		Policy:    policy,
		Keys:      km,
		Metrics:   metrics,
	}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestServerExampleScenario(t *testing.T) {
	ts := setupServer(t)
	for _, body := range []string{
		`{"incidentNumber":"NM-1","incidentDate":"2024-01-15","severityLevel":1,"region":"North"}`,
		`{"incidentNumber":"NM-2","incidentDate":"2024-02-10","severityLevel":3,"region":"South"}`,
		`{"incidentNumber":"NM-3","incidentDate":"2024-02-20","severityLevel":3,"region":"North"}`,
	} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/api/incidents", "", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d", resp.StatusCode)
		}
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/incidents?severityLevel=3", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var page incidents.Page
	decodeBody(t, resp, &page)
	if len(page.Data) != 2 || page.Meta.Total != 2 {
		t.Fatalf("expected 2 results, got %d (total %d)", len(page.Data), page.Meta.Total)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents/stats/by-region", "", "")
	var regions []incidents.LabelValue
	decodeBody(t, resp, &regions)
	want := []incidents.LabelValue{{Label: "North", Value: 2, Percentage: 67}, {Label: "South", Value: 1, Percentage: 33}}
	if len(regions) != len(want) || regions[0] != want[0] || regions[1] != want[1] {
		t.Fatalf("unexpected by-region %+v", regions)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents/stats/by-month", "", "")
	var months []incidents.MonthCount
	decodeBody(t, resp, &months)
	if len(months) != 2 || months[0] != (incidents.MonthCount{Year: 2024, Month: 1, Count: 1}) || months[1] != (incidents.MonthCount{Year: 2024, Month: 2, Count: 2}) {
		t.Fatalf("unexpected by-month %+v", months)
	}

	id := page.Data[0].ID
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents/"+id, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/incidents/"+id, "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents/"+id, "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents?sortBy=secret", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid sortBy: expected 400, got %d", resp.StatusCode)
	}
}

func TestServerAPIKeyRoles(t *testing.T) {
	ts := setupServer(t, "view-key:viewer", "edit-key:editor")
	body := `{"incidentNumber":"NM-1","incidentDate":"2024-01-15","severityLevel":1}`

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/incidents", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/incidents", "view-key", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer list: expected 200, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/incidents", "view-key", body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create: expected 403, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/incidents", "edit-key", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("editor create: expected 201, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must not require a key, got %d", resp.StatusCode)
	}
}

func TestServerRoutingAndMetrics(t *testing.T) {
	ts := setupServer(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/nope", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPatch, ts.URL+"/api/incidents/abc", "", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/health/ready", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
	doRequest(t, http.MethodGet, ts.URL+"/api/incidents/attributes/region", "", "")

	resp = doRequest(t, http.MethodGet, ts.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		`nearmiss_http_requests_total{method="GET",route="/api/incidents/attributes/{field}",status_code="200"} 1`,
		`nearmiss_http_requests_total{method="GET",route="/health/ready",status_code="200"} 1`,
		"nearmiss_http_request_duration_seconds_bucket",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
