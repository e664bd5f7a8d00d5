package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.ObserveRequest(http.MethodGet, "/api/incidents/", http.StatusOK, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	m.RecordWrite("create", nil)
	m.RecordWrite("delete", errors.New("boom"))
	m.RecordSeed(10, 3)

	out := scrape(t, m)
	for _, want := range []string{
		`nearmiss_http_requests_total{method="GET",route="/api/incidents/",status_code="200"} 1`,
		`nearmiss_http_requests_total{method="GET",route="unmatched",status_code="404"} 1`,
		`nearmiss_incident_writes_total{operation="create",status="success"} 1`,
		`nearmiss_incident_writes_total{operation="delete",status="error"} 1`,
		`nearmiss_seed_records_total{outcome="inserted"} 10`,
		`nearmiss_seed_records_total{outcome="skipped"} 3`,
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(out, want), "missing %s", want)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordWrite("update", nil)
		m.RecordSeed(1, 1)
	})
}
