package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"protoflight/telemetry/health"
)

type stubHealthSource struct{ snap health.Snapshot }

func (s *stubHealthSource) setStatus(st health.Status) {
	s.snap = health.Snapshot{Overall: st, Probes: []health.ProbeResult{{Name: "tm", Status: st}}}
}

func (s *stubHealthSource) Evaluate(ctx context.Context) health.Snapshot { return s.snap }

type healthPayload struct {
	Overall string `json:"overall"`
	Ready   *bool  `json:"ready,omitempty"`
}

func TestHealthHandlerReportsOverallAndProbes(t *testing.T) {
	src := &stubHealthSource{}
	src.setStatus(health.StatusHealthy)
	h := NewHealthHandler(HealthHandlerOptions{Source: src, IncludeProbes: true})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var payload healthPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "healthy", payload.Overall)
}

func TestHealthHandlerMissingSource(t *testing.T) {
	h := NewHealthHandler(HealthHandlerOptions{})
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessHandlerDegradedIsReady(t *testing.T) {
	src := &stubHealthSource{}
	src.setStatus(health.StatusDegraded)
	h := NewReadinessHandler(HealthHandlerOptions{Source: src})

	r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var payload healthPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotNil(t, payload.Ready)
	require.True(t, *payload.Ready)
}

func TestReadinessHandlerUnhealthyNotReady(t *testing.T) {
	src := &stubHealthSource{}
	src.setStatus(health.StatusUnhealthy)
	h := NewReadinessHandler(HealthHandlerOptions{Source: src})

	r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerNilProviderNotFound(t *testing.T) {
	h := NewMetricsHandler(nil)
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandlerUsesSuppliedClock(t *testing.T) {
	src := &stubHealthSource{}
	src.setStatus(health.StatusHealthy)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthHandler(HealthHandlerOptions{Source: src, Clock: func() time.Time { return fixed }})

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Generated.Equal(fixed))
}
