// Package httpapi exposes the runtime's health rollup and metrics over
// HTTP, adapted from the teacher's engine/adapters/telemetryhttp handlers:
// same /healthz, /readyz, /metrics shape, built over this runtime's
// telemetry/health.Evaluator and telemetry/metrics.Provider instead of the
// teacher's crawl engine.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"protoflight/telemetry/health"
	"protoflight/telemetry/metrics"
)

// HealthSource is the one method httpapi needs out of a health.Evaluator,
// kept as an interface so handlers can be tested against a stub snapshot.
type HealthSource interface {
	Evaluate(ctx context.Context) health.Snapshot
}

// HealthHandlerOptions configures the health/readiness handlers.
type HealthHandlerOptions struct {
	Source        HealthSource
	IncludeProbes bool
	Clock         func() time.Time
}

type healthResponse struct {
	Overall   health.Status        `json:"overall"`
	Probes    []health.ProbeResult `json:"probes,omitempty"`
	Generated time.Time            `json:"generated"`
	Ready     *bool                `json:"ready,omitempty"`
	Previous  string               `json:"previous,omitempty"`
	ChangedAt *time.Time           `json:"changed_at,omitempty"`
}

type readinessTracker struct {
	lastStatus atomic.Value
	changedAt  atomic.Value
}

func (rt *readinessTracker) update(cur string, now time.Time) (prev string, changedAt *time.Time) {
	if raw := rt.lastStatus.Load(); raw != nil {
		prev = raw.(string)
	}
	if prev != cur {
		rt.lastStatus.Store(cur)
		nowCopy := now
		rt.changedAt.Store(nowCopy)
		return prev, &nowCopy
	}
	if raw := rt.changedAt.Load(); raw != nil {
		cc := raw.(time.Time)
		changedAt = &cc
	}
	return prev, changedAt
}

var defaultTracker readinessTracker

// NewHealthHandler reports the full probe rollup at /healthz.
func NewHealthHandler(opts HealthHandlerOptions) http.Handler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.Source == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "health source nil"})
			return
		}
		snap := opts.Source.Evaluate(r.Context())
		prev, changedAt := defaultTracker.update(string(snap.Overall), opts.Clock())
		resp := healthResponse{Overall: snap.Overall, Generated: opts.Clock()}
		if opts.IncludeProbes {
			resp.Probes = snap.Probes
		}
		if prev != "" && prev != string(snap.Overall) {
			resp.Previous = prev
		}
		resp.ChangedAt = changedAt
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// NewReadinessHandler reports 200 for Healthy/Degraded and 503 for
// Unhealthy at /readyz — a degraded scheduler still accepts traffic, an
// unhealthy one should be pulled out of rotation.
func NewReadinessHandler(opts HealthHandlerOptions) http.Handler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.Source == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "health source nil"})
			return
		}
		snap := opts.Source.Evaluate(r.Context())
		prev, changedAt := defaultTracker.update(string(snap.Overall), opts.Clock())
		ready := snap.Overall == health.StatusHealthy || snap.Overall == health.StatusDegraded
		resp := healthResponse{Overall: snap.Overall, Generated: opts.Clock(), Ready: &ready}
		if opts.IncludeProbes {
			resp.Probes = snap.Probes
		}
		if prev != "" && prev != string(snap.Overall) {
			resp.Previous = prev
		}
		resp.ChangedAt = changedAt
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// NewMetricsHandler exposes p's scrape endpoint when p supports one (the
// Prometheus provider does); otherwise 501, so an OTel-push deployment
// doesn't accidentally advertise a scrape path nothing serves.
func NewMetricsHandler(p metrics.Provider) http.Handler {
	if p == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	}
	if scraper, ok := p.(interface{ MetricsHandler() http.Handler }); ok {
		return scraper.MetricsHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "metrics handler unavailable", http.StatusNotImplemented)
	})
}
