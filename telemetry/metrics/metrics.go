// Package metrics defines the minimal provider abstraction every
// protoflight metric flows through, so the runtime core never imports
// Prometheus or OTel directly: only this interface.
package metrics

import "context"

// Provider is the metrics backend contract. Bootstrap picks one
// implementation (Prometheus, OTel, or the no-op) and every module that
// counts something takes a Provider, never a concrete backend.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	NewTimer(h HistogramOpts) func() Timer
	Health(ctx context.Context) error
}

type Counter interface{ Inc(delta float64, labels ...string) }
type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}
type Histogram interface{ Observe(v float64, labels ...string) }
type Timer interface{ ObserveDuration(labels ...string) }

// CommonOpts names a metric; Prometheus joins Namespace/Subsystem/Name with
// underscores, OTel with dots (see buildFQName / buildOTelName).
type CommonOpts struct {
	Namespace, Subsystem, Name, Help string
	Labels                           []string

	// KnownLabelValues is the complete, closed set of label-value tuples
	// a protoflight caller will ever pass to Inc/Set/Add/Observe for this
	// metric, when that set is fixed at compile time or bounded at boot
	// (a typed *_RESULT enum's String() values, a bounded task/pipe
	// table). Every pack this module counts through is closed this way —
	// see mb/em's Result.String() enums — unlike a caller whose label
	// values come from unbounded runtime input (a crawler's target
	// domain, say), which has no closed set to declare and must leave
	// this nil. A provider that supports it pre-creates each tuple's time
	// series at registration instead of on first use, and seeds its
	// cardinality guard with the known set so the guard only ever fires
	// on a genuinely unexpected label value.
	KnownLabelValues [][]string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}
type noopTimer struct{}

// NewNoopProvider discards everything. Used when no backend is configured.
func NewNoopProvider() Provider { return &noopProvider{} }

func (p *noopProvider) NewCounter(CounterOpts) Counter     { return noopCounter{} }
func (p *noopProvider) NewGauge(GaugeOpts) Gauge           { return noopGauge{} }
func (p *noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (p *noopProvider) NewTimer(HistogramOpts) func() Timer {
	return func() Timer { return noopTimer{} }
}
func (p *noopProvider) Health(context.Context) error { return nil }

func (noopCounter) Inc(float64, ...string)      {}
func (noopGauge) Set(float64, ...string)        {}
func (noopGauge) Add(float64, ...string)        {}
func (noopHistogram) Observe(float64, ...string) {}
func (noopTimer) ObserveDuration(...string)      {}
