package metrics

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCardinalityBreachSurfacesThroughHealth(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{CardinalityLimit: 2})
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Namespace: "protoflight", Subsystem: "test", Name: "cardinality_total", Labels: []string{"k"}}})

	require.NoError(t, p.Health(context.Background()))

	c.Inc(1, "a")
	c.Inc(1, "b")
	require.NoError(t, p.Health(context.Background()))

	c.Inc(1, "c") // third distinct label value breaches the limit of 2
	err := p.Health(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cardinality")
}

func TestPrometheusHealthNilWithNoProblems(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	require.NoError(t, p.Health(context.Background()))
}

func TestPrometheusKnownLabelValuesPrecreateSeries(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{CardinalityLimit: 2})
	p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "protoflight", Subsystem: "test", Name: "known_total", Labels: []string{"result"},
		KnownLabelValues: [][]string{{"okay"}, {"error"}},
	}})

	families, err := p.reg.Gather()
	require.NoError(t, err)
	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "protoflight_test_known_total" {
			found = f
		}
	}
	require.NotNil(t, found, "known_total should be registered")
	require.Len(t, found.Metric, 2, "both known result values should be pre-created, zero-valued series")
}

func TestPrometheusKnownLabelValuesDoNotCountAgainstCardinalityLimit(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{CardinalityLimit: 2})
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "protoflight", Subsystem: "test", Name: "seeded_total", Labels: []string{"result"},
		KnownLabelValues: [][]string{{"okay"}, {"error"}},
	}})

	// Both pre-seeded values are used; the limit of 2 is exactly met by the
	// declared set, so using them must not itself file a problem.
	c.Inc(1, "okay")
	c.Inc(1, "error")
	require.NoError(t, p.Health(context.Background()))
}
