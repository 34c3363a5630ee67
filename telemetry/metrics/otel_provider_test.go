package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOTelKnownLabelValuesDoNotCountAgainstCardinalityLimit(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{CardinalityLimit: 2}).(*otelProvider)
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "protoflight", Subsystem: "test", Name: "seeded_total", Labels: []string{"result"},
		KnownLabelValues: [][]string{{"okay"}, {"error"}},
	}})

	c.Inc(1, "okay")
	c.Inc(1, "error")
	require.NoError(t, p.Health(context.Background()))
}

func TestOTelCardinalityBreachSurfacesThroughHealth(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{CardinalityLimit: 1}).(*otelProvider)
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Namespace: "protoflight", Subsystem: "test", Name: "cardinality_total", Labels: []string{"k"}}})

	c.Inc(1, "a")
	require.NoError(t, p.Health(context.Background()))

	c.Inc(1, "b") // second distinct value breaches the limit of 1
	err := p.Health(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "problems")
}
