package health

import (
	"context"
	"fmt"

	"protoflight/mb"
	"protoflight/telemetry/metrics"
	"protoflight/tm"
)

// SchedulerProbe reports Degraded once any task has missed a heartbeat
// window and Healthy otherwise. It never reports Unhealthy on its own —
// a missed heartbeat has no in-framework recovery (spec §7), so it is a
// degradation signal, not a fatal one.
func SchedulerProbe(scheduler *tm.TM) Probe {
	return ProbeFunc(func(ctx context.Context) ProbeResult {
		status := scheduler.GetStatus()
		if status.TasksMissedHeartbeat > 0 {
			return Degraded("tm", fmt.Sprintf("%d task(s) missed heartbeat", status.TasksMissedHeartbeat))
		}
		return Healthy("tm")
	})
}

// BusProbe reports Degraded once the bus has recorded any send or receive
// error since initialization.
func BusProbe(bus *mb.Bus) Probe {
	return ProbeFunc(func(ctx context.Context) ProbeResult {
		status := bus.GetStatus()
		if status.SendErrors > 0 || status.ReceiveErrors > 0 {
			return Degraded("mb", fmt.Sprintf("%d send error(s), %d receive error(s)", status.SendErrors, status.ReceiveErrors))
		}
		return Healthy("mb")
	})
}

// MetricsProbe reports Degraded once provider.Health reports a problem —
// an instrument that failed to register, or a metric that crossed its
// cardinality limit (telemetry/metrics.PrometheusProvider/otelProvider).
func MetricsProbe(provider metrics.Provider) Probe {
	return ProbeFunc(func(ctx context.Context) ProbeResult {
		if err := provider.Health(ctx); err != nil {
			return Degraded("metrics", err.Error())
		}
		return Healthy("metrics")
	})
}
