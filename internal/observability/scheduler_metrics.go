package observability

import (
	"context"
	"fmt"
	"runtime/metrics"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricNameGoroutines = "/sched/goroutines:goroutines"
	metricNameThreads    = "/sched/threads:threads"

	instrumentGoroutines = "langbridge.runtime.goroutines"
	instrumentThreads    = "langbridge.runtime.threads"
)

// SchedulerMetrics exposes Go runtime scheduler gauges (goroutine and OS
// thread counts) via an OTel observable-gauge callback.
type SchedulerMetrics struct {
	goroutines metric.Int64ObservableGauge
	threads    metric.Int64ObservableGauge
}

// NewSchedulerMetrics registers scheduler gauges on the given meter.
func NewSchedulerMetrics(mt metric.Meter) (*SchedulerMetrics, error) {
	goroutines, err := mt.Int64ObservableGauge(instrumentGoroutines,
		metric.WithDescription("Number of live goroutines"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", instrumentGoroutines, err)
	}

	threads, err := mt.Int64ObservableGauge(instrumentThreads,
		metric.WithDescription("Number of OS threads in use"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", instrumentThreads, err)
	}

	sm := &SchedulerMetrics{goroutines: goroutines, threads: threads}

	_, err = mt.RegisterCallback(sm.observe, goroutines, threads)
	if err != nil {
		return nil, fmt.Errorf("register scheduler metrics callback: %w", err)
	}

	return sm, nil
}

func (sm *SchedulerMetrics) observe(_ context.Context, obs metric.Observer) error {
	samples := []metrics.Sample{
		{Name: metricNameGoroutines},
		{Name: metricNameThreads},
	}
	metrics.Read(samples)

	obs.ObserveInt64(sm.goroutines, readUint64Sample(samples[0]))
	obs.ObserveInt64(sm.threads, readUint64Sample(samples[1]))

	return nil
}

func readUint64Sample(s metrics.Sample) int64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}

	return int64(s.Value.Uint64())
}
