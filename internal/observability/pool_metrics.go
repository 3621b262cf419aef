package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricQueueDepth       = "langbridge.bridge.queue.depth"
	metricDedupedTotal     = "langbridge.bridge.deduped.total"
	metricSupersededTotal  = "langbridge.bridge.superseded.total"
	metricWorkerRespawns   = "langbridge.pool.worker.respawns.total"
	metricWorkerBusy       = "langbridge.pool.worker.busy"
	metricCacheHitsTotal   = "langbridge.cache.hits.total"
	metricCacheMissesTotal = "langbridge.cache.misses.total"

	attrPool  = "pool"
	attrCache = "cache"
)

// PoolMetrics holds OTel instruments for the dispatcher queue and the
// checker/linter process pools.
type PoolMetrics struct {
	queueDepth      metric.Int64UpDownCounter
	dedupedTotal    metric.Int64Counter
	supersededTotal metric.Int64Counter
	workerRespawns  metric.Int64Counter
	workerBusy      metric.Int64UpDownCounter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewPoolMetrics creates pool metric instruments from the given meter.
func NewPoolMetrics(mt metric.Meter) (*PoolMetrics, error) {
	queueDepth, err := mt.Int64UpDownCounter(metricQueueDepth,
		metric.WithDescription("Pending items in the dispatcher priority queue"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueueDepth, err)
	}

	deduped, err := mt.Int64Counter(metricDedupedTotal,
		metric.WithDescription("Requests folded into an already-queued request for the same key"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDedupedTotal, err)
	}

	superseded, err := mt.Int64Counter(metricSupersededTotal,
		metric.WithDescription("Queued requests replaced by a newer request for the same key"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSupersededTotal, err)
	}

	respawns, err := mt.Int64Counter(metricWorkerRespawns,
		metric.WithDescription("Pool worker process respawns"),
		metric.WithUnit("{respawn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWorkerRespawns, err)
	}

	busy, err := mt.Int64UpDownCounter(metricWorkerBusy,
		metric.WithDescription("Pool workers currently handling a request"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWorkerBusy, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by cache name"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by cache name"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &PoolMetrics{
		queueDepth:      queueDepth,
		dedupedTotal:    deduped,
		supersededTotal: superseded,
		workerRespawns:  respawns,
		workerBusy:      busy,
		cacheHits:       hits,
		cacheMisses:     misses,
	}, nil
}

// SetQueueDepth adjusts the queue-depth gauge by delta (positive on enqueue,
// negative on dequeue). Safe to call on a nil receiver (no-op).
func (pm *PoolMetrics) SetQueueDepth(ctx context.Context, delta int64) {
	if pm == nil {
		return
	}

	pm.queueDepth.Add(ctx, delta)
}

// RecordDeduped records a request folded into an existing queued request.
func (pm *PoolMetrics) RecordDeduped(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.dedupedTotal.Add(ctx, 1)
}

// RecordSuperseded records a queued request replaced by a newer one.
func (pm *PoolMetrics) RecordSuperseded(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.supersededTotal.Add(ctx, 1)
}

// RecordRespawn records a pool worker respawn, tagged by pool name
// ("checker" or "linter").
func (pm *PoolMetrics) RecordRespawn(ctx context.Context, pool string) {
	if pm == nil {
		return
	}

	pm.workerRespawns.Add(ctx, 1, metric.WithAttributes(attribute.String(attrPool, pool)))
}

// TrackWorkerBusy increments the busy-worker gauge for pool and returns a
// function to decrement it once the worker becomes free again.
func (pm *PoolMetrics) TrackWorkerBusy(ctx context.Context, pool string) func() {
	if pm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrPool, pool))
	pm.workerBusy.Add(ctx, 1, attrs)

	return func() {
		pm.workerBusy.Add(ctx, -1, attrs)
	}
}

// RecordCacheResult records a cache hit or miss, tagged by cache name
// ("result" or "type").
func (pm *PoolMetrics) RecordCacheResult(ctx context.Context, cacheName string, hit bool) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, cacheName))
	if hit {
		pm.cacheHits.Add(ctx, 1, attrs)

		return
	}

	pm.cacheMisses.Add(ctx, 1, attrs)
}
