package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/flowlayer/langbridge/internal/observability"
)

func TestNewPoolMetrics_RecordsWithoutError(t *testing.T) {
	t.Parallel()

	mp := metric.NewMeterProvider()
	meter := mp.Meter("test")

	pm, err := observability.NewPoolMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	pm.SetQueueDepth(ctx, 3)
	pm.SetQueueDepth(ctx, -1)
	pm.RecordDeduped(ctx)
	pm.RecordSuperseded(ctx)
	pm.RecordRespawn(ctx, "checker")
	done := pm.TrackWorkerBusy(ctx, "linter")
	done()
	pm.RecordCacheResult(ctx, "result", true)
	pm.RecordCacheResult(ctx, "type", false)
}

func TestPoolMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var pm *observability.PoolMetrics

	ctx := context.Background()
	pm.SetQueueDepth(ctx, 1)
	pm.RecordDeduped(ctx)
	pm.RecordSuperseded(ctx)
	pm.RecordRespawn(ctx, "checker")
	done := pm.TrackWorkerBusy(ctx, "checker")
	done()
	pm.RecordCacheResult(ctx, "result", true)
}
