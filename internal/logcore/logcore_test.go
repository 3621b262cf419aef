package logcore_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlayer/langbridge/internal/logcore"
)

func TestCore_AppendFeedsRingAndBatch(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		batches [][]logcore.Entry
	)

	core := logcore.New(10, time.Hour, func(batch []logcore.Entry) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, batch)
	})
	defer core.Close()

	core.Append(logcore.LevelInfo, "hello", nil)
	assert.Equal(t, 1, core.Size())

	core.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	assert.Equal(t, "hello", batches[0][0].Message)
}

func TestCore_RingBufferCapacityBound(t *testing.T) {
	t.Parallel()

	core := logcore.New(3, time.Hour, nil)
	defer core.Close()

	for i := 0; i < 5; i++ {
		core.Append(logcore.LevelInfo, "msg", nil)
	}

	assert.Equal(t, 3, core.Size(), "ring size must be min(n, capacity)")
}

func TestCore_SnapshotRetainsOldestAtExpectedOffset(t *testing.T) {
	t.Parallel()

	core := logcore.New(3, time.Hour, nil)
	defer core.Close()

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		core.Append(logcore.LevelInfo, msg, nil)
	}

	snap := core.Snapshot()
	require.Len(t, snap, 3)
	// n=5, k=3: oldest retained is the (n-k)=2nd append (0-indexed), i.e. "c".
	assert.Equal(t, "c", snap[0].Message)
	assert.Equal(t, "d", snap[1].Message)
	assert.Equal(t, "e", snap[2].Message)
}

func TestCore_ExplicitFlushIsIdempotentWhenEmpty(t *testing.T) {
	t.Parallel()

	flushCount := 0

	core := logcore.New(10, time.Hour, func(batch []logcore.Entry) {
		flushCount++
	})
	defer core.Close()

	core.Flush()
	core.Flush()

	assert.Zero(t, flushCount, "flush with an empty batch must not invoke the callback")
}

func TestLogger_WithMergesStaticFields(t *testing.T) {
	t.Parallel()

	var captured logcore.Entry

	core := logcore.New(10, time.Hour, func(batch []logcore.Entry) {
		captured = batch[len(batch)-1]
	})
	defer core.Close()

	root := logcore.NewLogger(core)
	child := root.With(map[string]any{"component": "bridge"})

	child.Info("dispatching", map[string]any{"uri": "file:///a.go"})
	core.Flush()

	assert.Equal(t, "bridge", captured.Fields["component"])
	assert.Equal(t, "file:///a.go", captured.Fields["uri"])
}

func TestFileSink_RotatesAndCompressesBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")

	sink, err := logcore.NewFileSink(path, 32, false)
	require.NoError(t, err)
	defer sink.Close()

	sink.Write([]logcore.Entry{
		{TimeMs: 1, Level: logcore.LevelInfo, Message: "this line is long enough to force rotation soon"},
	})
	sink.Write([]logcore.Entry{
		{TimeMs: 2, Level: logcore.LevelInfo, Message: "another line"},
	})

	assert.FileExists(t, path)
	assert.FileExists(t, path+".1.lz4")
}
