package linterpool_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlayer/langbridge/internal/diagnostic"
	"github.com/flowlayer/langbridge/internal/linterpool"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fakelinter.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	return path
}

func TestAnalyze_ParsesJSONArrayOnExitZero(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf '[{"line":3,"column":1,"message":"unused var","severity":"warning","ruleCode":"LB001"}]'
exit 0
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	diags, err := p.Analyze(context.Background(), "a.go", []byte("package a"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostic.SeverityWarning, diags[0].Severity)
	assert.Equal(t, diagnostic.SourceLinter, diags[0].Source)
}

func TestAnalyze_ExitCodeOneIsStillSuccess(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf '[{"line":1,"column":1,"message":"found a finding","severity":"error"}]'
exit 1
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	diags, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
}

func TestAnalyze_HighExitCodeWithNoStdoutIsFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
exit 2
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	_, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	assert.Error(t, err)
}

func TestAnalyze_HighExitCodeWithStdoutIsTolerated(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf '[{"line":2,"column":2,"message":"partial","severity":"info"}]'
exit 2
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	diags, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
}

func TestAnalyze_FallsBackToLineParserOnNonJSONOutput(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf 'a.go:5:3: error: missing semicolon\n'
exit 1
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	diags, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, 5, diags[0].Line)
	assert.Equal(t, diagnostic.SeverityError, diags[0].Severity)
}

func TestAnalyze_PreservesFixAttachment(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf '[{"line":1,"column":1,"message":"m","severity":"error","fix":{"startByte":0,"endByte":3,"replace":"foo","message":"rename"}}]'
exit 0
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	defer p.Shutdown()

	diags, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.NotNil(t, diags[0].Attachment)
}

func TestAnalyze_ConcurrencyIsBoundedBySemaphore(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
sleep 0.2
printf '[]'
exit 0
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 1, FileTimeout: time.Second})
	defer p.Shutdown()

	start := time.Now()

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := p.Analyze(context.Background(), "a.go", []byte("x"))
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}

	<-done
	<-done

	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond, "two requests on a concurrency-1 pool must serialize")
}

func TestAnalyze_QueueTimeoutWhenNoSlotFreesInTime(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
sleep 1
printf '[]'
exit 0
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 1, FileTimeout: time.Second})
	defer p.Shutdown()

	go func() {
		_, _ = p.Analyze(context.Background(), "busy.go", []byte("x"))
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Analyze(ctx, "queued.go", []byte("x"))
	assert.ErrorIs(t, err, linterpool.ErrQueueTimeout)
}

func TestShutdown_FailsSubsequentRequests(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `#!/bin/sh
cat >/dev/null
printf '[]'
exit 0
`)

	p := linterpool.New(linterpool.Config{Command: "sh", Args: []string{script}, Concurrency: 2})
	p.Shutdown()

	_, err := p.Analyze(context.Background(), "a.go", []byte("x"))
	assert.ErrorIs(t, err, linterpool.ErrShuttingDown)
}
