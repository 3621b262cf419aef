// Package linterpool implements the ephemeral linter worker pool: each
// request spawns a fresh child process bounded by a concurrency semaphore,
// pipes file content on stdin, and parses JSON (with a line-regex fallback)
// diagnostics from stdout (spec.md §4.3).
package linterpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flowlayer/langbridge/internal/diagnostic"
)

// ErrShuttingDown is returned to every request issued after Shutdown.
var ErrShuttingDown = errors.New("linterpool: shutting down")

// ErrQueueTimeout is returned when a request waits longer than its own
// timeout for a free concurrency slot.
var ErrQueueTimeout = errors.New("linterpool: timed out waiting for a free slot")

// Config holds the pool's tunables (mirrors internal/config.LinterConfig).
type Config struct {
	Command     string
	Args        []string
	ConfigPath  string
	Concurrency int
	FileTimeout time.Duration
}

// Pool is the linter-pool manager.
type Pool struct {
	cfg Config
	sem *semaphore.Weighted

	mu     sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
	closed bool
}

// New builds a linter pool. Concurrency defaults to 8 and FileTimeout to
// 10s when unset, matching the specification's defaults.
func New(cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Analyze implements bridge.AnalyzerPool: spawns a fresh linter process,
// pipes content on stdin, and returns parsed diagnostics.
func (p *Pool) Analyze(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrShuttingDown
	}
	poolCtx := p.ctx
	p.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	stopOnShutdown := context.AfterFunc(poolCtx, cancel)
	defer stopOnShutdown()

	if err := p.sem.Acquire(runCtx, 1); err != nil {
		if poolCtx.Err() != nil {
			return nil, ErrShuttingDown
		}

		return nil, fmt.Errorf("%w: %w", ErrQueueTimeout, err)
	}
	defer p.sem.Release(1)

	// A request that was already shutting down by the time it acquired a
	// slot must not spawn a process.
	select {
	case <-poolCtx.Done():
		return nil, ErrShuttingDown
	default:
	}

	return p.run(runCtx, uri, content)
}

func (p *Pool) run(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, error) {
	args := append(append([]string{}, p.cfg.Args...), extraArgs(p.cfg.ConfigPath)...)
	cmd := exec.CommandContext(ctx, p.cfg.Command, args...) //nolint:gosec // command/args come from trusted config

	cmd.Stdin = bytes.NewReader(content)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	out := stdout.Bytes()

	// Per spec.md §4.3: exit codes 0 and 1 both mean success (stdout is the
	// source of truth); higher codes with no stdout are hard failures;
	// higher codes with stdout are tolerated best-effort.
	if exitCode > 1 && len(out) == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("linterpool: %w", runErr)
		}

		return nil, fmt.Errorf("linterpool: exit code %d with no output", exitCode)
	}

	raws, ok := parseJSON(out)
	if !ok {
		raws = parseLines(out)
	}

	diags := make([]diagnostic.Diagnostic, 0, len(raws))

	for _, rd := range raws {
		d := diagnostic.Diagnostic{
			File:      uri,
			Line:      rd.Line,
			Column:    rd.Column,
			EndLine:   rd.EndLine,
			EndColumn: rd.EndColumn,
			Message:   rd.Message,
			Severity:  diagnostic.NormalizeLinterSeverity(rd.Severity),
			Source:    diagnostic.SourceLinter,
			RuleCode:  rd.RuleCode,
		}

		if rd.Fix != nil {
			d.Attachment = rd.Fix
		}

		diags = append(diags, d)
	}

	return diags, nil
}

func extraArgs(configPath string) []string {
	if configPath == "" {
		return nil
	}

	return []string{"--config", configPath}
}

// Shutdown kills any in-flight processes (via context cancellation, which
// exec.CommandContext wires to a process kill) and fails every pending
// acquire with ErrShuttingDown.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	p.mu.Unlock()

	p.cancel()
}
