// Package checkerpool implements the persistent checker worker pool: a
// fixed-size set of long-lived child processes speaking a newline-JSON
// request/response protocol, with health/liveness timers and single-flight
// respawn on process death (spec.md §4.2).
package checkerpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowlayer/langbridge/internal/diagnostic"
)

// ErrShuttingDown is returned to every request that cannot be served
// because the pool is shutting down.
var ErrShuttingDown = errors.New("checkerpool: shutting down")

// ErrWorkerDied is the error attached to an in-flight request whose worker
// process exited before responding.
var ErrWorkerDied = errors.New("checkerpool: worker process exited")

// ErrTimeout is the error attached to a request whose fileTimeoutMs elapsed
// before a response arrived.
var ErrTimeout = errors.New("checkerpool: request timed out")

// Config holds the pool's tunables (mirrors internal/config.CheckerConfig).
type Config struct {
	Command          string
	Args             []string
	Env              []string
	PoolSize         int
	FileTimeout      time.Duration
	HealthInterval   time.Duration
	LivenessInterval time.Duration
	ShutdownGrace    time.Duration
	ShutdownForce    time.Duration
}

type job struct {
	uri      string
	req      wireRequest
	resultCh chan jobResult
}

type jobResult struct {
	raw []byte
	err error
}

// Pool is the checker-pool manager.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	workers []*worker
	queue   []*job
	closed  bool

	idSeq int64

	wg        sync.WaitGroup
	stopTimer chan struct{}
}

// Start spawns PoolSize workers and begins the health/liveness timers.
func Start(cfg Config) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 30 * time.Second
	}

	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}

	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 10 * time.Second
	}

	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = time.Second
	}

	if cfg.ShutdownForce <= 0 {
		cfg.ShutdownForce = 5 * time.Second
	}

	p := &Pool{
		cfg:       cfg,
		stopTimer: make(chan struct{}),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		w, err := spawnWorker(cfg.Command, cfg.Args, cfg.Env, i, p.onLine)
		if err != nil {
			return nil, fmt.Errorf("checkerpool: %w", err)
		}

		p.workers = append(p.workers, w)
	}

	p.wg.Add(2)
	go p.healthLoop()
	go p.livenessLoop()

	return p, nil
}

func (p *Pool) onLine(index int, resp wireResponse) {
	p.mu.Lock()
	w := p.workers[index]
	p.mu.Unlock()

	w.deliver(resp)
}

func (p *Pool) nextID() string {
	p.mu.Lock()
	p.idSeq++
	id := p.idSeq
	p.mu.Unlock()

	return fmt.Sprintf("req-%d", id)
}

// Analyze implements bridge.AnalyzerPool, satisfying fan-out from the
// Analysis Bridge.
func (p *Pool) Analyze(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, error) {
	diags, _, err := p.AnalyzeWithImports(ctx, uri, content)
	return diags, err
}

// AnalyzeWithImports implements bridge.ImportAnalyzer, additionally
// surfacing the file's import URIs as reported by the checker so the
// bridge can record them in the Type Cache's dependency graph.
func (p *Pool) AnalyzeWithImports(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, []string, error) {
	req := wireRequest{ID: p.nextID(), Type: requestTypeAnalyze, URI: uri, Content: string(content)}

	raw, err := p.dispatch(ctx, uri, req)
	if err != nil {
		return nil, nil, err
	}

	var result analyzeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, fmt.Errorf("checkerpool: unmarshal analyze result: %w", err)
	}

	diags := make([]diagnostic.Diagnostic, 0, len(result.Diagnostics))
	for _, rd := range result.Diagnostics {
		diags = append(diags, diagnostic.Diagnostic{
			File:          uri,
			Line:          rd.Line,
			Column:        rd.Column,
			EndLine:       rd.EndLine,
			EndColumn:     rd.EndColumn,
			Message:       rd.Message,
			Severity:      diagnostic.NormalizeCheckerSeverity(rd.Severity),
			Source:        diagnostic.SourceChecker,
			RuleCode:      rd.RuleCode,
			ComputeTimeMs: rd.ComputeTimeMs,
		})
	}

	return diags, result.Imports, nil
}

// dispatch assigns req to an idle worker immediately, or queues it FIFO
// when all workers are busy. Blocks until a result, timeout, worker death,
// or shutdown.
func (p *Pool) dispatch(ctx context.Context, uri string, req wireRequest) ([]byte, error) {
	resultCh := make(chan jobResult, 1)
	j := &job{uri: uri, req: req, resultCh: resultCh}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrShuttingDown
	}

	if w := p.pickIdleLocked(); w != nil {
		p.mu.Unlock()
		p.runOn(w, j)
	} else {
		p.queue = append(p.queue, j)
		p.mu.Unlock()
	}

	select {
	case res := <-resultCh:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) pickIdleLocked() *worker {
	for _, w := range p.workers {
		w.mu.Lock()
		idle := !w.busy && !w.exited
		w.mu.Unlock()

		if idle {
			return w
		}
	}

	return nil
}

// runOn sends req to w and arranges for either the response, the
// fileTimeout, or a worker death to resolve j.resultCh exactly once.
func (p *Pool) runOn(w *worker, j *job) {
	respCh := w.attach(j.uri, j.req)

	if err := w.send(j.req); err != nil {
		w.detach()
		j.resultCh <- jobResult{err: fmt.Errorf("checkerpool: %w", err)}
		p.dispatchNext()

		return
	}

	go func() {
		timer := time.NewTimer(p.cfg.FileTimeout)
		defer timer.Stop()

		select {
		case resp := <-respCh:
			w.detach()

			if resp.Type == responseTypeError {
				j.resultCh <- jobResult{err: fmt.Errorf("checkerpool: %s", resp.Error)}
			} else {
				j.resultCh <- jobResult{raw: resp.Result}
			}

		case <-timer.C:
			// Per spec.md §4.2: timeout fails the request and frees the
			// worker, but never kills it -- it may simply be slow.
			w.detach()
			j.resultCh <- jobResult{err: ErrTimeout}
		}

		p.dispatchNext()
	}()
}

// dispatchNext pulls the next queued job (if any) onto the first idle
// worker it finds.
func (p *Pool) dispatchNext() {
	p.mu.Lock()

	if p.closed || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}

	w := p.pickIdleLocked()
	if w == nil {
		p.mu.Unlock()
		return
	}

	j := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()

	p.runOn(w, j)
}

func (p *Pool) healthLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pingIdleWorkers()
		case <-p.stopTimer:
			return
		}
	}
}

func (p *Pool) pingIdleWorkers() {
	p.mu.Lock()
	workers := append([]*worker(nil), p.workers...)
	p.mu.Unlock()

	for _, w := range workers {
		w.mu.Lock()
		idle := !w.busy
		w.mu.Unlock()

		if idle {
			_ = w.send(wireRequest{ID: "health", Type: requestTypeHealth})
		}
	}
}

func (p *Pool) livenessLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.checkLiveness()
		case <-p.stopTimer:
			return
		}
	}
}

// checkLiveness detects dead worker processes and respawns them, guarded
// by a single-flight atomic so a slot is never double-spawned.
func (p *Pool) checkLiveness() {
	p.mu.Lock()
	workers := append([]*worker(nil), p.workers...)
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return
	}

	for i, w := range workers {
		if w.isAlive() {
			continue
		}

		if !w.respawning.CompareAndSwap(false, true) {
			continue // another goroutine is already respawning this slot
		}

		p.failInFlight(w)
		p.respawnSlot(i)
	}
}

func (p *Pool) failInFlight(w *worker) {
	w.mu.Lock()
	pending := w.pending
	w.mu.Unlock()

	if pending != nil {
		select {
		case pending.respCh <- wireResponse{ID: pending.id, Type: responseTypeError, Error: ErrWorkerDied.Error()}:
		default:
		}
	}
}

func (p *Pool) respawnSlot(index int) {
	w, err := spawnWorker(p.cfg.Command, p.cfg.Args, p.cfg.Env, index, p.onLine)
	if err != nil {
		p.mu.Lock()
		dead := p.workers[index]
		p.mu.Unlock()

		dead.respawning.Store(false) // clear the single-flight guard so the next liveness tick retries

		return
	}

	p.mu.Lock()
	p.workers[index] = w
	p.mu.Unlock()

	p.dispatchNext()
}

// Shutdown sends a graceful shutdown to every worker, waits the configured
// grace period, then force-kills stragglers. Queued requests are failed
// immediately.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	queued := p.queue
	p.queue = nil
	workers := append([]*worker(nil), p.workers...)

	p.mu.Unlock()

	close(p.stopTimer)
	p.wg.Wait()

	for _, j := range queued {
		j.resultCh <- jobResult{err: ErrShuttingDown}
	}

	var wg sync.WaitGroup

	for _, w := range workers {
		w := w

		wg.Add(1)

		go func() {
			defer wg.Done()
			w.requestShutdownAndWait(ctx, p.cfg.ShutdownGrace, p.cfg.ShutdownForce)
		}()
	}

	wg.Wait()
}

// WorkerSnapshot is a read-only view of one worker's state, used by the
// inspector.
type WorkerSnapshot struct {
	Index        int
	PID          int
	Busy         bool
	ActiveURI    string
	StartedAtMs  int64
	RequestCount int64
}

// Snapshot returns the current state of every worker slot.
func (p *Pool) Snapshot() []WorkerSnapshot {
	p.mu.Lock()
	workers := append([]*worker(nil), p.workers...)
	p.mu.Unlock()

	out := make([]WorkerSnapshot, 0, len(workers))

	for _, w := range workers {
		w.mu.Lock()
		out = append(out, WorkerSnapshot{
			Index:        w.index,
			PID:          w.pid,
			Busy:         w.busy,
			ActiveURI:    w.activeURI,
			StartedAtMs:  w.startedAtMs,
			RequestCount: w.requestCnt,
		})
		w.mu.Unlock()
	}

	return out
}
