// Package bridge implements the Analysis Bridge: a bounded-concurrency
// priority dispatcher that supersedes queued requests per uri, fans out to
// the checker and linter pools in parallel with settle-all semantics,
// merges and caches their diagnostics, and mirrors the whole pipeline onto
// the shared performance tracer and structured log core.
package bridge

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowlayer/langbridge/internal/contenthash"
	"github.com/flowlayer/langbridge/internal/diagnostic"
	"github.com/flowlayer/langbridge/internal/logcore"
	"github.com/flowlayer/langbridge/internal/observability"
	"github.com/flowlayer/langbridge/internal/resultcache"
	"github.com/flowlayer/langbridge/internal/trace"
	"github.com/flowlayer/langbridge/internal/typecache"
)

// Priority orders queue dispatch: lower values run first.
type Priority int

const (
	PriorityActive     Priority = 0
	PriorityOpen       Priority = 1
	PriorityBackground Priority = 2
)

// ErrSuperseded is returned to a completion whose queued request was
// replaced by a newer request for the same uri.
var ErrSuperseded = errors.New("bridge: request superseded by a newer request for the same uri")

// ErrShuttingDown is returned to every request failed by shutdown.
var ErrShuttingDown = errors.New("bridge: shutting down")

// AnalyzerPool is the fan-out target for one analyzer kind. Both the
// checker and linter pools satisfy this from the bridge's perspective;
// concrete pool types live in internal/checkerpool and internal/linterpool.
type AnalyzerPool interface {
	Analyze(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, error)
}

// ImportAnalyzer is an optional capability of an AnalyzerPool that can also
// report the import URIs it discovered while analyzing a file. Only
// checkerpool.Pool implements this today; linterpool.Pool has no notion of
// imports and is fanned out through the plain AnalyzerPool path.
type ImportAnalyzer interface {
	AnalyzeWithImports(ctx context.Context, uri string, content []byte) ([]diagnostic.Diagnostic, []string, error)
}

// Deps wires the bridge's collaborators. Checker and Linter may be nil to
// disable that analyzer; Cache may be nil to disable caching outright.
// TypeCache may be nil to disable dependency-graph cascade invalidation.
type Deps struct {
	Checker   AnalyzerPool
	Linter    AnalyzerPool
	Cache     *resultcache.Cache[diagnostic.AnalysisResult]
	TypeCache *typecache.Cache[diagnostic.AnalysisResult]
	Tracer    *trace.Tracer
	Logger    *logcore.Logger
	Metrics   *observability.PoolMetrics

	MaxConcurrent int // default 4
}

type queueItem struct {
	uri         string
	content     []byte
	priority    Priority
	force       bool
	enqueuedAt  time.Time
	seq         int64 // tie-break within equal (priority, enqueuedAt) and heap bookkeeping
	resultCh    chan analyzeOutcome
	dispatching bool
}

type analyzeOutcome struct {
	result diagnostic.AnalysisResult
	err    error
}

// priorityQueue implements container/heap.Interface, ordered by
// (priority, enqueuedAt) ascending so lower-priority-number, earlier
// items are dequeued first.
type priorityQueue []*queueItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}

	if !q[i].enqueuedAt.Equal(q[j].enqueuedAt) {
		return q[i].enqueuedAt.Before(q[j].enqueuedAt)
	}

	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(*queueItem))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]

	return item
}

// Bridge is the dispatcher described in spec.md §4.1.
type Bridge struct {
	deps Deps

	mu       sync.Mutex
	queue    priorityQueue
	byURI    map[string]*queueItem // queued-but-not-dispatched items, for dedup/supersede
	inflight int
	nextSeq  int64
	closed   bool
	notify   chan struct{}
	done     chan struct{}

	wg sync.WaitGroup
}

// New constructs a Bridge. The background dispatch loop starts immediately.
func New(deps Deps) *Bridge {
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = 4
	}

	b := &Bridge{
		deps:   deps,
		byURI:  make(map[string]*queueItem),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	heap.Init(&b.queue)

	b.wg.Add(1)
	go b.dispatchLoop()

	return b
}

// Analyze implements the bridge's main contract: cache-first lookup, then
// enqueue-and-await with dedup/supersede semantics.
func (b *Bridge) Analyze(ctx context.Context, uri string, content []byte, force bool, priority Priority) (diagnostic.AnalysisResult, error) {
	hash := contenthash.Of(content)

	if !force && b.deps.Cache != nil {
		if cached, ok := b.deps.Cache.Get(uri, hash); ok {
			cached.FromCache = true
			b.recordCacheResult(ctx, true)

			return cached, nil
		}

		b.recordCacheResult(ctx, false)
	}

	item := &queueItem{
		uri:        uri,
		content:    content,
		priority:   priority,
		force:      force,
		enqueuedAt: time.Now(),
		resultCh:   make(chan analyzeOutcome, 1),
	}

	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return diagnostic.AnalysisResult{}, ErrShuttingDown
	}

	b.nextSeq++
	item.seq = b.nextSeq

	if prior, ok := b.byURI[uri]; ok && !prior.dispatching {
		b.removeFromQueueLocked(prior)
		prior.resultCh <- analyzeOutcome{err: ErrSuperseded}

		if b.deps.Metrics != nil {
			b.deps.Metrics.RecordSuperseded(ctx)
			b.deps.Metrics.SetQueueDepth(ctx, -1)
		}
	}

	b.byURI[uri] = item
	heap.Push(&b.queue, item)

	if b.deps.Metrics != nil {
		b.deps.Metrics.SetQueueDepth(ctx, 1)
	}

	b.mu.Unlock()

	b.poke()

	select {
	case outcome := <-item.resultCh:
		return outcome.result, outcome.err
	case <-ctx.Done():
		return diagnostic.AnalysisResult{}, ctx.Err()
	}
}

func (b *Bridge) recordCacheResult(ctx context.Context, hit bool) {
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordCacheResult(ctx, "result", hit)
	}
}

func (b *Bridge) removeFromQueueLocked(item *queueItem) {
	for i, qi := range b.queue {
		if qi == item {
			heap.Remove(&b.queue, i)
			break
		}
	}

	delete(b.byURI, item.uri)
}

func (b *Bridge) poke() {
	select {
	case b.notify <- struct{}{}:
	case <-b.done:
	default:
	}
}

// dispatchLoop drains the queue up to MaxConcurrent in-flight analyses,
// respecting strict priority ordering.
func (b *Bridge) dispatchLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.notify:
			b.drain()
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) drain() {
	for {
		b.mu.Lock()

		if b.closed || b.inflight >= b.deps.MaxConcurrent || b.queue.Len() == 0 {
			b.mu.Unlock()
			return
		}

		item := heap.Pop(&b.queue).(*queueItem)
		item.dispatching = true
		delete(b.byURI, item.uri)
		b.inflight++

		if b.deps.Metrics != nil {
			b.deps.Metrics.SetQueueDepth(context.Background(), -1)
		}

		b.mu.Unlock()

		b.wg.Add(1)

		go func() {
			defer b.wg.Done()
			b.runOne(item)
		}()
	}
}

func (b *Bridge) runOne(item *queueItem) {
	ctx := context.Background()

	result, err := b.execute(ctx, item.uri, item.content)

	b.mu.Lock()
	b.inflight--
	b.mu.Unlock()

	item.resultCh <- analyzeOutcome{result: result, err: err}

	b.poke()
}

// execute performs the cache-bypassing fan-out/merge/store pipeline for one
// (uri, content) pair. It is run by runOne for every dispatched queue item,
// force=true requests included.
func (b *Bridge) execute(ctx context.Context, uri string, content []byte) (diagnostic.AnalysisResult, error) {
	hash := contenthash.Of(content)

	var rootID string
	if b.deps.Tracer != nil {
		rootID = b.deps.Tracer.Start("analyzeFile", "", map[string]any{"uri": uri})
	}

	started := time.Now()

	var (
		checkerDiags, linterDiags []diagnostic.Diagnostic
		checkerImports            []string
		checkerErr, linterErr     error
		wg                        sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		checkerDiags, checkerImports, checkerErr = b.invokeChecker(ctx, rootID, uri, content)
	}()

	go func() {
		defer wg.Done()

		linterDiags, linterErr = b.invokePool(ctx, b.deps.Linter, rootID, "linter.lint", uri, content)
	}()

	wg.Wait()

	if checkerErr != nil {
		b.logWarn(fmt.Sprintf("checker analysis failed for %s: %v", uri, checkerErr))
	}

	if linterErr != nil {
		b.logWarn(fmt.Sprintf("linter analysis failed for %s: %v", uri, linterErr))
	}

	if checkerErr == nil && b.deps.TypeCache != nil {
		b.deps.TypeCache.ClearDependencies(uri)

		for _, imp := range checkerImports {
			b.deps.TypeCache.AddDependency(uri, imp)
		}
	}

	merged := diagnostic.Merge(checkerDiags, linterDiags)

	result := diagnostic.AnalysisResult{
		URI:            uri,
		ContentHash:    hash,
		Diagnostics:    merged,
		AnalysisTimeMs: float64(time.Since(started).Microseconds()) / 1000.0,
		FromCache:      false,
	}

	if b.deps.Tracer != nil {
		b.deps.Tracer.End(rootID, nil)
	}

	if b.deps.Cache != nil {
		b.deps.Cache.Set(uri, hash, result)
	}

	return result, nil
}

func (b *Bridge) invokePool(ctx context.Context, pool AnalyzerPool, parentSpan, spanName, uri string, content []byte) ([]diagnostic.Diagnostic, error) {
	if pool == nil {
		return nil, nil
	}

	var childID string
	if b.deps.Tracer != nil {
		childID = b.deps.Tracer.Start(spanName, parentSpan, nil)
		defer b.deps.Tracer.End(childID, nil)
	}

	return pool.Analyze(ctx, uri, content)
}

// invokeChecker fans out to the checker pool, additionally recovering its
// import list when the pool implements ImportAnalyzer.
func (b *Bridge) invokeChecker(ctx context.Context, parentSpan, uri string, content []byte) ([]diagnostic.Diagnostic, []string, error) {
	if b.deps.Checker == nil {
		return nil, nil, nil
	}

	var childID string
	if b.deps.Tracer != nil {
		childID = b.deps.Tracer.Start("checker.analyze", parentSpan, nil)
		defer b.deps.Tracer.End(childID, nil)
	}

	if ia, ok := b.deps.Checker.(ImportAnalyzer); ok {
		return ia.AnalyzeWithImports(ctx, uri, content)
	}

	diags, err := b.deps.Checker.Analyze(ctx, uri, content)

	return diags, nil, err
}

func (b *Bridge) logWarn(msg string) {
	if b.deps.Logger != nil {
		b.deps.Logger.Warn(msg, nil)
	}
}

// Invalidate removes any cached result for uri. When a TypeCache is wired,
// invalidation cascades along the dependency graph's reverse edges: every
// file that (transitively) imports uri is invalidated too.
func (b *Bridge) Invalidate(uri string) {
	if b.deps.TypeCache != nil {
		closure := b.deps.TypeCache.InvalidateCascade(uri)

		if b.deps.Cache != nil {
			for dependent := range closure {
				b.deps.Cache.Invalidate(dependent)
			}
		}

		return
	}

	if b.deps.Cache != nil {
		b.deps.Cache.Invalidate(uri)
	}
}

// ClearCache drops all cached results and the entire dependency graph.
func (b *Bridge) ClearCache() {
	if b.deps.Cache != nil {
		b.deps.Cache.Clear()
	}

	if b.deps.TypeCache != nil {
		b.deps.TypeCache.Clear()
	}
}

// Shutdown drains the queue, failing every still-queued item with
// ErrShuttingDown, then stops accepting new work. In-flight analyses are
// allowed to complete; callers that want pool-level process termination
// should shut down the pools separately after this returns.
func (b *Bridge) Shutdown() {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}

	b.closed = true

	for b.queue.Len() > 0 {
		item := heap.Pop(&b.queue).(*queueItem)
		item.resultCh <- analyzeOutcome{err: ErrShuttingDown}

		if b.deps.Metrics != nil {
			b.deps.Metrics.SetQueueDepth(context.Background(), -1)
		}
	}

	b.byURI = make(map[string]*queueItem)

	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
}
