// Package inspector composes a read-only snapshot of coordinator state —
// cache stats, checker-pool workers, recent traces, recent log entries, and
// the active configuration — for the inspector-data operation (spec.md §6)
// and satisfies internal/mcpserver's Backend interface.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flowlayer/langbridge/internal/checkerpool"
	"github.com/flowlayer/langbridge/internal/config"
	"github.com/flowlayer/langbridge/internal/logcore"
	"github.com/flowlayer/langbridge/internal/resultcache"
	"github.com/flowlayer/langbridge/internal/status"
	"github.com/flowlayer/langbridge/internal/trace"
)

// ErrUnknownCache is returned for a cache name other than "result", "type",
// or "" (meaning both).
var ErrUnknownCache = errors.New("inspector: unknown cache name")

const (
	cacheResult = "result"
	cacheType   = "type"
)

// CacheStatsProvider is satisfied by both resultcache.Cache[V] and
// typecache.Cache[V] for any instantiated V, letting the inspector stay
// generic-free.
type CacheStatsProvider interface {
	Stats() resultcache.Stats
	Clear()
}

// Deps are the inspector's read-only windows into coordinator subsystems.
type Deps struct {
	ResultCache CacheStatsProvider
	TypeCache   CacheStatsProvider
	Pool        *checkerpool.Pool
	Tracer      *trace.Tracer
	Logs        *logcore.Core

	// StatusFn reports the current server-status state; nil yields
	// status.StateReady.
	StatusFn func() status.State

	// ApplyConfig, if set, is invoked by ReloadConfig after a new config is
	// successfully loaded and validated, so the caller can push it into the
	// bridge, pools, and tracer thresholds.
	ApplyConfig func(cfg *config.Config) error
}

// Inspector aggregates coordinator state for on-demand introspection. Per
// spec.md §5, inspector data is pulled fresh on every call and never
// retained beyond the request.
type Inspector struct {
	deps Deps

	mu  sync.RWMutex
	cfg *config.Config
}

// New constructs an Inspector over the given dependencies and initial
// configuration.
func New(deps Deps, cfg *config.Config) *Inspector {
	return &Inspector{deps: deps, cfg: cfg}
}

// Snapshot is the aggregated view returned by InspectorSnapshot.
type Snapshot struct {
	Status       status.State                 `json:"status"`
	ResultCache  resultcache.Stats            `json:"resultCache"`
	TypeCache    resultcache.Stats            `json:"typeCache"`
	Workers      []checkerpool.WorkerSnapshot `json:"workers"`
	RecentTraces []*trace.Span                `json:"recentTraces"`
	RecentLogs   []logcore.Entry              `json:"recentLogs"`
	Config       *config.Config               `json:"config"`
}

// InspectorSnapshot returns the full aggregated state (the inspector-data
// operation).
func (i *Inspector) InspectorSnapshot(_ context.Context) (any, error) {
	i.mu.RLock()
	cfg := i.cfg
	i.mu.RUnlock()

	snap := Snapshot{
		Status: i.statusState(),
		Config: cfg,
	}

	if i.deps.ResultCache != nil {
		snap.ResultCache = i.deps.ResultCache.Stats()
	}

	if i.deps.TypeCache != nil {
		snap.TypeCache = i.deps.TypeCache.Stats()
	}

	if i.deps.Pool != nil {
		snap.Workers = i.deps.Pool.Snapshot()
	}

	if i.deps.Tracer != nil {
		snap.RecentTraces = i.deps.Tracer.GetRecent(maxTraceHistory(cfg))
	}

	if i.deps.Logs != nil {
		snap.RecentLogs = i.deps.Logs.Snapshot()
	}

	return snap, nil
}

func maxTraceHistory(cfg *config.Config) int {
	if cfg == nil || cfg.Inspector.MaxTraceHistory <= 0 {
		return 100
	}

	return cfg.Inspector.MaxTraceHistory
}

func (i *Inspector) statusState() status.State {
	if i.deps.StatusFn == nil {
		return status.StateReady
	}

	return i.deps.StatusFn()
}

// CacheStats returns stats for "result", "type", or both when cache is "".
func (i *Inspector) CacheStats(_ context.Context, cache string) (any, error) {
	switch cache {
	case cacheResult:
		return i.deps.ResultCache.Stats(), nil
	case cacheType:
		return i.deps.TypeCache.Stats(), nil
	case "":
		return map[string]resultcache.Stats{
			cacheResult: i.deps.ResultCache.Stats(),
			cacheType:   i.deps.TypeCache.Stats(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCache, cache)
	}
}

// ClearCache clears "result", "type", or both caches when cache is "".
func (i *Inspector) ClearCache(_ context.Context, cache string) error {
	switch cache {
	case cacheResult:
		i.deps.ResultCache.Clear()
	case cacheType:
		i.deps.TypeCache.Clear()
	case "":
		i.deps.ResultCache.Clear()
		i.deps.TypeCache.Clear()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCache, cache)
	}

	return nil
}

// ReloadConfig loads configuration from configPath (or, if empty, from the
// default search locations config.LoadConfig uses), applies it via
// Deps.ApplyConfig, and returns the newly active configuration.
func (i *Inspector) ReloadConfig(_ context.Context, configPath string) (any, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("inspector: reload config: %w", err)
	}

	if i.deps.ApplyConfig != nil {
		if err := i.deps.ApplyConfig(cfg); err != nil {
			return nil, fmt.Errorf("inspector: apply config: %w", err)
		}
	}

	i.mu.Lock()
	i.cfg = cfg
	i.mu.Unlock()

	return cfg, nil
}
