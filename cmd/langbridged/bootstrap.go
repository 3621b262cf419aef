package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flowlayer/langbridge/internal/bridge"
	"github.com/flowlayer/langbridge/internal/checkerpool"
	"github.com/flowlayer/langbridge/internal/config"
	"github.com/flowlayer/langbridge/internal/diagnostic"
	"github.com/flowlayer/langbridge/internal/linterpool"
	"github.com/flowlayer/langbridge/internal/logcore"
	"github.com/flowlayer/langbridge/internal/observability"
	"github.com/flowlayer/langbridge/internal/resultcache"
	"github.com/flowlayer/langbridge/internal/trace"
	"github.com/flowlayer/langbridge/internal/typecache"
)

// coordinator bundles every long-lived subsystem the serve and mcp commands
// share, so both can be assembled from one bootstrap routine.
type coordinator struct {
	cfg *config.Config

	resultCache *resultcache.Cache[diagnostic.AnalysisResult]
	typeCache   *typecache.Cache[diagnostic.AnalysisResult]
	tracer      *trace.Tracer
	logs        *logcore.Core
	logger      *logcore.Logger
	fileSink    *logcore.FileSink

	checker *checkerpool.Pool
	linter  *linterpool.Pool
	bridge  *bridge.Bridge

	checkerConfigured, checkerStarted bool
	linterConfigured, linterStarted   bool
}

// bootstrap loads configuration and wires every subsystem. It never fails
// outright on a pool that can't start; per spec.md §7 a pool bootstrap
// failure degrades the coordinator rather than aborting it.
func bootstrap(configPath string, providers observability.Providers, poolMetrics *observability.PoolMetrics) (*coordinator, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	c := &coordinator{cfg: cfg}

	c.resultCache = resultcache.New[diagnostic.AnalysisResult](cfg.Cache.MaxEntries, cfg.Cache.MaxSizeBytes(), cfg.Cache.TTL())
	c.typeCache = typecache.New[diagnostic.AnalysisResult](cfg.Cache.MaxEntries, cfg.Cache.MaxSizeBytes(), cfg.Cache.TTL())

	c.tracer = trace.New(cfg.Inspector.MaxTraceHistory, 0, func(s *trace.Span) error {
		providers.Logger.Warn("slow span", "name", s.Name, "durationMs", s.DurationMs())
		return nil
	})

	c.logs, c.logger, c.fileSink = buildLogging(cfg.Logging)

	if cfg.Checker.Enabled {
		c.checkerConfigured = true

		pool, startErr := checkerpool.Start(checkerpool.Config{
			Command:          cfg.Checker.BinaryPath,
			Args:             append([]string{"--lsp-stdio"}, cfg.Checker.Flags...),
			Env:              []string{"NODE_OPTIONS=--max-old-space-size=" + strconv.Itoa(cfg.Checker.MaxMemoryMb)},
			PoolSize:         cfg.Checker.PoolSize,
			FileTimeout:      msDuration(cfg.Checker.FileTimeoutMs),
			ShutdownGrace:    0,
			ShutdownForce:    0,
			HealthInterval:   0,
			LivenessInterval: 0,
		})
		if startErr != nil {
			providers.Logger.Warn("checker pool failed to start, degrading", "error", startErr)
		} else {
			c.checker = pool
			c.checkerStarted = true
		}
	}

	if cfg.Linter.Enabled {
		c.linterConfigured = true
		c.linter = linterpool.New(linterpool.Config{
			Command:     cfg.Linter.BinaryPath,
			ConfigPath:  cfg.Linter.ConfigPath,
			Concurrency: cfg.Linter.Concurrency,
			FileTimeout: msDuration(cfg.Linter.FileTimeoutMs),
		})
		c.linterStarted = true
	}

	c.bridge = bridge.New(bridge.Deps{
		Checker:       analyzerOrNil(c.checker),
		Linter:        linterOrNil(c.linter),
		Cache:         c.resultCache,
		TypeCache:     c.typeCache,
		Tracer:        c.tracer,
		Logger:        c.logger,
		Metrics:       poolMetrics,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	return c, nil
}

func buildLogging(cfg config.LoggingConfig) (*logcore.Core, *logcore.Logger, *logcore.FileSink) {
	var sink *logcore.FileSink

	flush := func([]logcore.Entry) {}

	if cfg.File != "" {
		fs, err := logcore.NewFileSink(cfg.File, int64(cfg.MaxFileSizeMb)*1024*1024, cfg.PrettyPrint)
		if err == nil {
			sink = fs
			flush = fs.Write
		}
	}

	core := logcore.New(logcore.DefaultRingCapacity, logcore.DefaultFlushInterval, flush)

	return core, logcore.NewLogger(core), sink
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// analyzerOrNil and linterOrNil avoid handing bridge.Deps a typed-nil
// interface value, which would compare non-nil to bridge's nil checks.
func analyzerOrNil(p *checkerpool.Pool) bridge.AnalyzerPool {
	if p == nil {
		return nil
	}

	return p
}

func linterOrNil(p *linterpool.Pool) bridge.AnalyzerPool {
	if p == nil {
		return nil
	}

	return p
}

// shutdown tears down every subsystem in the reverse order of construction.
func (c *coordinator) shutdown() {
	c.bridge.Shutdown()

	if c.linter != nil {
		c.linter.Shutdown()
	}

	if c.checker != nil {
		c.checker.Shutdown(context.Background())
	}

	c.logs.Close()

	if c.fileSink != nil {
		_ = c.fileSink.Close()
	}
}
