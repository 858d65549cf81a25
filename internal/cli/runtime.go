package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/reliefkit/pkg/cache"
	"github.com/matzehuels/reliefkit/pkg/config"
	"github.com/matzehuels/reliefkit/pkg/hillshade"
	"github.com/matzehuels/reliefkit/pkg/observability"
	"github.com/matzehuels/reliefkit/pkg/pipeline"
	"github.com/matzehuels/reliefkit/pkg/tasks"
	"github.com/matzehuels/reliefkit/pkg/viewshed"
)

// =============================================================================
// Runtime - everything an analysis command needs
// =============================================================================

// runtime wires the configured engines, result store and telemetry.
type runtime struct {
	cfg     *config.Config
	logger  *log.Logger
	store   cache.Cache
	runner  *tasks.LocalRunner
	metrics *observability.Metrics

	shutdownTracing func(context.Context) error
}

// openRuntime builds a runtime from the loaded config. Close must be
// called to flush tasks, metrics and spans.
func (c *CLI) openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	logger := loggerFromContext(ctx)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Telemetry.TracingEnabled(),
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, shutdownTracing: shutdown}

	if cfg.Telemetry.MetricsFile != "" {
		m, err := observability.NewMetrics(prometheus.NewRegistry())
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		observability.SetAnalysisHooks(m)
		observability.SetTaskHooks(m)
		observability.SetCacheHooks(m)
		rt.metrics = m
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.store = cache.Instrument(store)

	pr := pipeline.NewRunner(logger)
	pr.Shading = newShading(cfg.Hillshade, logger)
	pr.Visibility = newVisibility(cfg.Viewshed, logger)
	pr.Layers = cfg.LayerResolver()
	pr.DefaultCRS = cfg.DefaultCRS

	rt.runner, err = tasks.NewLocalRunner(pr, tasks.Options{
		Store:       rt.store,
		TTL:         cfg.ResultsTTL(),
		WorkRoot:    cfg.Tasks.WorkRoot,
		Concurrency: cfg.Tasks.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

// Close waits for running tasks, then flushes metrics and spans.
func (rt *runtime) Close(ctx context.Context) {
	if rt.runner != nil {
		_ = rt.runner.Close()
	}
	if rt.metrics != nil {
		if err := rt.metrics.WriteTextfile(rt.cfg.Telemetry.MetricsFile); err != nil {
			rt.logger.Warn("write metrics", "path", rt.cfg.Telemetry.MetricsFile, "err", err)
		}
		observability.Reset()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
	observability.ShutdownWithTimeout(ctx, rt.shutdownTracing, rt.logger)
}

// openStore opens the configured result store.
func openStore(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Results.Backend {
	case config.StoreRedis:
		r := cfg.Results.Redis
		store, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return cache.WithRetry(store, cache.RetryPolicy{}), nil
	case config.StoreNone:
		return cache.NewNullCache(), nil
	case config.StoreFile:
		return cache.NewFileCache(cfg.Results.Dir)
	}
	return nil, fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
}

// newShading returns the configured hillshade engine.
func newShading(cfg config.HillshadeConfig, logger *log.Logger) *hillshade.Engine {
	var e *hillshade.Engine
	switch cfg.Backend {
	case config.BackendGDALDEM:
		e = hillshade.Process(cfg.Binary)
	default:
		e = hillshade.Default()
	}
	e.Logger = logger
	return e
}

func newVisibility(cfg config.ViewshedConfig, logger *log.Logger) *viewshed.Engine {
	var e *viewshed.Engine
	switch cfg.Backend {
	case config.BackendGDALViewshed:
		e = viewshed.NewEngine(viewshed.ProcessComputer{Binary: cfg.Binary, Translate: cfg.Translate})
	default:
		e = viewshed.NewEngine(viewshed.LineOfSight{MaxDistance: cfg.MaxDistance})
	}
	e.Logger = logger
	return e
}

// resultsDir returns the file store directory, or an error for other
// backends.
func resultsDir(cfg *config.Config) (string, error) {
	if cfg.Results.Backend != config.StoreFile {
		return "", fmt.Errorf("results are stored in %s, not on disk", cfg.Results.Backend)
	}
	return cfg.Results.Dir, nil
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
