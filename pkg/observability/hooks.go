// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends to the analysis code.
// Consumers register hooks at startup to receive events about analyses,
// their stages, task execution, and result-store operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// [NewMetrics] implements every hook interface on top of Prometheus
// collectors, and [InitTracing] configures OpenTelemetry.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m, _ := observability.NewMetrics(prometheus.NewRegistry())
//	    observability.SetAnalysisHooks(m)
//	    observability.SetTaskHooks(m)
//	    observability.SetCacheHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Analysis().OnAnalysisStart(ctx, "watershed")
//	// ... run stages ...
//	observability.Analysis().OnAnalysisComplete(ctx, "watershed", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Analysis Hooks
// =============================================================================

// AnalysisHooks receives events from the analysis pipeline.
type AnalysisHooks interface {
	OnAnalysisStart(ctx context.Context, analysis string)
	OnAnalysisComplete(ctx context.Context, analysis string, duration time.Duration, err error)

	// OnStageComplete fires after each pipeline stage (load, breach, render, ...).
	OnStageComplete(ctx context.Context, analysis, stage string, duration time.Duration, err error)
}

// =============================================================================
// Task Hooks
// =============================================================================

// TaskHooks receives events from the task runner.
type TaskHooks interface {
	// OnTaskSubmit records a task accepted for execution.
	OnTaskSubmit(ctx context.Context, analysis string)

	// OnTaskFinish records a task reaching a terminal status.
	OnTaskFinish(ctx context.Context, analysis, status string, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from result-store operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopAnalysisHooks is a no-op implementation of AnalysisHooks.
type NoopAnalysisHooks struct{}

func (NoopAnalysisHooks) OnAnalysisStart(context.Context, string)                               {}
func (NoopAnalysisHooks) OnAnalysisComplete(context.Context, string, time.Duration, error)      {}
func (NoopAnalysisHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {}

// NoopTaskHooks is a no-op implementation of TaskHooks.
type NoopTaskHooks struct{}

func (NoopTaskHooks) OnTaskSubmit(context.Context, string)                        {}
func (NoopTaskHooks) OnTaskFinish(context.Context, string, string, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	analysisHooks AnalysisHooks = NoopAnalysisHooks{}
	taskHooks     TaskHooks     = NoopTaskHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetAnalysisHooks registers custom analysis hooks.
// This should be called once at application startup before any analysis runs.
func SetAnalysisHooks(h AnalysisHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		analysisHooks = h
	}
}

// SetTaskHooks registers custom task hooks.
func SetTaskHooks(h TaskHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		taskHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Analysis returns the registered analysis hooks.
func Analysis() AnalysisHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return analysisHooks
}

// Task returns the registered task hooks.
func Task() TaskHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return taskHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	analysisHooks = NoopAnalysisHooks{}
	taskHooks = NoopTaskHooks{}
	cacheHooks = NoopCacheHooks{}
}
