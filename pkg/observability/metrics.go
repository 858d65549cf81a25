package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/reliefkit/pkg/errors"
)

// Metrics implements AnalysisHooks, TaskHooks and CacheHooks on top of
// Prometheus collectors. A CLI process is short-lived, so metrics are
// exported with [Metrics.WriteTextfile] for the node_exporter textfile
// collector rather than scraped.
type Metrics struct {
	gatherer prometheus.Gatherer

	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	Tasks            *prometheus.CounterVec
	CacheEvents      *prometheus.CounterVec
	CacheBytes       *prometheus.CounterVec
}

// NewMetrics registers reliefkit collectors against reg, defaulting to the
// global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	analyses, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reliefkit_analyses_total",
		Help: "Completed analyses, labeled by analysis type and result code.",
	}, []string{"analysis", "code"}), "reliefkit_analyses_total")
	if err != nil {
		return nil, err
	}
	analysisDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reliefkit_analysis_duration_seconds",
		Help:    "End-to-end analysis latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"analysis"}), "reliefkit_analysis_duration_seconds")
	if err != nil {
		return nil, err
	}
	stageDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reliefkit_stage_duration_seconds",
		Help:    "Pipeline stage latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30},
	}, []string{"analysis", "stage"}), "reliefkit_stage_duration_seconds")
	if err != nil {
		return nil, err
	}
	tasks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reliefkit_tasks_total",
		Help: "Task runner events, labeled by analysis and status.",
	}, []string{"analysis", "status"}), "reliefkit_tasks_total")
	if err != nil {
		return nil, err
	}
	cacheEvents, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reliefkit_cache_events_total",
		Help: "Result store lookups and writes, labeled by key type and event.",
	}, []string{"key_type", "event"}), "reliefkit_cache_events_total")
	if err != nil {
		return nil, err
	}
	cacheBytes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reliefkit_cache_written_bytes_total",
		Help: "Bytes written to the result store.",
	}, []string{"key_type"}), "reliefkit_cache_written_bytes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:         gatherer,
		Analyses:         analyses,
		AnalysisDuration: analysisDuration,
		StageDuration:    stageDuration,
		Tasks:            tasks,
		CacheEvents:      cacheEvents,
		CacheBytes:       cacheBytes,
	}, nil
}

// OnAnalysisStart implements AnalysisHooks.
func (m *Metrics) OnAnalysisStart(context.Context, string) {}

// OnAnalysisComplete implements AnalysisHooks.
func (m *Metrics) OnAnalysisComplete(_ context.Context, analysis string, d time.Duration, err error) {
	m.Analyses.WithLabelValues(analysis, codeLabel(err)).Inc()
	m.AnalysisDuration.WithLabelValues(analysis).Observe(d.Seconds())
}

// OnStageComplete implements AnalysisHooks.
func (m *Metrics) OnStageComplete(_ context.Context, analysis, stage string, d time.Duration, _ error) {
	m.StageDuration.WithLabelValues(analysis, stage).Observe(d.Seconds())
}

// OnTaskSubmit implements TaskHooks.
func (m *Metrics) OnTaskSubmit(_ context.Context, analysis string) {
	m.Tasks.WithLabelValues(analysis, "submitted").Inc()
}

// OnTaskFinish implements TaskHooks.
func (m *Metrics) OnTaskFinish(_ context.Context, analysis, status string, _ time.Duration) {
	m.Tasks.WithLabelValues(analysis, status).Inc()
}

// OnCacheHit implements CacheHooks.
func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheEvents.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements CacheHooks.
func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheEvents.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements CacheHooks.
func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheEvents.WithLabelValues(keyType, "set").Inc()
	m.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}

func codeLabel(err error) string {
	if err == nil {
		return "OK"
	}
	if code := errors.GetCode(err); code != "" {
		return string(code)
	}
	return string(errors.ErrCodeInternal)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
