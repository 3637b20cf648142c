package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

// Metrics provides Prometheus metrics for a wpstarter run. Every recorder is
// a no-op when metrics are disabled.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	// Step metrics
	stepsRun     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	scriptsRun   *prometheus.CounterVec

	// Tool metrics
	toolResolutions *prometheus.CounterVec
	toolDownloads   *prometheus.CounterVec
	downloadTime    *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a full run in seconds",
				Buckets:   buckets,
			},
		),

		stepsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_run_total",
				Help:      "Total number of steps run",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),
		scriptsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scripts_run_total",
				Help:      "Total number of pre/post step scripts run",
			},
			[]string{"kind", "ok"},
		),

		toolResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_resolutions_total",
				Help:      "Tool processes created, by where the tool was found",
			},
			[]string{"tool", "source"},
		),
		toolDownloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_downloads_total",
				Help:      "Total number of phar downloads",
			},
			[]string{"tool", "status"},
		),
		downloadTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_download_duration_seconds",
				Help:      "Duration of phar downloads in seconds",
				Buckets:   buckets,
			},
			[]string{"tool"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.stepsRun,
		m.stepDuration,
		m.scriptsRun,
		m.toolResolutions,
		m.toolDownloads,
		m.downloadTime,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Registry exposes the private registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRunCompleted records the outcome of a full run.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RecordStep records a step outcome.
func (m *Metrics) RecordStep(step, status string, duration time.Duration) {
	if m.stepsRun == nil {
		return
	}
	m.stepsRun.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordScript records a pre/post step script. kind is "shell" or
// "starlark".
func (m *Metrics) RecordScript(kind string, ok bool) {
	if m.scriptsRun == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.scriptsRun.WithLabelValues(kind, label).Inc()
}

// RecordToolResolution records where a tool process was found.
func (m *Metrics) RecordToolResolution(tool, source string) {
	if m.toolResolutions == nil {
		return
	}
	m.toolResolutions.WithLabelValues(tool, source).Inc()
}

// RecordToolDownload records a phar download attempt.
func (m *Metrics) RecordToolDownload(tool, status string, duration time.Duration) {
	if m.toolDownloads == nil {
		return
	}
	m.toolDownloads.WithLabelValues(tool, status).Inc()
	m.downloadTime.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordError counts err by class and code. Unclassified errors count as
// "unknown".
func (m *Metrics) RecordError(err error) {
	if m.errorsByClass == nil || err == nil {
		return
	}
	class := "unknown"
	switch {
	case errs.IsFatal(err):
		class = "fatal"
	case errs.IsRecoverable(err):
		class = "recoverable"
	}
	m.errorsByClass.WithLabelValues(class).Inc()
	if code := errs.CodeOf(err); code != "" {
		m.errorsByCode.WithLabelValues(code).Inc()
	}
}

// WriteToTextfile writes every metric to path in the text exposition format,
// atomically. Configured TextfilePath is used when path is empty.
func (m *Metrics) WriteToTextfile(path string) error {
	if m.registry == nil {
		return nil
	}
	if path == "" {
		path = m.config.TextfilePath
	}
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
