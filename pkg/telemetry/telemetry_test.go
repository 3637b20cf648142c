package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "development", mutate: func(c *Config) { *c = *DevelopmentConfig() }},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "log level"},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: "endpoint",
		},
		{
			name: "unknown exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			wantErr: "exporter",
		},
		{name: "no namespace", mutate: func(c *Config) { c.Metrics.Namespace = "" }, wantErr: "namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LoggingConfig{Level: "debug", Format: "json"}, true)

	l.NewComponentLogger("phptool").WithRunID("r1").WithStep("wp-config").Info("hello")
	l.Debugf("n=%d", 3)

	out := buf.String()
	assert.Contains(t, out, `"component":"phptool"`)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"step":"wp-config"`)
	assert.Contains(t, out, `"message":"hello"`)
	assert.Contains(t, out, `"message":"n=3"`)
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LoggingConfig{Level: "warn", Format: "json"}, true)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wpstarter.log")
	l, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"}, true)
	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info("via ctx")
	assert.Contains(t, buf.String(), "via ctx")

	// no logger in context: disabled, must not panic
	FromContext(context.Background()).Info("dropped")
}

func TestMetricsRecorders(t *testing.T) {
	cfg := DefaultConfig().Metrics
	m, err := NewMetrics(cfg)
	require.NoError(t, err)

	m.RecordStep("wp-config", "success", 20*time.Millisecond)
	m.RecordStep("wp-config", "success", 10*time.Millisecond)
	m.RecordStep("dropins", "error", time.Millisecond)
	m.RecordToolResolution("wp-cli", "phar")
	m.RecordToolDownload("wp-cli", "ok", time.Second)
	m.RecordScript("starlark", false)
	m.RecordError(errs.NewFatal("boom", nil).WithCode(errs.CodeChecksum))
	m.RecordError(errors.New("plain"))
	m.RecordRunCompleted("success", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stepsRun.WithLabelValues("wp-config", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepsRun.WithLabelValues("dropins", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolResolutions.WithLabelValues("wp-cli", "phar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolDownloads.WithLabelValues("wp-cli", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scriptsRun.WithLabelValues("starlark", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByClass.WithLabelValues("fatal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByClass.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByCode.WithLabelValues(errs.CodeChecksum)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stepDuration))
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	m.RecordStep("x", "success", time.Second)
	m.RecordToolDownload("wp-cli", "ok", time.Second)
	m.RecordError(errors.New("x"))
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteToTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestMetricsWriteToTextfile(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.TextfilePath = filepath.Join(t.TempDir(), "wpstarter.prom")
	m, err := NewMetrics(cfg)
	require.NoError(t, err)
	m.RecordStep("index", "success", time.Millisecond)

	require.NoError(t, m.WriteToTextfile(""))
	data, err := os.ReadFile(cfg.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wpstarter_steps_run_total{status="success",step="index"} 1`)
}

func TestTracerStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig().Tracing
	cfg.Enabled = true
	cfg.Exporter = "stdout"

	tr, err := NewTracer(cfg, "wpstarter", "test", "development", WithSpanWriter(&buf))
	require.NoError(t, err)

	ctx, run := tr.StartRunSpan(context.Background(), "run-1", []string{"index"})
	assert.NotEmpty(t, TraceID(ctx))
	_, step := tr.StartStepSpan(ctx, "index")
	RecordError(step, errors.New("failed"))
	step.End()
	RecordSuccess(run)
	run.End()
	require.NoError(t, tr.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "step.index")
	assert.Contains(t, out, "run.execute")
	assert.Contains(t, out, "failed")
}

func TestTracerDisabled(t *testing.T) {
	tr, err := NewTracer(TracingConfig{}, "wpstarter", "test", "production")
	require.NoError(t, err)
	ctx, span := tr.StartStepSpan(context.Background(), "index")
	span.End()
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestTracerUnsupportedExporter(t *testing.T) {
	_, err := NewTracer(TracingConfig{Enabled: true, Exporter: "zipkin"}, "wpstarter", "test", "production")
	assert.Error(t, err)
}

func TestEventsSyncOrder(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true})
	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Step) }, nil)
	ep.Subscribe(func(e Event) { t.Errorf("filtered subscriber saw %s", e.Type) }, FilterByType("never"))

	require.NoError(t, ep.PublishStepCompleted("r", "a", "success", "", 0))
	require.NoError(t, ep.PublishStepCompleted("r", "b", "error", "", 0))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.NoError(t, ep.Shutdown(context.Background()))
}

func TestEventsAsyncDrainsOnShutdown(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true, EnableAsync: true, BufferSize: 16})
	var (
		mu  sync.Mutex
		got []string
	)
	ep.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Step)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	}, FilterByRunID("r1"))

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, ep.PublishStepCompleted("r1", s, "success", "", 0))
	}
	require.NoError(t, ep.PublishStepCompleted("other", "x", "success", "", 0))
	require.NoError(t, ep.Shutdown(context.Background()))
	require.NoError(t, ep.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Error(t, ep.Publish(Event{Type: EventTypeRunCompleted}))
}

func TestEventsDisabled(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{})
	ep.Subscribe(func(Event) { t.Error("disabled publisher delivered") }, nil)
	assert.NoError(t, ep.Publish(Event{Type: EventTypeRunStarted}))
}

func TestStepScope(t *testing.T) {
	var logs, spans bytes.Buffer
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, "test", "development", WithSpanWriter(&spans))
	require.NoError(t, err)
	metrics, err := NewMetrics(cfg.Metrics)
	require.NoError(t, err)
	tel := &Telemetry{
		Logger:  NewLoggerTo(&logs, LoggingConfig{Level: "debug", Format: "json"}, true),
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}

	var events []Event
	tel.Events.Subscribe(func(e Event) { events = append(events, e) }, nil)

	scope := tel.StartStep(context.Background(), "run-9", "dropins")
	FromContext(scope.Ctx).Info("inside")
	scope.End("error", "dropins failed", errs.NewFatal("download", nil).WithCode(errs.CodeDownloadFailed))
	require.NoError(t, tel.Shutdown(context.Background()))

	require.Len(t, events, 2)
	assert.Equal(t, EventTypeStepStarted, events[0].Type)
	assert.Equal(t, EventTypeStepCompleted, events[1].Type)
	assert.Equal(t, "error", events[1].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stepsRun.WithLabelValues("dropins", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errorsByCode.WithLabelValues(errs.CodeDownloadFailed)))
	assert.True(t, strings.Contains(logs.String(), `"step":"dropins"`))
	assert.Contains(t, spans.String(), errs.CodeDownloadFailed)
}

func TestNop(t *testing.T) {
	tel := Nop()
	scope := tel.StartStep(context.Background(), "r", "index")
	scope.End("success", "", nil)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
