package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

// Telemetry bundles logging, tracing, metrics and events for one invocation.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry creates a telemetry instance from configuration.
func NewTelemetry(cfg *Config, opts ...TracerOption) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment, opts...)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}, nil
}

// Nop returns a telemetry instance that records nothing.
func Nop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Logging.Level = "disabled"
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	metrics, _ := NewMetrics(cfg.Metrics)
	tracer, _ := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	return &Telemetry{
		Logger:  &Logger{zlog: zerolog.Nop(), config: cfg.Logging},
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context, or
// nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown drains events, flushes spans, writes the metrics textfile and
// closes a file log output. All steps run; the errors are joined.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Metrics.WriteToTextfile(""),
		t.Logger.Close(),
	)
}

// StepScope instruments one step: a span, a step logger, a timer and the
// completion event.
type StepScope struct {
	Ctx    context.Context
	Logger *Logger

	tel   *Telemetry
	runID string
	step  string
	span  trace.Span
	timer *Timer
}

// StartStep opens a StepScope under the run span carried by ctx.
func (t *Telemetry) StartStep(ctx context.Context, runID, step string) *StepScope {
	spanCtx, span := t.Tracer.StartStepSpan(ctx, step)
	logger := t.Logger.WithRunID(runID).WithStep(step)
	_ = t.Events.Publish(Event{Type: EventTypeStepStarted, RunID: runID, Step: step})

	return &StepScope{
		Ctx:    logger.WithContext(spanCtx),
		Logger: logger,
		tel:    t,
		runID:  runID,
		step:   step,
		span:   span,
		timer:  NewTimer(),
	}
}

// End closes the scope with the step status. err, when set, is recorded on
// the span and counted.
func (s *StepScope) End(status, message string, err error) time.Duration {
	duration := s.timer.Duration()

	s.span.SetAttributes(AttrStepStatus.String(status))
	if err != nil {
		RecordError(s.span, err)
		if code := errs.CodeOf(err); code != "" {
			s.span.SetAttributes(AttrErrorCode.String(code))
		}
		s.tel.Metrics.RecordError(err)
	} else {
		RecordSuccess(s.span)
	}
	s.span.End()

	s.tel.Metrics.RecordStep(s.step, status, duration)
	if pubErr := s.tel.Events.PublishStepCompleted(s.runID, s.step, status, message, duration); pubErr != nil {
		s.Logger.WithError(pubErr).Warn("Step event not delivered")
	}
	return duration
}
