package journal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/telemetry"
)

// Event data keys read by the Recorder on run events.
const (
	DataRoot    = "root"
	DataSteps   = "steps"
	DataEnvType = "env_type"
	DataError   = "error"
)

// Recorder writes run and step events into a Store. Write failures are
// logged and never fail the run.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a recorder for store.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.With().Str("component", "journal").Logger()}
}

// Attach subscribes the recorder to the run lifecycle events of ep.
func (r *Recorder) Attach(ep *telemetry.EventPublisher) {
	ep.Subscribe(r.Handle, telemetry.FilterByType(
		telemetry.EventTypeRunStarted,
		telemetry.EventTypeRunCompleted,
		telemetry.EventTypeStepCompleted,
		telemetry.EventTypeStepSkipped,
	))
}

// Handle records one event.
func (r *Recorder) Handle(event telemetry.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch event.Type {
	case telemetry.EventTypeRunStarted:
		run := &Run{
			ID:        event.RunID,
			Status:    RunStatusRunning,
			StartedAt: event.Timestamp,
		}
		run.Root, _ = event.Data[DataRoot].(string)
		run.Steps, _ = event.Data[DataSteps].([]string)
		run.EnvType, _ = event.Data[DataEnvType].(string)
		err = r.store.CreateRun(ctx, run)

	case telemetry.EventTypeRunCompleted:
		status := RunStatusSucceeded
		var errMsg *string
		if msg, ok := event.Data[DataError].(string); ok && msg != "" {
			status = RunStatusFailed
			errMsg = &msg
		}
		err = r.store.CompleteRun(ctx, event.RunID, status, errMsg)

	case telemetry.EventTypeStepCompleted, telemetry.EventTypeStepSkipped:
		status := event.Status
		if event.Type == telemetry.EventTypeStepSkipped {
			status = "skipped"
		}
		err = r.store.AppendStepResult(ctx, &StepResult{
			RunID:      event.RunID,
			Step:       event.Step,
			Status:     status,
			Message:    event.Message,
			Duration:   event.Duration,
			RecordedAt: event.Timestamp,
		})
	}

	if err != nil {
		r.logger.Warn().Err(err).Str("event", event.Type).Str("run_id", event.RunID).Msg("Failed to record journal entry")
	}
}
