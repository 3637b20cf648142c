package journal

import (
	"context"
	"time"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the step runner.
type Run struct {
	ID          string     `json:"id"`
	Root        string     `json:"root"`
	Steps       []string   `json:"steps"`
	EnvType     string     `json:"env_type"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Duration is the run length, zero while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StepResult is the recorded outcome of one step of a run.
type StepResult struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	Step       string        `json:"step"`
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Store persists runs and their step results.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg *string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	AppendStepResult(ctx context.Context, result *StepResult) error
	ListStepResults(ctx context.Context, runID string) ([]*StepResult, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
