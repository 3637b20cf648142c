package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpstarter/wpstarter/pkg/telemetry"
)

// setupTestStore creates a migrated store in a temp directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.HealthCheck(ctx))
	assert.Error(t, store.Migrate(ctx))

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	// idempotent
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.Close())

	_, err = NewSQLiteStore(Config{})
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, store.CreateRun(ctx, &Run{
		ID:        id,
		Root:      "/srv/site",
		Steps:     []string{"check-paths", "wp-config"},
		EnvType:   "staging",
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}))

	run, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, []string{"check-paths", "wp-config"}, run.Steps)
	assert.Equal(t, "staging", run.EnvType)
	assert.Nil(t, run.CompletedAt)
	assert.Zero(t, run.Duration())

	msg := "wp-config failed"
	require.NoError(t, store.CompleteRun(ctx, id, RunStatusFailed, &msg))

	run, err = store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, msg, *run.Error)
	require.NotNil(t, run.CompletedAt)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.CompleteRun(ctx, "missing", RunStatusSucceeded, nil), ErrRunNotFound)
}

func TestListRunsLatestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateRun(ctx, &Run{
			ID:        id,
			Root:      "/srv",
			Status:    RunStatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].Steps)

	runs, err = store.ListRuns(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
}

func TestStepResultsAndPrune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.CreateRun(ctx, &Run{ID: "old", Root: "/", Status: RunStatusSucceeded, StartedAt: old}))
	require.NoError(t, store.CreateRun(ctx, &Run{ID: "new", Root: "/", Status: RunStatusSucceeded, StartedAt: time.Now()}))

	for _, step := range []string{"index", "dropins"} {
		res := &StepResult{RunID: "old", Step: step, Status: "success", Duration: 1500 * time.Millisecond}
		require.NoError(t, store.AppendStepResult(ctx, res))
		assert.NotZero(t, res.ID)
	}

	results, err := store.ListStepResults(ctx, "old")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "index", results[0].Step)
	assert.Equal(t, 1500*time.Millisecond, results[0].Duration)

	// unknown run violates the foreign key
	assert.Error(t, store.AppendStepResult(ctx, &StepResult{RunID: "nope", Step: "x", Status: "success"}))
	// unknown status violates the check constraint
	assert.Error(t, store.AppendStepResult(ctx, &StepResult{RunID: "new", Step: "x", Status: "weird"}))

	n, err := store.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err = store.ListStepResults(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecorderFromEvents(t *testing.T) {
	store := setupTestStore(t)
	ep := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	NewRecorder(store, zerolog.Nop()).Attach(ep)

	runID := uuid.NewString()
	require.NoError(t, ep.Publish(telemetry.Event{
		Type:  telemetry.EventTypeRunStarted,
		RunID: runID,
		Data: map[string]any{
			DataRoot:    "/srv/site",
			DataSteps:   []string{"index", "dropins"},
			DataEnvType: "production",
		},
	}))
	require.NoError(t, ep.PublishStepCompleted(runID, "index", "success", "index.php created", time.Second))
	require.NoError(t, ep.Publish(telemetry.Event{Type: telemetry.EventTypeStepSkipped, RunID: runID, Step: "dropins"}))
	require.NoError(t, ep.Publish(telemetry.Event{
		Type:  telemetry.EventTypeRunCompleted,
		RunID: runID,
		Data:  map[string]any{DataError: "boom"},
	}))
	// step.started is not journaled
	require.NoError(t, ep.Publish(telemetry.Event{Type: telemetry.EventTypeStepStarted, RunID: runID, Step: "index"}))

	ctx := context.Background()
	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "/srv/site", run.Root)
	assert.Equal(t, []string{"index", "dropins"}, run.Steps)

	results, err := store.ListStepResults(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "index.php created", results[0].Message)
	assert.Equal(t, "skipped", results[1].Status)
}
