package steps

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/journal"
	"github.com/wpstarter/wpstarter/pkg/scripts"
	"github.com/wpstarter/wpstarter/pkg/telemetry"
)

type fakeStep struct {
	name   string
	denied bool
	status Status
	err    error
	ran    *[]string
}

func (s *fakeStep) Name() string                               { return s.name }
func (s *fakeStep) Allowed(*config.Config, *config.Paths) bool { return !s.denied }
func (s *fakeStep) Success() string                            { return s.name + " ok" }
func (s *fakeStep) Error() string                              { return s.name + " failed" }

func (s *fakeStep) Run(context.Context, *config.Config, *config.Paths) (Status, error) {
	*s.ran = append(*s.ran, s.name)
	return s.status, s.err
}

type blockingFake struct{ fakeStep }

func (s *blockingFake) Blocking() bool { return true }

func newTestTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "disabled"
	tel, err := telemetry.NewTelemetry(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel
}

func TestRunnerRunsInOrder(t *testing.T) {
	p := newProject(t, nil)
	var ran []string
	list := []Step{
		&fakeStep{name: "one", status: Success, ran: &ran},
		&fakeStep{name: "two", status: None, ran: &ran},
		&fakeStep{name: "three", denied: true, ran: &ran},
		&fakeStep{name: "four", status: Success, ran: &ran},
	}
	cfg := p.config(map[string]any{config.KeySkipSteps: []any{"four"}})

	err := NewRunner(p.deps, nil, nil).Run(context.Background(), cfg, p.paths, list)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, ran)
	assert.Contains(t, p.out.String(), "[OK] one ok")
	assert.Contains(t, p.out.String(), "Step four skipped by configuration.")
	assert.Contains(t, p.out.String(), "Step three not allowed.")
}

func TestRunnerSelectedSteps(t *testing.T) {
	p := newProject(t, nil)
	var ran []string
	list := []Step{
		&fakeStep{name: "one", status: Success, ran: &ran},
		&fakeStep{name: "two", status: Success, ran: &ran},
	}

	cfg := p.config(nil)
	_, err := cfg.Append(config.KeySelectedSteps, []string{"two"})
	require.NoError(t, err)
	require.NoError(t, NewRunner(p.deps, nil, nil).Run(context.Background(), cfg, p.paths, list))
	assert.Equal(t, []string{"two"}, ran)

	cfg = p.config(nil)
	_, err = cfg.Append(config.KeySelectedSteps, []string{"nope"})
	require.NoError(t, err)
	err = NewRunner(p.deps, nil, nil).Run(context.Background(), cfg, p.paths, list)
	require.Error(t, err)
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestRunnerFailures(t *testing.T) {
	p := newProject(t, nil)
	var ran []string
	list := []Step{
		&fakeStep{name: "soft", status: Error, err: errors.New("boom"), ran: &ran},
		&fakeStep{name: "after-soft", status: Success, ran: &ran},
		&blockingFake{fakeStep{name: "gate", status: Error, ran: &ran}},
		&fakeStep{name: "never", status: Success, ran: &ran},
	}

	err := NewRunner(p.deps, nil, nil).Run(context.Background(), p.config(nil), p.paths, list)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, errs.CodeStepFailed, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "soft, gate")
	assert.Equal(t, []string{"soft", "after-soft", "gate"}, ran)
	assert.Contains(t, p.out.String(), "[ERROR] soft failed")
	assert.Contains(t, p.out.String(), "boom")
	assert.Contains(t, p.out.String(), "Step gate failed, stopping.")
}

func TestRunnerScripts(t *testing.T) {
	p := newProject(t, nil)
	p.write(t, "check.star", "ok = step == \"two\"\n")
	sr := scripts.NewRunner(p.deps.IO, p.deps.Process, scripts.WithRoot(p.paths.Root))
	tel := newTestTelemetry(t)

	var ran []string
	list := []Step{
		&fakeStep{name: "one", status: Success, ran: &ran},
		&fakeStep{name: "two", status: Success, ran: &ran},
		&fakeStep{name: "three", status: Success, ran: &ran},
	}
	cfg := p.config(map[string]any{config.KeyScripts: map[string]any{
		"pre-one":    "exit 1",
		"pre-two":    "check.star",
		"post-three": []any{"touch post.txt", "exit 3"},
	}})

	err := NewRunner(p.deps, sr, tel).Run(context.Background(), cfg, p.paths, list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one, three")
	assert.Equal(t, []string{"two", "three"}, ran)
	assert.FileExists(t, p.paths.RootPath("post.txt"))

	n, err := testutil.GatherAndCount(tel.Metrics.Registry(), "wpstarter_scripts_run_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunnerFeedsJournal(t *testing.T) {
	p := newProject(t, nil)
	tel := newTestTelemetry(t)

	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	journal.NewRecorder(store, zerolog.Nop()).Attach(tel.Events)

	var ran []string
	list := []Step{
		&fakeStep{name: "one", status: Success, ran: &ran},
		&fakeStep{name: "two", status: Error, ran: &ran},
		&fakeStep{name: "three", denied: true, ran: &ran},
	}
	cfg := p.config(nil)
	_, err = cfg.Append(config.KeyRunID, "run-1")
	require.NoError(t, err)

	require.Error(t, NewRunner(p.deps, nil, tel).Run(context.Background(), cfg, p.paths, list))

	ctx := context.Background()
	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.RunStatusFailed, run.Status)
	assert.Equal(t, []string{"one", "two", "three"}, run.Steps)
	assert.Equal(t, p.paths.Root, run.Root)
	assert.Equal(t, "production", run.EnvType)

	results, err := store.ListStepResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "one ok", results[0].Message)
	assert.Equal(t, "error", results[1].Status)
	assert.Equal(t, "skipped", results[2].Status)

	n, err := testutil.GatherAndCount(tel.Metrics.Registry(), "wpstarter_steps_run_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
