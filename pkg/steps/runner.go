package steps

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/journal"
	"github.com/wpstarter/wpstarter/pkg/scripts"
	"github.com/wpstarter/wpstarter/pkg/telemetry"
)

// Runner executes steps in order.
type Runner struct {
	deps    *Deps
	scripts *scripts.Runner
	tel     *telemetry.Telemetry
}

// NewRunner creates a runner. A nil tel disables telemetry.
func NewRunner(deps *Deps, sr *scripts.Runner, tel *telemetry.Telemetry) *Runner {
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Runner{deps: deps, scripts: sr, tel: tel}
}

// Run executes list. When cfg holds selected-steps only those run, and
// skip-steps are always skipped. The returned error lists the failed steps.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, paths *config.Paths, list []Step) error {
	selected := cfg.Strings(config.KeySelectedSteps)
	if unknown := unknownSteps(selected, list); len(unknown) > 0 {
		return errs.NewFatal("unknown steps", nil).
			WithCode(errs.CodeConfig).
			WithSubject(strings.Join(unknown, ", "))
	}
	skip := cfg.Strings(config.KeySkipSteps)

	runID := cfg.String(config.KeyRunID)
	if runID == "" {
		runID = uuid.NewString()
	}

	var planned []Step
	for _, s := range list {
		if len(selected) == 0 || slices.Contains(selected, s.Name()) {
			planned = append(planned, s)
		}
	}
	names := Names(planned)

	logger := r.tel.Logger.WithRunID(runID)
	ctx = logger.WithContext(ctx)
	ctx, span := r.tel.Tracer.StartRunSpan(ctx, runID, names)
	defer span.End()
	timer := telemetry.NewTimer()

	envType := ""
	if r.deps.Env != nil {
		envType = r.deps.Env.EnvType()
	}
	r.publish(logger, telemetry.Event{
		Type:  telemetry.EventTypeRunStarted,
		RunID: runID,
		Data: map[string]any{
			journal.DataRoot:    paths.Root,
			journal.DataSteps:   names,
			journal.DataEnvType: envType,
		},
	})
	logger.Debugf("Running %d step(s): %s", len(names), strings.Join(names, ", "))

	var failed []string
	for _, s := range planned {
		name := s.Name()
		if slices.Contains(skip, name) {
			r.skipped(logger, runID, name, "skipped by configuration")
			continue
		}
		if !s.Allowed(cfg, paths) {
			r.skipped(logger, runID, name, "not allowed")
			continue
		}

		status := r.runStep(ctx, runID, s, cfg, paths)
		if status != Error {
			continue
		}
		failed = append(failed, name)
		if b, ok := s.(BlockingStep); ok && b.Blocking() {
			r.deps.IO.WriteErrorBlock(fmt.Sprintf("Step %s failed, stopping.", name))
			break
		}
	}

	var runErr error
	if len(failed) > 0 {
		runErr = errs.NewFatal("steps failed", nil).
			WithCode(errs.CodeStepFailed).
			WithSubject(strings.Join(failed, ", "))
		telemetry.RecordError(span, runErr)
	} else {
		telemetry.RecordSuccess(span)
	}

	data := map[string]any{}
	runStatus := string(journal.RunStatusSucceeded)
	if runErr != nil {
		data[journal.DataError] = runErr.Error()
		runStatus = string(journal.RunStatusFailed)
	}
	r.publish(logger, telemetry.Event{Type: telemetry.EventTypeRunCompleted, RunID: runID, Data: data})
	r.tel.Metrics.RecordRunCompleted(runStatus, timer.Duration())

	return runErr
}

// runStep runs one step with its pre and post scripts.
func (r *Runner) runStep(ctx context.Context, runID string, s Step, cfg *config.Config, paths *config.Paths) Status {
	name := s.Name()
	scope := r.tel.StartStep(ctx, runID, name)
	sc := scripts.Context{Step: name, Config: cfg.Map(), Paths: paths.Map()}
	all := cfg.Scripts()

	var (
		status Status
		err    error
	)
	if err = r.runScripts(scope.Ctx, all["pre-"+name], sc); err != nil {
		status = Error
	} else {
		status, err = s.Run(scope.Ctx, cfg, paths)
		if status == Error && err == nil {
			err = errors.New(s.Error())
		}
		if postErr := r.runScripts(scope.Ctx, all["post-"+name], sc); postErr != nil {
			status, err = Error, errors.Join(err, postErr)
		}
	}

	message := ""
	switch status {
	case Success:
		message = s.Success()
		r.deps.IO.WriteSuccess(message)
	case Error:
		message = s.Error()
		r.deps.IO.WriteFailure(message)
		if err != nil {
			r.deps.IO.WriteErrorIfVerbose(strings.Split(err.Error(), "\n")...)
		}
	}

	duration := scope.End(status.String(), message, err)
	if err != nil {
		scope.Logger.WithError(err).Warnf("Step finished with status %s in %s", status, duration)
	} else {
		scope.Logger.Debugf("Step finished with status %s in %s", status, duration)
	}
	return status
}

func (r *Runner) runScripts(ctx context.Context, entries []string, sc scripts.Context) error {
	if r.scripts == nil {
		return nil
	}
	for _, entry := range entries {
		ok := r.scripts.Run(ctx, entry, sc)
		kind := "shell"
		if scripts.IsStarlark(entry) {
			kind = "starlark"
		}
		r.tel.Metrics.RecordScript(kind, ok)
		if !ok {
			return errs.NewRecoverable("script failed", nil).WithSubject(entry)
		}
	}
	return nil
}

func (r *Runner) skipped(logger *telemetry.Logger, runID, name, reason string) {
	r.deps.IO.WriteIfVerbose(fmt.Sprintf("Step %s %s.", name, reason))
	r.publish(logger, telemetry.Event{
		Type:    telemetry.EventTypeStepSkipped,
		RunID:   runID,
		Step:    name,
		Message: reason,
	})
}

func (r *Runner) publish(logger *telemetry.Logger, event telemetry.Event) {
	if err := r.tel.Events.Publish(event); err != nil {
		logger.WithError(err).Warn("Event not delivered")
	}
}

func unknownSteps(names []string, list []Step) []string {
	known := Names(list)
	var out []string
	for _, n := range names {
		if !slices.Contains(known, n) {
			out = append(out, n)
		}
	}
	return out
}
