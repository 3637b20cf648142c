// Package scripts runs the pre-/post-step scripts configured under the
// "scripts" key. An entry ending in ".star" is a Starlark file evaluated in
// process; anything else is a shell command.
//
// Starlark scripts see these globals:
//
//	step    name of the step the script is attached to
//	config  the validated configuration, as a dict
//	paths   project paths, as a dict
//	env(name, default=None)   reads the environment bridge
//	run(command)              runs a shell command, returns True on success
//
// A script fails when evaluation errors or when it sets the global ok to
// False.
package scripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/wpstarter/wpstarter/pkg/console"
	"github.com/wpstarter/wpstarter/pkg/process"
)

// Context is what a script knows about the step it runs for.
type Context struct {
	Step   string
	Config map[string]any
	Paths  map[string]any
}

// EnvReader resolves environment values for the env() builtin.
type EnvReader interface {
	Read(name string) (any, bool)
}

// Runner executes script entries.
type Runner struct {
	io        *console.IO
	proc      *process.SystemProcess
	evaluator *Evaluator
	env       EnvReader
	root      string
	logger    zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each Starlark script.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.evaluator = NewEvaluator(d) }
}

// WithEnv sets the environment reader behind env().
func WithEnv(env EnvReader) Option {
	return func(r *Runner) { r.env = env }
}

// WithRoot sets the directory relative script paths are resolved from.
func WithRoot(root string) Option {
	return func(r *Runner) { r.root = root }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner.
func NewRunner(io *console.IO, proc *process.SystemProcess, opts ...Option) *Runner {
	r := &Runner{
		io:        io,
		proc:      proc,
		evaluator: NewEvaluator(0),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsStarlark reports whether entry is a Starlark file.
func IsStarlark(entry string) bool {
	return strings.HasSuffix(strings.TrimSpace(entry), ".star")
}

// Run executes one script entry and reports success. Failures are written to
// the console.
func (r *Runner) Run(ctx context.Context, entry string, sc Context) bool {
	entry = strings.TrimSpace(entry)
	log := r.logger.With().Str("step", sc.Step).Str("script", entry).Logger()

	if !IsStarlark(entry) {
		ok := r.proc.Execute(ctx, entry)
		log.Debug().Bool("ok", ok).Msg("Shell script executed")
		return ok
	}

	res, err := r.RunFile(ctx, entry, sc)
	if err != nil {
		log.Error().Err(err).Msg("Starlark script failed")
		r.io.WriteError(strings.Split(err.Error(), "\n")...)
		return false
	}
	if ok, set := res.Output["ok"].(bool); set && !ok {
		log.Warn().Msg("Starlark script reported failure")
		return false
	}
	log.Debug().Dur("duration", res.ExecutionTime).Msg("Starlark script executed")
	return true
}

// RunFile evaluates the Starlark file at path.
func (r *Runner) RunFile(ctx context.Context, path string, sc Context) (*Result, error) {
	if !filepath.IsAbs(path) && r.root != "" {
		path = filepath.Join(r.root, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	input := map[string]any{
		"step":   sc.Step,
		"config": sc.Config,
		"paths":  sc.Paths,
	}
	if sc.Config == nil {
		input["config"] = map[string]any{}
	}
	if sc.Paths == nil {
		input["paths"] = map[string]any{}
	}

	return r.evaluator.Evaluate(ctx, filepath.Base(path), string(src), input, r.builtins(ctx), func(msg string) {
		r.io.Write(msg)
	})
}

func (r *Runner) builtins(ctx context.Context) map[string]*starlark.Builtin {
	return map[string]*starlark.Builtin{
		"env": starlark.NewBuiltin("env", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			var def starlark.Value = starlark.None
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
				return nil, err
			}
			if r.env == nil {
				return def, nil
			}
			v, ok := r.env.Read(name)
			if !ok {
				return def, nil
			}
			return toStarlarkValue(v)
		}),
		"run": starlark.NewBuiltin("run", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var command string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "command", &command); err != nil {
				return nil, err
			}
			return starlark.Bool(r.proc.Execute(ctx, command)), nil
		}),
	}
}
