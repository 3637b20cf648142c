package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/console"
	"github.com/wpstarter/wpstarter/pkg/env"
	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/journal"
	"github.com/wpstarter/wpstarter/pkg/phptool"
	"github.com/wpstarter/wpstarter/pkg/process"
	"github.com/wpstarter/wpstarter/pkg/scripts"
	"github.com/wpstarter/wpstarter/pkg/steps"
	"github.com/wpstarter/wpstarter/pkg/telemetry"
	"github.com/wpstarter/wpstarter/pkg/template"
)

// app wires the collaborators every command needs from the global flags and
// the project manifest.
type app struct {
	io        *console.IO
	tel       *telemetry.Telemetry
	paths     *config.Paths
	cfg       *config.Config
	env       *env.Bridge
	proc      *process.SystemProcess
	installer *phptool.PharInstaller
	tools     *phptool.ProcessFactory
	journal   *journal.SQLiteStore
	deps      *steps.Deps
}

func newApp(ctx context.Context) (*app, error) {
	opts := []console.Option{console.WithVerbose(verbose)}
	if noInteraction {
		opts = append(opts, console.WithInteractive(false))
	}
	io := console.Std(opts...)

	tel, err := telemetry.NewTelemetry(telemetryConfig())
	if err != nil {
		return nil, errs.NewFatal("invalid telemetry settings", err).WithCode(errs.CodeConfig)
	}
	a := &app{io: io, tel: tel}

	if err := a.loadProject(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = appVersion
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if logOutput != "" {
		cfg.Logging.Output = logOutput
	}
	if metricsFile != "" {
		cfg.Metrics.TextfilePath = metricsFile
	}
	if traceExporter != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = traceExporter
		cfg.Tracing.Endpoint = traceEndpoint
	}
	return cfg
}

func (a *app) loadProject(ctx context.Context) error {
	root := projectDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	manifest, err := config.LoadManifest(root)
	if err != nil {
		return errs.NewFatal("not a Composer project", err).WithCode(errs.CodeConfig).WithSubject(root)
	}
	paths, err := config.NewPaths(root, manifest)
	if err != nil {
		return errs.NewFatal("invalid project paths", err).WithCode(errs.CodeConfig)
	}
	raw, err := manifest.RawConfig(paths.Root)
	if err != nil {
		return errs.NewFatal("invalid WP Starter settings", err).WithCode(errs.CodeConfig)
	}
	cfg := config.New(raw, config.NewValidator(paths))
	paths.UseTemplatesDir(cfg.String(config.KeyTemplatesDir))
	a.paths, a.cfg = paths, cfg

	logger := a.tel.Logger
	a.env = env.NewBridge(env.WithLogger(logger.NewComponentLogger("env").Zerolog()))
	a.proc = process.New(a.io,
		process.WithCwd(paths.Root),
		process.WithLogger(logger.NewComponentLogger("process").Zerolog()),
	)

	toolLogger := logger.NewComponentLogger("phptool").Zerolog()
	a.installer = phptool.NewPharInstaller(toolLogger, phptool.WithRecorder(a.tel.Metrics))
	a.tools = phptool.NewProcessFactory(paths, cfg, a.proc, a.installer,
		phptool.WithFactoryLogger(toolLogger),
		phptool.WithFactoryRecorder(a.tel.Metrics),
	)

	if path := a.journalFile(); path != "" {
		store, err := journal.Open(ctx, path)
		if err != nil {
			// the run goes on without history
			jerr := errs.NewRecoverable("journal unavailable", err).WithSubject(path)
			logger.WithError(jerr).Warn("Continuing without run journal")
			a.io.WriteComment(fmt.Sprintf("Run journal %s unavailable, history is not recorded.", path))
		} else {
			a.journal = store
			journal.NewRecorder(store, logger.NewComponentLogger("journal").Zerolog()).Attach(a.tel.Events)
		}
	}

	a.deps = &steps.Deps{
		IO:      a.io,
		Env:     a.env,
		Locator: template.NewLocator(paths.Templates...),
		Process: a.proc,
		Tools:   a.tools,
		HTTP:    a.installer.Client(),
		Logger:  logger.NewComponentLogger("steps").Zerolog(),
	}
	return nil
}

// journalFile is the --journal flag or the journal setting, relative to the
// project root.
func (a *app) journalFile() string {
	path := journalPath
	if path == "" && a.cfg != nil {
		path = a.cfg.String(config.KeyJournal)
	}
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return a.paths.RootPath(filepath.FromSlash(path))
}

func (a *app) scripts() *scripts.Runner {
	return scripts.NewRunner(a.io, a.proc,
		scripts.WithEnv(a.env),
		scripts.WithRoot(a.paths.Root),
		scripts.WithLogger(a.tel.Logger.NewComponentLogger("scripts").Zerolog()),
	)
}

// loadEnv loads the env files of the project. A missing env file is only an
// error when required is set.
func (a *app) loadEnv(required bool) error {
	dir := steps.EnvDir(a.cfg, a.paths)
	file := a.cfg.String(config.KeyEnvFile)
	if _, err := os.Stat(filepath.Join(dir, file)); err != nil && !required {
		a.env.DefineConstants()
		return nil
	}
	if err := a.env.Load(file, dir); err != nil {
		return err
	}
	if err := a.env.LoadAppended(file, dir); err != nil {
		return err
	}
	a.env.DefineConstants()
	return nil
}

// Close flushes telemetry and closes the journal.
func (a *app) Close(ctx context.Context) error {
	var errList []error
	if a.tel != nil {
		errList = append(errList, a.tel.Shutdown(ctx))
	}
	if a.journal != nil {
		errList = append(errList, a.journal.Close())
	}
	return errors.Join(errList...)
}

// withApp runs fn with a fresh app, closing it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) (err error) {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}
