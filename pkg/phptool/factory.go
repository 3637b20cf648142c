package phptool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/process"
)

// ErrPHPNotFound is returned when no PHP executable can be located.
var ErrPHPNotFound = errors.New("php executable not found")

// Resolution sources, as reported by ToolProcess.Source.
const (
	SourceExecutor = "executor"
	SourcePackage  = "package"
	SourcePhar     = "phar"
	SourceDownload = "download"
)

// ProcessFactory resolves tools into runnable processes.
type ProcessFactory struct {
	paths     *config.Paths
	cfg       *config.Config
	proc      *process.SystemProcess
	finder    *PackageFinder
	installer *PharInstaller
	recorder  Recorder
	logger    zerolog.Logger

	lookupEnv func(string) (string, bool)
	lookPath  func(string) (string, error)
}

// FactoryOption configures a ProcessFactory.
type FactoryOption func(*ProcessFactory)

// WithFactoryLogger sets the logger.
func WithFactoryLogger(logger zerolog.Logger) FactoryOption {
	return func(f *ProcessFactory) { f.logger = logger }
}

// WithFactoryRecorder sets the metrics recorder.
func WithFactoryRecorder(r Recorder) FactoryOption {
	return func(f *ProcessFactory) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithEnvLookup replaces the environment lookup used for PHP_BINARY.
func WithEnvLookup(lookup func(string) (string, bool)) FactoryOption {
	return func(f *ProcessFactory) { f.lookupEnv = lookup }
}

// WithLookPath replaces the PATH search used to locate php.
func WithLookPath(lookPath func(string) (string, error)) FactoryOption {
	return func(f *ProcessFactory) { f.lookPath = lookPath }
}

// NewProcessFactory creates a factory. The installer is only used when a
// phar must be downloaded.
func NewProcessFactory(paths *config.Paths, cfg *config.Config, proc *process.SystemProcess, installer *PharInstaller, opts ...FactoryOption) *ProcessFactory {
	f := &ProcessFactory{
		paths:     paths,
		cfg:       cfg,
		proc:      proc,
		finder:    NewPackageFinder(paths.Vendor),
		installer: installer,
		recorder:  nopRecorder{},
		logger:    zerolog.Nop(),
		lookupEnv: os.LookupEnv,
		lookPath:  exec.LookPath,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create resolves tool and returns a process able to run its commands.
func (f *ProcessFactory) Create(ctx context.Context, tool PhpTool) (*ToolProcess, error) {
	if err := Validate(tool); err != nil {
		return nil, err
	}
	log := f.logger.With().Str("tool", tool.PharName()).Logger()

	executor := f.executor(tool)
	if executor != "" && executor != config.OpPhar {
		log.Debug().Str("executor", executor).Msg("Using configured executor")
		return f.done(tool, SourceExecutor, "", "", executor), nil
	}

	php, err := f.php()
	if err != nil {
		return nil, err
	}

	if executor != config.OpPhar {
		if tp, ok := f.fromPackage(tool, php, log); ok {
			return tp, nil
		}
	}

	path, found := ResolvePharPath(tool, f.paths)
	if found {
		log.Debug().Str("phar", path).Msg("Using existing phar")
		return f.done(tool, SourcePhar, php, path, ""), nil
	}

	if !f.downloadAllowed(tool) {
		return nil, errs.NewFatal(fmt.Sprintf("%s is not installed and its download is disabled", tool.NiceName()), ErrDownloadDisabled).
			WithCode(errs.CodeDownloadDisabled).
			WithSubject(tool.PackageName())
	}
	if f.installer == nil {
		return nil, errs.NewFatal(fmt.Sprintf("%s is not installed", tool.NiceName()), ErrDownloadDisabled).
			WithCode(errs.CodeDownloadDisabled).
			WithSubject(tool.PackageName())
	}
	path, err = f.installer.Install(ctx, tool, path)
	if err != nil {
		return nil, err
	}
	return f.done(tool, SourceDownload, php, path, ""), nil
}

func (f *ProcessFactory) fromPackage(tool PhpTool, php string, log zerolog.Logger) (*ToolProcess, bool) {
	pkg, ok, err := f.finder.Find(tool.PackageName())
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read installed packages")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !pkg.Satisfies(tool.MinVersion()) {
		e := errs.NewRecoverable(
			fmt.Sprintf("installed %s version %s is lower than %s", tool.NiceName(), pkg.Version, tool.MinVersion()), nil).
			WithCode(errs.CodeVersionTooLow).
			WithSubject(tool.PackageName())
		log.Warn().Err(e).Msg("Ignoring installed package")
		return nil, false
	}
	bootstrap := tool.FilesystemBootstrap(pkg.InstallPath)
	if !isFile(bootstrap) {
		log.Warn().Str("bootstrap", bootstrap).Msg("Installed package has no bootstrap file")
		return nil, false
	}
	log.Debug().Str("version", pkg.Version).Str("path", bootstrap).Msg("Using installed package")
	return f.done(tool, SourcePackage, php, bootstrap, ""), true
}

func (f *ProcessFactory) done(tool PhpTool, source, php, path, executor string) *ToolProcess {
	f.recorder.RecordToolResolution(tool.PharName(), source)
	return &ToolProcess{
		tool:     tool,
		paths:    f.paths,
		proc:     f.proc,
		php:      php,
		path:     path,
		executor: executor,
		source:   source,
	}
}

func (f *ProcessFactory) executor(tool PhpTool) string {
	if f.cfg == nil || tool.PackageName() != (WpCli{}).PackageName() {
		return ""
	}
	return strings.TrimSpace(f.cfg.String(config.KeyWpCliExecutor))
}

func (f *ProcessFactory) downloadAllowed(tool PhpTool) bool {
	if tool.PharURL() == "" {
		return false
	}
	if f.cfg != nil && tool.PackageName() == (WpCli{}).PackageName() {
		return f.cfg.Bool(config.KeyInstallWpCli)
	}
	return true
}

// php locates the PHP executable: configuration first, then PHP_BINARY, then
// the PATH.
func (f *ProcessFactory) php() (string, error) {
	if f.cfg != nil {
		if p := f.cfg.String(config.KeyPHPExecutable); p != "" {
			if !filepath.IsAbs(p) && strings.ContainsRune(p, '/') {
				p = f.paths.RootPath(p)
			}
			return p, nil
		}
	}
	if p, ok := f.lookupEnv("PHP_BINARY"); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p), nil
	}
	if p, err := f.lookPath("php"); err == nil {
		return p, nil
	}
	return "", errs.NewFatal("PHP executable not found, set php-executable or PHP_BINARY", ErrPHPNotFound).
		WithCode(errs.CodePHPNotFound)
}

// ToolProcess runs commands of a resolved tool.
type ToolProcess struct {
	tool     PhpTool
	paths    *config.Paths
	proc     *process.SystemProcess
	php      string
	path     string
	executor string
	source   string
}

// Tool returns the tool.
func (p *ToolProcess) Tool() PhpTool { return p.tool }

// Path returns the phar or bootstrap file, empty with an executor.
func (p *ToolProcess) Path() string { return p.path }

// Source tells how the tool was resolved.
func (p *ToolProcess) Source() string { return p.source }

// Command returns the full shell command for command.
func (p *ToolProcess) Command(command string) string {
	prepared := p.tool.PrepareCommand(command, p.paths)
	var base string
	if p.executor != "" {
		base = p.executor
	} else {
		base = ShellQuote(p.php) + " " + ShellQuote(p.path)
	}
	if prepared == "" {
		return base
	}
	return base + " " + prepared
}

// Execute runs command, streaming its output.
func (p *ToolProcess) Execute(ctx context.Context, command string) bool {
	return p.proc.Execute(ctx, p.Command(command))
}

// ExecuteSilently runs command without output.
func (p *ToolProcess) ExecuteSilently(ctx context.Context, command string) bool {
	return p.proc.ExecuteSilently(ctx, p.Command(command))
}

// Capture runs command and returns its output.
func (p *ToolProcess) Capture(ctx context.Context, command string) (string, bool) {
	return p.proc.Capture(ctx, p.Command(command))
}
