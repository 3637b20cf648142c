// Package steps holds the provisioning pipeline: the Step contract, the
// built-in steps and the Runner executing them in order.
package steps

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/console"
	"github.com/wpstarter/wpstarter/pkg/env"
	"github.com/wpstarter/wpstarter/pkg/phptool"
	"github.com/wpstarter/wpstarter/pkg/process"
	"github.com/wpstarter/wpstarter/pkg/template"
)

// Status is the outcome of a step.
type Status int

const (
	// None means the step had nothing to do.
	None Status = iota
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// Step is one named unit of the pipeline. Steps are idempotent: running one
// twice leaves the project as running it once.
type Step interface {
	Name() string
	Allowed(cfg *config.Config, paths *config.Paths) bool
	Run(ctx context.Context, cfg *config.Config, paths *config.Paths) (Status, error)
	// Success is printed after a Success status.
	Success() string
	// Error is printed after an Error status.
	Error() string
}

// BlockingStep is a step whose failure stops the pipeline.
type BlockingStep interface {
	Step
	Blocking() bool
}

// Deps are the collaborators shared by the built-in steps.
type Deps struct {
	IO      *console.IO
	Env     *env.Bridge
	Locator *template.Locator
	Process *process.SystemProcess
	Tools   *phptool.ProcessFactory
	HTTP    *retryablehttp.Client
	Logger  zerolog.Logger
}

// Names of the built-in steps.
const (
	NameCheckPaths    = "check-paths"
	NameWPConfig      = "wp-config"
	NameIndex         = "index"
	NameMuLoader      = "mu-loader"
	NameEnvExample    = "env-example"
	NameDropins       = "dropins"
	NameMoveContent   = "move-content"
	NameContentDev    = "content-dev"
	NameWpCliConfig   = "wp-cli-config"
	NameFlushEnvCache = "flush-env-cache"
	NameEnvCache      = "env-cache"
	NameWpCliCommands = "wp-cli-commands"
)

// Default returns the built-in steps in pipeline order.
func Default(deps *Deps) []Step {
	return []Step{
		&CheckPathsStep{},
		&WPConfigStep{deps: deps},
		&IndexStep{deps: deps},
		&MuLoaderStep{deps: deps},
		&EnvExampleStep{deps: deps},
		&DropinsStep{deps: deps},
		&MoveContentStep{deps: deps},
		&ContentDevStep{deps: deps},
		&WpCliConfigStep{},
		&FlushEnvCacheStep{},
		&EnvCacheStep{deps: deps},
		&WpCliCommandsStep{deps: deps},
	}
}

// Build returns the built-in steps followed by the command-steps of cfg, in
// name order. A command step named like a built-in one replaces it.
func Build(deps *Deps, cfg *config.Config) []Step {
	list := Default(deps)
	commands := cfg.StringMap(config.KeyCommandSteps)
	for _, name := range cfg.StringMapKeys(config.KeyCommandSteps) {
		cmd := NewCommandStep(name, commands[name], deps.Process)
		replaced := false
		for i, s := range list {
			if s.Name() == name {
				list[i] = cmd
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, cmd)
		}
	}
	return list
}

// Names returns the names of list.
func Names(list []Step) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name()
	}
	return out
}

// EnvDir is the directory holding the env file.
func EnvDir(cfg *config.Config, paths *config.Paths) string {
	if dir := cfg.String(config.KeyEnvDir); dir != "" {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return paths.RootPath(filepath.FromSlash(dir))
	}
	return paths.Root
}

// EnvCachePath is where the env cache dump lives.
func EnvCachePath(paths *config.Paths) string {
	return paths.WPParentPath(env.CacheFileName)
}

// shouldWrite decides whether target may be written according to
// prevent-overwrite. soft is true when the file exists and is protected by a
// non-"hard" setting, so steps may still refresh generated sections.
func shouldWrite(io *console.IO, cfg *config.Config, paths *config.Paths, target string) (write, soft bool) {
	if !exists(target) {
		return true, false
	}

	v, _ := cfg.Get(config.KeyPreventOverwrite).Value()
	switch val := v.(type) {
	case bool:
		return !val, val
	case string:
		switch val {
		case config.OpHard:
			return false, false
		case config.OpAsk:
			rel := paths.Relative(paths.Root, target)
			if io.Ask([]string{fmt.Sprintf("%s already exists, do you want to overwrite it?", rel)}, false) {
				return true, false
			}
			return false, true
		}
	case []string:
		rel := paths.Relative(paths.Root, target)
		for _, pattern := range val {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return false, true
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(target)); ok {
				return false, true
			}
		}
	}
	return true, false
}

// relDir renders target relative to from as a suffix for PHP's __DIR__:
// "" when they are the same, "/rel/path" otherwise.
func relDir(paths *config.Paths, from, target string) string {
	rel := paths.Relative(from, target)
	if rel == "." || rel == "" {
		return ""
	}
	return "/" + rel
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// copyFile copies a regular file, keeping its mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// copyTree copies src into dst recursively.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(path, target)
	})
}
