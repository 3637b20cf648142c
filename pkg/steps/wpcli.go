package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/phptool"
)

// WpCliYml is the WP-CLI project config file name.
const WpCliYml = "wp-cli.yml"

type wpCliYml struct {
	Path string `yaml:"path"`
}

// WpCliConfigStep writes a wp-cli.yml pointing WP-CLI at the WordPress
// install directory.
type WpCliConfigStep struct{}

func (s *WpCliConfigStep) Name() string { return NameWpCliConfig }

func (s *WpCliConfigStep) Allowed(_ *config.Config, paths *config.Paths) bool {
	return !exists(paths.RootPath(WpCliYml))
}

func (s *WpCliConfigStep) Run(_ context.Context, _ *config.Config, paths *config.Paths) (Status, error) {
	data, err := yaml.Marshal(wpCliYml{Path: paths.Relative(paths.Root, paths.WP)})
	if err != nil {
		return Error, fmt.Errorf("failed to encode %s: %w", WpCliYml, err)
	}
	if err := writeFile(paths.RootPath(WpCliYml), data); err != nil {
		return Error, err
	}
	return Success, nil
}

func (s *WpCliConfigStep) Success() string { return WpCliYml + " saved." }
func (s *WpCliConfigStep) Error() string   { return "Error creating " + WpCliYml + "." }

// FlushEnvCacheStep removes the env cache dump so the next request parses
// the env files again.
type FlushEnvCacheStep struct{}

func (s *FlushEnvCacheStep) Name() string { return NameFlushEnvCache }

func (s *FlushEnvCacheStep) Allowed(*config.Config, *config.Paths) bool { return true }

func (s *FlushEnvCacheStep) Run(_ context.Context, _ *config.Config, paths *config.Paths) (Status, error) {
	err := os.Remove(EnvCachePath(paths))
	if errors.Is(err, os.ErrNotExist) {
		return None, nil
	}
	if err != nil {
		return Error, fmt.Errorf("failed to remove env cache: %w", err)
	}
	return Success, nil
}

func (s *FlushEnvCacheStep) Success() string { return "Env cache cleaned." }
func (s *FlushEnvCacheStep) Error() string   { return "Error cleaning env cache." }

// EnvCacheStep dumps the resolved environment when cache-env is on, so that
// commands reading the environment later skip parsing the env files.
type EnvCacheStep struct {
	deps *Deps
}

func (s *EnvCacheStep) Name() string { return NameEnvCache }

func (s *EnvCacheStep) Allowed(cfg *config.Config, _ *config.Paths) bool {
	return cfg.Bool(config.KeyCacheEnv)
}

func (s *EnvCacheStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	loadEnv(s.deps, cfg, paths)
	if err := s.deps.Env.DumpCached(EnvCachePath(paths)); err != nil {
		return Error, err
	}
	return Success, nil
}

func (s *EnvCacheStep) Success() string { return "Env cache written." }
func (s *EnvCacheStep) Error() string   { return "Error writing env cache." }

// WpCliCommandsStep runs the configured WP-CLI commands and files, stopping
// at the first failure.
type WpCliCommandsStep struct {
	deps   *Deps
	failed string
}

func (s *WpCliCommandsStep) Name() string { return NameWpCliCommands }

func (s *WpCliCommandsStep) Allowed(cfg *config.Config, _ *config.Paths) bool {
	return len(s.commands(cfg)) > 0
}

// commands lists the configured commands followed by the eval-file ones.
func (s *WpCliCommandsStep) commands(cfg *config.Config) []string {
	out := append([]string(nil), cfg.Strings(config.KeyWpCliCommands)...)
	for _, f := range cfg.WpCliFiles() {
		parts := []string{"wp", "eval-file", phptool.ShellQuote(filepath.ToSlash(f.File))}
		for _, arg := range f.Args {
			parts = append(parts, phptool.ShellQuote(arg))
		}
		if f.SkipWordPress {
			parts = append(parts, "--skip-wordpress")
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

func (s *WpCliCommandsStep) Run(ctx context.Context, cfg *config.Config, _ *config.Paths) (Status, error) {
	s.failed = ""
	wp, err := s.deps.Tools.Create(ctx, phptool.WpCli{})
	if err != nil {
		return Error, err
	}
	s.deps.Logger.Debug().Str("source", wp.Source()).Str("path", wp.Path()).Msg("WP-CLI resolved")

	for _, command := range s.commands(cfg) {
		s.deps.IO.WriteComment("wp-cli: " + strings.TrimPrefix(command, "wp "))
		if !wp.Execute(ctx, command) {
			s.failed = command
			return Error, fmt.Errorf("wp-cli command failed: %s", command)
		}
	}
	return Success, nil
}

func (s *WpCliCommandsStep) Success() string { return "WP-CLI commands executed." }

func (s *WpCliCommandsStep) Error() string {
	if s.failed != "" {
		return fmt.Sprintf("WP-CLI command %q failed.", s.failed)
	}
	return "Error running WP-CLI commands."
}
