package steps

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/env"
	"github.com/wpstarter/wpstarter/pkg/template"
)

// SaltNames are the WordPress authentication keys and salts.
var SaltNames = []string{
	"AUTH_KEY", "SECURE_AUTH_KEY", "LOGGED_IN_KEY", "NONCE_KEY",
	"AUTH_SALT", "SECURE_AUTH_SALT", "LOGGED_IN_SALT", "NONCE_SALT",
}

// saltChars excludes the quote and the backslash so salts embed safely in
// single-quoted PHP strings.
const saltChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_ []{}<>~`+=,.;:/?|"

const saltLength = 64

const envSection = "ENV_VARIABLES"

// WPConfigStep renders wp-config.php.
type WPConfigStep struct {
	deps    *Deps
	refresh bool
}

func (s *WPConfigStep) Name() string { return NameWPConfig }

func (s *WPConfigStep) Allowed(*config.Config, *config.Paths) bool { return true }

func (s *WPConfigStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	target := paths.WPParentPath("wp-config.php")
	write, soft := shouldWrite(s.deps.IO, cfg, paths, target)
	if !write && !soft {
		return None, nil
	}

	loadEnv(s.deps, cfg, paths)
	vars, err := s.vars(cfg, paths)
	if err != nil {
		return Error, err
	}

	if !write {
		s.refresh = true
		return s.refreshEnvSection(target, vars)
	}

	content, err := s.deps.Locator.Render(template.WPConfig, vars)
	if err != nil {
		return Error, err
	}
	if err := writeFile(target, []byte(content)); err != nil {
		return Error, err
	}
	return Success, nil
}

// refreshEnvSection re-templates only the env section of an existing file.
func (s *WPConfigStep) refreshEnvSection(target string, vars map[string]string) (Status, error) {
	tmpl, _, err := s.deps.Locator.Locate(template.WPConfig)
	if err != nil {
		return Error, err
	}
	section, ok := template.Sections(tmpl)[envSection]
	if !ok {
		return None, nil
	}

	current, err := os.ReadFile(target)
	if err != nil {
		return Error, fmt.Errorf("failed to read %s: %w", target, err)
	}
	updated, err := template.ReplaceSection(string(current), envSection, template.Builder{}.Build(section.Body, vars))
	if errors.Is(err, template.ErrSectionNotFound) {
		s.deps.Logger.Debug().Str("file", target).Msg("No env section to refresh")
		return None, nil
	}
	if err != nil {
		return Error, err
	}
	if updated == string(current) {
		return None, nil
	}
	if err := writeFile(target, []byte(updated)); err != nil {
		return Error, err
	}
	return Success, nil
}

// loadEnv loads the env files when present. A project without an env file
// still gets a wp-config.php reading the real environment.
// loadEnv loads the env file and its environment specific companion when
// they exist, then defines the constants. Without an env file the real
// environment is used.
func loadEnv(deps *Deps, cfg *config.Config, paths *config.Paths) {
	bridge := deps.Env
	dir := EnvDir(cfg, paths)
	file := cfg.String(config.KeyEnvFile)
	if exists(filepath.Join(dir, file)) {
		if err := bridge.Load(file, dir); err != nil {
			deps.Logger.Warn().Err(err).Msg("Env file not loaded")
		}
		if err := bridge.LoadAppended(file, dir); err != nil {
			deps.Logger.Warn().Err(err).Msg("Environment specific env file not loaded")
		}
	}
	bridge.DefineConstants()
}

func (s *WPConfigStep) vars(cfg *config.Config, paths *config.Paths) (map[string]string, error) {
	envDir := EnvDir(cfg, paths)

	autoload := filepath.FromSlash(cfg.String(config.KeyAutoload))
	if !filepath.IsAbs(autoload) {
		autoload = paths.RootPath(autoload)
	}

	earlyHooks := ""
	if f := cfg.String(config.KeyEarlyHooksFile); f != "" {
		path := filepath.FromSlash(f)
		if !filepath.IsAbs(path) {
			path = paths.RootPath(path)
		}
		earlyHooks = relDir(paths, envDir, path)
	}

	registerThemes, err := s.registerThemes(cfg)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"ENV_REL_PATH":            relDir(paths, paths.WPParent, envDir),
		"WP_INSTALL_PATH":         relDir(paths, paths.WPParent, paths.WP),
		"AUTOLOAD_PATH":           relDir(paths, paths.WPParent, autoload),
		"EARLY_HOOKS_FILE":        earlyHooks,
		"ENV_FILE_NAME":           cfg.String(config.KeyEnvFile),
		"CACHE_ENV":               strconv.FormatBool(cfg.Bool(config.KeyCacheEnv)),
		"ENV_TYPE":                s.deps.Env.WordPressEnvType(),
		"TABLE_PREFIX":            s.deps.Env.TablePrefix(),
		"ENV_CONSTANTS":           indent(env.DefineStatements(s.deps.Env.Constants()), "    "),
		"WP_SITEURL_RELATIVE":     strings.TrimPrefix(relDir(paths, paths.WPParent, paths.WP), "/"),
		"WP_CONTENT_PATH":         relDir(paths, paths.WPParent, paths.WPContent),
		"WP_CONTENT_URL_RELATIVE": strings.TrimPrefix(relDir(paths, paths.WPParent, paths.WPContent), "/"),
		"REGISTER_THEME_DIR":      strconv.FormatBool(registerThemes),
	}

	for _, name := range SaltNames {
		salt, err := Salt()
		if err != nil {
			return nil, err
		}
		vars[name] = salt
	}
	return vars, nil
}

func (s *WPConfigStep) registerThemes(cfg *config.Config) (bool, error) {
	v, _ := cfg.Get(config.KeyRegisterThemeFolder).Value()
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		if val == config.OpAsk {
			return s.deps.IO.Ask([]string{"Do you want to register the default themes folder?"}, false), nil
		}
	}
	return false, nil
}

func (s *WPConfigStep) Success() string {
	if s.refresh {
		return "wp-config.php environment section refreshed."
	}
	return "wp-config.php saved."
}

func (s *WPConfigStep) Error() string { return "Error creating wp-config.php." }

// Salt returns a random 64 character salt.
func Salt() (string, error) {
	max := big.NewInt(int64(len(saltChars)))
	var sb strings.Builder
	sb.Grow(saltLength)
	for i := 0; i < saltLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate salt: %w", err)
		}
		sb.WriteByte(saltChars[n.Int64()])
	}
	return sb.String(), nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
