package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/wpstarter/wpstarter/pkg/config"
)

var wpVersionLine = regexp.MustCompile(`\$wp_version\s*=\s*['"]([^'"]+)['"]`)

// CheckPathsStep verifies that Composer installed the autoloader and
// WordPress core, and creates the content directory when missing. When
// wp-version is set, the installed core must have that version.
type CheckPathsStep struct {
	err string
}

func (s *CheckPathsStep) Name() string   { return NameCheckPaths }
func (s *CheckPathsStep) Blocking() bool { return true }

func (s *CheckPathsStep) Allowed(*config.Config, *config.Paths) bool { return true }

func (s *CheckPathsStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	autoload := filepath.FromSlash(cfg.String(config.KeyAutoload))
	if !filepath.IsAbs(autoload) {
		autoload = paths.RootPath(autoload)
	}
	if !exists(autoload) {
		s.err = fmt.Sprintf("Autoload file %s not found, run composer install first.", paths.Relative(paths.Root, autoload))
		return Error, fmt.Errorf("autoload file not found: %s", autoload)
	}

	settings := paths.WPPath("wp-settings.php")
	if !exists(settings) {
		s.err = fmt.Sprintf("WordPress not found in %s.", paths.Relative(paths.Root, paths.WP))
		return Error, fmt.Errorf("wordpress not found: %s", settings)
	}

	if want := cfg.String(config.KeyWpVersion); want != "" {
		if got, ok := InstalledWpVersion(paths); ok && got != want {
			s.err = fmt.Sprintf("WordPress %s is installed, wp-version requires %s.", got, want)
			return Error, fmt.Errorf("wordpress version mismatch: installed %s, required %s", got, want)
		}
	}

	if !isDir(paths.WPContent) {
		if err := os.MkdirAll(paths.WPContent, 0o755); err != nil {
			s.err = "Could not create the content directory."
			return Error, fmt.Errorf("failed to create content directory: %w", err)
		}
	}
	return Success, nil
}

func (s *CheckPathsStep) Success() string { return "WordPress and autoload paths are valid." }

func (s *CheckPathsStep) Error() string {
	if s.err != "" {
		return s.err
	}
	return "Required paths are missing."
}

// InstalledWpVersion reads the core version from wp-includes/version.php,
// normalized like the wp-version setting.
func InstalledWpVersion(paths *config.Paths) (string, bool) {
	data, err := os.ReadFile(paths.WPPath("wp-includes", "version.php"))
	if err != nil {
		return "", false
	}
	m := wpVersionLine.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	v, ok := config.NewValidator(paths).ValidateWpVersion(string(m[1])).Value()
	if !ok {
		return "", false
	}
	return v.(string), true
}
