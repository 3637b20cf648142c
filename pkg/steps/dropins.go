package steps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wpstarter/wpstarter/pkg/config"
)

// KnownDropins are the dropin files WordPress loads from wp-content.
var KnownDropins = map[string]struct{}{
	"advanced-cache.php":      {},
	"db.php":                  {},
	"db-error.php":            {},
	"install.php":             {},
	"maintenance.php":         {},
	"object-cache.php":        {},
	"php-error.php":           {},
	"fatal-error-handler.php": {},
	"sunrise.php":             {},
	"blog-deleted.php":        {},
	"blog-inactive.php":       {},
	"blog-suspended.php":      {},
}

// locale dropins, e.g. it_IT.php
var localeDropin = regexp.MustCompile(`^[a-z]{2,3}(_[A-Z]{2})?(_[a-z]+)?\.php$`)

// IsKnownDropin reports whether name is a dropin WordPress recognizes.
func IsKnownDropin(name string) bool {
	if _, ok := KnownDropins[name]; ok {
		return true
	}
	return localeDropin.MatchString(name)
}

// DropinsStep places the configured dropins in wp-content.
type DropinsStep struct {
	deps   *Deps
	failed []string
	done   int
}

func (s *DropinsStep) Name() string { return NameDropins }

func (s *DropinsStep) Allowed(cfg *config.Config, _ *config.Paths) bool {
	return len(cfg.StringMap(config.KeyDropins)) > 0
}

func (s *DropinsStep) Run(ctx context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	s.failed, s.done = nil, 0
	dropins := cfg.StringMap(config.KeyDropins)

	var errs []error
	for _, name := range cfg.StringMapKeys(config.KeyDropins) {
		if !s.accept(cfg, name) {
			continue
		}
		target := paths.WPContentPath(name)
		if exists(target) && !s.overwrite(cfg, paths, target) {
			continue
		}
		if err := s.install(ctx, paths, dropins[name], target); err != nil {
			s.deps.Logger.Error().Err(err).Str("dropin", name).Msg("Dropin not installed")
			s.failed = append(s.failed, name)
			errs = append(errs, err)
			continue
		}
		s.deps.IO.WriteIfVerbose(fmt.Sprintf("Dropin %s installed.", name))
		s.done++
	}

	if len(errs) > 0 {
		return Error, errors.Join(errs...)
	}
	if s.done == 0 {
		return None, nil
	}
	return Success, nil
}

func (s *DropinsStep) accept(cfg *config.Config, name string) bool {
	if IsKnownDropin(name) {
		return true
	}
	v, _ := cfg.Get(config.KeyUnknownDropins).Value()
	switch val := v.(type) {
	case bool:
		if !val {
			s.deps.IO.WriteComment(fmt.Sprintf("%s is not a known dropin, skipped.", name))
		}
		return val
	case string:
		if val == config.OpAsk {
			return s.deps.IO.Ask([]string{fmt.Sprintf("%s is not a known dropin, install it anyway?", name)}, false)
		}
	}
	return false
}

func (s *DropinsStep) overwrite(cfg *config.Config, paths *config.Paths, target string) bool {
	switch cfg.String(config.KeyDropinsOperation) {
	case config.OpOverwrite:
		return true
	case config.OpNone:
		return false
	}
	rel := paths.Relative(paths.Root, target)
	return s.deps.IO.Ask([]string{fmt.Sprintf("%s already exists, do you want to overwrite it?", rel)}, false)
}

func (s *DropinsStep) install(ctx context.Context, paths *config.Paths, source, target string) error {
	if isURL(source) {
		return download(ctx, s.deps.HTTP, source, target)
	}
	src := filepath.FromSlash(source)
	if !filepath.IsAbs(src) {
		src = paths.RootPath(src)
	}
	if !exists(src) {
		return fmt.Errorf("dropin source %s not found", source)
	}
	return copyFile(src, target)
}

func (s *DropinsStep) Success() string {
	return fmt.Sprintf("%d dropin(s) installed.", s.done)
}

func (s *DropinsStep) Error() string {
	return "Error installing dropins: " + strings.Join(s.failed, ", ") + "."
}
