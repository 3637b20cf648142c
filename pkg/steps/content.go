package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wpstarter/wpstarter/pkg/config"
)

// ContentDevDirs are the sub-directories of the content dev folder linked
// item by item into wp-content.
var ContentDevDirs = []string{"plugins", "themes", "mu-plugins", "languages"}

// MoveContentStep moves the wp-content shipped with WordPress core into the
// project content directory.
type MoveContentStep struct {
	deps  *Deps
	moved int
}

func (s *MoveContentStep) Name() string { return NameMoveContent }

func (s *MoveContentStep) Allowed(cfg *config.Config, paths *config.Paths) bool {
	return cfg.Bool(config.KeyMoveContent) && filepath.Clean(paths.WPPath("wp-content")) != filepath.Clean(paths.WPContent)
}

func (s *MoveContentStep) Run(_ context.Context, _ *config.Config, paths *config.Paths) (Status, error) {
	s.moved = 0
	src := paths.WPPath("wp-content")
	if !isDir(src) {
		return None, nil
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return Error, fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(paths.WPContent, 0o755); err != nil {
		return Error, fmt.Errorf("failed to create content directory: %w", err)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := paths.WPContentPath(entry.Name())
		if exists(to) {
			continue
		}
		if err := move(from, to); err != nil {
			return Error, err
		}
		s.moved++
	}
	if s.moved == 0 {
		return None, nil
	}
	return Success, nil
}

func (s *MoveContentStep) Success() string {
	return fmt.Sprintf("%d item(s) moved from WordPress wp-content.", s.moved)
}

func (s *MoveContentStep) Error() string { return "Error moving WordPress wp-content." }

// move renames from to to, copying when they sit on different devices.
func move(from, to string) error {
	err := os.Rename(from, to)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return fmt.Errorf("failed to move %s: %w", from, err)
	}
	if isDir(from) {
		err = copyTree(from, to)
	} else {
		err = copyFile(from, to)
	}
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", from, err)
	}
	return os.RemoveAll(from)
}

// ContentDevStep links or copies the plugins, themes, MU plugins, languages
// and dropins developed in the project into wp-content.
type ContentDevStep struct {
	deps   *Deps
	linked int
	op     string
}

func (s *ContentDevStep) Name() string { return NameContentDev }

func (s *ContentDevStep) Allowed(cfg *config.Config, paths *config.Paths) bool {
	if cfg.String(config.KeyContentDevOperation) == config.OpNone {
		return false
	}
	return isDir(s.sourceDir(cfg, paths))
}

func (s *ContentDevStep) sourceDir(cfg *config.Config, paths *config.Paths) string {
	dir := filepath.FromSlash(cfg.String(config.KeyContentDevDir))
	if filepath.IsAbs(dir) {
		return dir
	}
	return paths.RootPath(dir)
}

func (s *ContentDevStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	s.linked = 0
	s.op = cfg.String(config.KeyContentDevOperation)
	src := s.sourceDir(cfg, paths)

	var errs []error
	for _, dir := range ContentDevDirs {
		entries, err := os.ReadDir(filepath.Join(src, dir))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, entry := range entries {
			errs = append(errs, s.place(filepath.Join(src, dir, entry.Name()), paths.WPContentPath(dir, entry.Name())))
		}
	}

	// root files are dropins
	entries, err := os.ReadDir(src)
	if err != nil {
		return Error, fmt.Errorf("failed to read %s: %w", src, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		errs = append(errs, s.place(filepath.Join(src, entry.Name()), paths.WPContentPath(entry.Name())))
	}

	if err := errors.Join(errs...); err != nil {
		return Error, err
	}
	if s.linked == 0 {
		return None, nil
	}
	return Success, nil
}

// place symlinks or copies src to target. Existing targets are left alone.
func (s *ContentDevStep) place(src, target string) error {
	if exists(target) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	if s.op != config.OpCopy {
		rel, err := filepath.Rel(filepath.Dir(target), src)
		if err != nil {
			rel = src
		}
		err = os.Symlink(rel, target)
		if err == nil {
			s.linked++
			return nil
		}
		if s.op == config.OpSymlink {
			return fmt.Errorf("failed to symlink %s: %w", src, err)
		}
		s.deps.Logger.Debug().Err(err).Str("source", src).Msg("Symlink failed, copying")
	}

	var err error
	if isDir(src) {
		err = copyTree(src, target)
	} else {
		err = copyFile(src, target)
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	s.linked++
	return nil
}

func (s *ContentDevStep) Success() string {
	if s.op == config.OpCopy {
		return fmt.Sprintf("%d content dev item(s) copied into wp-content.", s.linked)
	}
	return fmt.Sprintf("%d content dev item(s) linked into wp-content.", s.linked)
}

func (s *ContentDevStep) Error() string { return "Error placing content dev items into wp-content." }
