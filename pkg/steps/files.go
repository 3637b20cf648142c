package steps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/template"
)

// MuLoaderFile is the name of the generated MU plugins loader.
const MuLoaderFile = "wpstarter-mu-loader.php"

// IndexStep writes the front controller next to wp-config.php.
type IndexStep struct {
	deps *Deps
}

func (s *IndexStep) Name() string { return NameIndex }

func (s *IndexStep) Allowed(*config.Config, *config.Paths) bool { return true }

func (s *IndexStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	target := paths.WPParentPath("index.php")
	if write, _ := shouldWrite(s.deps.IO, cfg, paths, target); !write {
		return None, nil
	}
	bootstrap := paths.Relative(paths.WPParent, paths.WPPath("wp-blog-header.php"))
	content, err := s.deps.Locator.Render(template.Index, map[string]string{"BOOTSTRAP_PATH": bootstrap})
	if err != nil {
		return Error, err
	}
	if err := writeFile(target, []byte(content)); err != nil {
		return Error, err
	}
	return Success, nil
}

func (s *IndexStep) Success() string { return "index.php saved." }
func (s *IndexStep) Error() string   { return "Error creating index.php." }

// MuLoaderStep writes a loader for MU plugins living in sub-directories,
// which WordPress does not load on its own.
type MuLoaderStep struct {
	deps *Deps
}

func (s *MuLoaderStep) Name() string { return NameMuLoader }

func (s *MuLoaderStep) Allowed(cfg *config.Config, _ *config.Paths) bool {
	return len(cfg.Strings(config.KeyMuPlugins)) > 0
}

func (s *MuLoaderStep) Run(_ context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	target := paths.WPContentPath("mu-plugins", MuLoaderFile)
	if write, _ := shouldWrite(s.deps.IO, cfg, paths, target); !write {
		return None, nil
	}

	plugins := cfg.Strings(config.KeyMuPlugins)
	quoted := make([]string, len(plugins))
	for i, p := range plugins {
		p = strings.TrimPrefix(filepath.ToSlash(p), "/")
		quoted[i] = "'" + strings.ReplaceAll(p, "'", `\'`) + "'"
	}

	content, err := s.deps.Locator.Render(template.MuLoader, map[string]string{
		"MU_PLUGINS_LIST": strings.Join(quoted, ", "),
	})
	if err != nil {
		return Error, err
	}
	if err := writeFile(target, []byte(content)); err != nil {
		return Error, err
	}
	return Success, nil
}

func (s *MuLoaderStep) Success() string { return "MU plugins loader saved." }
func (s *MuLoaderStep) Error() string   { return "Error creating MU plugins loader." }

// EnvExampleStep provides a .env.example file when the project has no env
// file yet. The source is the built-in template, a local file or a URL.
type EnvExampleStep struct {
	deps *Deps
}

func (s *EnvExampleStep) Name() string { return NameEnvExample }

func (s *EnvExampleStep) Allowed(cfg *config.Config, paths *config.Paths) bool {
	v, _ := cfg.Get(config.KeyEnvExample).Value()
	if b, ok := v.(bool); ok && !b {
		return false
	}
	return !exists(filepath.Join(EnvDir(cfg, paths), cfg.String(config.KeyEnvFile)))
}

func (s *EnvExampleStep) Run(ctx context.Context, cfg *config.Config, paths *config.Paths) (Status, error) {
	target := filepath.Join(EnvDir(cfg, paths), ".env.example")
	if write, _ := shouldWrite(s.deps.IO, cfg, paths, target); !write {
		return None, nil
	}

	v, _ := cfg.Get(config.KeyEnvExample).Value()
	source, _ := v.(string)
	if source == config.OpAsk {
		if !s.deps.IO.Ask([]string{"Do you want to save a .env.example file?"}, true) {
			return None, nil
		}
		source = ""
	}

	switch {
	case source == "":
		content, err := s.deps.Locator.Render(template.EnvExample, map[string]string{
			"ENV_FILE_NAME": cfg.String(config.KeyEnvFile),
		})
		if err != nil {
			return Error, err
		}
		if err := writeFile(target, []byte(content)); err != nil {
			return Error, err
		}
	case isURL(source):
		if err := download(ctx, s.deps.HTTP, source, target); err != nil {
			return Error, err
		}
	default:
		src := filepath.FromSlash(source)
		if !filepath.IsAbs(src) {
			src = paths.RootPath(src)
		}
		if err := copyFile(src, target); err != nil {
			return Error, fmt.Errorf("failed to copy %s: %w", src, err)
		}
	}
	return Success, nil
}

func (s *EnvExampleStep) Success() string { return ".env.example saved." }
func (s *EnvExampleStep) Error() string   { return "Error creating .env.example." }

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// download fetches src into target.
func download(ctx context.Context, client *retryablehttp.Client, src, target string) error {
	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = nil
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", src, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return writeFile(target, data)
}
