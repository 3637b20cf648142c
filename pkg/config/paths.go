package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default directory names used when composer.json does not override them.
const (
	DefaultVendorDir     = "vendor"
	DefaultBinDir        = "vendor/bin"
	DefaultWPInstallDir  = "wordpress"
	DefaultWPContentDir  = "wp-content"
	DefaultTemplatesPath = "templates"
)

// Paths holds the absolute locations WP Starter works with.
type Paths struct {
	// Root is the project root, the directory holding composer.json.
	Root string `validate:"required"`

	// Vendor is Composer's vendor directory.
	Vendor string `validate:"required"`

	// Bin is Composer's bin directory.
	Bin string `validate:"required"`

	// WP is the WordPress core install directory.
	WP string `validate:"required"`

	// WPParent is the directory holding wp-config.php and index.php.
	WPParent string `validate:"required"`

	// WPContent is the wp-content directory.
	WPContent string `validate:"required"`

	// Templates are extra template directories, searched before the built-in ones.
	Templates []string
}

var pathsValidate = validator.New()

// NewPaths computes paths from the project root and its manifest.
func NewPaths(root string, manifest *Manifest) (*Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	vendor, bin := DefaultVendorDir, DefaultBinDir
	wp, content := DefaultWPInstallDir, DefaultWPContentDir
	if manifest != nil {
		if manifest.Config.VendorDir != "" {
			vendor = manifest.Config.VendorDir
			bin = filepath.Join(vendor, "bin")
		}
		if manifest.Config.BinDir != "" {
			bin = manifest.Config.BinDir
		}
		if s, ok := manifest.Extra["wordpress-install-dir"].(string); ok && s != "" {
			wp = s
		}
		if s, ok := manifest.Extra["wordpress-content-dir"].(string); ok && s != "" {
			content = s
		}
	}

	wpPath := resolve(abs, wp)
	p := &Paths{
		Root:      abs,
		Vendor:    resolve(abs, vendor),
		Bin:       resolve(abs, bin),
		WP:        wpPath,
		WPParent:  filepath.Dir(wpPath),
		WPContent: resolve(abs, content),
	}
	if err := pathsValidate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid paths: %w", err)
	}
	return p, nil
}

// UseTemplatesDir prepends dir to the template search path.
func (p *Paths) UseTemplatesDir(dir string) {
	if dir == "" {
		return
	}
	p.Templates = append([]string{resolve(p.Root, dir)}, p.Templates...)
}

// RootPath joins parts onto the project root.
func (p *Paths) RootPath(parts ...string) string {
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

// VendorPath joins parts onto the vendor directory.
func (p *Paths) VendorPath(parts ...string) string {
	return filepath.Join(append([]string{p.Vendor}, parts...)...)
}

// WPPath joins parts onto the WordPress install directory.
func (p *Paths) WPPath(parts ...string) string {
	return filepath.Join(append([]string{p.WP}, parts...)...)
}

// WPParentPath joins parts onto the wp-config.php directory.
func (p *Paths) WPParentPath(parts ...string) string {
	return filepath.Join(append([]string{p.WPParent}, parts...)...)
}

// WPContentPath joins parts onto the wp-content directory.
func (p *Paths) WPContentPath(parts ...string) string {
	return filepath.Join(append([]string{p.WPContent}, parts...)...)
}

// Relative returns target relative to from, always with forward slashes.
// Falls back to target when no relative path exists.
func (p *Paths) Relative(from, target string) string {
	rel, err := filepath.Rel(from, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

// Map exposes the paths as a string map, used by script runners.
func (p *Paths) Map() map[string]any {
	return map[string]any{
		"root":       p.Root,
		"vendor":     p.Vendor,
		"bin":        p.Bin,
		"wp":         p.WP,
		"wp-parent":  p.WPParent,
		"wp-content": p.WPContent,
	}
}

func resolve(root, path string) string {
	path = strings.TrimSpace(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, filepath.FromSlash(path))
}
