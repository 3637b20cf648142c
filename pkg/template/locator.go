package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Names of the built-in templates.
const (
	WPConfig   = "wp-config.php"
	Index      = "index.php"
	MuLoader   = "mu-loader.php"
	EnvExample = ".env.example"
)

//go:embed templates/*.tmpl
var builtin embed.FS

var builtinFiles = map[string]string{
	WPConfig:   "templates/wp-config.php.tmpl",
	Index:      "templates/index.php.tmpl",
	MuLoader:   "templates/mu-loader.php.tmpl",
	EnvExample: "templates/env.example.tmpl",
}

// ErrTemplateNotFound is returned for names neither a custom directory nor
// the built-in set provides.
var ErrTemplateNotFound = errors.New("template not found")

// Locator finds templates, searching custom directories before the built-in
// ones.
type Locator struct {
	dirs []string
}

// NewLocator creates a locator searching dirs in order.
func NewLocator(dirs ...string) *Locator {
	return &Locator{dirs: dirs}
}

// Locate returns the content of template name and where it came from.
func (l *Locator) Locate(name string) (content, source string, err error) {
	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
	}
	file, ok := builtinFiles[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	data, err := builtin.ReadFile(file)
	if err != nil {
		return "", "", fmt.Errorf("failed to read built-in template %s: %w", name, err)
	}
	return string(data), "builtin:" + name, nil
}

// Render locates name and builds it with vars.
func (l *Locator) Render(name string, vars map[string]string) (string, error) {
	content, _, err := l.Locate(name)
	if err != nil {
		return "", err
	}
	return Builder{}.Build(content, vars), nil
}
