package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWpVersion(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		in    any
		want  string
		empty bool
	}{
		{in: "1.2.32.45", want: "1.2.32"},
		{in: "123", empty: true},
		{in: 4, want: "4.0.0"},
		{in: float64(5), want: "5.0.0"},
		{in: "6.4", want: "6.4.0"},
		{in: "6.5-RC1", want: "6.5.0"},
		{in: "6.5.2-beta3", want: "6.5.2"},
		{in: " 10.1.1 ", want: "10.1.1"},
		{in: "v6.4", empty: true},
		{in: "", empty: true},
		{in: nil, empty: true},
	}

	for _, tt := range tests {
		r := v.ValidateWpVersion(tt.in)
		if tt.empty {
			assert.False(t, r.NotEmpty(), "input %v", tt.in)
			continue
		}
		assert.True(t, r.Is(tt.want), "input %v gave %s", tt.in, r)
	}

	assert.True(t, v.ValidateWpVersion(true).IsError())
}

func TestValidateContentDevOperation(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(KeyContentDevOperation, "symlink").Is(OpSymlink))
	assert.True(t, v.Validate(KeyContentDevOperation, false).Is(OpNone))
	assert.True(t, v.Validate(KeyContentDevOperation, true).Is(OpAuto))
	assert.True(t, v.Validate(KeyContentDevOperation, "move").IsError())
}

func TestValidateDropinsOperation(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(KeyDropinsOperation, "prompt").Is(OpAsk))
	assert.True(t, v.Validate(KeyDropinsOperation, "overwrite").Is(OpOverwrite))
	assert.True(t, v.Validate(KeyDropinsOperation, false).Is(OpNone))
	assert.True(t, v.Validate(KeyDropinsOperation, "sometimes").IsError())
}

func TestValidateOverwrite(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(KeyPreventOverwrite, true).Is(true))
	assert.True(t, v.Validate(KeyPreventOverwrite, "hard").Is(OpHard))
	assert.True(t, v.Validate(KeyPreventOverwrite, []any{"wp-config.php", "*.txt"}).Is([]string{"wp-config.php", "*.txt"}))
	assert.True(t, v.Validate(KeyPreventOverwrite, []any{1}).IsError())
}

func TestValidateDropins(t *testing.T) {
	v := NewValidator(nil)

	r := v.Validate(KeyDropins, []any{"https://example.com/drop/object-cache.php", "dropins/db.php"})
	assert.True(t, r.Is(map[string]string{
		"object-cache.php": "https://example.com/drop/object-cache.php",
		"db.php":           "dropins/db.php",
	}))

	r = v.Validate(KeyDropins, map[string]any{"advanced-cache.php": "./cache/advanced-cache.php/"})
	assert.True(t, r.Is(map[string]string{"advanced-cache.php": "./cache/advanced-cache.php"}))

	assert.True(t, v.Validate(KeyDropins, 12).IsError())
}

func TestValidateScripts(t *testing.T) {
	v := NewValidator(nil)

	r := v.Validate(KeyScripts, map[string]any{"pre-wp-config": "echo pre"})
	assert.True(t, r.Is(map[string][]string{"pre-wp-config": {"echo pre"}}))

	assert.True(t, v.Validate(KeyScripts, map[string]any{"during-wp-config": "x"}).IsError())
}

func TestValidateSteps(t *testing.T) {
	v := NewValidator(nil)

	r := v.Validate(KeyCommandSteps, map[string]any{"build-assets": "npm run build"})
	assert.True(t, r.Is(map[string]string{"build-assets": "npm run build"}))
	assert.True(t, v.Validate(KeyCommandSteps, map[string]any{"x": ""}).IsError())
	assert.True(t, v.Validate(KeyCommandSteps, map[string]any{"Bad Name": "ls"}).IsError())
}

func TestValidateWpCliCommands(t *testing.T) {
	v := NewValidator(nil)

	r := v.Validate(KeyWpCliCommands, []any{"core install", "wp plugin list", " "})
	assert.True(t, r.Is([]string{"wp core install", "wp plugin list"}))
	assert.True(t, v.Validate(KeyWpCliCommands, []any{3}).IsError())
}

func TestValidateWpCliCommandsFileIsLazy(t *testing.T) {
	root := t.TempDir()
	paths := &Paths{Root: root}
	v := NewValidator(paths)

	r := v.Validate(KeyWpCliCommands, "commands.json")

	// file written after validation: the promise reads it on first access
	require.NoError(t, os.WriteFile(filepath.Join(root, "commands.json"), []byte(`["option update blogname Test"]`), 0o644))
	assert.True(t, r.Is([]string{"wp option update blogname Test"}))

	missing := v.Validate(KeyWpCliCommands, "missing.json")
	assert.True(t, missing.IsError())
}

func TestValidateWpCliFiles(t *testing.T) {
	v := NewValidator(nil)

	r := v.Validate(KeyWpCliFiles, []any{
		"scripts/setup.php",
		map[string]any{"file": "scripts/seed.php", "args": []any{"--count=3"}, "skip-wordpress": "true"},
	})
	files, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []WpCliFile{
		{File: "scripts/setup.php"},
		{File: "scripts/seed.php", Args: []string{"--count=3"}, SkipWordPress: true},
	}, files)

	assert.True(t, v.Validate(KeyWpCliFiles, []any{map[string]any{"args": []any{"x"}}}).IsError())
}

func TestValidateWpCliExecutor(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(KeyWpCliExecutor, "PHAR").Is(OpPhar))
	assert.True(t, v.Validate(KeyWpCliExecutor, "docker compose exec wp wp").Is("docker compose exec wp wp"))
	assert.True(t, v.Validate(KeyWpCliExecutor, " ").IsEmpty())
}

func TestValidateEnvExample(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate(KeyEnvExample, "no").Is(false))
	assert.True(t, v.Validate(KeyEnvExample, "ask").Is(OpAsk))
	assert.True(t, v.Validate(KeyEnvExample, "config/.env.example").Is("config/.env.example"))
	assert.True(t, v.Validate(KeyEnvExample, "https://example.com/.env.example").Is("https://example.com/.env.example"))
}

func TestUnknownKeyPassesThrough(t *testing.T) {
	v := NewValidator(nil)

	assert.True(t, v.Validate("whatever", 12).Is(12))
	assert.True(t, v.Validate("whatever", nil).IsEmpty())
	assert.False(t, v.Has("whatever"))
}
