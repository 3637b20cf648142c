package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg := New(map[string]any{}, nil)

	assert.Equal(t, ".env", cfg.String(KeyEnvFile))
	assert.True(t, cfg.Bool(KeyCacheEnv))
	assert.Equal(t, OpAsk, cfg.String(KeyDropinsOperation))
	assert.True(t, cfg.Get(KeyWpVersion).IsEmpty())
	assert.True(t, cfg.Get("no-such-key").IsEmpty())
}

func TestNewValidatesAndFallsBack(t *testing.T) {
	cfg := New(map[string]any{
		KeyCacheEnv:            "not-a-bool",
		KeyEnvFile:             ".env.local",
		KeyRegisterThemeFolder: "ask",
		KeyWpVersion:           "6.4",
		KeyContentDevOperation: "Copy",
		"my-custom-key":        []any{"a"},
	}, NewValidator(nil))

	assert.True(t, cfg.Bool(KeyCacheEnv), "invalid value falls back to default")
	assert.Equal(t, ".env.local", cfg.String(KeyEnvFile))
	assert.Equal(t, OpAsk, cfg.String(KeyRegisterThemeFolder))
	assert.Equal(t, "6.4.0", cfg.String(KeyWpVersion))
	assert.Equal(t, OpCopy, cfg.String(KeyContentDevOperation))
	assert.Equal(t, []any{"a"}, cfg.Get("my-custom-key").UnwrapOrFallback(nil))
}

func TestNewInvalidWithoutDefaultIsEmpty(t *testing.T) {
	cfg := New(map[string]any{KeyWpVersion: "abc"}, nil)
	assert.True(t, cfg.Get(KeyWpVersion).IsEmpty())
}

func TestAppendIsAppendOnly(t *testing.T) {
	cfg := New(map[string]any{}, nil)

	_, err := cfg.Append(KeySelectedSteps, []any{"wp-config"})
	require.NoError(t, err)
	assert.Equal(t, []any{"wp-config"}, cfg.Get(KeySelectedSteps).UnwrapOrFallback(nil))

	_, err = cfg.Append(KeySelectedSteps, []any{"index"})
	assert.ErrorIs(t, err, ErrKeyExists)
	assert.Equal(t, []any{"wp-config"}, cfg.Get(KeySelectedSteps).UnwrapOrFallback(nil))

	_, err = cfg.Append(KeyEnvFile, ".env.other")
	assert.ErrorIs(t, err, ErrKeyExists, "keys with a default already hold a value")
}

func TestAppendEmptyKeyCanBeFilled(t *testing.T) {
	cfg := New(map[string]any{KeyWpVersion: "nope"}, nil)

	_, err := cfg.Append(KeyWpVersion, "6.5.2")
	require.NoError(t, err)
	assert.Equal(t, "6.5.2", cfg.String(KeyWpVersion))
}

func TestAppendRejectsInvalid(t *testing.T) {
	cfg := New(map[string]any{}, nil)

	_, err := cfg.Append(KeyScripts, "not-a-map")
	assert.Error(t, err)
	assert.False(t, cfg.Has(KeyScripts))
}

func TestTypedAccessors(t *testing.T) {
	cfg := New(map[string]any{
		KeySkipSteps: []any{"dropins", "index"},
		KeyDropins:   map[string]any{"object-cache.php": "https://example.com/object-cache.php"},
		KeyScripts:   map[string]any{"pre-wp-config": "echo hi", "post-index": []any{"a.star", "b"}},
	}, nil)

	assert.Equal(t, []string{"dropins", "index"}, cfg.Strings(KeySkipSteps))
	assert.Equal(t, map[string]string{"object-cache.php": "https://example.com/object-cache.php"}, cfg.StringMap(KeyDropins))
	assert.Equal(t, map[string][]string{"pre-wp-config": {"echo hi"}, "post-index": {"a.star", "b"}}, cfg.Scripts())
	assert.Contains(t, cfg.Keys(), KeyDropins)
	assert.Contains(t, cfg.Map(), KeySkipSteps)
}

func TestManifestAndPaths(t *testing.T) {
	root := t.TempDir()
	manifest := `{
		"name": "acme/site",
		"config": {"vendor-dir": "lib"},
		"extra": {
			"wordpress-install-dir": "public/wp",
			"wordpress-content-dir": "public/content",
			"wpstarter": {"env-file": ".env.base", "cache-env": false}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestFile), []byte(manifest), 0o644))

	m, err := LoadManifest(root)
	require.NoError(t, err)

	paths, err := NewPaths(root, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.Root, "lib"), paths.Vendor)
	assert.Equal(t, filepath.Join(paths.Root, "lib", "bin"), paths.Bin)
	assert.Equal(t, filepath.Join(paths.Root, "public", "wp"), paths.WP)
	assert.Equal(t, filepath.Join(paths.Root, "public"), paths.WPParent)
	assert.Equal(t, "wp", paths.Relative(paths.WPParent, paths.WP))

	raw, err := m.RawConfig(root)
	require.NoError(t, err)
	assert.Equal(t, ".env.base", raw[KeyEnvFile])
	assert.Equal(t, false, raw[KeyCacheEnv])
}

func TestRawConfigReadsCustomFile(t *testing.T) {
	root := t.TempDir()
	manifest := `{"extra": {"wpstarter": "config/wpstarter.yaml"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestFile), []byte(manifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	yaml := "env-file: .env.yaml\nskip-steps:\n  - dropins\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "wpstarter.yaml"), []byte(yaml), 0o644))

	m, err := LoadManifest(root)
	require.NoError(t, err)
	raw, err := m.RawConfig(root)
	require.NoError(t, err)

	cfg := New(raw, nil)
	assert.Equal(t, ".env.yaml", cfg.String(KeyEnvFile))
	assert.Equal(t, []string{"dropins"}, cfg.Strings(KeySkipSteps))
}

func TestRawConfigKeepsDottedKeys(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestFile), []byte(`{"extra": {}}`), 0o644))
	custom := `{"dropins": {"object-cache.php": "https://example.com/oc.php", "db.php": "https://example.com/db.php"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "wpstarter.json"), []byte(custom), 0o644))

	m, err := LoadManifest(root)
	require.NoError(t, err)
	raw, err := m.RawConfig(root)
	require.NoError(t, err)

	dropins, ok := raw[KeyDropins].(map[string]any)
	require.True(t, ok, "dropins decoded as %T", raw[KeyDropins])
	assert.Contains(t, dropins, "object-cache.php")

	cfg := New(raw, NewValidator(nil))
	assert.Equal(t, "https://example.com/oc.php", cfg.StringMap(KeyDropins)["object-cache.php"])
	assert.Len(t, cfg.StringMap(KeyDropins), 2)
}

func TestRawConfigMissingCustomFile(t *testing.T) {
	root := t.TempDir()
	m := &Manifest{Extra: map[string]any{"wpstarter": "missing.json"}}
	_, err := m.RawConfig(root)
	assert.Error(t, err)
}
