package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

const testEnv = `
DB_NAME=wordpress
DB_USER=root
DB_TABLE_PREFIX="wp-acme-"
FS_CHMOD_FILE=0666
WP_DEBUG=false
WP_POST_REVISIONS=5
WP_DEBUG_LOG=/var/log/wp.log
WP_CACHE=maybe
MY_APP_KEY=secret
WP_ENV=development
`

func writeEnv(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func loadedBridge(t *testing.T, lookup MapEnv) (*Bridge, string) {
	t.Helper()
	dir := t.TempDir()
	writeEnv(t, dir, ".env", testEnv)
	b := NewBridge(WithLookup(lookup))
	require.NoError(t, b.Load(".env", dir))
	return b, dir
}

func TestReadCoercesKnownNames(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{})

	v, ok := b.Read("FS_CHMOD_FILE")
	require.True(t, ok)
	assert.Equal(t, int64(0o666), v)

	v, ok = b.Read("WP_DEBUG")
	require.True(t, ok)
	assert.Equal(t, false, v)

	v, ok = b.Read("WP_POST_REVISIONS")
	require.True(t, ok)
	assert.Equal(t, int64(5), v)

	v, ok = b.Read("WP_DEBUG_LOG")
	require.True(t, ok)
	assert.Equal(t, "/var/log/wp.log", v)

	v, ok = b.Read("MY_APP_KEY")
	require.True(t, ok)
	assert.Equal(t, "secret", v)
}

func TestReadInvalidValueIsUnset(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{})

	_, ok := b.Read("WP_CACHE")
	assert.False(t, ok)
	assert.True(t, b.Get("WP_CACHE").IsError())

	_, ok = b.Read("NOT_SET_ANYWHERE")
	assert.False(t, ok)
	assert.True(t, b.Get("NOT_SET_ANYWHERE").IsEmpty())
}

func TestProcessEnvWinsOverFile(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{"DB_NAME": "from-process", "DB_HOST": "db"})

	assert.Equal(t, "from-process", b.ReadString("DB_NAME"))
	assert.Equal(t, "db", b.ReadString("DB_HOST"))
	assert.NotContains(t, b.LoadedNames(), "DB_NAME")
	assert.Contains(t, b.LoadedNames(), "DB_USER")
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	b := NewBridge(WithLookup(MapEnv{}))

	err := b.Load(".env", t.TempDir())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, errs.CodeEnvFile, errs.CodeOf(err))
	assert.ErrorIs(t, err, ErrEnvFileNotFound)
	assert.False(t, b.IsLoaded())
}

func TestLoadSkippedWithSentinel(t *testing.T) {
	b := NewBridge(WithLookup(MapEnv{LoadedSentinel: "1", "DB_NAME": "x"}))

	require.NoError(t, b.Load(".env", t.TempDir()))
	assert.True(t, b.IsLoaded())
	assert.Empty(t, b.LoadedFiles())
	assert.Equal(t, "x", b.ReadString("DB_NAME"))
}

func TestSecondLoadIsNoop(t *testing.T) {
	b, dir := loadedBridge(t, MapEnv{})
	writeEnv(t, dir, ".env.other", "DB_NAME=other\n")

	require.NoError(t, b.Load(".env.other", dir))
	assert.Equal(t, "wordpress", b.ReadString("DB_NAME"))
	assert.Len(t, b.LoadedFiles(), 1)
}

func TestLoadAppendedOverridesBaseFile(t *testing.T) {
	b, dir := loadedBridge(t, MapEnv{"DB_HOST": "real"})
	writeEnv(t, dir, ".env.development", "DB_NAME=dev_db\nDB_HOST=ignored\n")

	require.NoError(t, b.LoadAppended(".env", dir))
	assert.Equal(t, "dev_db", b.ReadString("DB_NAME"))
	assert.Equal(t, "real", b.ReadString("DB_HOST"))
	assert.Len(t, b.LoadedFiles(), 2)

	// missing appended file is not an error
	b2, _ := loadedBridge(t, MapEnv{})
	require.NoError(t, b2.LoadAppended(".env", t.TempDir()))
	assert.Len(t, b2.LoadedFiles(), 1)
}

func TestEnvType(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{})
	assert.Equal(t, "development", b.EnvType())
	assert.Equal(t, "development", b.WordPressEnvType())

	b = NewBridge(WithLookup(MapEnv{}))
	assert.Equal(t, DefaultEnvType, b.EnvType())

	b = NewBridge(WithLookup(MapEnv{"WP_ENVIRONMENT_TYPE": "staging", "WP_ENV": "local"}))
	assert.Equal(t, "staging", b.EnvType())
}

func TestWordPressEnvTypeHeuristics(t *testing.T) {
	tests := map[string]string{
		"local":       "local",
		"my-local-vm": "local",
		"dev":         "development",
		"develop":     "development",
		"preprod":     "staging",
		"testing":     "staging",
		"uat":         "staging",
		"live":        "production",
		"":            "production",
		"PRODUCTION":  "production",
	}
	for in, want := range tests {
		assert.Equal(t, want, WordPressEnvType(in), "input %q", in)
	}
}

func TestDefineConstants(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{})
	require.NoError(t, b.Define("DB_USER", "preset"))

	b.DefineConstants()
	b.DefineConstants()

	assert.True(t, b.IsDefined("DB_NAME"))
	assert.True(t, b.IsDefined(EnvironmentTypeConst))
	assert.False(t, b.IsDefined(TablePrefixVar))
	assert.False(t, b.IsDefined("WP_CACHE"), "invalid values are not defined")
	assert.False(t, b.IsDefined("MY_APP_KEY"), "only WordPress names become constants")
	assert.Equal(t, "preset", b.ReadString("DB_USER"))
	assert.Equal(t, "wpacme", b.TablePrefix())

	v, _ := b.Read(EnvironmentTypeConst)
	assert.Equal(t, "development", v)

	assert.ErrorIs(t, b.Define("DB_NAME", "again"), ErrAlreadyDefined)

	names := make([]string, 0)
	for _, c := range b.Constants() {
		names = append(names, c.Name)
	}
	assert.IsNonDecreasing(t, names)
}

func TestTablePrefixDefault(t *testing.T) {
	b := NewBridge(WithLookup(MapEnv{}))
	b.DefineConstants()
	assert.Equal(t, "wp_", b.TablePrefix())
}

func TestDumpAndRestoreWithoutEnvFile(t *testing.T) {
	b, dir := loadedBridge(t, MapEnv{})
	cache := filepath.Join(t.TempDir(), ".env.cached.json")
	require.NoError(t, b.DumpCached(cache))

	info, err := os.Stat(cache)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.Remove(filepath.Join(dir, ".env")))

	restored, err := BuildFromCacheDump(cache, WithLookup(MapEnv{}))
	require.NoError(t, err)
	assert.True(t, restored.FromCache())
	assert.True(t, restored.IsLoaded())

	for _, name := range []string{"FS_CHMOD_FILE", "WP_DEBUG", "WP_POST_REVISIONS", "DB_NAME", "MY_APP_KEY", EnvironmentTypeConst} {
		want, wantOK := b.Read(name)
		got, gotOK := restored.Read(name)
		assert.Equal(t, wantOK, gotOK, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, b.TablePrefix(), restored.TablePrefix())
	assert.Equal(t, b.EnvType(), restored.EnvType())

	// a restored bridge ignores later file loads
	require.NoError(t, restored.Load(".env", dir))
}

func TestDumpKeepsLargeIntegers(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, ".env", "WP_POST_REVISIONS=9007199254740993\nEMPTY_TRASH_DAYS=9007199254740995\nWP_MEMORY_LIMIT=256M\n")
	b := NewBridge(WithLookup(MapEnv{}))
	require.NoError(t, b.Load(".env", dir))

	cache := filepath.Join(t.TempDir(), ".env.cached.json")
	require.NoError(t, b.DumpCached(cache))
	restored, err := BuildFromCacheDump(cache, WithLookup(MapEnv{}))
	require.NoError(t, err)

	for _, name := range []string{"WP_POST_REVISIONS", "EMPTY_TRASH_DAYS", "WP_MEMORY_LIMIT"} {
		want, ok := b.Read(name)
		require.True(t, ok, name)
		got, ok := restored.Read(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	got, _ := restored.Read("WP_POST_REVISIONS")
	assert.Equal(t, int64(9007199254740993), got)
}

func TestLoadFromCacheErrors(t *testing.T) {
	_, err := BuildFromCacheDump(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, errs.CodeEnvCache, errs.CodeOf(err))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version": 99}`), 0o600))
	_, err = BuildFromCacheDump(bad)
	assert.True(t, errs.IsFatal(err))
}

func TestTeardown(t *testing.T) {
	b, _ := loadedBridge(t, MapEnv{})
	b.DefineConstants()
	b.Teardown()

	assert.False(t, b.IsLoaded())
	assert.Empty(t, b.Constants())
	_, ok := b.Read("DB_NAME")
	assert.False(t, ok)
}

func TestEnviron(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, ".env", "B=2\nA=1\n")
	b := NewBridge(WithLookup(MapEnv{}))
	require.NoError(t, b.Load(".env", dir))

	assert.Equal(t, []string{"A=1", "B=2"}, b.Environ())
}

func TestPHPLiteral(t *testing.T) {
	assert.Equal(t, "true", PHPLiteral(true))
	assert.Equal(t, "42", PHPLiteral(int64(42)))
	assert.Equal(t, "1.5", PHPLiteral(1.5))
	assert.Equal(t, "2.0", PHPLiteral(float64(2)))
	assert.Equal(t, `'it\'s'`, PHPLiteral("it's"))
	assert.Equal(t, "null", PHPLiteral(nil))
}

func TestDefineStatements(t *testing.T) {
	out := DefineStatements([]Constant{
		{Name: "FS_CHMOD_FILE", Value: int64(0o644)},
		{Name: "WP_DEBUG", Value: true},
	})
	assert.Equal(t,
		"defined('FS_CHMOD_FILE') or define('FS_CHMOD_FILE', 0644);\n"+
			"defined('WP_DEBUG') or define('WP_DEBUG', true);\n",
		out)
}

func TestWatchCallsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	writeEnv(t, dir, ".env", "A=1\n")

	old := WatchDebounce
	WatchDebounce = 10 * time.Millisecond
	defer func() { WatchDebounce = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, zerolog.Nop(), []string{file}, func(f string) error {
			select {
			case changed <- f:
			default:
			}
			return nil
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeEnv(t, dir, ".env", "A=2\n")

	select {
	case f := <-changed:
		abs, _ := filepath.Abs(file)
		assert.Equal(t, abs, f)
	case <-ctx.Done():
		t.Fatal("no change notification")
	}
	cancel()
	assert.NoError(t, <-done)
}
