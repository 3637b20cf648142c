// Package env bridges dotenv files and the process environment to the
// WordPress constants a generated wp-config.php defines.
//
// A Bridge moves through an explicit lifecycle:
//
//	unloaded -> Load (dotenv parsed) -> LoadAppended -> DefineConstants
//	unloaded -> LoadFromCache (constants and tracked names restored)
//
// Reads resolve defined constants first, then values introduced by env files,
// then the process environment. Known WordPress names are coerced to their
// declared type; a failing coercion reads as "no value".
//
// Bridges are meant to be built once per command run. They are safe for
// concurrent reads.
package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/filters"
	"github.com/wpstarter/wpstarter/pkg/result"
)

// LoadedSentinel, when set in the process environment, tells the bridge the
// environment is already populated and no env file must be read.
const LoadedSentinel = "WPSTARTER_ENV_LOADED"

// Variables consulted, in order, to determine the environment type.
var envTypeVars = []string{EnvironmentTypeConst, "WP_ENV", "WORDPRESS_ENV"}

// DefaultEnvType is used when no environment type variable is set.
const DefaultEnvType = "production"

var (
	// ErrEnvFileNotFound is returned when the env file can't be read.
	ErrEnvFileNotFound = errors.New("env file not found or not readable")

	// ErrAlreadyDefined is returned by Define for a name already defined.
	ErrAlreadyDefined = errors.New("constant already defined")
)

// EnvGetter abstracts process environment access for testability.
type EnvGetter interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the real process environment.
type OSEnv struct{}

// LookupEnv implements EnvGetter.
func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is a map-backed EnvGetter.
type MapEnv map[string]string

// LookupEnv implements EnvGetter.
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Constant is a resolved WordPress constant.
type Constant struct {
	Name  string
	Value any
}

// Bridge is the environment context object.
type Bridge struct {
	mu     sync.RWMutex
	lookup EnvGetter
	logger zerolog.Logger

	fileLoaded       bool
	fromCache        bool
	constantsDefined bool
	loadedFiles      []string

	loadedVars  map[string]string
	constants   map[string]any
	reads       map[string]result.Result[any]
	tablePrefix string
	envType     string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLookup replaces the process environment source.
func WithLookup(lookup EnvGetter) Option {
	return func(b *Bridge) { b.lookup = lookup }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// NewBridge creates an unloaded bridge.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		lookup: OSEnv{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reset()
	return b
}

func (b *Bridge) reset() {
	b.fileLoaded = false
	b.fromCache = false
	b.constantsDefined = false
	b.loadedFiles = nil
	b.loadedVars = map[string]string{}
	b.constants = map[string]any{}
	b.reads = map[string]result.Result[any]{}
	b.tablePrefix = ""
	b.envType = ""
}

// Teardown returns the bridge to the unloaded state.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// Load parses the env file at dir/file. It is a no-op once a file or a cache
// dump was loaded, or when LoadedSentinel is set. A missing or unreadable file
// is a fatal error.
func (b *Bridge) Load(file, dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fileLoaded || b.fromCache {
		return nil
	}
	if v, ok := b.lookup.LookupEnv(LoadedSentinel); ok && v != "" {
		b.logger.Debug().Str("sentinel", LoadedSentinel).Msg("Environment already loaded, skipping env file")
		b.fileLoaded = true
		return nil
	}

	path := filepath.Join(dir, file)
	vars, err := readFile(path)
	if err != nil {
		return errs.NewFatal("cannot load environment", err).
			WithCode(errs.CodeEnvFile).
			WithSubject(path)
	}

	b.merge(vars, false)
	b.fileLoaded = true
	b.loadedFiles = append(b.loadedFiles, path)
	b.logger.Debug().Str("file", path).Int("vars", len(vars)).Msg("Env file loaded")
	return nil
}

// LoadAppended loads dir/file.<env type> when it exists. Its values override
// the ones of the base file, never the real process environment.
func (b *Bridge) LoadAppended(file, dir string) error {
	envType := b.EnvType()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fromCache || envType == "" {
		return nil
	}

	path := filepath.Join(dir, file+"."+envType)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	vars, err := readFile(path)
	if err != nil {
		return errs.NewFatal("cannot load environment", err).
			WithCode(errs.CodeEnvFile).
			WithSubject(path)
	}

	b.merge(vars, true)
	b.loadedFiles = append(b.loadedFiles, path)
	b.logger.Debug().Str("file", path).Str("env_type", envType).Msg("Appended env file loaded")
	return nil
}

// merge must be called with the write lock held.
func (b *Bridge) merge(vars map[string]string, override bool) {
	for name, value := range vars {
		if _, real := b.lookup.LookupEnv(name); real {
			continue
		}
		if _, exists := b.loadedVars[name]; exists && !override {
			continue
		}
		b.loadedVars[name] = value
	}
	b.reads = map[string]result.Result[any]{}
	b.envType = ""
}

func readFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvFileNotFound, err)
	}
	defer f.Close()
	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return vars, nil
}

// IsLoaded reports whether an env file (or the sentinel) or a cache dump has
// been loaded.
func (b *Bridge) IsLoaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fileLoaded || b.fromCache
}

// FromCache reports whether the bridge was restored from a cache dump.
func (b *Bridge) FromCache() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fromCache
}

// LoadedFiles returns the env files read so far.
func (b *Bridge) LoadedFiles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.loadedFiles...)
}

// LoadedNames returns the sorted names introduced by env files.
func (b *Bridge) LoadedNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.loadedVars))
	for name := range b.loadedVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environ returns the env file variables as KEY=value pairs, to be overlaid on
// subprocess environments.
func (b *Bridge) Environ() []string {
	names := b.LoadedNames()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name+"="+b.loadedVars[name])
	}
	return out
}

// Raw returns the uncoerced value of name from env files or the process
// environment.
func (b *Bridge) Raw(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.raw(name)
}

func (b *Bridge) raw(name string) (string, bool) {
	if v, ok := b.loadedVars[name]; ok {
		return v, true
	}
	return b.lookup.LookupEnv(name)
}

// Get resolves name to a Result: empty when unset, an error when the value
// fails the coercion declared for a known WordPress constant.
func (b *Bridge) Get(name string) result.Result[any] {
	b.mu.RLock()
	if v, ok := b.constants[name]; ok {
		b.mu.RUnlock()
		return result.Ok(v)
	}
	if r, ok := b.reads[name]; ok {
		b.mu.RUnlock()
		return r
	}
	raw, found := b.raw(name)
	b.mu.RUnlock()

	var r result.Result[any]
	switch kind, known := WordPressConstants[name]; {
	case !found:
		r = result.None[any]()
	case known:
		v, err := filters.Apply(kind, raw)
		if err != nil {
			b.logger.Debug().Err(err).Str("name", name).Msg("Env value coercion failed")
			r = result.Error[any](err)
		} else {
			r = result.Ok(v)
		}
	default:
		r = result.Ok[any](raw)
	}

	b.mu.Lock()
	b.reads[name] = r
	b.mu.Unlock()
	return r
}

// Read returns the value of name, or (nil, false) when it is unset or fails
// its coercion.
func (b *Bridge) Read(name string) (any, bool) {
	return b.Get(name).Value()
}

// ReadString returns the value of name formatted as a string.
func (b *Bridge) ReadString(name string) string {
	v, ok := b.Read(name)
	if !ok {
		return ""
	}
	s, _ := filters.String(v)
	return s
}

// EnvType returns the raw environment type: WP_ENVIRONMENT_TYPE, then WP_ENV,
// then WORDPRESS_ENV, falling back to DefaultEnvType.
func (b *Bridge) EnvType() string {
	b.mu.RLock()
	if b.envType != "" {
		defer b.mu.RUnlock()
		return b.envType
	}
	envType := DefaultEnvType
	for _, name := range envTypeVars {
		if v, ok := b.raw(name); ok && strings.TrimSpace(v) != "" {
			envType = strings.TrimSpace(v)
			break
		}
	}
	b.mu.RUnlock()

	b.mu.Lock()
	b.envType = envType
	b.mu.Unlock()
	return envType
}

// WordPressEnvType maps EnvType onto the four types WordPress supports.
func (b *Bridge) WordPressEnvType() string {
	return WordPressEnvType(b.EnvType())
}

// WordPressEnvType maps an arbitrary environment name onto local,
// development, staging or production.
func WordPressEnvType(envType string) string {
	e := strings.ToLower(strings.TrimSpace(envType))
	switch e {
	case "local", "development", "staging", "production":
		return e
	}
	switch {
	case strings.Contains(e, "local"):
		return "local"
	case strings.Contains(e, "dev"):
		return "development"
	case strings.Contains(e, "stag"), strings.Contains(e, "pre"),
		strings.Contains(e, "test"), strings.Contains(e, "qa"), strings.Contains(e, "uat"):
		return "staging"
	}
	return "production"
}

// Define records a constant. It fails for names already defined.
func (b *Bridge) Define(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.constants[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, name)
	}
	b.constants[name] = value
	return nil
}

// IsDefined reports whether name was defined.
func (b *Bridge) IsDefined(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.constants[name]
	return ok
}

// DefineConstants walks WordPressConstants once, defining every name that has
// a valid value and is not defined yet. WP_ENVIRONMENT_TYPE is always defined;
// DB_TABLE_PREFIX fills TablePrefix instead of becoming a constant.
func (b *Bridge) DefineConstants() {
	b.mu.RLock()
	done := b.constantsDefined
	b.mu.RUnlock()
	if done {
		return
	}

	wpEnvType := b.WordPressEnvType()
	if !b.IsDefined(EnvironmentTypeConst) {
		_ = b.Define(EnvironmentTypeConst, wpEnvType)
	}

	names := make([]string, 0, len(WordPressConstants))
	for name := range WordPressConstants {
		names = append(names, name)
	}
	sort.Strings(names)

	defined := 0
	for _, name := range names {
		if name == TablePrefixVar || b.IsDefined(name) {
			continue
		}
		v, ok := b.Read(name)
		if !ok {
			continue
		}
		if err := b.Define(name, v); err == nil {
			defined++
		}
	}

	prefix := filters.DefaultTablePrefix
	if v, ok := b.Read(TablePrefixVar); ok {
		prefix, _ = v.(string)
	}

	b.mu.Lock()
	b.tablePrefix = prefix
	b.constantsDefined = true
	b.mu.Unlock()

	b.logger.Debug().Int("constants", defined).Str("env_type", wpEnvType).Msg("WordPress constants defined")
}

// Constants returns the defined constants ordered by name.
func (b *Bridge) Constants() []Constant {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Constant, 0, len(b.constants))
	for name, v := range b.constants {
		out = append(out, Constant{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TablePrefix returns the sanitized table prefix. Valid after DefineConstants.
func (b *Bridge) TablePrefix() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.tablePrefix == "" {
		return filters.DefaultTablePrefix
	}
	return b.tablePrefix
}
