package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wpstarter/wpstarter/pkg/result"
)

// Recognized configuration keys.
const (
	KeyAutoload            = "autoload"
	KeyCacheEnv            = "cache-env"
	KeyCommandSteps        = "command-steps"
	KeyContentDevOperation = "content-dev-op"
	KeyContentDevDir       = "content-dev-dir"
	KeyDropins             = "dropins"
	KeyDropinsOperation    = "dropins-op"
	KeyEarlyHooksFile      = "early-hook-file"
	KeyEnvDir              = "env-dir"
	KeyEnvExample          = "env-example"
	KeyEnvFile             = "env-file"
	KeyInstallWpCli        = "install-wp-cli"
	KeyJournal             = "journal"
	KeyMoveContent         = "move-content"
	KeyMuPlugins           = "mu-plugins"
	KeyPHPExecutable       = "php-executable"
	KeyPreventOverwrite    = "prevent-overwrite"
	KeyRegisterThemeFolder = "register-theme-folder"
	KeyScripts             = "scripts"
	KeySkipSteps           = "skip-steps"
	KeyTemplatesDir        = "templates-dir"
	KeyUnknownDropins      = "unknown-dropins"
	KeyWpCliCommands       = "wp-cli-commands"
	KeyWpCliExecutor       = "wp-cli-executor"
	KeyWpCliFiles          = "wp-cli-files"
	KeyWpVersion           = "wp-version"

	// Keys appended at runtime.
	KeySelectedSteps = "selected-steps"
	KeyRunID         = "run-id"
)

// ErrKeyExists is returned by Append when the key already holds a value.
var ErrKeyExists = errors.New("config key already set")

// Defaults holds the value used for keys missing from the raw config or
// failing validation. Keys absent here default to nothing.
var Defaults = map[string]any{
	KeyAutoload:            "vendor/autoload.php",
	KeyCacheEnv:            true,
	KeyContentDevOperation: OpAuto,
	KeyContentDevDir:       "content-dev",
	KeyDropinsOperation:    OpAsk,
	KeyEnvExample:          true,
	KeyEnvFile:             ".env",
	KeyInstallWpCli:        true,
	KeyMoveContent:         false,
	KeyPreventOverwrite:    false,
	KeyRegisterThemeFolder: false,
	KeyUnknownDropins:      false,
}

// Config is an append-only map of validated values. Every stored value has
// passed its validator or fallen back to its default.
type Config struct {
	values    map[string]result.Result[any]
	validator *Validator
}

// New merges raw over Defaults and validates every key with a registered
// validation function. Unknown keys pass through unvalidated.
func New(raw map[string]any, v *Validator) *Config {
	if v == nil {
		v = NewValidator(nil)
	}
	c := &Config{
		values:    make(map[string]result.Result[any], len(raw)+len(Defaults)),
		validator: v,
	}

	for key, def := range Defaults {
		if def == nil {
			continue
		}
		c.values[key] = result.Ok(def)
	}

	for key, value := range raw {
		def := Defaults[key]
		validated := v.Validate(key, value)
		c.values[key] = result.Promise(func() (any, error) {
			if val, ok := validated.Value(); ok {
				return val, nil
			}
			return def, nil
		})
	}

	return c
}

// Get returns the value for key; a missing key gives an empty Result.
func (c *Config) Get(key string) result.Result[any] {
	if r, ok := c.values[key]; ok {
		return r
	}
	return result.None[any]()
}

// Has reports whether key holds a non-empty value.
func (c *Config) Has(key string) bool {
	return c.Get(key).NotEmpty()
}

// Append stores a new key. It fails with ErrKeyExists when key already holds
// a non-empty value, and with the validation error when value is invalid.
func (c *Config) Append(key string, value any) (result.Result[any], error) {
	if c.Get(key).NotEmpty() {
		return result.None[any](), fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	validated := c.validator.Validate(key, value)
	if err := validated.Err(); err != nil {
		return validated, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	c.values[key] = validated
	return validated, nil
}

// Keys returns the sorted keys holding a non-empty value.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k, r := range c.values {
		if r.NotEmpty() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// String returns the string value of key, or "".
func (c *Config) String(key string) string {
	v, _ := c.Get(key).Value()
	s, _ := v.(string)
	return s
}

// Bool returns the bool value of key, or false.
func (c *Config) Bool(key string) bool {
	v, _ := c.Get(key).Value()
	b, _ := v.(bool)
	return b
}

// Strings returns the string list value of key, or nil.
func (c *Config) Strings(key string) []string {
	v, _ := c.Get(key).Value()
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return []string{val}
	}
	return nil
}

// StringMap returns the string map value of key, or nil.
func (c *Config) StringMap(key string) map[string]string {
	v, _ := c.Get(key).Value()
	m, _ := v.(map[string]string)
	return m
}

// Scripts returns the validated scripts map.
func (c *Config) Scripts() map[string][]string {
	v, _ := c.Get(KeyScripts).Value()
	m, _ := v.(map[string][]string)
	return m
}

// WpCliFiles returns the validated wp-cli-files entries.
func (c *Config) WpCliFiles() []WpCliFile {
	v, _ := c.Get(KeyWpCliFiles).Value()
	files, _ := v.([]WpCliFile)
	return files
}

// Map exposes every non-empty value, used by script runners.
func (c *Config) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for _, k := range c.Keys() {
		v, _ := c.Get(k).Value()
		out[k] = v
	}
	return out
}

// StringMapKeys returns the sorted keys of a StringMap value.
func (c *Config) StringMapKeys(key string) []string {
	return sortedKeys(c.StringMap(key))
}
