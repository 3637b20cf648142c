package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/wpstarter/wpstarter/pkg/filters"
	"github.com/wpstarter/wpstarter/pkg/result"
)

// Operation values shared by several keys.
const (
	OpAsk       = "ask"
	OpAuto      = "auto"
	OpSymlink   = "symlink"
	OpCopy      = "copy"
	OpNone      = "none"
	OpOverwrite = "overwrite"
	OpHard      = "hard"
	OpPhar      = "phar"
)

// ValidateFunc validates and normalizes a single raw value.
type ValidateFunc func(value any) result.Result[any]

// WpCliFile is a PHP file run through `wp eval-file`.
type WpCliFile struct {
	File          string   `mapstructure:"file" validate:"required"`
	Args          []string `mapstructure:"args"`
	SkipWordPress bool     `mapstructure:"skip-wordpress"`
}

// Validator maps config keys to their validation function.
type Validator struct {
	paths *Paths
	funcs map[string]ValidateFunc
}

var (
	wpVersionPart = regexp.MustCompile(`^[0-9]+$`)
	dirName       = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)
	scriptName    = regexp.MustCompile(`^(pre|post)-[a-z0-9\-_]+$`)
	stepName      = regexp.MustCompile(`^[a-z0-9\-_]+$`)
	structCheck   = validator.New()
)

// NewValidator creates the registry with every known key.
func NewValidator(paths *Paths) *Validator {
	v := &Validator{paths: paths, funcs: map[string]ValidateFunc{}}

	v.Register(KeyAutoload, v.validatePath)
	v.Register(KeyCacheEnv, v.validateBool)
	v.Register(KeyCommandSteps, v.validateSteps)
	v.Register(KeyContentDevOperation, v.validateContentDevOperation)
	v.Register(KeyContentDevDir, v.validatePath)
	v.Register(KeyDropins, v.validateDropins)
	v.Register(KeyDropinsOperation, v.validateDropinsOperation)
	v.Register(KeyEarlyHooksFile, v.validatePath)
	v.Register(KeyEnvDir, v.validatePath)
	v.Register(KeyEnvExample, v.validateBoolOrAskOrPath)
	v.Register(KeyEnvFile, v.validateFileName)
	v.Register(KeyInstallWpCli, v.validateBool)
	v.Register(KeyJournal, v.validatePath)
	v.Register(KeyMoveContent, v.validateBool)
	v.Register(KeyMuPlugins, v.validateStringList)
	v.Register(KeyPHPExecutable, v.validatePath)
	v.Register(KeyPreventOverwrite, v.validateOverwrite)
	v.Register(KeyRegisterThemeFolder, v.validateBoolOrAsk)
	v.Register(KeyScripts, v.validateScripts)
	v.Register(KeySkipSteps, v.validateStepNames)
	v.Register(KeyTemplatesDir, v.validatePath)
	v.Register(KeyUnknownDropins, v.validateBoolOrAsk)
	v.Register(KeyWpCliCommands, v.validateWpCliCommands)
	v.Register(KeyWpCliExecutor, v.validateWpCliExecutor)
	v.Register(KeyWpCliFiles, v.validateWpCliFiles)
	v.Register(KeyWpVersion, v.validateWpVersion)

	return v
}

// Register adds or replaces the validation function for key.
func (v *Validator) Register(key string, fn ValidateFunc) {
	v.funcs[key] = fn
}

// Has reports whether key has a validation function.
func (v *Validator) Has(key string) bool {
	_, ok := v.funcs[key]
	return ok
}

// Validate runs the validation for key. Keys without a function pass through.
func (v *Validator) Validate(key string, value any) result.Result[any] {
	fn, ok := v.funcs[key]
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Ok(value)
	}
	return fn(value)
}

// ValidateWpVersion normalizes a WordPress version to MAJOR.MINOR.PATCH.
// The check-paths step normalizes the installed core version with it.
func (v *Validator) ValidateWpVersion(value any) result.Result[any] {
	return v.validateWpVersion(value)
}

func (v *Validator) validateWpVersion(value any) result.Result[any] {
	var raw string
	switch val := value.(type) {
	case int, int64:
		raw = fmt.Sprintf("%d", val)
	case float64:
		if val != math.Trunc(val) {
			raw = strconv.FormatFloat(val, 'f', -1, 64)
		} else {
			raw = strconv.FormatInt(int64(val), 10)
		}
	case string:
		raw = val
	case nil:
		return result.None[any]()
	default:
		return result.Errorf[any]("wp-version must be a string, got %T", value)
	}

	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "-"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return result.None[any]()
	}

	parts := strings.Split(raw, ".")
	if len(parts[0]) > 2 {
		return result.None[any]()
	}
	for _, part := range parts {
		if !wpVersionPart.MatchString(part) {
			return result.None[any]()
		}
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return result.Ok[any](strings.Join(parts[:3], "."))
}

func (v *Validator) validateBool(value any) result.Result[any] {
	b, err := filters.Bool(value)
	if err != nil {
		return result.Error[any](err)
	}
	return result.Ok[any](b)
}

func (v *Validator) validateBoolOrAsk(value any) result.Result[any] {
	if s, ok := value.(string); ok && isAsk(s) {
		return result.Ok[any](OpAsk)
	}
	return v.validateBool(value)
}

func (v *Validator) validateBoolOrAskOrPath(value any) result.Result[any] {
	if r := v.validateBoolOrAsk(value); r.NotEmpty() {
		return r
	}
	return v.validateUrlOrPath(value)
}

func (v *Validator) validateContentDevOperation(value any) result.Result[any] {
	if b, err := filters.Bool(value); err == nil {
		if b {
			return result.Ok[any](OpAuto)
		}
		return result.Ok[any](OpNone)
	}
	s, _ := value.(string)
	switch op := strings.ToLower(strings.TrimSpace(s)); op {
	case OpSymlink, OpCopy, OpNone, OpAuto:
		return result.Ok[any](op)
	}
	return result.Errorf[any]("%v is not a valid content-dev operation", value)
}

func (v *Validator) validateDropinsOperation(value any) result.Result[any] {
	if s, ok := value.(string); ok {
		if isAsk(s) {
			return result.Ok[any](OpAsk)
		}
		if strings.EqualFold(strings.TrimSpace(s), OpOverwrite) {
			return result.Ok[any](OpOverwrite)
		}
		if strings.EqualFold(strings.TrimSpace(s), OpNone) {
			return result.Ok[any](OpNone)
		}
	}
	if b, err := filters.Bool(value); err == nil {
		if b {
			return result.Ok[any](OpOverwrite)
		}
		return result.Ok[any](OpNone)
	}
	return result.Errorf[any]("%v is not a valid dropins operation", value)
}

// validateOverwrite accepts a bool, "hard", or a list of glob patterns.
func (v *Validator) validateOverwrite(value any) result.Result[any] {
	if s, ok := value.(string); ok && strings.EqualFold(strings.TrimSpace(s), OpHard) {
		return result.Ok[any](OpHard)
	}
	if s, ok := value.(string); ok && isAsk(s) {
		return result.Ok[any](OpAsk)
	}
	if b, err := filters.Bool(value); err == nil {
		return result.Ok[any](b)
	}
	return v.validateStringList(value)
}

func (v *Validator) validatePath(value any) result.Result[any] {
	s, ok := value.(string)
	if !ok {
		return result.Errorf[any]("path must be a string, got %T", value)
	}
	s = strings.TrimSpace(filepath.ToSlash(s))
	if s == "" {
		return result.None[any]()
	}
	if strings.ContainsAny(s, "\x00\n\r") {
		return result.Errorf[any]("%q is not a valid path", s)
	}
	if len(s) > 1 {
		s = strings.TrimRight(s, "/")
	}
	return result.Ok[any](s)
}

func (v *Validator) validateUrlOrPath(value any) result.Result[any] {
	s, ok := value.(string)
	if !ok {
		return result.Errorf[any]("url or path must be a string, got %T", value)
	}
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return result.Ok[any](s)
	}
	return v.validatePath(s)
}

func (v *Validator) validateFileName(value any) result.Result[any] {
	s, ok := value.(string)
	if !ok {
		return result.Errorf[any]("file name must be a string, got %T", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return result.None[any]()
	}
	if !dirName.MatchString(s) {
		return result.Errorf[any]("%q is not a valid file name", s)
	}
	return result.Ok[any](s)
}

func (v *Validator) validateStringList(value any) result.Result[any] {
	switch val := value.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return result.None[any]()
		}
		return result.Ok[any]([]string{s})
	case []string:
		return v.validateStringList(toAnySlice(val))
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return result.Errorf[any]("list items must be strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return result.None[any]()
		}
		return result.Ok[any](out)
	case nil:
		return result.None[any]()
	}
	return result.Errorf[any]("expected a list of strings, got %T", value)
}

func (v *Validator) validateStepNames(value any) result.Result[any] {
	r := v.validateStringList(value)
	names, ok := r.Value()
	if !ok {
		return r
	}
	for _, name := range names.([]string) {
		if !stepName.MatchString(name) {
			return result.Errorf[any]("%q is not a valid step name", name)
		}
	}
	return r
}

// validateDropins accepts a map of dropin file name to URL or path, or a list
// of URLs/paths where the basename is the dropin name.
func (v *Validator) validateDropins(value any) result.Result[any] {
	out := map[string]string{}
	switch val := value.(type) {
	case map[string]any:
		for name, src := range val {
			r := v.validateUrlOrPath(src)
			s, ok := r.Value()
			if !ok {
				return result.Errorf[any]("invalid dropin source for %s", name)
			}
			out[strings.TrimSpace(name)] = s.(string)
		}
	case []any, []string, string:
		r := v.validateStringList(value)
		items, ok := r.Value()
		if !ok {
			return r
		}
		for _, item := range items.([]string) {
			r := v.validateUrlOrPath(item)
			s, ok := r.Value()
			if !ok {
				return result.Errorf[any]("invalid dropin source %q", item)
			}
			out[basename(s.(string))] = s.(string)
		}
	case nil:
		return result.None[any]()
	default:
		return result.Errorf[any]("dropins must be an object or a list, got %T", value)
	}
	if len(out) == 0 {
		return result.None[any]()
	}
	return result.Ok[any](out)
}

// validateScripts accepts a map "pre-<step>"/"post-<step>" to one or more
// script entries.
func (v *Validator) validateScripts(value any) result.Result[any] {
	m, ok := value.(map[string]any)
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Errorf[any]("scripts must be an object, got %T", value)
	}
	out := map[string][]string{}
	for name, entries := range m {
		name = strings.ToLower(strings.TrimSpace(name))
		if !scriptName.MatchString(name) {
			return result.Errorf[any]("%q is not a valid script name, use pre-<step> or post-<step>", name)
		}
		r := v.validateStringList(entries)
		if r.IsError() {
			return r
		}
		if list, ok := r.Value(); ok {
			out[name] = list.([]string)
		}
	}
	if len(out) == 0 {
		return result.None[any]()
	}
	return result.Ok[any](out)
}

// validateSteps accepts a map of step name to shell command.
func (v *Validator) validateSteps(value any) result.Result[any] {
	m, ok := value.(map[string]any)
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Errorf[any]("steps must be an object, got %T", value)
	}
	out := map[string]string{}
	for name, cmd := range m {
		name = strings.ToLower(strings.TrimSpace(name))
		if !stepName.MatchString(name) {
			return result.Errorf[any]("%q is not a valid step name", name)
		}
		s, ok := cmd.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return result.Errorf[any]("step %q needs a command string", name)
		}
		out[name] = strings.TrimSpace(s)
	}
	if len(out) == 0 {
		return result.None[any]()
	}
	return result.Ok[any](out)
}

// validateWpCliCommands accepts a list of commands or the path of a JSON file
// holding the list. The file is read lazily, the first time the value is used.
func (v *Validator) validateWpCliCommands(value any) result.Result[any] {
	if s, ok := value.(string); ok && strings.HasSuffix(strings.ToLower(strings.TrimSpace(s)), ".json") {
		path := strings.TrimSpace(s)
		if v.paths != nil && !filepath.IsAbs(path) {
			path = v.paths.RootPath(filepath.FromSlash(path))
		}
		return result.Promise(func() (any, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read wp-cli commands file: %w", err)
			}
			var list []any
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("wp-cli commands file must hold a JSON list: %w", err)
			}
			return normalizeWpCliCommands(list)
		})
	}

	list, ok := value.([]any)
	if !ok {
		if strs, isStrs := value.([]string); isStrs {
			list, ok = toAnySlice(strs), true
		}
	}
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Errorf[any]("wp-cli-commands must be a list or a JSON file path, got %T", value)
	}
	cmds, err := normalizeWpCliCommands(list)
	if err != nil {
		return result.Error[any](err)
	}
	if cmds == nil {
		return result.None[any]()
	}
	return result.Ok[any](cmds)
}

func (v *Validator) validateWpCliFiles(value any) result.Result[any] {
	items, ok := value.([]any)
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Errorf[any]("wp-cli-files must be a list, got %T", value)
	}
	out := make([]WpCliFile, 0, len(items))
	for _, item := range items {
		var f WpCliFile
		switch it := item.(type) {
		case string:
			f.File = strings.TrimSpace(it)
		case map[string]any:
			if err := mapstructure.WeakDecode(it, &f); err != nil {
				return result.Errorf[any]("invalid wp-cli file entry: %v", err)
			}
		default:
			return result.Errorf[any]("invalid wp-cli file entry of type %T", item)
		}
		if err := structCheck.Struct(f); err != nil {
			return result.Errorf[any]("invalid wp-cli file entry: %v", err)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return result.None[any]()
	}
	return result.Ok[any](out)
}

// validateWpCliExecutor accepts "phar" or a non-empty command prefix.
func (v *Validator) validateWpCliExecutor(value any) result.Result[any] {
	s, ok := value.(string)
	if !ok {
		if value == nil {
			return result.None[any]()
		}
		return result.Errorf[any]("wp-cli-executor must be a string, got %T", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return result.None[any]()
	}
	if strings.EqualFold(s, OpPhar) {
		return result.Ok[any](OpPhar)
	}
	return result.Ok[any](s)
}

func normalizeWpCliCommands(list []any) ([]string, error) {
	var out []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("wp-cli commands must be strings, got %T", item)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s != "wp" && !strings.HasPrefix(s, "wp ") {
			s = "wp " + s
		}
		out = append(out, s)
	}
	return out, nil
}

func isAsk(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask", "prompt", "query", "interactive":
		return true
	}
	return false
}

func basename(src string) string {
	if u, err := url.Parse(src); err == nil && u.Host != "" {
		return filepath.Base(u.Path)
	}
	return filepath.Base(filepath.FromSlash(src))
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
