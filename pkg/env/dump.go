package env

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/filters"
	"github.com/wpstarter/wpstarter/pkg/result"
)

// DumpVersion is the format version written in cache dumps.
const DumpVersion = 1

// CacheFileName is the name of the cache dump, written next to wp-config.php.
const CacheFileName = ".env.cached.json"

type dump struct {
	Version     int                     `json:"version"`
	EnvType     string                  `json:"env_type"`
	LoadedVars  map[string]string       `json:"loaded_vars"`
	Constants   map[string]dumpConstant `json:"constants"`
	TablePrefix string                  `json:"table_prefix"`
}

type dumpConstant struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// DumpCached defines the constants, when not done yet, and writes a snapshot
// of the bridge to path. The file is replaced atomically.
func (b *Bridge) DumpCached(path string) error {
	b.DefineConstants()

	envType := b.EnvType()
	b.mu.RLock()
	d := dump{
		Version:     DumpVersion,
		EnvType:     envType,
		LoadedVars:  make(map[string]string, len(b.loadedVars)),
		Constants:   make(map[string]dumpConstant, len(b.constants)),
		TablePrefix: b.tablePrefix,
	}
	for name, v := range b.loadedVars {
		d.LoadedVars[name] = v
	}
	for name, v := range b.constants {
		kind, ok := WordPressConstants[name]
		if !ok {
			kind = filters.KindString
		}
		d.Constants[name] = dumpConstant{Kind: kind.String(), Value: v}
	}
	b.mu.RUnlock()

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errs.NewFatal("cannot encode environment cache", err).WithCode(errs.CodeEnvCache)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-cache-*")
	if err != nil {
		return errs.NewFatal("cannot write environment cache", err).
			WithCode(errs.CodeEnvCache).
			WithSubject(path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.NewFatal("cannot write environment cache", err).WithCode(errs.CodeEnvCache).WithSubject(path)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errs.NewFatal("cannot write environment cache", err).WithCode(errs.CodeEnvCache).WithSubject(path)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewFatal("cannot write environment cache", err).WithCode(errs.CodeEnvCache).WithSubject(path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.NewFatal("cannot write environment cache", err).WithCode(errs.CodeEnvCache).WithSubject(path)
	}

	b.logger.Debug().Str("path", path).Int("constants", len(d.Constants)).Msg("Environment cache dumped")
	return nil
}

// LoadFromCache restores the bridge from a dump written by DumpCached. It is
// a no-op when the bridge already loaded a file or a dump.
func (b *Bridge) LoadFromCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.NewFatal("cannot read environment cache", err).
			WithCode(errs.CodeEnvCache).
			WithSubject(path)
	}

	var d dump
	dec := json.NewDecoder(bytes.NewReader(data))
	// numbers stay exact: int constants may not fit a float64
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return errs.NewFatal("invalid environment cache", err).WithCode(errs.CodeEnvCache).WithSubject(path)
	}
	if d.Version != DumpVersion {
		return errs.NewFatal(fmt.Sprintf("unsupported environment cache version %d", d.Version), nil).
			WithCode(errs.CodeEnvCache).
			WithSubject(path)
	}

	constants := make(map[string]any, len(d.Constants))
	for name, c := range d.Constants {
		kind, _ := filters.ParseKind(c.Kind)
		v, err := filters.Apply(kind, c.Value)
		if err != nil {
			return errs.NewFatal("invalid environment cache", fmt.Errorf("constant %s: %w", name, err)).
				WithCode(errs.CodeEnvCache).
				WithSubject(path)
		}
		constants[name] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fileLoaded || b.fromCache {
		return nil
	}
	b.reset()
	for name, v := range d.LoadedVars {
		b.loadedVars[name] = v
	}
	b.constants = constants
	b.reads = map[string]result.Result[any]{}
	b.tablePrefix = d.TablePrefix
	b.envType = d.EnvType
	b.fromCache = true
	b.constantsDefined = true
	b.loadedFiles = []string{path}

	b.logger.Debug().Str("path", path).Int("constants", len(constants)).Msg("Environment restored from cache")
	return nil
}

// BuildFromCacheDump returns a bridge restored from the dump at path.
func BuildFromCacheDump(path string, opts ...Option) (*Bridge, error) {
	b := NewBridge(opts...)
	if err := b.LoadFromCache(path); err != nil {
		return nil, err
	}
	return b, nil
}

// PHPLiteral renders v as a PHP literal suitable for a define() statement.
func PHPLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case string:
		return phpQuote(t)
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = phpQuote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = phpQuote(k) + " => " + phpQuote(t[k])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	s, _ := filters.String(v)
	return phpQuote(s)
}

// PHPOctal renders a file mode the way wp-config.php expects it.
func PHPOctal(mode int64) string {
	return "0" + strconv.FormatInt(mode, 8)
}

// DefineStatements renders the constants as PHP define() lines. File modes
// are written in octal.
func DefineStatements(constants []Constant) string {
	var sb strings.Builder
	for _, c := range constants {
		value := PHPLiteral(c.Value)
		if WordPressConstants[c.Name] == filters.KindOctalMode {
			if mode, ok := c.Value.(int64); ok {
				value = PHPOctal(mode)
			}
		}
		fmt.Fprintf(&sb, "defined('%s') or define('%s', %s);\n", c.Name, c.Name, value)
	}
	return sb.String()
}

func phpQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
