// Package filters coerces raw configuration and environment values into the
// types WordPress expects. Every function is pure and returns an error instead
// of guessing when the input cannot be represented in the target type.
package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a coercion.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindIntOrBool
	KindStringOrBool
	KindOctalMode
	KindTablePrefix
)

// DefaultTablePrefix is used when a table prefix is empty after sanitizing.
const DefaultTablePrefix = "wp_"

// ErrInvalid is wrapped by every coercion failure.
var ErrInvalid = errors.New("invalid value")

var nonWord = regexp.MustCompile(`\W`)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindIntOrBool:
		return "int|bool"
	case KindStringOrBool:
		return "string|bool"
	case KindOctalMode:
		return "octal-mode"
	case KindTablePrefix:
		return "table-prefix"
	default:
		return "string"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k := KindString; k <= KindTablePrefix; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return KindString, false
}

// Apply runs the coercion identified by kind.
func Apply(kind Kind, value any) (any, error) {
	switch kind {
	case KindBool:
		return Bool(value)
	case KindInt:
		return Int(value)
	case KindFloat:
		return Float(value)
	case KindIntOrBool:
		return IntOrBool(value)
	case KindStringOrBool:
		return StringOrBool(value)
	case KindOctalMode:
		return OctalMode(value)
	case KindTablePrefix:
		return TablePrefix(value)
	default:
		return String(value)
	}
}

// Bool accepts bools, 0/1 numbers and the usual boolean words.
func Bool(value any) (bool, error) {
	value = decodeNumber(value)
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return intToBool(int64(v))
	case int64:
		return intToBool(v)
	case float64:
		if v == math.Trunc(v) {
			return intToBool(int64(v))
		}
	case string:
		if b, ok := parseBoolWord(v, true); ok {
			return b, nil
		}
	case nil:
		return false, nil
	}
	return false, invalid(value, KindBool)
}

// Int accepts integers, integral floats, numeric strings and bools.
// Float strings are truncated toward zero.
func Int(value any) (int64, error) {
	value = decodeNumber(value)
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int64(f), nil
		}
	}
	return 0, invalid(value, KindInt)
}

// Float accepts numbers and numeric strings.
func Float(value any) (float64, error) {
	value = decodeNumber(value)
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, invalid(value, KindFloat)
}

// String keeps strings verbatim, formats numbers, and maps bools to "1"/"".
func String(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		if v {
			return "1", nil
		}
		return "", nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", invalid(value, KindString)
}

// OctalMode parses a file mode. Integers are taken as already decoded; strings
// are read as octal with an optional "0" or "0o" prefix.
func OctalMode(value any) (int64, error) {
	value = decodeNumber(value)
	var mode int64
	switch v := value.(type) {
	case int:
		mode = int64(v)
	case int64:
		mode = v
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid(value, KindOctalMode)
		}
		mode = int64(v)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		s = strings.TrimPrefix(s, "0o")
		if s == "" {
			return 0, invalid(value, KindOctalMode)
		}
		parsed, err := strconv.ParseInt(s, 8, 64)
		if err != nil {
			return 0, invalid(value, KindOctalMode)
		}
		mode = parsed
	default:
		return 0, invalid(value, KindOctalMode)
	}
	if mode < 0 || mode > 0o7777 {
		return 0, invalid(value, KindOctalMode)
	}
	return mode, nil
}

// IntOrBool tries a number first, then a boolean word.
func IntOrBool(value any) (any, error) {
	value = decodeNumber(value)
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int64, float64:
		return Int(v)
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if b, ok := parseBoolWord(s, false); ok {
			return b, nil
		}
	}
	return nil, invalid(value, KindIntOrBool)
}

// StringOrBool maps boolean-looking strings (including "1", "0" and "") to a
// bool and returns every other string verbatim.
func StringOrBool(value any) (any, error) {
	value = decodeNumber(value)
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int64, float64:
		if b, err := Bool(v); err == nil {
			return b, nil
		}
		return String(v)
	case string:
		if b, ok := parseBoolWord(v, true); ok {
			return b, nil
		}
		return v, nil
	case nil:
		return false, nil
	}
	return nil, invalid(value, KindStringOrBool)
}

// TablePrefix strips non-word characters; an empty result falls back to
// DefaultTablePrefix.
func TablePrefix(value any) (string, error) {
	s, err := String(value)
	if err != nil {
		return "", invalid(value, KindTablePrefix)
	}
	s = nonWord.ReplaceAllString(s, "")
	if s == "" {
		return DefaultTablePrefix, nil
	}
	return s, nil
}

func parseBoolWord(s string, withDigits bool) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes":
		return true, true
	case "false", "off", "no":
		return false, true
	case "1":
		return true, withDigits
	case "0", "":
		return false, withDigits
	}
	return false, false
}

func intToBool(i int64) (bool, error) {
	switch i {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, invalid(i, KindBool)
}

// decodeNumber turns a json.Number into an int64 when it is integral, a
// float64 otherwise. Other values are returned unchanged.
func decodeNumber(value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func invalid(value any, kind Kind) error {
	return fmt.Errorf("%w: %v (%T) is not a valid %s", ErrInvalid, value, value, kind)
}
