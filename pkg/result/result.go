// Package result provides Result, a tri-state value used for error tolerant
// reads: a Result holds a value, nothing, or an error. A Result may also be a
// promise whose producer runs at most once, on first access.
package result

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrEmpty is returned by Unwrap on a Result holding no value.
var ErrEmpty = errors.New("result is empty")

// errUnknown replaces a nil error passed to Error.
var errUnknown = errors.New("unknown error")

// Result is a tri-state holder over {value, empty, error}.
// The zero Result is empty.
type Result[T any] struct {
	state *state[T]
}

type state[T any] struct {
	once     sync.Once
	producer func() (T, error)

	value T
	has   bool
	err   error
}

// Ok returns a Result holding value. A nil value gives an empty Result.
func Ok[T any](value T) Result[T] {
	s := &state[T]{value: value, has: !isNil(value)}
	s.once.Do(func() {})
	return Result[T]{state: s}
}

// None returns an empty Result.
func None[T any]() Result[T] {
	s := &state[T]{}
	s.once.Do(func() {})
	return Result[T]{state: s}
}

// Error returns a Result holding err. A nil err is replaced by a generic error.
func Error[T any](err error) Result[T] {
	if err == nil {
		err = errUnknown
	}
	s := &state[T]{err: err}
	s.once.Do(func() {})
	return Result[T]{state: s}
}

// Errorf is Error with fmt.Errorf formatting.
func Errorf[T any](format string, args ...any) Result[T] {
	return Error[T](fmt.Errorf(format, args...))
}

// Promise returns a Result whose state is computed by producer on first access.
// A producer returning (zero, nil) for a nil-able T yields an empty Result;
// an error or a panic becomes the Result's error.
func Promise[T any](producer func() (T, error)) Result[T] {
	return Result[T]{state: &state[T]{producer: producer}}
}

// Map transforms the value of a non-empty Result, keeping empty and error
// states untouched.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if err := r.Err(); err != nil {
		return Error[U](err)
	}
	v, ok := r.Value()
	if !ok {
		return None[U]()
	}
	return Ok(fn(v))
}

func (r Result[T]) resolve() *state[T] {
	s := r.state
	if s == nil {
		return &state[T]{}
	}
	s.once.Do(func() {
		defer func() {
			if p := recover(); p != nil {
				s.has = false
				s.err = fmt.Errorf("promise panicked: %v", p)
			}
		}()
		v, err := s.producer()
		s.producer = nil
		if err != nil {
			s.err = err
			return
		}
		if isNil(v) {
			return
		}
		s.value = v
		s.has = true
	})
	return s
}

// NotEmpty reports whether the Result holds a value and no error.
func (r Result[T]) NotEmpty() bool {
	s := r.resolve()
	return s.err == nil && s.has
}

// IsEmpty reports whether the Result holds neither a value nor an error.
func (r Result[T]) IsEmpty() bool {
	s := r.resolve()
	return s.err == nil && !s.has
}

// IsError reports whether the Result holds an error.
func (r Result[T]) IsError() bool {
	return r.resolve().err != nil
}

// Err returns the stored error, if any.
func (r Result[T]) Err() error {
	return r.resolve().err
}

// Value returns the stored value and whether the Result is non-empty.
func (r Result[T]) Value() (T, bool) {
	s := r.resolve()
	if s.err != nil || !s.has {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Unwrap returns the value, the stored error, or ErrEmpty.
func (r Result[T]) Unwrap() (T, error) {
	s := r.resolve()
	var zero T
	if s.err != nil {
		return zero, s.err
	}
	if !s.has {
		return zero, ErrEmpty
	}
	return s.value, nil
}

// UnwrapOrFallback returns the value when the Result is non-empty, fallback
// otherwise.
func (r Result[T]) UnwrapOrFallback(fallback T) T {
	if v, ok := r.Value(); ok {
		return v
	}
	return fallback
}

// MustUnwrap is Unwrap that panics on error or emptiness.
func (r Result[T]) MustUnwrap() T {
	v, err := r.Unwrap()
	if err != nil {
		panic(err)
	}
	return v
}

// Is reports whether the Result holds a value deeply equal to v.
func (r Result[T]) Is(v T) bool {
	got, ok := r.Value()
	return ok && reflect.DeepEqual(got, v)
}

// String implements fmt.Stringer.
func (r Result[T]) String() string {
	s := r.resolve()
	switch {
	case s.err != nil:
		return fmt.Sprintf("Error(%v)", s.err)
	case s.has:
		return fmt.Sprintf("Ok(%v)", s.value)
	default:
		return "None"
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
