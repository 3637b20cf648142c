package scripts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpstarter/wpstarter/pkg/console"
	"github.com/wpstarter/wpstarter/pkg/process"
)

type mapEnv map[string]any

func (m mapEnv) Read(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func newTestRunner(t *testing.T, opts ...Option) (*Runner, *bytes.Buffer, *bytes.Buffer, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	io := console.New(&out, &errOut, strings.NewReader(""), console.WithInteractive(false), console.WithNoColor(true))
	root := t.TempDir()
	opts = append([]Option{WithRoot(root)}, opts...)
	return NewRunner(io, process.New(io), opts...), &out, &errOut, root
}

func writeScript(t *testing.T, root, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(src), 0o644))
}

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(5 * time.Second)

	tests := []struct {
		name    string
		src     string
		input   map[string]any
		check   func(*testing.T, *Result)
		wantErr bool
	}{
		{
			name: "arithmetic",
			src:  "result = 2 + 2\n",
			check: func(t *testing.T, r *Result) {
				assert.Equal(t, int64(4), r.Output["result"])
			},
		},
		{
			name:  "input values",
			src:   "doubled = count * 2\nnames = sorted(keys)\n",
			input: map[string]any{"count": 5, "keys": []string{"b", "a"}},
			check: func(t *testing.T, r *Result) {
				assert.Equal(t, int64(10), r.Output["doubled"])
				assert.Equal(t, []any{"a", "b"}, r.Output["names"])
			},
		},
		{
			name: "functions and private names",
			src: `
def make_list(n):
    out = []
    for i in range(n):
        out.append(i * 2)
    return out

_hidden = 1
output = make_list(3)
`,
			check: func(t *testing.T, r *Result) {
				assert.Equal(t, []any{int64(0), int64(2), int64(4)}, r.Output["output"])
				assert.NotContains(t, r.Output, "_hidden")
				assert.NotContains(t, r.Output, "make_list")
			},
		},
		{
			name:    "syntax error",
			src:     "x = (\n",
			wantErr: true,
		},
		{
			name:    "runtime error",
			src:     "x = 1 // 0\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := e.Evaluate(context.Background(), "test.star", tt.src, tt.input, nil, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestEvaluateTimeout(t *testing.T) {
	e := NewEvaluator(50 * time.Millisecond)
	src := `
def spin():
    n = 0
    for i in range(1000000000):
        n += i
    return n

x = spin()
`
	start := time.Now()
	_, err := e.Evaluate(context.Background(), "spin.star", src, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunShellEntry(t *testing.T) {
	r, out, _, _ := newTestRunner(t)

	assert.True(t, r.Run(context.Background(), "echo from-shell", Context{Step: "wp-config"}))
	assert.Equal(t, "from-shell\n", out.String())
	assert.False(t, r.Run(context.Background(), "exit 2", Context{}))
}

func TestRunStarlarkEntry(t *testing.T) {
	r, out, _, root := newTestRunner(t, WithEnv(mapEnv{"DB_NAME": "wp"}))
	writeScript(t, root, "pre.star", `
print("step=" + step)
print("db=" + env("DB_NAME"))
print("missing=" + env("NOPE", "fallback"))
print("env-file=" + config["env-file"])
ran = run("echo nested")
`)

	ok := r.Run(context.Background(), "pre.star", Context{
		Step:   "wp-config",
		Config: map[string]any{"env-file": ".env"},
		Paths:  map[string]any{"root": root},
	})
	assert.True(t, ok)
	assert.Equal(t, "step=wp-config\ndb=wp\nmissing=fallback\nenv-file=.env\nnested\n", out.String())
}

func TestRunStarlarkReportsFailure(t *testing.T) {
	r, _, errOut, root := newTestRunner(t)
	writeScript(t, root, "fail.star", "ok = False\n")
	writeScript(t, root, "broken.star", "x = undefined_name\n")

	assert.False(t, r.Run(context.Background(), "fail.star", Context{}))
	assert.False(t, r.Run(context.Background(), "broken.star", Context{}))
	assert.Contains(t, errOut.String(), "undefined")
	assert.False(t, r.Run(context.Background(), "missing.star", Context{}))
}

func TestIsStarlark(t *testing.T) {
	assert.True(t, IsStarlark("scripts/setup.star"))
	assert.False(t, IsStarlark("php setup.php"))
}
