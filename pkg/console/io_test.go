package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIO(input string, interactive bool) (*IO, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := New(&out, &errOut, strings.NewReader(input), WithInteractive(interactive), WithNoColor(true))
	return c, &out, &errOut
}

func TestWriteStreams(t *testing.T) {
	c, out, errOut := newTestIO("", false)

	c.Write("hello", "multi\nline")
	c.WriteSuccess("done")
	c.WriteError("broken")
	c.WriteFailure("step failed")

	assert.Equal(t, "hello\nmulti\nline\n[OK] done\n", out.String())
	assert.Equal(t, "broken\n[ERROR] step failed\n", errOut.String())
}

func TestWriteIfVerbose(t *testing.T) {
	c, out, _ := newTestIO("", false)
	c.WriteIfVerbose("hidden")
	assert.Empty(t, out.String())

	WithVerbose(true)(c)
	c.WriteIfVerbose("shown")
	assert.Equal(t, "shown\n", out.String())
}

func TestBlockPadsLines(t *testing.T) {
	c, out, _ := newTestIO("", false)
	c.WriteSuccessBlock("short", "a longer line")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Len(t, line, len("a longer line")+4)
	}
	assert.Equal(t, "  short"+strings.Repeat(" ", 10), lines[1])
}

func TestAskNonInteractiveUsesDefault(t *testing.T) {
	c, out, _ := newTestIO("n\n", false)

	assert.True(t, c.Ask([]string{"Continue?"}, true))
	assert.Empty(t, out.String())
}

func TestAskInteractive(t *testing.T) {
	c, _, _ := newTestIO("N\n", true)
	assert.False(t, c.Ask([]string{"Continue?"}, true))

	c, _, _ = newTestIO("\n", true)
	assert.True(t, c.Ask([]string{"Continue?"}, true))
}

func TestAskFallsBackAfterMaxAttempts(t *testing.T) {
	input := strings.Repeat("what\n", MaxAttempts+3) + "y\n"
	c, _, errOut := newTestIO(input, true)

	assert.False(t, c.Ask([]string{"Overwrite?"}, false))
	assert.Equal(t, MaxAttempts, strings.Count(errOut.String(), "Invalid answer"))
}

func TestAskRecoversAfterInvalidAnswer(t *testing.T) {
	c, _, errOut := newTestIO("maybe\ny\n", true)

	assert.True(t, c.Ask([]string{"Overwrite?"}, false))
	assert.Contains(t, errOut.String(), "Invalid answer")
}

func TestQuestion(t *testing.T) {
	_, err := NewQuestion([]string{"Pick"}, map[string]string{"a": "A"}, "b")
	assert.Error(t, err)

	_, err = NewQuestion(nil, map[string]string{"a": "A"}, "a")
	assert.Error(t, err)

	q, err := NewQuestion([]string{"Pick"}, map[string]string{"O": "Overwrite", "s": "Skip"}, "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"o", "s"}, q.Keys())
	answer, ok := q.Match(" O ")
	assert.True(t, ok)
	assert.Equal(t, "o", answer)

	_, ok = q.Match("x")
	assert.False(t, ok)

	rendered := q.Render(NewFormatter(true))
	assert.Equal(t, []string{"Pick", "[o] Overwrite  [s] Skip (default)"}, rendered)
}
