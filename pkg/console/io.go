// Package console is the user-facing output layer: plain and colored lines,
// padded blocks, and interactive yes/no and multiple-choice questions.
// Diagnostics belong to the telemetry logger; this package is what the person
// running wpstarter reads.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// SuccessPrefix marks successful operations.
const SuccessPrefix = "[OK]"

// ErrorPrefix marks failed operations.
const ErrorPrefix = "[ERROR]"

// IO writes to an output and an error stream and reads answers from input.
type IO struct {
	mu          sync.Mutex
	out         io.Writer
	errOut      io.Writer
	in          *bufio.Reader
	interactive bool
	verbose     bool
	formatter   *Formatter
}

// Option configures an IO.
type Option func(*IO)

// WithInteractive toggles interactive questions.
func WithInteractive(interactive bool) Option {
	return func(c *IO) { c.interactive = interactive }
}

// WithVerbose toggles verbose-only output.
func WithVerbose(verbose bool) Option {
	return func(c *IO) { c.verbose = verbose }
}

// WithNoColor disables styling.
func WithNoColor(noColor bool) Option {
	return func(c *IO) { c.formatter = NewFormatter(noColor) }
}

// New creates an IO. Colors are enabled when out is a terminal.
func New(out, errOut io.Writer, in io.Reader, opts ...Option) *IO {
	c := &IO{
		out:         out,
		errOut:      errOut,
		in:          bufio.NewReader(in),
		interactive: true,
		formatter:   NewFormatter(!isTerminal(out)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Std creates an IO bound to the process standard streams.
func Std(opts ...Option) *IO {
	base := []Option{WithInteractive(isTerminal(os.Stdin))}
	return New(os.Stdout, os.Stderr, os.Stdin, append(base, opts...)...)
}

// Discard creates a non-interactive IO that drops everything.
func Discard() *IO {
	return New(io.Discard, io.Discard, strings.NewReader(""), WithInteractive(false), WithNoColor(true))
}

// Interactive reports whether questions are asked.
func (c *IO) Interactive() bool { return c.interactive }

// Verbose reports whether verbose output is enabled.
func (c *IO) Verbose() bool { return c.verbose }

// Formatter returns the formatter in use.
func (c *IO) Formatter() *Formatter { return c.formatter }

// Write prints lines on the output stream.
func (c *IO) Write(lines ...string) {
	c.writeLines(c.out, StylePlain, "", lines)
}

// WriteIfVerbose prints lines only in verbose mode.
func (c *IO) WriteIfVerbose(lines ...string) {
	if c.verbose {
		c.Write(lines...)
	}
}

// WriteError prints lines on the error stream, in red.
func (c *IO) WriteError(lines ...string) {
	c.writeLines(c.errOut, StyleError, "", lines)
}

// WriteErrorIfVerbose prints error lines only in verbose mode.
func (c *IO) WriteErrorIfVerbose(lines ...string) {
	if c.verbose {
		c.WriteError(lines...)
	}
}

// WriteSuccess prints lines prefixed with SuccessPrefix, in green.
func (c *IO) WriteSuccess(lines ...string) {
	c.writeLines(c.out, StyleSuccess, SuccessPrefix+" ", lines)
}

// WriteFailure prints lines prefixed with ErrorPrefix on the error stream.
func (c *IO) WriteFailure(lines ...string) {
	c.writeLines(c.errOut, StyleError, ErrorPrefix+" ", lines)
}

// WriteComment prints lines in yellow.
func (c *IO) WriteComment(lines ...string) {
	c.writeLines(c.out, StyleComment, "", lines)
}

// WriteBlock prints lines as a padded block.
func (c *IO) WriteBlock(style Style, lines ...string) {
	target := c.out
	if style == StyleError {
		target = c.errOut
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.formatter.Block(lines, style) {
		fmt.Fprintln(target, line)
	}
}

// WriteSuccessBlock prints a green block.
func (c *IO) WriteSuccessBlock(lines ...string) { c.WriteBlock(StyleSuccess, lines...) }

// WriteErrorBlock prints a red block on the error stream.
func (c *IO) WriteErrorBlock(lines ...string) { c.WriteBlock(StyleError, lines...) }

// WriteCommentBlock prints a yellow block.
func (c *IO) WriteCommentBlock(lines ...string) { c.WriteBlock(StyleComment, lines...) }

// Ask asks a yes/no question. Non-interactive IOs get defaultYes.
func (c *IO) Ask(lines []string, defaultYes bool) bool {
	def := "n"
	if defaultYes {
		def = "y"
	}
	q, err := NewQuestion(lines, map[string]string{"y": "Yes", "n": "No"}, def)
	if err != nil {
		return defaultYes
	}
	return c.AskQuestion(q) == "y"
}

// AskQuestion asks q and returns the chosen answer key. Invalid answers are
// retried up to MaxAttempts times, then the default is returned.
func (c *IO) AskQuestion(q *Question) string {
	if !c.interactive {
		return q.Default()
	}

	rendered := q.Render(c.formatter)
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		c.mu.Lock()
		for _, line := range rendered {
			fmt.Fprintln(c.out, line)
		}
		fmt.Fprint(c.out, "> ")
		c.mu.Unlock()

		raw, err := c.in.ReadString('\n')
		answer, ok := q.Match(raw)
		if ok {
			return answer
		}
		if err != nil {
			// input exhausted, no point in asking again
			break
		}
		c.WriteError(fmt.Sprintf("Invalid answer, please use one of: %s", strings.Join(q.Keys(), ", ")))
	}

	c.WriteComment(fmt.Sprintf("Falling back to default answer %q", q.Default()))
	return q.Default()
}

// Writer returns a writer for streamed output.
func (c *IO) Writer() io.Writer { return c.out }

// ErrorWriter returns a writer for streamed error output.
func (c *IO) ErrorWriter() io.Writer { return c.errOut }

func (c *IO) writeLines(w io.Writer, style Style, prefix string, lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, block := range lines {
		for _, line := range strings.Split(block, "\n") {
			fmt.Fprintln(w, c.formatter.Line(prefix+line, style))
		}
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
