// Package process runs shell commands on behalf of steps and tools, streaming
// their output to the console line by line as it arrives.
//
// SystemProcess never returns errors: a command that cannot be started, or
// exits non-zero, is reported as false and whatever went wrong is written to
// the error stream.
package process

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/console"
)

// Shell is the interpreter commands are passed to.
var Shell = "/bin/sh"

// SystemProcess executes shell commands.
type SystemProcess struct {
	io     *console.IO
	logger zerolog.Logger
	cwd    string
	env    []string
}

// Option configures a SystemProcess.
type Option func(*SystemProcess)

// WithCwd sets the working directory.
func WithCwd(dir string) Option {
	return func(p *SystemProcess) { p.cwd = dir }
}

// WithEnv adds KEY=value pairs on top of the current process environment.
func WithEnv(env ...string) Option {
	return func(p *SystemProcess) { p.env = append(p.env, env...) }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *SystemProcess) { p.logger = logger }
}

// New creates a SystemProcess writing to out.
func New(out *console.IO, opts ...Option) *SystemProcess {
	p := &SystemProcess{io: out, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// With returns a copy of p with opts applied.
func (p *SystemProcess) With(opts ...Option) *SystemProcess {
	c := *p
	c.env = append([]string(nil), p.env...)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Cwd returns the working directory, empty for the current one.
func (p *SystemProcess) Cwd() string { return p.cwd }

// Execute runs command and streams its output. It reports whether the command
// exited with status 0.
func (p *SystemProcess) Execute(ctx context.Context, command string) bool {
	return p.run(ctx, command, p.io)
}

// ExecuteSilently runs command discarding its output.
func (p *SystemProcess) ExecuteSilently(ctx context.Context, command string) bool {
	return p.run(ctx, command, nil)
}

// Capture runs command and returns its trimmed standard output.
func (p *SystemProcess) Capture(ctx context.Context, command string) (string, bool) {
	var stdout bytes.Buffer
	cmd := p.command(ctx, command)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		p.logger.Debug().Err(err).Str("command", command).Msg("Capture failed")
		return "", false
	}
	return strings.TrimSpace(stdout.String()), true
}

func (p *SystemProcess) command(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, Shell, "-c", command)
	if p.cwd != "" {
		cmd.Dir = p.cwd
	}
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}
	return cmd
}

func (p *SystemProcess) run(ctx context.Context, command string, out *console.IO) bool {
	if strings.TrimSpace(command) == "" {
		if out != nil {
			out.WriteError("Cannot run an empty command.")
		}
		return false
	}

	cmd := p.command(ctx, command)

	var wg sync.WaitGroup
	if out != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			p.fail(out, command, err)
			return false
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			p.fail(out, command, err)
			return false
		}
		wg.Add(2)
		go stream(&wg, stdout, out.Write)
		go stream(&wg, stderr, out.WriteError)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		p.fail(out, command, err)
		return false
	}
	wg.Wait()
	err := cmd.Wait()

	log := p.logger.Debug().Str("command", command).Dur("duration", time.Since(start))
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.Int("exit_code", exitErr.ExitCode()).Msg("Command failed")
			return false
		}
		log.Msg("Command failed")
		p.fail(out, command, err)
		return false
	}
	log.Int("exit_code", 0).Msg("Command executed")
	return true
}

func (p *SystemProcess) fail(out *console.IO, command string, err error) {
	p.logger.Debug().Err(err).Str("command", command).Msg("Command could not run")
	if out != nil {
		out.WriteError(strings.Split(strings.TrimSpace(err.Error()), "\n")...)
	}
}

func stream(wg *sync.WaitGroup, r io.Reader, write func(...string)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		write(scanner.Text())
	}
	// drain whatever is left so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}
