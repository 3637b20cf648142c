package steps

import (
	"context"
	"fmt"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/process"
)

// CommandStep runs a shell command configured under command-steps.
type CommandStep struct {
	name    string
	command string
	proc    *process.SystemProcess
}

// NewCommandStep creates a step named name running command.
func NewCommandStep(name, command string, proc *process.SystemProcess) *CommandStep {
	return &CommandStep{name: name, command: command, proc: proc}
}

func (s *CommandStep) Name() string { return s.name }

func (s *CommandStep) Allowed(*config.Config, *config.Paths) bool { return s.command != "" }

func (s *CommandStep) Run(ctx context.Context, _ *config.Config, paths *config.Paths) (Status, error) {
	proc := s.proc
	if proc.Cwd() == "" {
		proc = proc.With(process.WithCwd(paths.Root))
	}
	if !proc.Execute(ctx, s.command) {
		return Error, fmt.Errorf("command step %s failed: %s", s.name, s.command)
	}
	return Success, nil
}

func (s *CommandStep) Success() string { return fmt.Sprintf("Step %s done.", s.name) }
func (s *CommandStep) Error() string   { return fmt.Sprintf("Step %s failed.", s.name) }
