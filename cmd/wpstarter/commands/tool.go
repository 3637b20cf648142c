package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/phptool"
)

func newToolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Install and run the PHP tools",
		Long: fmt.Sprintf(`Install and run the PHP tools WP Starter drives.

Supported tools: %s.

A tool installed as a Composer package is preferred. Otherwise an existing
phar in the project root is used, or the phar is downloaded and verified.`,
			strings.Join(phptool.Names(), ", ")),
	}

	cmd.AddCommand(newToolInstallCommand())
	cmd.AddCommand(newToolExecCommand())
	cmd.AddCommand(newToolCheckCommand())

	return cmd
}

func toolByName(name string) (phptool.PhpTool, error) {
	tool, ok := phptool.ByName(name)
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("unknown tool, expected one of %s", strings.Join(phptool.Names(), ", ")), nil).
			WithCode(errs.CodeConfig).
			WithSubject(name)
	}
	return tool, nil
}

func newToolInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "install TOOL",
		Short:     "Download the tool phar into the project root",
		Example:   `  wpstarter tool install wp-cli`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: phptool.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := toolByName(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				path, err := a.installer.Install(ctx, tool, tool.PharTarget(a.paths))
				if err != nil {
					return err
				}
				a.io.WriteSuccess(fmt.Sprintf("%s installed at %s.", tool.NiceName(), a.paths.Relative(a.paths.Root, path)))
				return nil
			})
		},
	}
}

func newToolExecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec TOOL [-- args...]",
		Short: "Run a tool command",
		Example: `  # Run a WP-CLI command against the project
  wpstarter tool exec wp-cli -- plugin list --status=active

  # Run a Robo task
  wpstarter tool exec robo -- build`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := toolByName(args[0])
			if err != nil {
				return err
			}
			quoted := make([]string, 0, len(args)-1)
			for _, arg := range args[1:] {
				quoted = append(quoted, phptool.ShellQuote(arg))
			}

			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				tp, err := a.tools.Create(ctx, tool)
				if err != nil {
					return err
				}
				a.io.WriteIfVerbose(fmt.Sprintf("Using %s from %s.", tool.NiceName(), tp.Source()))
				if !tp.Execute(ctx, strings.Join(quoted, " ")) {
					return errs.NewFatal(fmt.Sprintf("%s command failed", tool.NiceName()), nil).
						WithCode(errs.CodeStepFailed)
				}
				return nil
			})
		},
	}
}

func newToolCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the resolved WP-CLI version with the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				tp, err := a.tools.Create(ctx, phptool.WpCli{})
				if err != nil {
					return err
				}
				out, ok := tp.Capture(ctx, "--version")
				if !ok {
					return fmt.Errorf("failed to read the WP-CLI version")
				}
				current := phptool.ParseWpCliVersion(out)

				status, err := phptool.NewUpdateChecker(nil).Check(current)
				if err != nil {
					return err
				}
				if status.Outdated {
					a.io.WriteComment(fmt.Sprintf("WP-CLI %s is installed, %s is available.", status.Current, status.Latest))
					return nil
				}
				a.io.WriteSuccess(fmt.Sprintf("WP-CLI %s is up to date.", status.Current))
				return nil
			})
		},
	}
}
