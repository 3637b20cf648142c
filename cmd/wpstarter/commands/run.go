package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/steps"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [steps...]",
		Short: "Run the provisioning steps",
		Long: `Run the WP Starter steps in order.

Without arguments every step runs. Naming steps runs only those, still in
pipeline order. Steps listed in skip-steps never run. Scripts configured as
pre-<step> and post-<step> run around each step.`,
		Example: `  # Run the whole pipeline
  wpstarter run

  # Regenerate wp-config.php and index.php only
  wpstarter run wp-config index

  # Run in another project, without questions
  wpstarter run -d /srv/site -n`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(cmd.Context(), args)
		},
	}
	return cmd
}

func runSteps(ctx context.Context, selected []string) error {
	return withApp(ctx, func(a *app) error {
		if len(selected) > 0 {
			if _, err := a.cfg.Append(config.KeySelectedSteps, selected); err != nil {
				return err
			}
		}

		list := steps.Build(a.deps, a.cfg)
		a.tel.Logger.WithField("steps", strings.Join(steps.Names(list), ",")).Debug("Steps pipeline built")

		runner := steps.NewRunner(a.deps, a.scripts(), a.tel)
		if err := runner.Run(ctx, a.cfg, a.paths, list); err != nil {
			a.io.WriteErrorBlock("WP Starter finished with errors.", err.Error())
			return err
		}
		a.io.WriteSuccessBlock("WP Starter finished successfully!")
		return nil
	})
}

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the steps and whether they would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				skip := a.cfg.Strings(config.KeySkipSteps)
				for _, s := range steps.Build(a.deps, a.cfg) {
					state := "enabled"
					switch {
					case contains(skip, s.Name()):
						state = "skipped by configuration"
					case !s.Allowed(a.cfg, a.paths):
						state = "not allowed"
					}
					a.io.Write(fmt.Sprintf("%-20s %s", s.Name(), state))
				}
				return nil
			})
		},
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
