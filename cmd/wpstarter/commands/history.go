package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit   int
		showRun string
		prune   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs from the journal",
		Long: `Show the runs recorded in the SQLite journal.

The journal is enabled by the "journal" setting or the --journal flag.`,
		Example: `  # Last 10 runs
  wpstarter history --journal .wpstarter.db

  # Step results of one run
  wpstarter history --run 5f0c...

  # Drop runs older than 30 days
  wpstarter history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if a.journal == nil {
					return errs.NewFatal("no journal available, set \"journal\" or pass --journal", nil).
						WithCode(errs.CodeConfig)
				}

				if prune > 0 {
					n, err := a.journal.PruneBefore(ctx, time.Now().Add(-prune))
					if err != nil {
						return err
					}
					a.io.WriteSuccess(fmt.Sprintf("%d run(s) pruned.", n))
					return nil
				}

				if showRun != "" {
					run, err := a.journal.GetRun(ctx, showRun)
					if err != nil {
						return err
					}
					a.io.Write(fmt.Sprintf("Run %s (%s) started %s", run.ID, run.Status, run.StartedAt.Local().Format(time.DateTime)))
					results, err := a.journal.ListStepResults(ctx, run.ID)
					if err != nil {
						return err
					}
					for _, r := range results {
						a.io.Write(fmt.Sprintf("  %-20s %-8s %8s  %s", r.Step, r.Status, r.Duration.Round(time.Millisecond), r.Message))
					}
					if run.Error != nil {
						a.io.WriteError(*run.Error)
					}
					return nil
				}

				runs, err := a.journal.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					a.io.Write("No runs recorded.")
					return nil
				}
				for _, run := range runs {
					a.io.Write(fmt.Sprintf("%-36s  %-9s  %s  %8s  %s",
						run.ID,
						run.Status,
						run.StartedAt.Local().Format(time.DateTime),
						run.Duration().Round(time.Millisecond),
						run.EnvType,
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().StringVar(&showRun, "run", "", "show the step results of this run")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this duration")

	return cmd
}
