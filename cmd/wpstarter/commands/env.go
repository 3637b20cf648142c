package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wpstarter/wpstarter/pkg/config"
	"github.com/wpstarter/wpstarter/pkg/env"
	"github.com/wpstarter/wpstarter/pkg/errs"
	"github.com/wpstarter/wpstarter/pkg/steps"
)

func newEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and cache the project environment",
		Long: `Inspect the environment WordPress will see and manage the env cache.

The env cache is a dump of the loaded env files and the constants defined
from them. The env-cache step writes it when cache-env is on. Commands that
read the environment, such as "env get", use it instead of parsing the env
files again. wp-config.php does not need it: the constants are written into
the file when it is generated.`,
	}

	cmd.AddCommand(newEnvCacheCommand())
	cmd.AddCommand(newEnvGetCommand())
	cmd.AddCommand(newEnvFlushCommand())

	return cmd
}

func newEnvCacheCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Write the env cache file",
		Example: `  # Dump the env cache once
  wpstarter env cache

  # Rebuild the cache every time an env file changes
  wpstarter env cache --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if err := a.loadEnv(true); err != nil {
					return err
				}
				target := steps.EnvCachePath(a.paths)
				if err := a.env.DumpCached(target); err != nil {
					return err
				}
				a.io.WriteSuccess(fmt.Sprintf("Env cache written to %s.", a.paths.Relative(a.paths.Root, target)))
				if !watch {
					return nil
				}

				logger := a.tel.Logger.NewComponentLogger("env").Zerolog()
				files := a.env.LoadedFiles()
				if len(files) == 0 {
					return errs.NewFatal(fmt.Sprintf("no env file loaded, %s is set", env.LoadedSentinel), nil).
						WithCode(errs.CodeEnvFile).
						WithSubject(a.cfg.String(config.KeyEnvFile))
				}
				return env.Watch(ctx, logger, files, func(file string) error {
					bridge := env.NewBridge(env.WithLogger(logger))
					dir := steps.EnvDir(a.cfg, a.paths)
					name := a.cfg.String(config.KeyEnvFile)
					if err := bridge.Load(name, dir); err != nil {
						return err
					}
					if err := bridge.LoadAppended(name, dir); err != nil {
						return err
					}
					bridge.DefineConstants()
					if err := bridge.DumpCached(target); err != nil {
						return err
					}
					a.io.WriteSuccess(fmt.Sprintf("%s changed, env cache rebuilt.", filepath.Base(file)))
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and rebuild the cache when an env file changes")

	return cmd
}

func newEnvGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Print the value WordPress will see for a variable",
		Example: `  wpstarter env get DB_NAME
  wpstarter env get WP_ENVIRONMENT_TYPE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				bridge := a.env
				cache := steps.EnvCachePath(a.paths)
				if cached, err := env.BuildFromCacheDump(cache, env.WithLogger(a.tel.Logger.NewComponentLogger("env").Zerolog())); err == nil {
					bridge = cached
				} else if err := a.loadEnv(false); err != nil {
					return err
				}

				res := bridge.Get(args[0])
				if res.IsEmpty() {
					return fmt.Errorf("%s is not set", args[0])
				}
				value, err := res.Unwrap()
				if err != nil {
					return err
				}
				a.io.Write(env.PHPLiteral(value))
				return nil
			})
		},
	}
}

func newEnvFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Delete the env cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				target := steps.EnvCachePath(a.paths)
				err := os.Remove(target)
				switch {
				case errors.Is(err, os.ErrNotExist):
					a.io.Write("No env cache to flush.")
					return nil
				case err != nil:
					return fmt.Errorf("failed to remove env cache: %w", err)
				}
				a.io.WriteSuccess("Env cache flushed.")
				return nil
			})
		},
	}
}
