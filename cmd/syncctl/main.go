// Command syncctl runs cache syncs and inspects cached collections without starting the API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/workoutcache/internal/bootstrap"
	"example.com/workoutcache/internal/config"
	"example.com/workoutcache/internal/domain"
	"example.com/workoutcache/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx, &app{}, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs one invocation and releases its dependencies whether or not the command failed.
func execute(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app is resolved once per invocation in PersistentPreRunE.
type app struct {
	logger *zap.Logger
	deps   *bootstrap.Deps
}

func (a *app) close() {
	if a.deps != nil {
		a.deps.Close()
		a.deps = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the workout cache from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.logger, err = logging.New(cfg.LogLevel, "console")
			if err != nil {
				return err
			}
			a.deps, err = bootstrap.Build(cmd.Context(), cfg, a.logger)
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(newSyncCmd(a), newReadCmd(a), newBlobCmd(a))
	return root
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [collection...]",
		Short: "Sync collections from upstream (all mirrored collections when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			collections := domain.SyncedCollections
			if len(args) > 0 {
				collections = make([]domain.Collection, 0, len(args))
				for _, arg := range args {
					c, err := domain.ParseCollection(arg)
					if err != nil {
						return err
					}
					collections = append(collections, c)
				}
			}

			var failed error
			for _, c := range collections {
				result, err := a.deps.Service.Sync(cmd.Context(), c)
				if err != nil {
					failed = errors.Join(failed, fmt.Errorf("%s: %w", c, err))
				}
				if result.RunID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-20s mode=%-11s added=%d total=%d pages=%d persisted=%t\n",
						c, result.Status, result.Mode, result.Added, result.Total, result.Pages, result.Persisted)
				}
			}
			return failed
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <collection>",
		Short: "Print a cached collection as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := domain.ParseCollection(args[0])
			if err != nil {
				return err
			}
			if !c.Synced() {
				return fmt.Errorf("%s is a blob, use `syncctl blob get %s`", c, c)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.deps.Service.Read(cmd.Context(), c))
		},
	}
}

func newBlobCmd(a *app) *cobra.Command {
	blob := &cobra.Command{
		Use:   "blob",
		Short: "Read or replace an opaque JSON blob such as personal_records",
	}

	blob.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.deps.Service.LoadBlob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	})

	blob.AddCommand(&cobra.Command{
		Use:   "put <name> [file]",
		Short: "Store a JSON array read from file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			payload, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return a.deps.Service.SaveBlob(cmd.Context(), args[0], payload)
		},
	})

	return blob
}
