package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"marketreel/internal/config"
	"marketreel/internal/run"
	"marketreel/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sourceFile string
	var tradeDate string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce a report video from a market snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *run.Store) error {
				if path := strings.TrimSpace(sourceFile); path != "" {
					cfg.Market.SourceFile = path
				}
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}

				signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if _, err := store.ResetStuckProcessing(signalCtx); err != nil {
					return fmt.Errorf("reset stuck runs: %w", err)
				}
				item, err := store.NewRun(signalCtx, strings.TrimSpace(tradeDate))
				if err != nil {
					return fmt.Errorf("create run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Starting run %s\n", item.RunID)

				manager := workflow.New(cfg, store, workflow.DefaultHandlers(cfg, logger), logger)
				if err := manager.Run(signalCtx, item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report delivered: %s\n", item.FinalFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sourceFile, "source", "s", "", "Market snapshot JSON file (overrides configuration)")
	cmd.Flags().StringVar(&tradeDate, "date", "", "Trade date label for the run (defaults to the snapshot's)")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted or failed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *run.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}

				signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if _, err := store.ResetStuckProcessing(signalCtx); err != nil {
					return fmt.Errorf("reset stuck runs: %w", err)
				}
				item, err := resolveRun(signalCtx, store, runID)
				if err != nil {
					return err
				}
				if item.Status == run.StatusCompleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Run %s already completed: %s\n", item.RunID, item.FinalFile)
					return nil
				}
				if item.Status == run.StatusFailed {
					if _, err := store.RetryFailed(signalCtx, item.RunID); err != nil {
						return fmt.Errorf("reset failed run: %w", err)
					}
					item, err = store.GetByRunID(signalCtx, item.RunID)
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resuming run %s from %s\n", item.RunID, item.Status)

				manager := workflow.New(cfg, store, workflow.DefaultHandlers(cfg, logger), logger)
				if err := manager.Run(signalCtx, item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report delivered: %s\n", item.FinalFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to resume (defaults to the most recent)")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove completed runs and their working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *run.Store) error {
				removed, err := store.ClearCompleted(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear completed runs: %w", err)
				}
				for _, id := range removed {
					if err := run.NewPaths(cfg.RunsDir(), id).Remove(); err != nil {
						return fmt.Errorf("remove run directory %s: %w", id, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed run(s)\n", len(removed))
				return nil
			})
		},
	}
}

// resolveRun loads the requested run, or the most recent one when no id is
// given.
func resolveRun(ctx context.Context, store *run.Store, runID string) (*run.Run, error) {
	if id := strings.TrimSpace(runID); id != "" {
		item, err := store.GetByRunID(ctx, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return item, nil
	}
	item, err := store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("no runs recorded yet")
	}
	return item, nil
}
