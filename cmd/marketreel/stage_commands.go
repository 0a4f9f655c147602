package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketreel/internal/config"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
	"marketreel/internal/workflow"
)

// newStageCommand exposes the deterministic pipeline stages for standalone
// re-runs against an existing run's artifacts. Useful after hand-editing a
// script or swapping an illustration.
func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Re-run a single pipeline stage on an existing run",
	}

	stageCmd.AddCommand(newSingleStageCommand(ctx, "align", "Re-run transcript alignment", run.StatusAligned,
		func(h workflow.Handlers) stage.Handler { return h.Align }))
	stageCmd.AddCommand(newSingleStageCommand(ctx, "plan", "Re-run scene planning", run.StatusPlanned,
		func(h workflow.Handlers) stage.Handler { return h.Plan }))
	stageCmd.AddCommand(newSingleStageCommand(ctx, "render", "Re-run the video render", run.StatusCompleted,
		func(h workflow.Handlers) stage.Handler { return h.Render }))

	return stageCmd
}

func newSingleStageCommand(ctx *commandContext, name, short string, done run.Status, pick func(workflow.Handlers) stage.Handler) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *run.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				item, err := resolveRun(cmd.Context(), store, runID)
				if err != nil {
					return err
				}

				handler := pick(workflow.DefaultHandlers(cfg, logger))
				stageCtx := services.WithStage(services.WithRunID(cmd.Context(), item.RunID), name)
				if err := handler.Prepare(stageCtx, item); err != nil {
					return err
				}
				if err := handler.Execute(stageCtx, item); err != nil {
					return err
				}

				item.Status = done
				item.SetProgress(short, short+" finished")
				item.ErrorMessage = ""
				if err := store.Update(cmd.Context(), item); err != nil {
					return fmt.Errorf("persist stage result: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %s finished for run %s\n", name, item.RunID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to operate on (defaults to the most recent)")
	return cmd
}
