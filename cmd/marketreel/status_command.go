package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"marketreel/internal/config"
	"marketreel/internal/run"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded runs and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *run.Store) error {
				var filters []run.Status
				if statusFilter != "" {
					status, ok := run.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					filters = append(filters, status)
				}

				items, err := store.List(cmd.Context(), filters...)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						shortID(item.RunID),
						item.TradeDate,
						string(item.Status),
						strconv.Itoa(item.Attempt),
						progressCell(item),
						item.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"RUN", "DATE", "STATUS", "ATTEMPT", "PROGRESS", "UPDATED"},
					rows,
					3,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "filter", "", "Only show runs with this status")
	return cmd
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func progressCell(item *run.Run) string {
	if item.Status == run.StatusFailed && item.ErrorMessage != "" {
		return truncate(item.ErrorMessage, 60)
	}
	if item.ProgressMessage != "" {
		return truncate(item.ProgressMessage, 60)
	}
	return item.ProgressStage
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit-1] + "…"
}
