package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := api.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}

			counts := make([]string, 0, len(status.QueueCounts))
			for name, count := range status.QueueCounts {
				counts = append(counts, fmt.Sprintf("%s=%d", name, count))
			}
			sort.Strings(counts)

			history := make([]string, 0, len(status.HistoryCounts))
			for name, count := range status.HistoryCounts {
				history = append(history, fmt.Sprintf("%s=%d", name, count))
			}
			sort.Strings(history)

			dbHealth := "ok"
			if status.Database.Error != "" {
				dbHealth = status.Database.Error
			} else if !status.Database.IntegrityOK {
				dbHealth = "integrity check failed"
			}

			rows := [][]string{
				{"Running", fmt.Sprintf("%t", status.Running)},
				{"PID", fmt.Sprintf("%d", status.PID)},
				{"Observers", fmt.Sprintf("%d", status.Subscribers)},
				{"Database", status.DatabasePath},
				{"Database health", dbHealth},
				{"Checkpointed jobs", fmt.Sprintf("%d", status.Database.TotalJobs)},
			}
			for _, entry := range counts {
				rows = append(rows, []string{"Queue", entry})
			}
			for _, entry := range history {
				rows = append(rows, []string{"History", entry})
			}

			if interactiveOutput() {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"FIELD", "VALUE"}, rows, nil))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", row[0], row[1])
			}
			return nil
		},
	}
}

func interactiveOutput() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
