package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/runlog"
	"github.com/cartmetrics/abtest-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pipeline run log",
	Long: `List the recorded phase runs from etl.run_log, most recent first.
The run log lives in the postgres warehouse; with the sqlite driver there
is nothing to show.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.Driver != "postgres" || cfg.Store.DatabaseURL == "" {
			return eris.New("status: run log requires the postgres store (set store.driver and store.database_url)")
		}

		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer pg.Close()

		log := runlog.New(pg.Pool())
		if err := log.Migrate(ctx); err != nil {
			return err
		}

		entries, err := log.ListAll(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		fmt.Printf("%-6s %-14s %-9s %-20s %-20s %10s  %s\n",
			"ID", "PHASE", "STATUS", "STARTED", "COMPLETED", "ROWS", "ERROR")
		for _, e := range entries {
			completed := "-"
			if e.CompletedAt != nil {
				completed = e.CompletedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-6d %-14s %-9s %-20s %-20s %10d  %s\n",
				e.ID, e.Phase, e.Status,
				e.StartedAt.Format("2006-01-02 15:04:05"),
				completed, e.RowsWritten, e.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
