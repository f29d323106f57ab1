package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mailferry/internal/store"
)

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show the export ledger and run history",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		ledger, err := store.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		ctx := context.Background()
		total, err := ledger.CountExported(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d messages exported so far\n", total)

		runs, err := ledger.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		fmt.Println("\nrecent runs:")
		for i, r := range runs {
			if i >= 10 {
				break
			}
			status := r.Status
			if status == "" {
				status = "interrupted"
			}
			fmt.Printf("  %s  %-22s  %d ok / %d failed / %d skipped\n",
				r.StartedAt, status, r.Stats.Succeeded, r.Stats.Failed, r.Stats.Skipped)
		}
		return nil
	},
}
