package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plannora/marketplace-cli/internal/backfill"
	"github.com/plannora/marketplace-cli/internal/batch"
)

var geocodeRunCmd = &cobra.Command{
	Use:   "run [establishments|partners|all]",
	Short: "Geocode entities that are missing coordinates",
	Long: `Scans the catalog for entities without coordinates, resolves each
address against the geocoding provider and writes the result back. The run
checkpoints its cursor to disk and resumes automatically after an
interruption.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		kinds, err := resolveKinds(arg)
		if err != nil {
			return err
		}

		resumeID, _ := cmd.Flags().GetInt64("resume-id")
		limit, _ := cmd.Flags().GetInt("limit")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		client := newGeocodeClient()

		for _, kind := range kinds {
			job := backfill.JobName("geocode", kind)
			src, process := backfill.GeocodeJob(store, kind, client)

			sum, err := batch.Run(ctx, batchConfig(job, batchSize, resumeID, limit), src, process)
			if sum != nil {
				printSummary(job, sum)
			}
			if err != nil {
				return err
			}
		}

		return nil
	},
}

func printSummary(job string, sum *batch.Summary) {
	fmt.Printf("\n%s\n", job)
	fmt.Printf("  total:     %d\n", sum.Total)
	fmt.Printf("  processed: %d\n", sum.Processed)
	fmt.Printf("  succeeded: %d\n", sum.Succeeded)
	fmt.Printf("  failed:    %d\n", sum.Failed)
}

func init() {
	geocodeRunCmd.Flags().Int64("resume-id", 0, "restart the scan after this entity id, ignoring the checkpoint")
	geocodeRunCmd.Flags().Int("limit", 0, "stop after this many entities (0 = no limit)")
	geocodeRunCmd.Flags().Int("batch-size", 0, "entities per scan batch (default from config)")
	geocodeCmd.AddCommand(geocodeRunCmd)
}
