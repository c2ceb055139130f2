package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plannora/marketplace-cli/internal/backfill"
	"github.com/plannora/marketplace-cli/internal/catalog"
	"github.com/plannora/marketplace-cli/internal/checkpoint"
)

var geocodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocoding backlog and checkpoint state per kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, kind := range catalog.Kinds {
			counts, err := store.GeocodeCounts(ctx, kind)
			if err != nil {
				return err
			}
			printStatus("geocode", kind, counts)
		}
		return nil
	},
}

// printStatus prints one kind's backlog plus any interrupted-run checkpoint.
func printStatus(op string, kind catalog.Kind, counts catalog.Counts) {
	fmt.Printf("%s %s: %d/%d done, %d remaining\n",
		op, kind, counts.Total-counts.Remaining, counts.Total, counts.Remaining)

	job := backfill.JobName(op, kind)
	rec, found, err := checkpoint.NewStore(cfg.Batch.CheckpointDir, job).Load()
	if err != nil || !found {
		return
	}
	fmt.Printf("  interrupted run: %d processed (%d ok, %d failed), resumes after id %d\n",
		rec.ProcessedEntities, rec.Succeeded, rec.Failed, rec.LastProcessedID)
}

func init() {
	geocodeCmd.AddCommand(geocodeStatusCmd)
}
