package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plannora/marketplace-cli/internal/backfill"
	"github.com/plannora/marketplace-cli/internal/batch"
)

var imagesMigrateCmd = &cobra.Command{
	Use:   "migrate [establishments|partners|all]",
	Short: "Copy externally hosted images to our object storage",
	Long: `Scans the catalog for entities whose images still live on the scraped
source sites, downloads each one and re-uploads it under a deterministic
key. Already-migrated images are detected and skipped, so interrupted runs
are safe to repeat.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("images"); err != nil {
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
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		migrator, err := newMigrator(ctx)
		if err != nil {
			return err
		}

		for _, kind := range kinds {
			job := backfill.JobName("images", kind)
			src, process := backfill.ImageJob(store, kind, migrator, cfg.Images.Resolution)

			sum, err := batch.Run(ctx, batchConfig(job, batchSize, resumeID, 0), src, process)
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

func init() {
	imagesMigrateCmd.Flags().Int64("resume-id", 0, "restart the scan after this entity id, ignoring the checkpoint")
	imagesMigrateCmd.Flags().Int("batch-size", 0, "entities per scan batch (default from config)")
	imagesCmd.AddCommand(imagesMigrateCmd)
}
