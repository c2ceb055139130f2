package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plannora/marketplace-cli/internal/catalog"
)

var imagesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show image migration backlog and checkpoint state per kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, kind := range catalog.Kinds {
			counts, err := store.ImageCounts(ctx, kind)
			if err != nil {
				return err
			}
			printStatus("images", kind, counts)
		}
		return nil
	},
}

func init() {
	imagesCmd.AddCommand(imagesStatusCmd)
}
