package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plannora/marketplace-cli/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Migrate the schema and load entities from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fixture, err := catalog.LoadFixture(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := catalog.Seed(ctx, store, fixture)
		if err != nil {
			return err
		}

		fmt.Printf("Seeded %d entities (%d establishments, %d partners)\n",
			n, len(fixture.Establishments), len(fixture.Partners))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
