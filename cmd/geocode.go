package main

import "github.com/spf13/cobra"

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocoding backfill commands",
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
