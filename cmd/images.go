package main

import "github.com/spf13/cobra"

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Image migration commands",
}

func init() {
	rootCmd.AddCommand(imagesCmd)
}
