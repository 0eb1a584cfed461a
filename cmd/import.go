package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Fetches the network archive and stores it",
	Args:  cobra.NoArgs,
	RunE:  importNetwork,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importNetwork(cmd *cobra.Command, args []string) error {
	if cfg.Network.URL == "" {
		return fmt.Errorf("network URL is required")
	}

	metadata, err := manager.Import(cmd.Context(), cfg.Network.URL, cfg.Network.Headers)
	if err != nil {
		return err
	}

	fmt.Printf(
		"%s: %d stops, %d lines, %d segments (%s)\n",
		metadata.URL,
		metadata.Stops,
		metadata.Lines,
		metadata.Segments,
		metadata.Hash,
	)

	return nil
}
