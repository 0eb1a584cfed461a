package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/transit/storage"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [lat lng] [limit]",
	Short: "Lists stops, optionally near a geographical location",
	Args:  cobra.RangeArgs(0, 3),
	RunE:  stops,
}

func init() {
	rootCmd.AddCommand(stopsCmd)
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng float64
	var limit int
	var err error

	gotLocation := false
	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		gotLocation = true
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	network, metadata, err := loadNetwork(cmd.Context())
	if err != nil {
		return err
	}

	reader, err := store.GetReader(metadata.Hash)
	if err != nil {
		return err
	}

	var found []*storage.Stop
	if gotLocation {
		found, err = reader.NearbyStops(lat, lng, limit)
	} else {
		found, err = reader.Stops()
	}
	if err != nil {
		return err
	}

	for _, s := range found {
		codes := []string{}
		if stop, ok := network.Stops[s.Code]; ok {
			for _, line := range stop.Lines {
				codes = append(codes, line.Code)
			}
		}
		fmt.Printf("%d: %s [%s]\n", s.Code, s.Address, strings.Join(codes, ", "))
	}

	return nil
}
