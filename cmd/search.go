package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"tidbyt.dev/transit"
	"tidbyt.dev/transit/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <origin> <destination>",
	Short: "Searches itineraries between two stops",
	Args:  cobra.ExactArgs(2),
	RunE:  search,
}

var (
	weekday     int
	departAfter string
	showMetrics bool
)

func init() {
	searchCmd.Flags().IntVarP(&weekday, "weekday", "w", 0, "Day of week, 1 (Monday) to 7 (Sunday). Defaults to today")
	searchCmd.Flags().StringVarP(&departAfter, "time", "t", "", "Earliest departure as HH:MM[:SS]. Defaults to now")
	searchCmd.Flags().BoolVarP(&showMetrics, "metrics", "", false, "Print metrics after searching")
	rootCmd.AddCommand(searchCmd)
}

// Parses HH:MM or HH:MM:SS into time since midnight.
func parseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("'%s' is not on form HH:MM[:SS]", s)
}

func search(cmd *cobra.Command, args []string) error {
	origin, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	destination, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if origin == destination {
		return fmt.Errorf("origin and destination are the same stop")
	}

	now := time.Now()

	day := weekday
	if day == 0 {
		day = int(now.Weekday())
		if day == 0 {
			day = 7
		}
	}
	if day < 1 || day > 7 {
		return fmt.Errorf("weekday must be between 1 and 7")
	}

	notBefore := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute
	if departAfter != "" {
		notBefore, err = parseTimeOfDay(departAfter)
		if err != nil {
			return err
		}
	}

	network, _, err := loadNetwork(cmd.Context())
	if err != nil {
		return err
	}

	planner := transit.NewPlanner(network)
	planner.Logger = logger
	planner.Metrics = stats

	itineraries, err := planner.Search(origin, destination, day, notBefore)
	if err != nil {
		return err
	}

	if len(itineraries) == 0 {
		fmt.Println("No itineraries found")
	}
	for i, it := range itineraries {
		printItinerary(i+1, it)
	}

	if showMetrics {
		families, err := stats.Registry.Gather()
		if err != nil {
			return fmt.Errorf("gathering metrics: %w", err)
		}
		enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return fmt.Errorf("encoding metrics: %w", err)
			}
		}
	}

	return nil
}

func printItinerary(n int, it model.Itinerary) {
	fmt.Printf(
		"%d. %s - %s\n",
		n,
		model.FormatTimeOfDay(it.Departure()),
		model.FormatTimeOfDay(it.Arrival()),
	)
	for _, trip := range it {
		mode := "WALK"
		if !trip.Walking() {
			mode = trip.Line.Code
		}
		fmt.Printf(
			"   %-6s %s %d -> %s %d\n",
			mode,
			model.FormatTimeOfDay(trip.Departure),
			trip.First().Code,
			model.FormatTimeOfDay(trip.Arrival()),
			trip.Last().Code,
		)
	}
}
