package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/transit/model"
)

var linesCmd = &cobra.Command{
	Use:   "lines [weekday]",
	Short: "Lists lines with their stops and departures",
	Args:  cobra.MaximumNArgs(1),
	RunE:  lines,
}

func init() {
	rootCmd.AddCommand(linesCmd)
}

func lines(cmd *cobra.Command, args []string) error {
	weekday := 0
	if len(args) == 1 {
		var err error
		weekday, err = strconv.Atoi(args[0])
		if err != nil || weekday < 1 || weekday > 7 {
			return fmt.Errorf("weekday must be 1 (Monday) to 7")
		}
	}

	network, _, err := loadNetwork(cmd.Context())
	if err != nil {
		return err
	}

	for _, line := range network.SortedLines() {
		fmt.Println(formatLine(line, weekday))
	}

	return nil
}

// One line of output per transit line. Departures are listed for
// weekday only, or counted over the week when weekday is 0.
func formatLine(line *model.Line, weekday int) string {
	stops := make([]string, 0, len(line.Stops))
	for _, s := range line.Stops {
		stops = append(stops, strconv.Itoa(s.Code))
	}

	label := line.Code
	if line.Name != "" {
		label += " (" + line.Name + ")"
	}

	if weekday == 0 {
		return fmt.Sprintf("%s: %s, %d departures", label, strings.Join(stops, " > "), len(line.Schedule))
	}

	departures := []string{}
	for _, entry := range line.Schedule {
		if entry.Weekday == weekday {
			departures = append(departures, model.FormatTimeOfDay(entry.Departure))
		}
	}
	return fmt.Sprintf("%s: %s [%s]", label, strings.Join(stops, " > "), strings.Join(departures, " "))
}
