package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/transit/storage"
)

type ScheduleCSV struct {
	Line      string `csv:"line"`
	Weekday   int    `csv:"weekday"`
	Departure string `csv:"departure"`
}

// Parses "HH:MM" or "HH:MM:SS" into "HHMMSS". Times of day only:
// hours past 23 are rejected.
func parseTimeOfDay(s string) (string, error) {
	split := strings.Split(s, ":")
	if len(split) == 2 {
		split = append(split, "00")
	}
	if len(split) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 23 {
		return "", fmt.Errorf("invalid hour in '%s'", s)
	}

	if hms[1] < 0 || hms[1] > 59 {
		return "", fmt.Errorf("invalid minute in '%s'", s)
	}

	if hms[2] < 0 || hms[2] > 59 {
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Parses schedule entries. Caller is responsible for
// BeginSchedules()/EndSchedules() around this.
func ParseSchedules(
	writer storage.NetworkWriter,
	data io.Reader,
	lines map[string]bool,
) error {
	scheduleCsv := []*ScheduleCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &scheduleCsv); err != nil {
		return errors.Wrap(err, "unmarshaling schedules csv")
	}

	for i, s := range scheduleCsv {
		if !lines[s.Line] {
			return fmt.Errorf("unknown line: '%s' (row %d)", s.Line, i+1)
		}
		if s.Weekday < 1 || s.Weekday > 7 {
			return fmt.Errorf("invalid weekday %d (row %d)", s.Weekday, i+1)
		}

		departure, err := parseTimeOfDay(s.Departure)
		if err != nil {
			return errors.Wrapf(err, "parsing departure (row %d)", i+1)
		}

		err = writer.WriteSchedule(&storage.Schedule{
			LineCode:  s.Line,
			Weekday:   int8(s.Weekday),
			Departure: departure,
		})
		if err != nil {
			return errors.Wrapf(err, "writing schedule (row %d)", i+1)
		}
	}

	return nil
}
