package parse

import (
	"fmt"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/transit/storage"
)

type LineCSV struct {
	Code string `csv:"code"`
	Name string `csv:"name"`
}

type LineStopCSV struct {
	Line     string `csv:"line"`
	Stop     int    `csv:"stop"`
	Sequence int    `csv:"sequence"`
}

func ParseLines(writer storage.NetworkWriter, data io.Reader) (map[string]bool, error) {
	lineCsv := []*LineCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &lineCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling lines csv: %w", err)
	}

	lineCodes := map[string]bool{}
	for _, l := range lineCsv {
		if l.Code == "" {
			return nil, fmt.Errorf("empty line code")
		}
		if lineCodes[l.Code] {
			return nil, fmt.Errorf("repeated line code '%s'", l.Code)
		}
		lineCodes[l.Code] = true

		err := writer.WriteLine(&storage.Line{
			Code: l.Code,
			Name: l.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("writing line '%s': %w", l.Code, err)
		}
	}

	return lineCodes, nil
}

// Parses the stop sequence of every line. A line may not visit the
// same stop twice, and sequence numbers must be unique per line.
func ParseLineStops(
	writer storage.NetworkWriter,
	data io.Reader,
	lines map[string]bool,
	stops map[int]bool,
) error {
	lineStopCsv := []*LineStopCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &lineStopCsv); err != nil {
		return fmt.Errorf("unmarshaling line stops csv: %w", err)
	}

	seenStop := map[string]map[int]bool{}
	seenSeq := map[string]map[int]bool{}

	for i, ls := range lineStopCsv {
		if !lines[ls.Line] {
			return fmt.Errorf("unknown line: '%s' (row %d)", ls.Line, i+1)
		}
		if !stops[ls.Stop] {
			return fmt.Errorf("unknown stop: %d (row %d)", ls.Stop, i+1)
		}

		if seenStop[ls.Line] == nil {
			seenStop[ls.Line] = map[int]bool{}
			seenSeq[ls.Line] = map[int]bool{}
		}
		if seenStop[ls.Line][ls.Stop] {
			return fmt.Errorf("line '%s' repeats stop %d (row %d)", ls.Line, ls.Stop, i+1)
		}
		if seenSeq[ls.Line][ls.Sequence] {
			return fmt.Errorf("line '%s' repeats sequence %d (row %d)", ls.Line, ls.Sequence, i+1)
		}
		seenStop[ls.Line][ls.Stop] = true
		seenSeq[ls.Line][ls.Sequence] = true
	}

	sort.SliceStable(lineStopCsv, func(i, j int) bool {
		if lineStopCsv[i].Line != lineStopCsv[j].Line {
			return lineStopCsv[i].Line < lineStopCsv[j].Line
		}
		return lineStopCsv[i].Sequence < lineStopCsv[j].Sequence
	})

	for _, ls := range lineStopCsv {
		err := writer.WriteLineStop(&storage.LineStop{
			LineCode: ls.Line,
			StopCode: ls.Stop,
			Sequence: ls.Sequence,
		})
		if err != nil {
			return errors.Wrapf(err, "writing line stop %s/%d", ls.Line, ls.Sequence)
		}
	}

	return nil
}
