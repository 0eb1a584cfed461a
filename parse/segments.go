package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"tidbyt.dev/transit/model"
	"tidbyt.dev/transit/storage"
)

type SegmentCSV struct {
	From    int `csv:"from"`
	To      int `csv:"to"`
	Seconds int `csv:"seconds"`
	Mode    int `csv:"mode"`
}

// Parses segments, returning the number written.
func ParseSegments(writer storage.NetworkWriter, data io.Reader, stops map[int]bool) (int, error) {
	segmentCsv := []*SegmentCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &segmentCsv); err != nil {
		return 0, fmt.Errorf("unmarshaling segments csv: %w", err)
	}

	seen := map[model.SegmentKey]bool{}
	for i, s := range segmentCsv {
		if !stops[s.From] {
			return 0, fmt.Errorf("unknown stop: %d (row %d)", s.From, i+1)
		}
		if !stops[s.To] {
			return 0, fmt.Errorf("unknown stop: %d (row %d)", s.To, i+1)
		}
		if s.From == s.To {
			return 0, fmt.Errorf("segment from %d to itself (row %d)", s.From, i+1)
		}
		if s.Seconds < 0 {
			return 0, fmt.Errorf("negative duration %d (row %d)", s.Seconds, i+1)
		}

		mode := model.SegmentMode(s.Mode)
		if mode != model.SegmentModeBus && mode != model.SegmentModeWalk {
			return 0, fmt.Errorf("invalid mode %d (row %d)", s.Mode, i+1)
		}

		key := model.SegmentKey{From: s.From, To: s.To}
		if seen[key] {
			return 0, fmt.Errorf("repeated segment %s (row %d)", key, i+1)
		}
		seen[key] = true

		err := writer.WriteSegment(&storage.Segment{
			From:    s.From,
			To:      s.To,
			Seconds: s.Seconds,
			Mode:    mode,
		})
		if err != nil {
			return 0, errors.Wrapf(err, "writing segment (row %d)", i+1)
		}
	}

	return len(segmentCsv), nil
}
