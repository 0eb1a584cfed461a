package transit

import (
	"time"

	"tidbyt.dev/transit/model"
)

// Finds the first run of line on weekday that passes stop index start
// no earlier than notBefore, and materializes the ride from start to
// end on it.
//
// Schedule entries are scanned in stored order. NewNetwork sorts them
// by (weekday, departure), so the first match is the earliest.
//
// Returned gaps are the hops without a BUS segment encountered while
// timing the run, whether or not a run was found.
func EarliestRun(
	line *model.Line,
	weekday int,
	start int,
	end int,
	notBefore time.Duration,
	segments map[model.SegmentKey]*model.Segment,
) (model.TripSegment, []model.SegmentKey, bool) {
	lead := TimeBetween(line.Stops, 0, start, segments)
	leadTime := time.Duration(lead.Seconds) * time.Second

	for _, entry := range line.Schedule {
		if entry.Weekday != weekday {
			continue
		}
		if entry.Departure+leadTime < notBefore {
			continue
		}

		ride := TimeBetween(line.Stops, start, end, segments)

		stops := make([]*model.Stop, end-start+1)
		copy(stops, line.Stops[start:end+1])

		return model.TripSegment{
			Line:      line,
			Stops:     stops,
			Departure: entry.Departure + leadTime,
			Seconds:   ride.Seconds,
		}, append(lead.Gaps, ride.Gaps...), true
	}

	return model.TripSegment{}, lead.Gaps, false
}
