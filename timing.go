package transit

import (
	"fmt"

	"tidbyt.dev/transit/model"
)

// Ride time over a range of consecutive stops.
type SegmentTime struct {
	Seconds int

	// Hops in the range lacking a BUS segment. These contribute
	// zero seconds to the total.
	Gaps []model.SegmentKey
}

// Sums the BUS segment durations between stops[start] and
// stops[end]. Panics unless 0 <= start <= end < len(stops).
func TimeBetween(
	stops []*model.Stop,
	start int,
	end int,
	segments map[model.SegmentKey]*model.Segment,
) SegmentTime {
	if start < 0 || end < start || end >= len(stops) {
		panic(fmt.Sprintf("invalid stop range [%d, %d] over %d stops", start, end, len(stops)))
	}

	st := SegmentTime{}
	for i := start; i < end; i++ {
		key := model.SegmentKey{From: stops[i].Code, To: stops[i+1].Code}
		seg, found := segments[key]
		if !found || seg.Mode != model.SegmentModeBus {
			st.Gaps = append(st.Gaps, key)
			continue
		}
		st.Seconds += seg.Seconds
	}

	return st
}
