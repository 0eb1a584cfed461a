package transit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/transit"
	"tidbyt.dev/transit/model"
)

// Line L visiting stops 1, 2, 3 and 4. Segments 1-2 and 3-4 are
// BUS, 2-3 is a WALK and thus doesn't count.
func timingNetwork(t *testing.T, schedule ...model.ScheduleEntry) *model.Network {
	stops := []*model.Stop{{Code: 1}, {Code: 2}, {Code: 3}, {Code: 4}}
	network, err := model.NewNetwork(
		stops,
		[]*model.Line{{
			Code:     "L",
			Stops:    []*model.Stop{{Code: 1}, {Code: 2}, {Code: 3}, {Code: 4}},
			Schedule: schedule,
		}},
		[]*model.Segment{
			{From: &model.Stop{Code: 1}, To: &model.Stop{Code: 2}, Seconds: 30, Mode: model.SegmentModeBus},
			{From: &model.Stop{Code: 2}, To: &model.Stop{Code: 3}, Seconds: 100, Mode: model.SegmentModeWalk},
			{From: &model.Stop{Code: 3}, To: &model.Stop{Code: 4}, Seconds: 45, Mode: model.SegmentModeBus},
		},
	)
	require.NoError(t, err)
	return network
}

func TestTimeBetween(t *testing.T) {
	network := timingNetwork(t)
	stops := network.Lines["L"].Stops

	for _, tc := range []struct {
		name    string
		start   int
		end     int
		seconds int
		gaps    []model.SegmentKey
	}{
		{"empty range", 2, 2, 0, nil},
		{"single hop", 0, 1, 30, nil},
		{"walk hop counts zero", 1, 2, 0, []model.SegmentKey{{From: 2, To: 3}}},
		{"whole line", 0, 3, 75, []model.SegmentKey{{From: 2, To: 3}}},
		{"tail", 2, 3, 45, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := transit.TimeBetween(stops, tc.start, tc.end, network.Segments)
			assert.Equal(t, tc.seconds, st.Seconds)
			assert.Equal(t, tc.gaps, st.Gaps)
		})
	}
}

func TestTimeBetweenMissingSegment(t *testing.T) {
	stops := []*model.Stop{{Code: 1}, {Code: 2}, {Code: 3}}
	segments := map[model.SegmentKey]*model.Segment{
		{From: 2, To: 3}: {From: stops[1], To: stops[2], Seconds: 10, Mode: model.SegmentModeBus},
		// Wrong direction
		{From: 2, To: 1}: {From: stops[1], To: stops[0], Seconds: 99, Mode: model.SegmentModeBus},
	}

	st := transit.TimeBetween(stops, 0, 2, segments)
	assert.Equal(t, 10, st.Seconds)
	assert.Equal(t, []model.SegmentKey{{From: 1, To: 2}}, st.Gaps)
}

func TestTimeBetweenInvalidRange(t *testing.T) {
	stops := []*model.Stop{{Code: 1}, {Code: 2}}

	assert.Panics(t, func() { transit.TimeBetween(stops, -1, 1, nil) })
	assert.Panics(t, func() { transit.TimeBetween(stops, 1, 0, nil) })
	assert.Panics(t, func() { transit.TimeBetween(stops, 0, 2, nil) })
	assert.NotPanics(t, func() { transit.TimeBetween(stops, 1, 1, nil) })
}

func TestEarliestRun(t *testing.T) {
	network := timingNetwork(
		t,
		model.ScheduleEntry{Weekday: 1, Departure: 9 * time.Hour},
		model.ScheduleEntry{Weekday: 1, Departure: 8 * time.Hour},
		model.ScheduleEntry{Weekday: 2, Departure: 7 * time.Hour},
	)
	line := network.Lines["L"]

	// Boarding at stop 3 (index 2), lead time is 30s: the walk hop
	// doesn't count.
	trip, gaps, ok := transit.EarliestRun(line, 1, 2, 3, 8*time.Hour, network.Segments)
	require.True(t, ok)
	assert.Equal(t, line, trip.Line)
	assert.Equal(t, 8*time.Hour+30*time.Second, trip.Departure)
	assert.Equal(t, 45, trip.Seconds)
	assert.Equal(t, []int{3, 4}, stopCodes(trip))
	assert.Equal(t, []model.SegmentKey{{From: 2, To: 3}}, gaps)

	// The 08:00 run passes too early, 09:00 is next.
	trip, _, ok = transit.EarliestRun(line, 1, 2, 3, 8*time.Hour+31*time.Second, network.Segments)
	require.True(t, ok)
	assert.Equal(t, 9*time.Hour+30*time.Second, trip.Departure)

	// Exactly at notBefore is fine.
	trip, _, ok = transit.EarliestRun(line, 1, 0, 1, 9*time.Hour, network.Segments)
	require.True(t, ok)
	assert.Equal(t, 9*time.Hour, trip.Departure)
	assert.Equal(t, 30, trip.Seconds)

	// Nothing after the last run.
	_, _, ok = transit.EarliestRun(line, 1, 0, 1, 9*time.Hour+time.Second, network.Segments)
	assert.False(t, ok)

	// Other weekdays
	trip, _, ok = transit.EarliestRun(line, 2, 0, 3, 0, network.Segments)
	require.True(t, ok)
	assert.Equal(t, 7*time.Hour, trip.Departure)
	assert.Equal(t, 75, trip.Seconds)

	_, _, ok = transit.EarliestRun(line, 3, 0, 3, 0, network.Segments)
	assert.False(t, ok)
}

func TestEarliestRunCopiesStops(t *testing.T) {
	network := timingNetwork(t, model.ScheduleEntry{Weekday: 1, Departure: 0})
	line := network.Lines["L"]

	trip, _, ok := transit.EarliestRun(line, 1, 1, 3, 0, network.Segments)
	require.True(t, ok)
	trip.Stops[0] = nil

	assert.NotNil(t, line.Stops[1])
}
