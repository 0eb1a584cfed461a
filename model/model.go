package model

import (
	"fmt"
	"sort"
	"time"
)

// Holds the assembled transit network and the itineraries computed
// from it.

type SegmentMode int8

const (
	SegmentModeBus  SegmentMode = 1
	SegmentModeWalk SegmentMode = 2
)

func (m SegmentMode) String() string {
	switch m {
	case SegmentModeBus:
		return "BUS"
	case SegmentModeWalk:
		return "WALK"
	}
	return fmt.Sprintf("SegmentMode(%d)", int8(m))
}

type Stop struct {
	Code    int
	Address string
	Lat     float64
	Lon     float64

	// Lines serving this stop, in line code order. Filled in by
	// NewNetwork.
	Lines []*Line

	// Stops reachable on foot from this one. WALK segments
	// register both of their ends here.
	WalkTo []*Stop
}

func (s *Stop) String() string {
	return fmt.Sprintf("Stop %d: %s", s.Code, s.Address)
}

// A single scheduled run leaving the first stop of a line.
type ScheduleEntry struct {
	Weekday   int
	Departure time.Duration
}

type Line struct {
	Code     string
	Name     string
	Stops    []*Stop
	Schedule []ScheduleEntry

	index map[int]int
}

// Returns the position of stop in the line's sequence, or -1.
func (l *Line) IndexOf(stop *Stop) int {
	if stop == nil {
		return -1
	}
	if l.index != nil {
		if i, found := l.index[stop.Code]; found {
			return i
		}
		return -1
	}
	for i, s := range l.Stops {
		if s.Code == stop.Code {
			return i
		}
	}
	return -1
}

type SegmentKey struct {
	From int
	To   int
}

func (k SegmentKey) String() string {
	return fmt.Sprintf("%d-%d", k.From, k.To)
}

type Segment struct {
	From    *Stop
	To      *Stop
	Seconds int
	Mode    SegmentMode
}

func (s *Segment) Key() SegmentKey {
	return SegmentKey{From: s.From.Code, To: s.To.Code}
}

// A resolved portion of travel. Line is nil for walking.
type TripSegment struct {
	Line      *Line
	Stops     []*Stop
	Departure time.Duration
	Seconds   int
}

func (t TripSegment) Walking() bool {
	return t.Line == nil
}

func (t TripSegment) Arrival() time.Duration {
	return t.Departure + time.Duration(t.Seconds)*time.Second
}

func (t TripSegment) First() *Stop {
	return t.Stops[0]
}

func (t TripSegment) Last() *Stop {
	return t.Stops[len(t.Stops)-1]
}

type Itinerary []TripSegment

func (it Itinerary) Departure() time.Duration {
	return it[0].Departure
}

func (it Itinerary) Arrival() time.Duration {
	return it[len(it)-1].Arrival()
}

// Formats a time of day as HH:MM:SS.
func FormatTimeOfDay(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) - h*60
	s := int(d.Seconds()) - h*3600 - m*60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Network is an immutable snapshot of stops, lines and segments.
type Network struct {
	Stops    map[int]*Stop
	Lines    map[string]*Line
	Segments map[SegmentKey]*Segment

	lines     []*Line
	walksFrom map[int][]*Segment
}

// Assembles a network. Stops referenced by lines and segments are
// resolved by code against stops, so callers may pass placeholder
// Stop values holding only a Code.
//
// Schedule entries are stable sorted by (weekday, departure), which
// makes the first feasible entry also the earliest one.
func NewNetwork(stops []*Stop, lines []*Line, segments []*Segment) (*Network, error) {
	n := &Network{
		Stops:     map[int]*Stop{},
		Lines:     map[string]*Line{},
		Segments:  map[SegmentKey]*Segment{},
		walksFrom: map[int][]*Segment{},
	}

	for _, s := range stops {
		if _, found := n.Stops[s.Code]; found {
			return nil, fmt.Errorf("repeated stop code %d", s.Code)
		}
		n.Stops[s.Code] = &Stop{
			Code:    s.Code,
			Address: s.Address,
			Lat:     s.Lat,
			Lon:     s.Lon,
		}
	}

	for _, l := range lines {
		if l.Code == "" {
			return nil, fmt.Errorf("line has no code")
		}
		if _, found := n.Lines[l.Code]; found {
			return nil, fmt.Errorf("repeated line code '%s'", l.Code)
		}

		line := &Line{
			Code:     l.Code,
			Name:     l.Name,
			Stops:    make([]*Stop, 0, len(l.Stops)),
			Schedule: append([]ScheduleEntry{}, l.Schedule...),
			index:    map[int]int{},
		}
		for i, ref := range l.Stops {
			stop, found := n.Stops[ref.Code]
			if !found {
				return nil, fmt.Errorf("line '%s' references unknown stop %d", l.Code, ref.Code)
			}
			if _, seen := line.index[stop.Code]; seen {
				return nil, fmt.Errorf("line '%s' visits stop %d more than once", l.Code, stop.Code)
			}
			line.index[stop.Code] = i
			line.Stops = append(line.Stops, stop)
		}

		sort.SliceStable(line.Schedule, func(i, j int) bool {
			if line.Schedule[i].Weekday != line.Schedule[j].Weekday {
				return line.Schedule[i].Weekday < line.Schedule[j].Weekday
			}
			return line.Schedule[i].Departure < line.Schedule[j].Departure
		})

		n.Lines[line.Code] = line
		n.lines = append(n.lines, line)
	}

	sort.Slice(n.lines, func(i, j int) bool {
		return n.lines[i].Code < n.lines[j].Code
	})
	for _, line := range n.lines {
		for _, stop := range line.Stops {
			stop.Lines = append(stop.Lines, line)
		}
	}

	for _, seg := range segments {
		if seg.From == nil || seg.To == nil {
			return nil, fmt.Errorf("segment is missing a stop")
		}
		from, found := n.Stops[seg.From.Code]
		if !found {
			return nil, fmt.Errorf("segment references unknown stop %d", seg.From.Code)
		}
		to, found := n.Stops[seg.To.Code]
		if !found {
			return nil, fmt.Errorf("segment references unknown stop %d", seg.To.Code)
		}
		if seg.Mode != SegmentModeBus && seg.Mode != SegmentModeWalk {
			return nil, fmt.Errorf("segment %d-%d has invalid mode %d", from.Code, to.Code, seg.Mode)
		}
		if seg.Seconds < 0 {
			return nil, fmt.Errorf("segment %d-%d has negative duration", from.Code, to.Code)
		}

		segment := &Segment{From: from, To: to, Seconds: seg.Seconds, Mode: seg.Mode}
		key := segment.Key()
		if _, found := n.Segments[key]; found {
			return nil, fmt.Errorf("repeated segment %s", key)
		}
		n.Segments[key] = segment

		if segment.Mode == SegmentModeWalk {
			from.WalkTo = appendStop(from.WalkTo, to)
			to.WalkTo = appendStop(to.WalkTo, from)
		}
	}

	// Walks can be taken in either direction. The reverse of a
	// WALK segment is only synthesized when the network lacks an
	// explicit WALK segment for it.
	for key, segment := range n.Segments {
		if segment.Mode != SegmentModeWalk {
			continue
		}
		n.walksFrom[key.From] = append(n.walksFrom[key.From], segment)

		reverse := SegmentKey{From: key.To, To: key.From}
		if r, found := n.Segments[reverse]; found && r.Mode == SegmentModeWalk {
			continue
		}
		n.walksFrom[key.To] = append(n.walksFrom[key.To], &Segment{
			From:    segment.To,
			To:      segment.From,
			Seconds: segment.Seconds,
			Mode:    SegmentModeWalk,
		})
	}

	for _, walks := range n.walksFrom {
		sort.Slice(walks, func(i, j int) bool {
			return walks[i].To.Code < walks[j].To.Code
		})
	}

	return n, nil
}

func appendStop(stops []*Stop, stop *Stop) []*Stop {
	for _, s := range stops {
		if s.Code == stop.Code {
			return stops
		}
	}
	return append(stops, stop)
}

// Lines ordered by code.
func (n *Network) SortedLines() []*Line {
	return n.lines
}

// Walks starting at the given stop, ordered by destination stop
// code. Includes the reverse of WALK segments ending at the stop.
func (n *Network) WalksFrom(code int) []*Segment {
	return n.walksFrom[code]
}
