package transit

import (
	"sort"
	"time"

	"tidbyt.dev/transit/model"
)

type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierTransfer
	TierWalk
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierTransfer:
		return "transfer"
	case TierWalk:
		return "walk"
	}
	return "none"
}

// A single search request against a network.
type Query struct {
	Network     *model.Network
	Origin      *model.Stop
	Destination *model.Stop
	Weekday     int
	NotBefore   time.Duration

	gaps    []model.SegmentKey
	seenGap map[model.SegmentKey]bool
}

func NewQuery(
	network *model.Network,
	origin *model.Stop,
	destination *model.Stop,
	weekday int,
	notBefore time.Duration,
) *Query {
	return &Query{
		Network:     network,
		Origin:      origin,
		Destination: destination,
		Weekday:     weekday,
		NotBefore:   notBefore,
		seenGap:     map[model.SegmentKey]bool{},
	}
}

// Resolves the earliest run of line between two stop indexes,
// recording any gaps in the network along the way.
func (q *Query) earliestRun(line *model.Line, start int, end int, notBefore time.Duration) (model.TripSegment, bool) {
	trip, gaps, ok := EarliestRun(line, q.Weekday, start, end, notBefore, q.Network.Segments)
	for _, gap := range gaps {
		if q.seenGap == nil {
			q.seenGap = map[model.SegmentKey]bool{}
		}
		if !q.seenGap[gap] {
			q.seenGap[gap] = true
			q.gaps = append(q.gaps, gap)
		}
	}
	return trip, ok
}

// Consecutive line stops without a BUS segment met while resolving
// runs, in the order they were first seen.
func (q *Query) Gaps() []model.SegmentKey {
	return q.gaps
}

// Strategy is one tier of the search. Find appends the itineraries
// it finds to results and reports whether it added any.
type Strategy interface {
	Tier() Tier
	Find(q *Query, results *[]model.Itinerary) bool
}

// Direct, then single transfer, then walking transfer.
func DefaultStrategies() []Strategy {
	return []Strategy{
		DirectStrategy{},
		TransferStrategy{},
		WalkStrategy{},
	}
}

// Key identifying the lines ridden by a multi-leg itinerary.
type linePair struct {
	first string
	last  string
}

func sortByArrival(itineraries []model.Itinerary) {
	sort.SliceStable(itineraries, func(i, j int) bool {
		return itineraries[i].Arrival() < itineraries[j].Arrival()
	})
}
