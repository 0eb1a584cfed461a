package transit

import (
	"sort"

	"tidbyt.dev/transit/model"
)

// Rides a single line from origin to destination.
type DirectStrategy struct{}

func (DirectStrategy) Tier() Tier {
	return TierDirect
}

// At most one itinerary per line, ordered by line code.
func (DirectStrategy) Find(q *Query, results *[]model.Itinerary) bool {
	found := []model.Itinerary{}

	for _, line := range q.Origin.Lines {
		i := line.IndexOf(q.Origin)
		d := line.IndexOf(q.Destination)
		if i < 0 || d < 0 || i >= d {
			continue
		}

		trip, ok := q.earliestRun(line, i, d, q.NotBefore)
		if !ok {
			continue
		}

		found = append(found, model.Itinerary{trip})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i][0].Line.Code < found[j][0].Line.Code
	})

	*results = append(*results, found...)
	return len(found) > 0
}
