package transit

import (
	"tidbyt.dev/transit/model"
)

// Rides line A from the origin, walks to a nearby stop, then rides
// line C to the destination.
type WalkStrategy struct{}

func (WalkStrategy) Tier() Tier {
	return TierWalk
}

// Keeps the first feasible drop-off and walk for each (A, C) pair,
// and orders results by arrival.
func (WalkStrategy) Find(q *Query, results *[]model.Itinerary) bool {
	found := []model.Itinerary{}
	seen := map[linePair]bool{}

	for _, lineA := range q.Origin.Lines {
		iA := lineA.IndexOf(q.Origin)
		if iA < 0 {
			continue
		}

	dropOffs:
		for j := iA + 1; j < len(lineA.Stops); j++ {
			dropOff := lineA.Stops[j]
			walks := q.Network.WalksFrom(dropOff.Code)
			if len(walks) == 0 {
				continue
			}

			var leg1 model.TripSegment
			resolved, feasible := false, false

			for _, walk := range walks {
				walkEnd := walk.To

				for _, lineC := range walkEnd.Lines {
					pair := linePair{lineA.Code, lineC.Code}
					if seen[pair] {
						continue
					}

					kC := lineC.IndexOf(walkEnd)
					dC := lineC.IndexOf(q.Destination)
					if kC < 0 || dC < 0 || kC >= dC {
						continue
					}

					if !resolved {
						leg1, feasible = q.earliestRun(lineA, iA, j, q.NotBefore)
						resolved = true
					}
					if !feasible {
						continue dropOffs
					}

					leg2 := model.TripSegment{
						Stops:     []*model.Stop{dropOff, walkEnd},
						Departure: leg1.Arrival(),
						Seconds:   walk.Seconds,
					}

					leg3, ok := q.earliestRun(lineC, kC, dC, leg2.Arrival())
					if !ok {
						continue
					}

					seen[pair] = true
					found = append(found, model.Itinerary{leg1, leg2, leg3})
				}
			}
		}
	}

	sortByArrival(found)

	*results = append(*results, found...)
	return len(found) > 0
}
