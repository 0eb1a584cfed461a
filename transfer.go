package transit

import (
	"tidbyt.dev/transit/model"
)

// Rides line A from the origin to a transfer stop, then line B from
// there to the destination.
type TransferStrategy struct{}

func (TransferStrategy) Tier() Tier {
	return TierTransfer
}

// Keeps the first feasible transfer stop for each (A, B) pair, and
// orders results by arrival.
func (TransferStrategy) Find(q *Query, results *[]model.Itinerary) bool {
	found := []model.Itinerary{}
	seen := map[linePair]bool{}

	for _, lineA := range q.Origin.Lines {
		iA := lineA.IndexOf(q.Origin)
		if iA < 0 {
			continue
		}

		for j := iA + 1; j < len(lineA.Stops); j++ {
			transfer := lineA.Stops[j]

			// First leg only depends on (A, j), resolve it
			// lazily once.
			var leg1 model.TripSegment
			resolved, feasible := false, false

			for _, lineB := range transfer.Lines {
				if lineB.Code == lineA.Code {
					continue
				}
				pair := linePair{lineA.Code, lineB.Code}
				if seen[pair] {
					continue
				}

				kB := lineB.IndexOf(transfer)
				dB := lineB.IndexOf(q.Destination)
				if kB < 0 || dB < 0 || kB >= dB {
					continue
				}

				if !resolved {
					leg1, feasible = q.earliestRun(lineA, iA, j, q.NotBefore)
					resolved = true
				}
				if !feasible {
					break
				}

				leg2, ok := q.earliestRun(lineB, kB, dB, leg1.Arrival())
				if !ok {
					continue
				}

				seen[pair] = true
				found = append(found, model.Itinerary{leg1, leg2})
			}
		}
	}

	sortByArrival(found)

	*results = append(*results, found...)
	return len(found) > 0
}
