package transit

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"tidbyt.dev/transit/model"
	"tidbyt.dev/transit/storage"
)

const (
	DefaultWalkSpeed = 1.2 // meters per second

	// Slightly under the true figure, so search boxes err large.
	metersPerDegree = 111_000.0
)

// Generates WALK segments between every ordered pair of distinct
// stops at most radius meters apart, timed at speed meters per
// second. Results are ordered by (from, to).
func WalkSegments(stops []*storage.Stop, radius float64, speed float64) []*storage.Segment {
	if radius <= 0 || len(stops) < 2 {
		return nil
	}
	if speed <= 0 {
		speed = DefaultWalkSpeed
	}

	var tr rtree.RTreeG[*storage.Stop]
	for _, stop := range stops {
		p := [2]float64{stop.Lon, stop.Lat}
		tr.Insert(p, p, stop)
	}

	segments := []*storage.Segment{}
	for _, from := range stops {
		// Bounding box around the stop, widened in longitude
		// away from the equator.
		dLat := radius / metersPerDegree
		cosLat := math.Cos(from.Lat * math.Pi / 180)
		dLon := 180.0
		if cosLat > 1e-9 {
			dLon = math.Min(180, radius/(metersPerDegree*cosLat))
		}

		lo := [2]float64{from.Lon - dLon, from.Lat - dLat}
		hi := [2]float64{from.Lon + dLon, from.Lat + dLat}

		tr.Search(lo, hi, func(_, _ [2]float64, to *storage.Stop) bool {
			if to.Code == from.Code {
				return true
			}
			meters := storage.HaversineDistance(from.Lat, from.Lon, to.Lat, to.Lon) * 1000
			if meters > radius {
				return true
			}
			segments = append(segments, &storage.Segment{
				From:    from.Code,
				To:      to.Code,
				Seconds: int(math.Ceil(meters / speed)),
				Mode:    model.SegmentModeWalk,
			})
			return true
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		if segments[i].From != segments[j].From {
			return segments[i].From < segments[j].From
		}
		return segments[i].To < segments[j].To
	})

	return segments
}
