package transit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tidbyt.dev/transit/metrics"
	"tidbyt.dev/transit/model"
)

var ErrUnknownStop = errors.New("unknown stop")

// Planner searches a network for itineraries. It holds no mutable
// state and is safe for concurrent use as long as the network isn't
// modified.
type Planner struct {
	Network    *model.Network
	Strategies []Strategy
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

func NewPlanner(network *model.Network) *Planner {
	return &Planner{
		Network:    network,
		Strategies: DefaultStrategies(),
		Logger:     slog.Default(),
	}
}

// Lists itineraries from origin to destination leaving no earlier
// than notBefore (time since midnight) on weekday (1..7).
//
// Strategies are tried in order, and the first one finding anything
// provides the result. No itineraries is not an error. Fails only
// with ErrUnknownStop when origin or destination are not in the
// network.
func (p *Planner) Search(
	origin int,
	destination int,
	weekday int,
	notBefore time.Duration,
) ([]model.Itinerary, error) {
	start := time.Now()

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	originStop, found := p.Network.Stops[origin]
	if !found {
		p.Metrics.ObserveUnknownStop()
		return nil, fmt.Errorf("origin %d: %w", origin, ErrUnknownStop)
	}
	destinationStop, found := p.Network.Stops[destination]
	if !found {
		p.Metrics.ObserveUnknownStop()
		return nil, fmt.Errorf("destination %d: %w", destination, ErrUnknownStop)
	}

	// Lines running out and back would otherwise produce loops.
	if originStop == destinationStop {
		p.Metrics.ObserveSearch(TierNone.String(), 0, 0, time.Since(start))
		logger.Debug("origin is destination", slog.Int("stop", origin))
		return []model.Itinerary{}, nil
	}

	q := NewQuery(p.Network, originStop, destinationStop, weekday, notBefore)

	results := []model.Itinerary{}
	tier := TierNone
	for _, strategy := range p.Strategies {
		found := strategy.Find(q, &results)
		logger.Debug(
			"strategy done",
			slog.String("tier", strategy.Tier().String()),
			slog.Bool("found", found),
			slog.Int("itineraries", len(results)),
		)
		if found {
			tier = strategy.Tier()
			break
		}
	}

	for _, gap := range q.Gaps() {
		logger.Warn(
			"no bus segment between consecutive line stops, counting 0s",
			slog.String("segment", gap.String()),
		)
	}

	took := time.Since(start)
	p.Metrics.ObserveSearch(tier.String(), len(results), len(q.Gaps()), took)

	logger.Debug(
		"search done",
		slog.Int("origin", origin),
		slog.Int("destination", destination),
		slog.Int("weekday", weekday),
		slog.String("not_before", model.FormatTimeOfDay(notBefore)),
		slog.String("tier", tier.String()),
		slog.Int("itineraries", len(results)),
		slog.Duration("took", took),
	)

	return results, nil
}
