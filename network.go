package transit

import (
	"fmt"
	"log/slog"

	"tidbyt.dev/transit/metrics"
	"tidbyt.dev/transit/model"
	"tidbyt.dev/transit/storage"
)

type LoadOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// If positive, WALK segments are generated between stops at
	// most this many meters apart, unless the network already
	// holds a segment for the pair.
	WalkRadius float64

	// Walking speed in meters per second for generated segments.
	WalkSpeed float64
}

// Assembles a network snapshot from stored records.
//
// Records referencing unknown stops or lines are skipped with a
// warning rather than failing the load.
func LoadNetwork(reader storage.NetworkReader, opts LoadOptions) (*model.Network, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	network, err := loadNetwork(reader, opts, logger)
	if err != nil {
		opts.Metrics.ObserveNetworkLoad(err, 0, 0, 0)
		return nil, err
	}

	opts.Metrics.ObserveNetworkLoad(nil, len(network.Stops), len(network.Lines), len(network.Segments))
	logger.Info(
		"network loaded",
		slog.Int("stops", len(network.Stops)),
		slog.Int("lines", len(network.Lines)),
		slog.Int("segments", len(network.Segments)),
	)

	return network, nil
}

func loadNetwork(reader storage.NetworkReader, opts LoadOptions, logger *slog.Logger) (*model.Network, error) {
	storedStops, err := reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("reading stops: %w", err)
	}

	stops := make([]*model.Stop, 0, len(storedStops))
	knownStop := map[int]bool{}
	for _, s := range storedStops {
		if knownStop[s.Code] {
			logger.Warn("repeated stop, skipping", slog.Int("stop", s.Code))
			continue
		}
		knownStop[s.Code] = true
		stops = append(stops, &model.Stop{
			Code:    s.Code,
			Address: s.Address,
			Lat:     s.Lat,
			Lon:     s.Lon,
		})
	}

	storedLines, err := reader.Lines()
	if err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}

	lines := make([]*model.Line, 0, len(storedLines))
	lineByCode := map[string]*model.Line{}
	for _, l := range storedLines {
		if _, found := lineByCode[l.Code]; found {
			logger.Warn("repeated line, skipping", slog.String("line", l.Code))
			continue
		}
		line := &model.Line{Code: l.Code, Name: l.Name}
		lineByCode[l.Code] = line
		lines = append(lines, line)
	}

	lineStops, err := reader.LineStops()
	if err != nil {
		return nil, fmt.Errorf("reading line stops: %w", err)
	}

	visited := map[string]map[int]bool{}
	for _, ls := range lineStops {
		line, found := lineByCode[ls.LineCode]
		if !found {
			logger.Warn("line stop references unknown line, skipping", slog.String("line", ls.LineCode))
			continue
		}
		if !knownStop[ls.StopCode] {
			logger.Warn(
				"line references unknown stop, skipping",
				slog.String("line", ls.LineCode),
				slog.Int("stop", ls.StopCode),
			)
			continue
		}
		if visited[line.Code] == nil {
			visited[line.Code] = map[int]bool{}
		}
		if visited[line.Code][ls.StopCode] {
			logger.Warn(
				"line visits stop more than once, skipping",
				slog.String("line", ls.LineCode),
				slog.Int("stop", ls.StopCode),
			)
			continue
		}
		visited[line.Code][ls.StopCode] = true
		line.Stops = append(line.Stops, &model.Stop{Code: ls.StopCode})
	}

	schedules, err := reader.Schedules()
	if err != nil {
		return nil, fmt.Errorf("reading schedules: %w", err)
	}

	for _, s := range schedules {
		line, found := lineByCode[s.LineCode]
		if !found {
			logger.Warn("schedule references unknown line, skipping", slog.String("line", s.LineCode))
			continue
		}
		line.Schedule = append(line.Schedule, model.ScheduleEntry{
			Weekday:   int(s.Weekday),
			Departure: s.DepartureTime(),
		})
	}

	storedSegments, err := reader.Segments()
	if err != nil {
		return nil, fmt.Errorf("reading segments: %w", err)
	}

	segments := make([]*model.Segment, 0, len(storedSegments))
	haveSegment := map[model.SegmentKey]bool{}
	addSegment := func(s *storage.Segment) {
		segments = append(segments, &model.Segment{
			From:    &model.Stop{Code: s.From},
			To:      &model.Stop{Code: s.To},
			Seconds: s.Seconds,
			Mode:    s.Mode,
		})
		haveSegment[model.SegmentKey{From: s.From, To: s.To}] = true
	}

	for _, s := range storedSegments {
		if !knownStop[s.From] || !knownStop[s.To] {
			logger.Warn(
				"segment references unknown stop, skipping",
				slog.Int("from", s.From),
				slog.Int("to", s.To),
			)
			continue
		}
		if haveSegment[model.SegmentKey{From: s.From, To: s.To}] {
			logger.Warn("repeated segment, skipping", slog.Int("from", s.From), slog.Int("to", s.To))
			continue
		}
		addSegment(s)
	}

	if opts.WalkRadius > 0 {
		generated := 0
		for _, s := range WalkSegments(storedStops, opts.WalkRadius, opts.WalkSpeed) {
			if haveSegment[model.SegmentKey{From: s.From, To: s.To}] {
				continue
			}
			addSegment(s)
			generated++
		}
		logger.Info(
			"generated walk segments",
			slog.Int("segments", generated),
			slog.Float64("radius_meters", opts.WalkRadius),
		)
	}

	network, err := model.NewNetwork(stops, lines, segments)
	if err != nil {
		return nil, fmt.Errorf("assembling network: %w", err)
	}

	return network, nil
}
