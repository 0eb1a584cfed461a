package storage

import (
	"fmt"
	"sort"
)

// In memory implementation of Storage below

type memoryMetadataKey struct {
	URL  string
	Hash string
}

type MemoryStorage struct {
	Networks map[string]*MemoryStorageNetwork
	Metadata map[memoryMetadataKey]*NetworkMetadata
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Networks: map[string]*MemoryStorageNetwork{},
		Metadata: map[memoryMetadataKey]*NetworkMetadata{},
	}
}

func (s *MemoryStorage) ListNetworks(filter ListNetworksFilter) ([]*NetworkMetadata, error) {
	networks := []*NetworkMetadata{}
	for _, metadata := range s.Metadata {
		if filter.URL != "" && metadata.URL != filter.URL {
			continue
		}
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		networks = append(networks, metadata)
	}
	sort.Slice(networks, func(i, j int) bool {
		return networks[i].RetrievedAt.After(networks[j].RetrievedAt)
	})
	return networks, nil
}

func (s *MemoryStorage) WriteNetworkMetadata(metadata *NetworkMetadata) error {
	s.Metadata[memoryMetadataKey{metadata.URL, metadata.Hash}] = metadata
	return nil
}

func (s *MemoryStorage) DeleteNetworkMetadata(url string, hash string) error {
	key := memoryMetadataKey{url, hash}
	if _, found := s.Metadata[key]; !found {
		return fmt.Errorf("network not found")
	}
	delete(s.Metadata, key)
	return nil
}

func (s *MemoryStorage) GetReader(network string) (NetworkReader, error) {
	n, ok := s.Networks[network]
	if !ok {
		return nil, fmt.Errorf("network %s not found", network)
	}
	return n, nil
}

func (s *MemoryStorage) GetWriter(network string) (NetworkWriter, error) {
	n := &MemoryStorageNetwork{
		lines:     map[string]*Line{},
		stops:     map[int]*Stop{},
		lineStops: map[string][]*LineStop{},

		scheduleMark: -1,
	}

	s.Networks[network] = n

	return n, nil
}

type MemoryStorageNetwork struct {
	stops     map[int]*Stop
	lines     map[string]*Line
	lineStops map[string][]*LineStop
	schedules []*Schedule
	segments  []*Segment

	// Number of schedules written before the current batch, or -1
	// outside a batch.
	scheduleMark int
}

func (n *MemoryStorageNetwork) WriteStop(stop *Stop) error {
	n.stops[stop.Code] = stop
	return nil
}

func (n *MemoryStorageNetwork) WriteLine(line *Line) error {
	n.lines[line.Code] = line
	return nil
}

func (n *MemoryStorageNetwork) WriteLineStop(lineStop *LineStop) error {
	n.lineStops[lineStop.LineCode] = append(n.lineStops[lineStop.LineCode], lineStop)
	return nil
}

func (n *MemoryStorageNetwork) WriteSegment(segment *Segment) error {
	n.segments = append(n.segments, segment)
	return nil
}

func (n *MemoryStorageNetwork) BeginSchedules() error {
	n.scheduleMark = len(n.schedules)
	return nil
}

func (n *MemoryStorageNetwork) WriteSchedule(schedule *Schedule) error {
	n.schedules = append(n.schedules, schedule)
	return nil
}

func (n *MemoryStorageNetwork) EndSchedules() error {
	n.scheduleMark = -1
	return nil
}

func (n *MemoryStorageNetwork) AbortSchedules() error {
	if n.scheduleMark >= 0 {
		n.schedules = n.schedules[:n.scheduleMark]
		n.scheduleMark = -1
	}
	return nil
}

func (n *MemoryStorageNetwork) Close() error {
	return nil
}

func (n *MemoryStorageNetwork) Stops() ([]*Stop, error) {
	stops := make([]*Stop, 0, len(n.stops))
	for _, stop := range n.stops {
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].Code < stops[j].Code
	})
	return stops, nil
}

func (n *MemoryStorageNetwork) Lines() ([]*Line, error) {
	lines := make([]*Line, 0, len(n.lines))
	for _, line := range n.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Code < lines[j].Code
	})
	return lines, nil
}

func (n *MemoryStorageNetwork) LineStops() ([]*LineStop, error) {
	lineStops := []*LineStop{}
	for _, ls := range n.lineStops {
		lineStops = append(lineStops, ls...)
	}
	sort.SliceStable(lineStops, func(i, j int) bool {
		if lineStops[i].LineCode != lineStops[j].LineCode {
			return lineStops[i].LineCode < lineStops[j].LineCode
		}
		return lineStops[i].Sequence < lineStops[j].Sequence
	})
	return lineStops, nil
}

func (n *MemoryStorageNetwork) Schedules() ([]*Schedule, error) {
	return append([]*Schedule{}, n.schedules...), nil
}

func (n *MemoryStorageNetwork) Segments() ([]*Segment, error) {
	return append([]*Segment{}, n.segments...), nil
}

func (n *MemoryStorageNetwork) NearbyStops(lat float64, lng float64, limit int) ([]*Stop, error) {
	stops, err := n.Stops()
	if err != nil {
		return nil, err
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
