package storage

import (
	"strconv"
	"time"

	"tidbyt.dev/transit/model"
)

type Storage interface {
	// Retrieves all network metadata records matching the given
	// filter, most recently retrieved first.
	ListNetworks(filter ListNetworksFilter) ([]*NetworkMetadata, error)

	// Writes a NetworkMetadata record. If a record with the same
	// URL and hash exists, it is updated.
	WriteNetworkMetadata(metadata *NetworkMetadata) error

	DeleteNetworkMetadata(url string, hash string) error

	// Gets a reader for the network with the given hash.
	GetReader(network string) (NetworkReader, error)

	// Gets a writer for the network with the given hash. Any
	// previously written records for the hash are discarded.
	GetWriter(network string) (NetworkWriter, error)
}

type ListNetworksFilter struct {
	// If set, only include networks with the given URL.
	URL string

	// If set, only include networks with the given hash.
	Hash string
}

// Metadata for a parsed network archive. The records themselves are
// accessed via NetworkReader.
type NetworkMetadata struct {
	URL         string
	Hash        string
	RetrievedAt time.Time
	Stops       int
	Lines       int
	Segments    int
}

type Stop struct {
	Code    int
	Address string
	Lat     float64
	Lon     float64
}

type Line struct {
	Code string
	Name string
}

// Position of a stop in a line's sequence.
type LineStop struct {
	LineCode string
	StopCode int
	Sequence int
}

type Schedule struct {
	LineCode string
	Weekday  int8

	// Departure from the line's first stop, as "HHMMSS".
	Departure string
}

func (s *Schedule) DepartureTime() time.Duration {
	h, _ := strconv.Atoi(s.Departure[0:2])
	m, _ := strconv.Atoi(s.Departure[2:4])
	sec, _ := strconv.Atoi(s.Departure[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}

type Segment struct {
	From    int
	To      int
	Seconds int
	Mode    model.SegmentMode
}

// Writes records for a single network.
//
// Schedules tend to dominate the size of a network, so
// BeginSchedules() and EndSchedules() are called before and after
// all calls to WriteSchedule(), allowing batching. AbortSchedules()
// replaces EndSchedules() when the batch should be discarded.
type NetworkWriter interface {
	WriteStop(stop *Stop) error
	WriteLine(line *Line) error
	WriteLineStop(lineStop *LineStop) error
	WriteSegment(segment *Segment) error
	BeginSchedules() error
	WriteSchedule(schedule *Schedule) error
	EndSchedules() error
	AbortSchedules() error
	Close() error
}

type NetworkReader interface {
	Stops() ([]*Stop, error)
	Lines() ([]*Line, error)

	// All line stops, ordered by line code and sequence.
	LineStops() ([]*LineStop, error)

	Schedules() ([]*Schedule, error)
	Segments() ([]*Segment, error)

	// List of stops near given lat/lng, ordered by distance. At
	// most limit results (pass 0 for no limit.)
	NearbyStops(lat float64, lng float64, limit int) ([]*Stop, error)
}
