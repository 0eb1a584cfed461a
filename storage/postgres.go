package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	PSQLScheduleBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLNetworkWriter struct {
	id          string
	db          *sql.DB
	scheduleBuf []Schedule
}

type PSQLNetworkReader struct {
	id string
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS network;
DROP TABLE IF EXISTS stop;
DROP TABLE IF EXISTS line;
DROP TABLE IF EXISTS line_stop;
DROP TABLE IF EXISTS schedule;
DROP TABLE IF EXISTS segment;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS network (
    hash TEXT NOT NULL,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    stops INTEGER NOT NULL,
    lines INTEGER NOT NULL,
    segments INTEGER NOT NULL,
    PRIMARY KEY (hash, url)
);

CREATE TABLE IF NOT EXISTS stop (
    hash TEXT NOT NULL,
    code INTEGER NOT NULL,
    address TEXT NOT NULL,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (hash, code)
);

CREATE TABLE IF NOT EXISTS line (
    hash TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (hash, code)
);

CREATE TABLE IF NOT EXISTS line_stop (
    hash TEXT NOT NULL,
    line TEXT NOT NULL,
    stop INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
    PRIMARY KEY (hash, line, sequence)
);

CREATE TABLE IF NOT EXISTS schedule (
    hash TEXT NOT NULL,
    id SERIAL,
    line TEXT NOT NULL,
    weekday SMALLINT NOT NULL,
    departure TEXT NOT NULL,
    PRIMARY KEY (hash, id)
);
CREATE INDEX IF NOT EXISTS schedule_line ON schedule (hash, line);

CREATE TABLE IF NOT EXISTS segment (
    hash TEXT NOT NULL,
    id SERIAL,
    start INTEGER NOT NULL,
    finish INTEGER NOT NULL,
    seconds INTEGER NOT NULL,
    mode SMALLINT NOT NULL,
    PRIMARY KEY (hash, id),
    UNIQUE (hash, start, finish)
);`)
	if err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListNetworks(filter ListNetworksFilter) ([]*NetworkMetadata, error) {
	query := `
SELECT hash, url, retrieved_at, stops, lines, segments
FROM network`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		params = append(params, filter.URL)
		conditions = append(conditions, fmt.Sprintf("url = $%d", len(params)))
	}
	if filter.Hash != "" {
		params = append(params, filter.Hash)
		conditions = append(conditions, fmt.Sprintf("hash = $%d", len(params)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	defer rows.Close()

	networks := []*NetworkMetadata{}
	for rows.Next() {
		var md NetworkMetadata
		err := rows.Scan(&md.Hash, &md.URL, &md.RetrievedAt, &md.Stops, &md.Lines, &md.Segments)
		if err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		networks = append(networks, &md)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return networks, nil
}

func (s *PSQLStorage) WriteNetworkMetadata(md *NetworkMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO network (hash, url, retrieved_at, stops, lines, segments)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (hash, url) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    stops = excluded.stops,
    lines = excluded.lines,
    segments = excluded.segments`,
		md.Hash,
		md.URL,
		md.RetrievedAt,
		md.Stops,
		md.Lines,
		md.Segments,
	)
	if err != nil {
		return fmt.Errorf("writing network metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) DeleteNetworkMetadata(url string, hash string) error {
	_, err := s.db.Exec(`DELETE FROM network WHERE url = $1 AND hash = $2`, url, hash)
	if err != nil {
		return fmt.Errorf("deleting network metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) GetReader(hash string) (NetworkReader, error) {
	return &PSQLNetworkReader{
		id: hash,
		db: s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (NetworkWriter, error) {
	// In case network already exists, delete all records
	for _, table := range []string{"stop", "line", "line_stop", "schedule", "segment"} {
		_, err := s.db.Exec(`DELETE FROM `+table+` WHERE hash = $1`, hash)
		if err != nil {
			return nil, fmt.Errorf("deleting %s records: %w", table, err)
		}
	}

	return &PSQLNetworkWriter{
		id: hash,
		db: s.db,
	}, nil
}

func (w *PSQLNetworkWriter) WriteStop(stop *Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stop (hash, code, address, latitude, longitude)
VALUES ($1, $2, $3, $4, $5)`,
		w.id,
		stop.Code,
		stop.Address,
		stop.Lat,
		stop.Lon,
	)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *PSQLNetworkWriter) WriteLine(line *Line) error {
	_, err := w.db.Exec(`
INSERT INTO line (hash, code, name)
VALUES ($1, $2, $3)`,
		w.id,
		line.Code,
		line.Name,
	)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

func (w *PSQLNetworkWriter) WriteLineStop(ls *LineStop) error {
	_, err := w.db.Exec(`
INSERT INTO line_stop (hash, line, stop, sequence)
VALUES ($1, $2, $3, $4)`,
		w.id,
		ls.LineCode,
		ls.StopCode,
		ls.Sequence,
	)
	if err != nil {
		return fmt.Errorf("inserting line_stop: %w", err)
	}
	return nil
}

func (w *PSQLNetworkWriter) WriteSegment(seg *Segment) error {
	_, err := w.db.Exec(`
INSERT INTO segment (hash, start, finish, seconds, mode)
VALUES ($1, $2, $3, $4, $5)`,
		w.id,
		seg.From,
		seg.To,
		seg.Seconds,
		seg.Mode,
	)
	if err != nil {
		return fmt.Errorf("inserting segment: %w", err)
	}
	return nil
}

func (w *PSQLNetworkWriter) BeginSchedules() error {
	return nil
}

func (w *PSQLNetworkWriter) WriteSchedule(schedule *Schedule) error {
	w.scheduleBuf = append(w.scheduleBuf, *schedule)

	if len(w.scheduleBuf) >= PSQLScheduleBatchSize {
		err := w.flushSchedules()
		if err != nil {
			return fmt.Errorf("flushing schedules: %w", err)
		}
	}

	return nil
}

func (w *PSQLNetworkWriter) EndSchedules() error {
	if len(w.scheduleBuf) > 0 {
		err := w.flushSchedules()
		if err != nil {
			return fmt.Errorf("flushing schedules: %w", err)
		}
	}
	return nil
}

// Batches already flushed stay written until the network is
// overwritten.
func (w *PSQLNetworkWriter) AbortSchedules() error {
	w.scheduleBuf = nil
	return nil
}

func (w *PSQLNetworkWriter) flushSchedules() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("schedule", "hash", "line", "weekday", "departure"))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, schedule := range w.scheduleBuf {
		_, err = stmt.Exec(
			w.id,
			schedule.LineCode,
			schedule.Weekday,
			schedule.Departure,
		)
		if err != nil {
			return fmt.Errorf("COPY schedule: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.scheduleBuf = nil

	return nil
}

func (w *PSQLNetworkWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE`)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}

func (r *PSQLNetworkReader) Stops() ([]*Stop, error) {
	rows, err := r.db.Query(`
SELECT code, address, latitude, longitude
FROM stop
WHERE hash = $1
ORDER BY code`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*Stop{}
	for rows.Next() {
		s := &Stop{}
		err := rows.Scan(&s.Code, &s.Address, &s.Lat, &s.Lon)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return stops, nil
}

func (r *PSQLNetworkReader) Lines() ([]*Line, error) {
	rows, err := r.db.Query(`
SELECT code, name
FROM line
WHERE hash = $1
ORDER BY code`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	lines := []*Line{}
	for rows.Next() {
		l := &Line{}
		err := rows.Scan(&l.Code, &l.Name)
		if err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return lines, nil
}

func (r *PSQLNetworkReader) LineStops() ([]*LineStop, error) {
	rows, err := r.db.Query(`
SELECT line, stop, sequence
FROM line_stop
WHERE hash = $1
ORDER BY line, sequence`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying line stops: %w", err)
	}
	defer rows.Close()

	lineStops := []*LineStop{}
	for rows.Next() {
		ls := &LineStop{}
		err := rows.Scan(&ls.LineCode, &ls.StopCode, &ls.Sequence)
		if err != nil {
			return nil, fmt.Errorf("scanning line stop: %w", err)
		}
		lineStops = append(lineStops, ls)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return lineStops, nil
}

func (r *PSQLNetworkReader) Schedules() ([]*Schedule, error) {
	rows, err := r.db.Query(`
SELECT line, weekday, departure
FROM schedule
WHERE hash = $1
ORDER BY id`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	schedules := []*Schedule{}
	for rows.Next() {
		s := &Schedule{}
		err := rows.Scan(&s.LineCode, &s.Weekday, &s.Departure)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return schedules, nil
}

func (r *PSQLNetworkReader) Segments() ([]*Segment, error) {
	rows, err := r.db.Query(`
SELECT start, finish, seconds, mode
FROM segment
WHERE hash = $1
ORDER BY id`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	segments := []*Segment{}
	for rows.Next() {
		s := &Segment{}
		err := rows.Scan(&s.From, &s.To, &s.Seconds, &s.Mode)
		if err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		segments = append(segments, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return segments, nil
}

func (r *PSQLNetworkReader) NearbyStops(lat float64, lng float64, limit int) ([]*Stop, error) {
	// TODO: Look into using postgis for this.
	stops, err := r.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting all stops: %w", err)
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
