package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	metadataDB *sql.DB
	networks   map[string]*sql.DB
}

type SQLiteNetworkWriter struct {
	db                  *sql.DB
	scheduleInsertQuery *sql.Stmt
	scheduleInsertTx    *sql.Tx
}

type SQLiteNetworkReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/transit.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS network (
    hash TEXT NOT NULL,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    stops INTEGER NOT NULL,
    lines INTEGER NOT NULL,
    segments INTEGER NOT NULL,
PRIMARY KEY (hash, url)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating network table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		metadataDB: db,
		networks:   map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListNetworks(filter ListNetworksFilter) ([]*NetworkMetadata, error) {
	query := `
SELECT
    hash,
    url,
    retrieved_at,
    stops,
    lines,
    segments
FROM network`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		conditions = append(conditions, "url = ?")
		params = append(params, filter.URL)
	}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.metadataDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	defer rows.Close()

	networks := []*NetworkMetadata{}
	for rows.Next() {
		var md NetworkMetadata
		err := rows.Scan(
			&md.Hash,
			&md.URL,
			&md.RetrievedAt,
			&md.Stops,
			&md.Lines,
			&md.Segments,
		)
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

func (s *SQLiteStorage) WriteNetworkMetadata(md *NetworkMetadata) error {
	_, err := s.metadataDB.Exec(`
INSERT INTO network (hash, url, retrieved_at, stops, lines, segments)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (hash, url) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    stops = excluded.stops,
    lines = excluded.lines,
    segments = excluded.segments
`,
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

func (s *SQLiteStorage) DeleteNetworkMetadata(url string, hash string) error {
	_, err := s.metadataDB.Exec(`
DELETE FROM network
WHERE url = ? AND hash = ?
`, url, hash)
	return err
}

func (s *SQLiteStorage) GetReader(network string) (NetworkReader, error) {
	db, found := s.networks[network]
	if found {
		return &SQLiteNetworkReader{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("network %s does not exist", network)
	}

	sourceName := s.Directory + "/" + network + ".db"
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("network %s does not exist at %s", network, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s.networks[network] = db

	return &SQLiteNetworkReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(network string) (NetworkWriter, error) {
	if db, found := s.networks[network]; found {
		db.Close()
		delete(s.networks, network)
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.Directory + "/" + network + ".db"
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a fresh database.
	if !s.OnDisk {
		db.SetMaxOpenConns(1)
	}

	for _, table := range []struct {
		name  string
		query string
	}{
		{"stop", `
CREATE TABLE stop (
    code INTEGER PRIMARY KEY,
    address TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL
);`},
		{"line", `
CREATE TABLE line (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL
);`},
		{"line_stop", `
CREATE TABLE line_stop (
    line TEXT NOT NULL,
    stop INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
PRIMARY KEY (line, sequence)
);`},
		{"schedule", `
CREATE TABLE schedule (
    line TEXT NOT NULL,
    weekday INTEGER NOT NULL,
    departure TEXT NOT NULL
);
CREATE INDEX schedule_line ON schedule (line);
`},
		{"segment", `
CREATE TABLE segment (
    start INTEGER NOT NULL,
    finish INTEGER NOT NULL,
    seconds INTEGER NOT NULL,
    mode INTEGER NOT NULL,
PRIMARY KEY (start, finish)
);`},
	} {
		_, err = db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %s", table.name, err)
		}
	}

	s.networks[network] = db

	return &SQLiteNetworkWriter{db: db}, nil
}

func (w *SQLiteNetworkWriter) WriteStop(stop *Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stop (code, address, latitude, longitude)
VALUES (?, ?, ?, ?)`,
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

func (w *SQLiteNetworkWriter) WriteLine(line *Line) error {
	_, err := w.db.Exec(`
INSERT INTO line (code, name)
VALUES (?, ?)`,
		line.Code,
		line.Name,
	)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

func (w *SQLiteNetworkWriter) WriteLineStop(ls *LineStop) error {
	_, err := w.db.Exec(`
INSERT INTO line_stop (line, stop, sequence)
VALUES (?, ?, ?)`,
		ls.LineCode,
		ls.StopCode,
		ls.Sequence,
	)
	if err != nil {
		return fmt.Errorf("inserting line_stop: %w", err)
	}
	return nil
}

func (w *SQLiteNetworkWriter) WriteSegment(seg *Segment) error {
	_, err := w.db.Exec(`
INSERT INTO segment (start, finish, seconds, mode)
VALUES (?, ?, ?, ?)`,
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

func (w *SQLiteNetworkWriter) BeginSchedules() error {
	// transaction with prepared statement.
	var err error
	w.scheduleInsertTx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schedule insert transaction: %w", err)
	}

	w.scheduleInsertQuery, err = w.scheduleInsertTx.Prepare(`
INSERT INTO schedule (line, weekday, departure)
VALUES (?, ?, ?)`)
	if err != nil {
		w.scheduleInsertTx.Rollback()
		w.scheduleInsertTx = nil
		return fmt.Errorf("preparing schedule insert: %w", err)
	}

	return nil
}

func (w *SQLiteNetworkWriter) WriteSchedule(schedule *Schedule) error {
	if w.scheduleInsertQuery == nil {
		return fmt.Errorf("WriteSchedule called outside BeginSchedules/EndSchedules")
	}

	_, err := w.scheduleInsertQuery.Exec(
		schedule.LineCode,
		schedule.Weekday,
		schedule.Departure,
	)
	if err != nil {
		w.scheduleInsertQuery.Close()
		w.scheduleInsertTx.Rollback()
		w.scheduleInsertTx = nil
		w.scheduleInsertQuery = nil
		return fmt.Errorf("inserting schedule: %w", err)
	}

	return nil
}

func (w *SQLiteNetworkWriter) EndSchedules() error {
	if w.scheduleInsertTx == nil {
		return fmt.Errorf("EndSchedules called without BeginSchedules")
	}

	// commit transaction and clean up
	w.scheduleInsertQuery.Close()
	err := w.scheduleInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing schedule insert transaction: %w", err)
	}
	w.scheduleInsertTx = nil
	w.scheduleInsertQuery = nil

	return nil
}

func (w *SQLiteNetworkWriter) AbortSchedules() error {
	if w.scheduleInsertTx == nil {
		return nil
	}

	w.scheduleInsertQuery.Close()
	err := w.scheduleInsertTx.Rollback()
	w.scheduleInsertTx = nil
	w.scheduleInsertQuery = nil
	if err != nil {
		return fmt.Errorf("rolling back schedule insert transaction: %w", err)
	}

	return nil
}

func (w *SQLiteNetworkWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE;`)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("analyzing database: %s", err)
	}

	return nil
}

func (r *SQLiteNetworkReader) Stops() ([]*Stop, error) {
	rows, err := r.db.Query(`
SELECT code, address, latitude, longitude
FROM stop
ORDER BY code`)
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

func (r *SQLiteNetworkReader) Lines() ([]*Line, error) {
	rows, err := r.db.Query(`
SELECT code, name
FROM line
ORDER BY code`)
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

func (r *SQLiteNetworkReader) LineStops() ([]*LineStop, error) {
	rows, err := r.db.Query(`
SELECT line, stop, sequence
FROM line_stop
ORDER BY line, sequence`)
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

func (r *SQLiteNetworkReader) Schedules() ([]*Schedule, error) {
	rows, err := r.db.Query(`
SELECT line, weekday, departure
FROM schedule
ORDER BY rowid`)
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

func (r *SQLiteNetworkReader) Segments() ([]*Segment, error) {
	rows, err := r.db.Query(`
SELECT start, finish, seconds, mode
FROM segment
ORDER BY rowid`)
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

func (r *SQLiteNetworkReader) NearbyStops(lat float64, lng float64, limit int) ([]*Stop, error) {
	stops, err := r.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting stops: %w", err)
	}
	return sortByDistance(stops, lat, lng, limit), nil
}
