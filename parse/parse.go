package parse

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"tidbyt.dev/transit/storage"
)

const (
	StopFile     = "stop.csv"
	LineFile     = "line.csv"
	LineStopFile = "line_stop.csv"
	ScheduleFile = "schedule.csv"
	SegmentFile  = "segment.csv"
)

var networkFiles = []string{StopFile, LineFile, LineStopFile, ScheduleFile, SegmentFile}

// Network files are semicolon separated. The BOM reader strips
// unicode BOMs if present, and lazy quotes survive sloppy exports.
func newCSVReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(bom.NewReader(in))
	r.Comma = ';'
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

// Parses a zip archive of network files into writer. Returns a
// partial metadata record holding record counts.
func ParseNetwork(writer storage.NetworkWriter, buf []byte) (*storage.NetworkMetadata, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	file := map[string]io.Reader{}
	for _, f := range r.File {
		// Some archives wrap everything in a directory.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if !knownFile(fName) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()

		file[fName] = rc
	}

	return parseFiles(writer, file)
}

// Parses network files found in a directory.
func ParseDirectory(writer storage.NetworkWriter, dir string) (*storage.NetworkMetadata, error) {
	file := map[string]io.Reader{}
	for _, name := range networkFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer f.Close()
		file[name] = f
	}

	return parseFiles(writer, file)
}

// SHA256 over the network files found in dir, names included, so
// that a directory hashes the same until one of its files changes.
func HashDirectory(dir string) (string, error) {
	h := sha256.New()
	for _, name := range networkFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", name, err)
		}

		fmt.Fprintf(h, "%s\n", name)
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func knownFile(name string) bool {
	switch name {
	case StopFile, LineFile, LineStopFile, ScheduleFile, SegmentFile:
		return true
	}
	return false
}

func parseFiles(writer storage.NetworkWriter, file map[string]io.Reader) (*storage.NetworkMetadata, error) {
	// segment.csv is optional. Without it every hop takes 0 seconds
	// and no walking transfers exist.
	for _, required := range []string{StopFile, LineFile, LineStopFile, ScheduleFile} {
		if file[required] == nil {
			return nil, fmt.Errorf("missing %s", required)
		}
	}

	stops, err := ParseStops(writer, file[StopFile])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", StopFile, err)
	}

	lines, err := ParseLines(writer, file[LineFile])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", LineFile, err)
	}

	err = ParseLineStops(writer, file[LineStopFile], lines, stops)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", LineStopFile, err)
	}

	err = writer.BeginSchedules()
	if err != nil {
		return nil, fmt.Errorf("beginning schedules: %w", err)
	}
	err = ParseSchedules(writer, file[ScheduleFile], lines)
	if err != nil {
		if abortErr := writer.AbortSchedules(); abortErr != nil {
			return nil, fmt.Errorf("parsing %s: %w (abort: %s)", ScheduleFile, err, abortErr)
		}
		return nil, fmt.Errorf("parsing %s: %w", ScheduleFile, err)
	}
	err = writer.EndSchedules()
	if err != nil {
		return nil, fmt.Errorf("ending schedules: %w", err)
	}

	segments := 0
	if file[SegmentFile] != nil {
		segments, err = ParseSegments(writer, file[SegmentFile], stops)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", SegmentFile, err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing network writer: %w", err)
	}

	return &storage.NetworkMetadata{
		Stops:    len(stops),
		Lines:    len(lines),
		Segments: segments,
	}, nil
}
