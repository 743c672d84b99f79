// Package telemetry owns the durable, append-only telemetry log.
//
// Records are written one JSON object per line. The reader also accepts the
// older format, where every object was followed by a trailing comma and the
// file had to be wrapped in brackets before it could be decoded.
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgoulah/nestlog/pkg/models"
)

// Writer appends telemetry records to the log file.
type Writer struct {
	f *os.File
}

// OpenWriter opens (or creates) the log at path for appending.
func OpenWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry log: %w", err)
	}
	return &Writer{f: f}, nil
}

// Append writes one record and syncs it to disk, so a crash loses at most
// the record in flight.
func (w *Writer) Append(rec models.TelemetryRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing log: %w", err)
	}
	return nil
}

// Size returns the current size of the log in bytes.
func (w *Writer) Size() (int64, error) {
	info, err := w.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Entry is one raw log entry with lower-cased keys, in file order.
type Entry struct {
	Line   int
	Fields map[string]json.RawMessage
}

// ReadEntries reads every entry of a log. Lines that do not hold a JSON
// object are skipped and counted in skipped.
func ReadEntries(r io.Reader) (entries []Entry, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := cleanLine(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		fields, ok := decodeObject(raw)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, Entry{Line: lineNo, Fields: fields})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading telemetry log: %w", err)
	}
	return entries, skipped, nil
}

// ReadFile reads every entry of the log at path.
func ReadFile(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening telemetry log: %w", err)
	}
	defer f.Close()
	return ReadEntries(f)
}

// cleanLine strips the decoration the older format carried: array brackets
// and the trailing comma after each object.
func cleanLine(b []byte) []byte {
	b = bytes.TrimSpace(b)
	b = bytes.TrimPrefix(b, []byte("["))
	b = bytes.TrimSuffix(b, []byte("]"))
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte(","))
	return bytes.TrimSpace(b)
}

// decodeObject lower-cases the entry, since older producers never normalized
// case, then decodes it. Entries written with single quotes are retried with
// double quotes.
func decodeObject(raw []byte) (map[string]json.RawMessage, bool) {
	lower := []byte(strings.ToLower(string(raw)))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(lower, &fields); err == nil && fields != nil {
		return fields, true
	}

	quoted := bytes.ReplaceAll(lower, []byte("'"), []byte(`"`))
	fields = nil
	if err := json.Unmarshal(quoted, &fields); err == nil && fields != nil {
		return fields, true
	}
	return nil, false
}
