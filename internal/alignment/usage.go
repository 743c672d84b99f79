package alignment

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jgoulah/nestlog/pkg/models"
)

// RowError reports a usage export row that could not be parsed. A bad row
// would otherwise attribute energy cost to the wrong window, so it stops
// the run.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("usage export line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// UsageOptions controls how the export's local clock is interpreted.
type UsageOptions struct {
	// Location is the zone the export's dates are written in. Nil means local.
	Location *time.Location
	// LegacyHourMapping maps "12 AM" to hour 12 instead of 0, reproducing
	// how older datasets were read.
	LegacyHourMapping bool
}

// ParseUsage reads an hourly usage export with header
// "Usage Date,Hour,kWh,Cost". Rows sharing a window start overwrite each
// other; the result is sorted by window start.
func ParseUsage(r io.Reader, opts UsageOptions) ([]models.UsageRecord, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading usage header: %w", err)
	}

	dateCol, hourCol, kwhCol, costCol := -1, -1, -1, -1
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "usage date":
			dateCol = i
		case "hour":
			hourCol = i
		case "kwh":
			kwhCol = i
		case "cost":
			costCol = i
		}
	}
	if dateCol == -1 || hourCol == -1 || kwhCol == -1 || costCol == -1 {
		return nil, fmt.Errorf("usage export missing required columns (Usage Date, Hour, kWh, Cost). Header: %v", header)
	}

	byStart := make(map[int64]models.UsageRecord)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading usage row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseUsageRow(record[dateCol], record[hourCol], record[kwhCol], record[costCol], loc, opts.LegacyHourMapping)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		byStart[rec.WindowStart] = rec
	}

	results := make([]models.UsageRecord, 0, len(byStart))
	for _, rec := range byStart {
		results = append(results, rec)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].WindowStart < results[j].WindowStart
	})
	return results, nil
}

func parseUsageRow(dateStr, hourStr, kwhStr, costStr string, loc *time.Location, legacy bool) (models.UsageRecord, error) {
	date, err := time.ParseInLocation("01/02/2006", strings.TrimSpace(dateStr), loc)
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}

	hour, err := parseHour(hourStr, legacy)
	if err != nil {
		return models.UsageRecord{}, err
	}

	kwh, err := strconv.ParseFloat(strings.TrimSpace(kwhStr), 64)
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("parsing kWh %q: %w", kwhStr, err)
	}

	cost, err := parseCost(costStr)
	if err != nil {
		return models.UsageRecord{}, err
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, loc)
	return models.UsageRecord{
		WindowStart: start.Unix(),
		KWh:         kwh,
		Cost:        cost,
	}, nil
}

// parseHour converts "H:00 AM|PM" to a 24-hour clock hour. Windows always
// start on the hour, so any other minutes value is malformed.
func parseHour(s string, legacy bool) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	fields := strings.Fields(s)
	if len(fields) != 2 || (fields[1] != "AM" && fields[1] != "PM") {
		return 0, fmt.Errorf("parsing hour %q: want H:MM AM|PM", s)
	}

	hh, mm, ok := strings.Cut(fields[0], ":")
	if !ok {
		return 0, fmt.Errorf("parsing hour %q: missing minutes", s)
	}
	if mm != "00" {
		return 0, fmt.Errorf("parsing hour %q: minutes must be 00", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("parsing hour %q: hour out of range", s)
	}

	switch {
	case hour == 12 && fields[1] == "AM":
		if legacy {
			return 12, nil
		}
		return 0, nil
	case hour == 12:
		return 12, nil
	case fields[1] == "PM":
		return hour + 12, nil
	default:
		return hour, nil
	}
}

// parseCost strips the one-character currency prefix, e.g. "$0.36".
func parseCost(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parsing cost: empty")
	}
	if r, size := utf8.DecodeRuneInString(s); !unicode.IsDigit(r) && r != '-' && r != '.' {
		s = s[size:]
	}
	cost, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cost %q: %w", s, err)
	}
	return cost, nil
}
