package main

import (
	"testing"
	"time"

	"github.com/jgoulah/nestlog/internal/database"
	"github.com/jgoulah/nestlog/pkg/models"
)

func TestParseDate(t *testing.T) {
	phx, err := time.LoadLocation("America/Phoenix")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got, err := parseDate("2017-07-14", phx)
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if want := time.Date(2017, 7, 14, 0, 0, 0, 0, phx); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	before := time.Now().AddDate(0, 0, -7)
	got, err = parseDate("7d", phx)
	if err != nil {
		t.Fatalf("parseDate relative: %v", err)
	}
	if got.Before(before) || got.After(time.Now().AddDate(0, 0, -7)) {
		t.Errorf("7d resolved to %v", got)
	}

	for _, bad := range []string{"", "d", "yesterday", "07/14/2017"} {
		if _, err := parseDate(bad, phx); err == nil {
			t.Errorf("parseDate(%q): expected error", bad)
		}
	}
}

func TestFilterRange(t *testing.T) {
	var data []database.StoredRecord
	for i, ts := range []int64{1000, 2000, 3000, 4000} {
		data = append(data, database.StoredRecord{
			ID:            i + 1,
			AlignedRecord: models.AlignedRecord{TelemetryRecord: models.TelemetryRecord{Timestamp: ts}},
		})
	}

	if got := filterRange(data, 0, 0); len(got) != 4 {
		t.Errorf("open range kept %d, want 4", len(got))
	}

	got := filterRange(data, 2000, 4000)
	if len(got) != 2 || got[0].Timestamp != 2000 || got[1].Timestamp != 3000 {
		t.Errorf("filterRange(2000, 4000) = %+v", got)
	}

	if got := filterRange(data, 3500, 0); len(got) != 1 || got[0].ID != 4 {
		t.Errorf("filterRange(3500, open) = %+v", got)
	}
}

func TestWindowTotalsCountsEachWindowOnce(t *testing.T) {
	// A +05:30 zone puts windows on the half hour, so each one straddles two
	// UTC hours.
	var data []database.StoredRecord
	for _, w := range []struct {
		start int64
		kwh   float64
	}{{1800, 1.0}, {5400, 2.0}} {
		for ts := w.start; ts < w.start+3600; ts += 300 {
			data = append(data, database.StoredRecord{AlignedRecord: models.AlignedRecord{
				TelemetryRecord: models.TelemetryRecord{Timestamp: ts},
				WindowStart:     w.start,
				KWh:             w.kwh,
				Cost:            w.kwh / 10,
			}})
		}
	}

	kwh, cost := windowTotals(data)
	if kwh != 3.0 {
		t.Errorf("kwh: got %v, want 3", kwh)
	}
	if cost < 0.2999 || cost > 0.3001 {
		t.Errorf("cost: got %v, want 0.3", cost)
	}
}
