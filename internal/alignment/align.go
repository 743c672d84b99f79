// Package alignment merges the hourly usage export with the five-minute
// telemetry log into one timeline. Usage drives the timeline: a telemetry
// sample is kept only if some billing window contains it.
package alignment

import (
	"sort"

	"github.com/jgoulah/nestlog/pkg/models"
)

// Align attributes every telemetry sample to the usage window containing it
// and returns the merged rows ordered by timestamp. Every row in a window
// shares that window's kWh and cost. Samples outside all windows, and windows
// with no samples, contribute nothing.
//
// Neither input needs to be sorted and neither is modified. If windows
// overlap, a sample goes to the latest-starting window that contains it.
func Align(usage []models.UsageRecord, samples []models.TelemetryRecord) []models.AlignedRecord {
	windows := make([]models.UsageRecord, len(usage))
	copy(windows, usage)
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].WindowStart < windows[j].WindowStart
	})

	sorted := make([]models.TelemetryRecord, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var out []models.AlignedRecord
	w := -1 // latest window starting at or before the current sample
	for _, s := range sorted {
		for w+1 < len(windows) && windows[w+1].WindowStart <= s.Timestamp {
			w++
		}
		if w < 0 || !windows[w].Contains(s.Timestamp) {
			continue
		}
		out = append(out, models.AlignedRecord{
			TelemetryRecord: s,
			WindowStart:     windows[w].WindowStart,
			KWh:             windows[w].KWh,
			Cost:            windows[w].Cost,
		})
	}
	return out
}

// Summary describes an aligned dataset.
type Summary struct {
	Rows           int
	Windows        int // windows that received at least one sample
	EmptyWindows   int
	DroppedSamples int // samples outside every window
	TotalKWh       float64
	TotalCost      float64
}

// Summarize reports coverage of an Align result against its inputs. Totals
// count each covered window once.
func Summarize(usage []models.UsageRecord, samples []models.TelemetryRecord, rows []models.AlignedRecord) Summary {
	covered := make(map[int64]bool)
	for _, r := range rows {
		covered[r.WindowStart] = true
	}

	s := Summary{Rows: len(rows), DroppedSamples: len(samples) - len(rows)}
	for _, u := range usage {
		if covered[u.WindowStart] {
			s.Windows++
			s.TotalKWh += u.KWh
			s.TotalCost += u.Cost
		} else {
			s.EmptyWindows++
		}
	}
	return s
}
