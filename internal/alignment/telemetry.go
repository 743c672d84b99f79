package alignment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jgoulah/nestlog/internal/telemetry"
	"github.com/jgoulah/nestlog/pkg/models"
)

// ParseStats counts what ParseTelemetryLog did with each entry.
type ParseStats struct {
	Parsed        int // entries with every device field present
	CarriedDevice int // entries that reused the previous entry's device fields
	Skipped       int // entries with no timestamp, or incomplete before any complete entry
}

// ParseTelemetryLog rebuilds telemetry records from raw log entries in file
// order. An entry missing a device field takes the device fields of the most
// recent complete entry, under its own timestamp; with no such entry yet it
// is skipped. Outdoor fields are carried forward the same way, independently.
// A repeated timestamp replaces the earlier record in place.
func ParseTelemetryLog(entries []telemetry.Entry) ([]models.TelemetryRecord, ParseStats) {
	var (
		stats   ParseStats
		records []models.TelemetryRecord
		index   = make(map[int64]int)

		prevDevice  *models.TelemetryRecord
		prevOutdoor *models.TelemetryRecord
	)

	for _, e := range entries {
		ts, ok := readInt(e.Fields["timestamp"])
		if !ok {
			stats.Skipped++
			continue
		}

		rec := models.TelemetryRecord{Timestamp: ts}
		rec.IndoorTempF = readFloat(e.Fields["ambient_temperature_f"])
		rec.TargetTempF = readFloat(e.Fields["target_temperature_f"])
		rec.HVACState = models.HVACState(readString(e.Fields["hvac_state"]))

		if rec.HasDevice() {
			stats.Parsed++
			snapshot := rec
			prevDevice = &snapshot
		} else {
			if prevDevice == nil {
				stats.Skipped++
				continue
			}
			stats.CarriedDevice++
			rec.IndoorTempF = prevDevice.IndoorTempF
			rec.TargetTempF = prevDevice.TargetTempF
			rec.HVACState = prevDevice.HVACState
		}

		rec.OutdoorTempF = readFloat(e.Fields["outdoor_temp"])
		rec.OutdoorHumidity = readFloat(e.Fields["outdoor_rel_humidity"])
		if rec.HasWeather() {
			snapshot := rec
			prevOutdoor = &snapshot
		} else if prevOutdoor != nil {
			rec.OutdoorTempF = prevOutdoor.OutdoorTempF
			rec.OutdoorHumidity = prevOutdoor.OutdoorHumidity
		} else {
			rec.OutdoorTempF = nil
			rec.OutdoorHumidity = nil
		}

		if i, seen := index[ts]; seen {
			records[i] = rec
			continue
		}
		index[ts] = len(records)
		records = append(records, rec)
	}

	return records, stats
}

func readInt(raw json.RawMessage) (int64, bool) {
	f := readFloat(raw)
	if f == nil {
		return 0, false
	}
	return int64(*f), true
}

// readFloat accepts a JSON number or a numeric string such as "104.2" or
// "9%", the shapes older collectors wrote.
func readFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func readString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}
