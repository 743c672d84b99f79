package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jgoulah/nestlog/pkg/models"
)

func TestWriterAppendsOneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nest_data.txt")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	recs := []models.TelemetryRecord{
		{Timestamp: 100, IndoorTempF: models.Float(72), TargetTempF: models.Float(74), HVACState: models.HVACCooling, OutdoorTempF: models.Float(101.5), OutdoorHumidity: models.Float(12)},
		{Timestamp: 400, IndoorTempF: models.Float(73), TargetTempF: models.Float(74), HVACState: models.HVACOff},
	}
	for _, r := range recs {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	size, err := w.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != size {
		t.Errorf("size: got %d, file has %d bytes", size, len(data))
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	want := `{"timestamp":100,"ambient_temperature_f":72,"target_temperature_f":74,"hvac_state":"cooling","outdoor_temp":101.5,"outdoor_rel_humidity":12}`
	if lines[0] != want {
		t.Errorf("line 0:\n got %s\nwant %s", lines[0], want)
	}
	if strings.Contains(lines[1], "outdoor") {
		t.Errorf("line 1 should omit outdoor fields: %s", lines[1])
	}
}

func TestWriterReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nest_data.txt")
	for i := 0; i < 2; i++ {
		w, err := OpenWriter(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Append(models.TelemetryRecord{Timestamp: int64(i)}); err != nil {
			t.Fatal(err)
		}
		w.Close()
	}

	entries, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 2 || skipped != 0 {
		t.Errorf("got %d entries, %d skipped; want 2, 0", len(entries), skipped)
	}
}

func TestReadEntriesLegacyFormat(t *testing.T) {
	input := `[
{"timestamp": 1500000000, "ambient_temperature_f": 78, "target_temperature_f": 77, "hvac_state": "COOLING", "outdoor_temp": "104.2", "outdoor_rel_humidity": "9%"},
{'timestamp': 1500000300, 'Ambient_Temperature_F': 78, 'target_temperature_f': 77, 'hvac_state': 'off'},
not json at all,

{"timestamp": 1500000600},
]`

	entries, skipped, err := ReadEntries(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped: got %d, want 1", skipped)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(entries))
	}

	if got := string(entries[0].Fields["hvac_state"]); got != `"cooling"` {
		t.Errorf("hvac_state not lower-cased: %s", got)
	}
	if _, ok := entries[1].Fields["ambient_temperature_f"]; !ok {
		t.Error("single-quoted entry with mixed-case key was not decoded")
	}
	if entries[2].Line != 6 {
		t.Errorf("line number: got %d, want 6", entries[2].Line)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing log")
	}
}
