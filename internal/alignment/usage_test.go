package alignment

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func utcOpts() UsageOptions {
	return UsageOptions{Location: time.UTC}
}

func TestParseUsageAMPMTwelveHoursApart(t *testing.T) {
	input := "Usage Date,Hour,kWh,Cost\n" +
		"01/01/2024,1:00 AM,2.5,$0.30\n" +
		"01/01/2024,1:00 PM,3.0,$0.36\n"

	got, err := ParseUsage(strings.NewReader(input), utcOpts())
	if err != nil {
		t.Fatalf("ParseUsage: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	am := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC).Unix()
	if got[0].WindowStart != am {
		t.Errorf("1 AM window: got %d, want %d", got[0].WindowStart, am)
	}
	if diff := got[1].WindowStart - got[0].WindowStart; diff != 12*3600 {
		t.Errorf("AM/PM windows %d seconds apart, want %d", diff, 12*3600)
	}
	if got[0].KWh != 2.5 || got[0].Cost != 0.30 {
		t.Errorf("first record: got kwh=%v cost=%v", got[0].KWh, got[0].Cost)
	}
	if got[1].KWh != 3.0 || got[1].Cost != 0.36 {
		t.Errorf("second record: got kwh=%v cost=%v", got[1].KWh, got[1].Cost)
	}
}

func TestParseUsageTwelveOClock(t *testing.T) {
	input := "Usage Date,Hour,kWh,Cost\n" +
		"01/01/2024,12:00 AM,1.0,$0.10\n" +
		"01/01/2024,12:00 PM,2.0,$0.20\n"

	t.Run("corrected", func(t *testing.T) {
		got, err := ParseUsage(strings.NewReader(input), utcOpts())
		if err != nil {
			t.Fatalf("ParseUsage: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		midnight := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
		if got[0].WindowStart != midnight {
			t.Errorf("12 AM: got %d, want midnight %d", got[0].WindowStart, midnight)
		}
		if got[1].WindowStart != midnight+12*3600 {
			t.Errorf("12 PM: got %d, want noon", got[1].WindowStart)
		}
	})

	t.Run("legacy collides and last write wins", func(t *testing.T) {
		opts := utcOpts()
		opts.LegacyHourMapping = true
		got, err := ParseUsage(strings.NewReader(input), opts)
		if err != nil {
			t.Fatalf("ParseUsage: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 record after collision, got %d", len(got))
		}
		noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Unix()
		if got[0].WindowStart != noon {
			t.Errorf("window: got %d, want %d", got[0].WindowStart, noon)
		}
		if got[0].KWh != 2.0 {
			t.Errorf("kwh: got %v, want last write 2.0", got[0].KWh)
		}
	})
}

func TestParseUsageSortsAndHandlesBOM(t *testing.T) {
	input := "\ufeffUsage Date,Hour,kWh,Cost\n" +
		"01/02/2024,3:00 PM,1.5,$0.20\n" +
		"01/01/2024,11:00 PM,0.5,$0.06\n" +
		"01/02/2024,9:00 AM,0.7,$0.09\n"

	got, err := ParseUsage(strings.NewReader(input), utcOpts())
	if err != nil {
		t.Fatalf("ParseUsage: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].WindowStart <= got[i-1].WindowStart {
			t.Errorf("not sorted at %d: %d after %d", i, got[i].WindowStart, got[i-1].WindowStart)
		}
	}
	if want := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC).Unix(); got[0].WindowStart != want {
		t.Errorf("first window: got %d, want %d", got[0].WindowStart, want)
	}
}

func TestParseUsageRespectsLocation(t *testing.T) {
	phoenix, err := time.LoadLocation("America/Phoenix")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	input := "Usage Date,Hour,kWh,Cost\n07/04/2024,5:00 PM,4.2,$0.55\n"

	got, err := ParseUsage(strings.NewReader(input), UsageOptions{Location: phoenix})
	if err != nil {
		t.Fatalf("ParseUsage: %v", err)
	}
	// Phoenix is UTC-7 all year.
	want := time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC).Unix()
	if got[0].WindowStart != want {
		t.Errorf("window: got %d, want %d", got[0].WindowStart, want)
	}
}

func TestParseUsageMalformedRowIsFatal(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad date", "2024-01-01,1:00 AM,2.5,$0.30"},
		{"bad hour", "01/01/2024,13:00 PM,2.5,$0.30"},
		{"missing period", "01/01/2024,1:00,2.5,$0.30"},
		{"non-numeric minutes", "01/01/2024,1:zz AM,2.5,$0.30"},
		{"empty minutes", "01/01/2024,1: AM,2.5,$0.30"},
		{"bare colon", "01/01/2024,1:,2.5,$0.30"},
		{"one-digit minutes", "01/01/2024,1:0 AM,2.5,$0.30"},
		{"off-hour minutes", "01/01/2024,1:30 AM,2.5,$0.30"},
		{"bad kwh", "01/01/2024,1:00 AM,lots,$0.30"},
		{"bad cost", "01/01/2024,1:00 AM,2.5,$free"},
		{"empty cost", "01/01/2024,1:00 AM,2.5,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "Usage Date,Hour,kWh,Cost\n01/01/2024,2:00 AM,1.0,$0.10\n" + tt.row + "\n"
			_, err := ParseUsage(strings.NewReader(input), utcOpts())
			if err == nil {
				t.Fatal("expected error")
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("expected *RowError, got %T: %v", err, err)
			}
			if rowErr.Line != 3 {
				t.Errorf("line: got %d, want 3", rowErr.Line)
			}
		})
	}
}

func TestParseUsageMissingColumns(t *testing.T) {
	input := "Date,kWh\n01/01/2024,1.0\n"
	if _, err := ParseUsage(strings.NewReader(input), utcOpts()); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestParseCost(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$0.36", 0.36},
		{"€1.20", 1.20},
		{"0.50", 0.50},
		{"$-0.05", -0.05},
	}
	for _, tt := range tests {
		got, err := parseCost(tt.in)
		if err != nil {
			t.Errorf("parseCost(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCost(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
