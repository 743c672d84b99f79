package alignment

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jgoulah/nestlog/pkg/models"
)

var exportHeader = []string{"timestamp", "local_time", "indoor_temp_f", "outdoor_temp_f", "is_cooling", "setpoint_f", "kwh_used", "cost_usd"}

// WriteCSV writes the merged dataset for a renderer. local_time is the
// timestamp rendered in loc, so consumers need no zone arithmetic of their
// own. Absent optional values are written as empty cells.
func WriteCSV(w io.Writer, rows []models.AlignedRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Time().In(loc).Format("2006-01-02 15:04:05"),
			formatOptional(r.IndoorTempF),
			formatOptional(r.OutdoorTempF),
			strconv.FormatBool(r.IsCooling()),
			formatOptional(r.TargetTempF),
			strconv.FormatFloat(r.KWh, 'f', -1, 64),
			strconv.FormatFloat(r.Cost, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", r.Timestamp, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
