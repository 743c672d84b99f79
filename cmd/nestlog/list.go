package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/nestlog/internal/database"
	"github.com/spf13/cobra"
)

var (
	listSince string
	listUntil string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored merged dataset",
	Long:  `Displays the merged telemetry and usage rows stored by 'align'.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "Only rows since this date (YYYY-MM-DD or relative like 7d)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Only rows before this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	var since, until int64
	if listSince != "" {
		t, err := parseDate(listSince, loc)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		since = t.Unix()
	}
	if listUntil != "" {
		t, err := parseDate(listUntil, loc)
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		until = t.Unix()
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	data, err := db.ListAligned(since, until)
	if err != nil {
		return fmt.Errorf("listing merged data: %w", err)
	}
	if len(data) == 0 {
		fmt.Println("No merged data found")
		return nil
	}

	fmt.Println("\nMerged Data:")
	fmt.Println("--------------------------------------------------------------------------")
	fmt.Printf("%-19s  %7s  %7s  %-7s  %8s  %6s  %6s\n", "Time", "Indoor", "Outdoor", "Cooling", "Setpoint", "kWh", "Cost")
	fmt.Println("--------------------------------------------------------------------------")

	kwh, cost := windowTotals(data)
	for _, r := range data {
		fmt.Printf("%-19s  %7s  %7s  %-7t  %8s  %6.2f  %6.2f\n",
			r.Time().In(loc).Format("2006-01-02 15:04:05"),
			optional(r.IndoorTempF), optional(r.OutdoorTempF), r.IsCooling(), optional(r.TargetTempF), r.KWh, r.Cost)
	}

	fmt.Println("--------------------------------------------------------------------------")
	last := data[len(data)-1].Time()
	fmt.Printf("Total: %.2f kWh, $%.2f (%s rows, latest %s)\n", kwh, cost, humanize.Comma(int64(len(data))), humanize.Time(last))
	return nil
}

// windowTotals sums usage once per billing window, since every row of a
// window repeats that window's kWh and cost.
func windowTotals(data []database.StoredRecord) (kwh, cost float64) {
	seen := make(map[int64]bool)
	for _, r := range data {
		if seen[r.WindowStart] {
			continue
		}
		seen[r.WindowStart] = true
		kwh += r.KWh
		cost += r.Cost
	}
	return kwh, cost
}

func optional(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string, loc *time.Location) (time.Time, error) {
	// Try absolute date format first
	t, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			return time.Now().AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
