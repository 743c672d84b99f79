package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jgoulah/nestlog/internal/alignment"
	"github.com/jgoulah/nestlog/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	alignUsage   string
	alignLog     string
	alignOut     string
	alignNoStore bool
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Merge the telemetry log with an hourly usage export",
	Long: `Reads the telemetry log written by 'collect' and an hourly usage export
(header "Usage Date,Hour,kWh,Cost"), attributes every reading to the billing hour
that contains it, and stores the merged rows in the local SQLite database.

Readings outside every billing hour are dropped. A malformed usage row stops the
run, since it would put energy cost in the wrong hour.`,
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().StringVar(&alignUsage, "usage", "srp_data.csv", "Hourly usage export (CSV)")
	alignCmd.Flags().StringVar(&alignLog, "log", "", "Telemetry log (default from config, then ./nest_data.txt)")
	alignCmd.Flags().StringVar(&alignOut, "out", "", "Also write the merged dataset to this CSV file")
	alignCmd.Flags().BoolVar(&alignNoStore, "no-store", false, "Do not write the merged dataset to the database")
	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Align started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	f, err := os.Open(alignUsage)
	if err != nil {
		return fmt.Errorf("opening usage export: %w", err)
	}
	usage, err := alignment.ParseUsage(f, alignment.UsageOptions{
		Location:          loc,
		LegacyHourMapping: cfg.LegacyHourMapping,
	})
	f.Close()
	if err != nil {
		return err
	}
	fmt.Printf("Read %d usage hours from %s\n", len(usage), alignUsage)

	logPath := alignLog
	if logPath == "" {
		logPath = cfg.GetLogPath()
	}
	entries, unreadable, err := telemetry.ReadFile(logPath)
	if err != nil {
		return err
	}
	samples, stats := alignment.ParseTelemetryLog(entries)
	fmt.Printf("Read %d readings from %s (%d carried forward, %d skipped, %d unreadable lines)\n",
		len(samples), logPath, stats.CarriedDevice, stats.Skipped, unreadable)

	rows := alignment.Align(usage, samples)
	summary := alignment.Summarize(usage, samples, rows)
	fmt.Printf("✓ Merged %d rows across %d hours (%d hours without readings, %d readings outside usage)\n",
		summary.Rows, summary.Windows, summary.EmptyWindows, summary.DroppedSamples)
	fmt.Printf("  Covered usage: %.2f kWh, $%.2f\n", summary.TotalKWh, summary.TotalCost)

	if len(rows) == 0 {
		fmt.Println("No overlapping data found")
		return nil
	}

	if alignOut != "" {
		out, err := os.Create(alignOut)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		if err := alignment.WriteCSV(out, rows, loc); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", alignOut, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", alignOut, err)
		}
		fmt.Printf("✓ Wrote %s\n", alignOut)
	}

	if alignNoStore {
		return nil
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.SaveAligned(rows); err != nil {
		return fmt.Errorf("storing merged rows: %w", err)
	}
	fmt.Printf("✓ Stored %d rows in %s\n", len(rows), getDBPath())
	return nil
}
