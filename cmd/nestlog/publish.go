package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/nestlog/internal/database"
	"github.com/jgoulah/nestlog/internal/publisher"
	"github.com/spf13/cobra"
)

var (
	publishSince string
	publishUntil string
	publishAll   bool
	publishLimit int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the merged dataset to MQTT and/or Home Assistant",
	Long: `Reads merged rows stored by 'align' and publishes them to the MQTT broker
and/or Home Assistant via the AppDaemon HTTP API, whichever are enabled in config.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.MQTT.Enabled && !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("neither MQTT nor Home Assistant is enabled in config")
	}
	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	var since, until int64
	if publishSince != "" {
		t, err := parseDate(publishSince, loc)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		since = t.Unix()
	}
	if publishUntil != "" {
		t, err := parseDate(publishUntil, loc)
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		until = t.Unix()
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var data []database.StoredRecord
	if publishAll {
		data, err = db.ListAligned(since, until)
	} else {
		data, err = db.ListUnpublished()
	}
	if err != nil {
		return fmt.Errorf("listing merged data: %w", err)
	}
	if !publishAll {
		data = filterRange(data, since, until)
	}

	if len(data) == 0 {
		if publishAll {
			fmt.Println("No merged data found")
		} else {
			fmt.Println("No unpublished data found")
		}
		return nil
	}

	if publishLimit > 0 && len(data) > publishLimit {
		data = data[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %d records...\n", len(data))
	published := 0
	for i, record := range data {
		fmt.Printf("[%d/%d] Publishing %s (%.2f kWh)... ", i+1, len(data), record.Time().In(loc).Format("2006-01-02 15:04"), record.KWh)
		if err := pub.PublishAligned(record.AlignedRecord); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := db.MarkPublished(record.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nSuccessfully published %d/%d records\n", published, len(data))
	return nil
}

// filterRange keeps records in [since, until); zero bounds are open
func filterRange(data []database.StoredRecord, since, until int64) []database.StoredRecord {
	if since == 0 && until == 0 {
		return data
	}
	filtered := make([]database.StoredRecord, 0, len(data))
	for _, r := range data {
		if since != 0 && r.Timestamp < since {
			continue
		}
		if until != 0 && r.Timestamp >= until {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
