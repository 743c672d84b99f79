package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/nestlog/internal/config"
	"github.com/jgoulah/nestlog/internal/publisher"
	"github.com/spf13/cobra"
)

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled states",
	Long:  `Calls AppDaemon endpoint to compile statistics from the backfilled hourly HVAC energy states. Run this after publishing to populate the Energy dashboard.`,
	RunE:  runGenerateStats,
}

func init() {
	rootCmd.AddCommand(generateStatsCmd)
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	// MQTT is not needed for statistics
	pub, err := publisher.New(config.MQTTConfig{}, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	fmt.Printf("Generating statistics for %s...\n", cfg.HomeAssistant.EntityID)
	result, err := pub.GenerateStatistics()
	if err != nil {
		return err
	}

	fmt.Printf("✓ Statistics generated successfully\n")
	if inserted, ok := result["inserted"].(float64); ok {
		fmt.Printf("  - Inserted: %d new statistics records\n", int(inserted))
	}
	if updated, ok := result["updated"].(float64); ok {
		fmt.Printf("  - Updated: %d existing statistics records\n", int(updated))
	}
	if totalHours, ok := result["total_hours"].(float64); ok {
		fmt.Printf("  - Total hours: %d\n", int(totalHours))
	}

	return nil
}
