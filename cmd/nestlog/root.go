package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/nestlog/internal/config"
	"github.com/jgoulah/nestlog/internal/database"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "nestlog",
	Short: "Log thermostat telemetry and line it up with hourly utility usage",
	Long: `nestlog polls a thermostat and a weather service every few minutes and appends
each reading to a durable log. Later, it merges that log with an hourly usage
export from the utility into one time-aligned dataset stored in a local SQLite
database, ready for charting or publishing to Home Assistant.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}
