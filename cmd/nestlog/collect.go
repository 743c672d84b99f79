package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/nestlog/internal/collector"
	"github.com/jgoulah/nestlog/internal/config"
	"github.com/jgoulah/nestlog/internal/publisher"
	"github.com/jgoulah/nestlog/internal/telemetry"
	"github.com/spf13/cobra"
)

var collectOnce bool

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Poll the thermostat and weather APIs and append readings to the log",
	Long: `Runs until interrupted, taking one reading per poll interval (default 5m).
A failing API only makes that cycle's reading less complete; the loop keeps going.
If the thermostat API redirects to a new host, the host is remembered in the config file.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().BoolVar(&collectOnce, "once", false, "Take a single reading and exit")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Collect started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateCollector(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Without a writable log there is nothing to collect into
	logPath := cfg.GetLogPath()
	writer, err := telemetry.OpenWriter(logPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	if size, err := writer.Size(); err == nil {
		fmt.Printf("Appending to %s (%s)\n", logPath, humanize.Bytes(uint64(size)))
	}

	device := collector.NewDeviceClient(cfg.GetNestScheme(), cfg.GetNestHost(), cfg.Nest.ThermostatID, cfg.Nest.Token, cfg.GetHTTPTimeout())
	device.OnRelocate(func(host string) { rememberNestHost(cfg, host) })

	opts := []collector.Option{collector.WithInterval(cfg.GetPollInterval())}
	if cfg.WeatherEnabled() {
		opts = append(opts, collector.WithWeather(collector.NewWeatherClient(
			cfg.GetWeatherScheme(), cfg.GetWeatherHost(), cfg.Weather.Key, cfg.Weather.Location, cfg.GetHTTPTimeout())))
	} else {
		fmt.Println("⚠ Weather not configured, readings will have no outdoor fields")
	}

	if cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT, config.HAConfig{})
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
		opts = append(opts, collector.WithPublisher(pub))
		fmt.Printf("Publishing readings to %s\n", pub.ReadingTopic())
	}

	c := collector.New(device, writer, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if collectOnce {
		res, err := c.RunCycle(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Reading at %s (device: %s, weather: %s)\n",
			res.Record.Time().Format("2006-01-02 15:04:05 MST"), res.Device, res.Weather)
		return nil
	}

	fmt.Printf("Polling every %v, press Ctrl-C to stop\n", cfg.GetPollInterval())
	return c.Run(ctx)
}

// rememberNestHost persists a redirect-learned host so restarts skip the
// stale one.
func rememberNestHost(cfg *config.Config, host string) {
	cfg.Nest.Host = host
	if err := saveConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not save new thermostat host: %v\n", err)
		return
	}
	fmt.Printf("✓ Thermostat API moved to %s, config updated\n", host)
}
