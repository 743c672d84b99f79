package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultNestHost     = "developer-api.nest.com"
	defaultWeatherHost  = "api.wunderground.com"
	defaultLogPath      = "nest_data.txt"
	defaultPollInterval = 5 * time.Minute
	defaultHTTPTimeout  = 30 * time.Second
)

// Config holds the application configuration
type Config struct {
	Nest              NestConfig    `yaml:"nest"`
	Weather           WeatherConfig `yaml:"weather,omitempty"`
	LogPath           string        `yaml:"log_path,omitempty"`      // Durable telemetry log (fallback: nest_data.txt)
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"` // Delay between collection cycles (fallback: 5m)
	HTTPTimeout       time.Duration `yaml:"http_timeout,omitempty"`
	Timezone          string        `yaml:"timezone,omitempty"`            // Zone of the usage export's dates (fallback: local)
	LegacyHourMapping bool          `yaml:"legacy_hour_mapping,omitempty"` // Treat "12 AM" as hour 12, as older exports were read
	MQTT              MQTTConfig    `yaml:"mqtt,omitempty"`
	HomeAssistant     HAConfig      `yaml:"home_assistant,omitempty"`
}

// NestConfig holds the thermostat API settings
type NestConfig struct {
	Host         string `yaml:"host,omitempty"`   // Updated in place when the API redirects us
	Scheme       string `yaml:"scheme,omitempty"` // "https" unless overridden
	Token        string `yaml:"token"`
	ThermostatID string `yaml:"thermostat_id"`
}

// WeatherConfig holds the weather API settings
type WeatherConfig struct {
	Host     string `yaml:"host,omitempty"`
	Scheme   string `yaml:"scheme,omitempty"` // "http" unless overridden
	Key      string `yaml:"key"`
	Location string `yaml:"location"` // zip code, "lat,lon" or "STATE/City"; passed through verbatim
}

// MQTTConfig holds MQTT broker settings for live readings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.hvac_energy_usage"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// ValidateCollector checks the settings the collector cannot run without.
// Weather settings are optional.
func (c *Config) ValidateCollector() error {
	if c.Nest.Token == "" {
		return fmt.Errorf("nest.token is required")
	}
	if c.Nest.ThermostatID == "" {
		return fmt.Errorf("nest.thermostat_id is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// WeatherEnabled reports whether enough weather settings exist to query it
func (c *Config) WeatherEnabled() bool {
	return c.Weather.Key != "" && c.Weather.Location != ""
}

// GetNestHost returns the device API host
func (c *Config) GetNestHost() string {
	if c.Nest.Host == "" {
		return defaultNestHost
	}
	return c.Nest.Host
}

// GetNestScheme returns the device API URL scheme
func (c *Config) GetNestScheme() string {
	if c.Nest.Scheme == "" {
		return "https"
	}
	return c.Nest.Scheme
}

// GetWeatherHost returns the weather API host
func (c *Config) GetWeatherHost() string {
	if c.Weather.Host == "" {
		return defaultWeatherHost
	}
	return c.Weather.Host
}

// GetWeatherScheme returns the weather API URL scheme
func (c *Config) GetWeatherScheme() string {
	if c.Weather.Scheme == "" {
		return "http"
	}
	return c.Weather.Scheme
}

// GetLogPath returns the telemetry log path
func (c *Config) GetLogPath() string {
	if c.LogPath == "" {
		return defaultLogPath
	}
	return c.LogPath
}

// GetPollInterval returns the delay between collection cycles, default 5 minutes
func (c *Config) GetPollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

// GetHTTPTimeout returns the per-request timeout for upstream APIs
func (c *Config) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.HTTPTimeout
}

// GetLocation returns the zone used to read usage export dates
func (c *Config) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetTopicPrefix returns the MQTT topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "nestlog"
	}
	return m.TopicPrefix
}
