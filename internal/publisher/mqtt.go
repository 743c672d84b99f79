package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/nestlog/internal/config"
	"github.com/jgoulah/nestlog/pkg/models"
)

// Publisher sends live readings to MQTT and merged rows to Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client

	// windows already backfilled to Home Assistant by this publisher
	backfilled map[int64]bool
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client mqtt.Client

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("nestlog-" + uuid.NewString()[:8])
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		// Create and connect client
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			log.Printf("publisher: mqtt connect still pending, retrying in background")
		} else if token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return newPublisher(client, mqttCfg.GetTopicPrefix(), haCfg), nil
}

func newPublisher(client mqtt.Client, topicPrefix string, haCfg config.HAConfig) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		backfilled:  make(map[int64]bool),
	}
}

// ReadingTopic is where live telemetry records are published.
func (p *Publisher) ReadingTopic() string {
	return p.topicPrefix + "/telemetry"
}

// AlignedTopic is where merged rows are published.
func (p *Publisher) AlignedTopic() string {
	return p.topicPrefix + "/aligned"
}

// MQTTEnabled reports whether an MQTT client is configured
func (p *Publisher) MQTTEnabled() bool {
	return p.client != nil
}

// HAEnabled reports whether Home Assistant publishing is configured
func (p *Publisher) HAEnabled() bool {
	return p.haConfig.Enabled
}

// PublishReading sends a live telemetry record to MQTT. It is a no-op when
// MQTT is disabled.
func (p *Publisher) PublishReading(rec models.TelemetryRecord) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	return p.publish(p.ReadingTopic(), 0, payload)
}

// AlignedPayload is the MQTT payload for a merged row
type AlignedPayload struct {
	Timestamp   string  `json:"timestamp"`
	IndoorTemp  float64 `json:"indoor_temp_f"`
	OutdoorTemp float64 `json:"outdoor_temp_f,omitempty"`
	IsCooling   bool    `json:"is_cooling"`
	Setpoint    float64 `json:"setpoint_f"`
	KWh         float64 `json:"kwh_used"`
	Cost        float64 `json:"cost_usd"`
}

// FormatAligned creates the MQTT payload for a merged row
func FormatAligned(rec models.AlignedRecord) ([]byte, error) {
	payload := AlignedPayload{
		Timestamp: rec.Time().UTC().Format(time.RFC3339),
		IsCooling: rec.IsCooling(),
		KWh:       rec.KWh,
		Cost:      rec.Cost,
	}
	if rec.IndoorTempF != nil {
		payload.IndoorTemp = *rec.IndoorTempF
	}
	if rec.OutdoorTempF != nil {
		payload.OutdoorTemp = *rec.OutdoorTempF
	}
	if rec.TargetTempF != nil {
		payload.Setpoint = *rec.TargetTempF
	}
	return json.Marshal(payload)
}

// PublishAligned sends a merged row to every enabled destination. MQTT gets
// every row. Home Assistant gets one state per billing window: the first row
// seen for a window is backfilled and the rest of that window is skipped.
func (p *Publisher) PublishAligned(rec models.AlignedRecord) error {
	if p.client == nil && !p.haConfig.Enabled {
		return fmt.Errorf("neither MQTT nor Home Assistant publishing is enabled in config")
	}

	if p.client != nil {
		payload, err := FormatAligned(rec)
		if err != nil {
			return fmt.Errorf("encoding aligned row: %w", err)
		}
		// QoS 1 so backfilled rows are not silently lost
		if err := p.publish(p.AlignedTopic(), 1, payload); err != nil {
			return err
		}
	}

	if p.haConfig.Enabled && !p.backfilled[rec.WindowStart] {
		if err := p.backfill(rec); err != nil {
			return err
		}
		p.backfilled[rec.WindowStart] = true
	}
	return nil
}

func (p *Publisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// backfill posts a window's kWh to Home Assistant via the AppDaemon API,
// stamped with the window start so a repeat post overwrites the same state.
func (p *Publisher) backfill(rec models.AlignedRecord) error {
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)
	timestamp := time.Unix(rec.WindowStart, 0).UTC().Format(time.RFC3339)

	payload := HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.2f", rec.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}
	_, err := p.postHA(apiURL, payload, p.httpClient)
	return err
}

// GenerateStatistics asks AppDaemon to compile long-term statistics from the
// backfilled states. Returns the decoded response.
func (p *Publisher) GenerateStatistics() (map[string]any, error) {
	if !p.haConfig.Enabled {
		return nil, fmt.Errorf("Home Assistant is not enabled in config")
	}
	apiURL := fmt.Sprintf("%s/api/appdaemon/generate_statistics", p.haConfig.URL)

	// Longer timeout for statistics generation
	client := &http.Client{Timeout: 60 * time.Second}
	body, err := p.postHA(apiURL, map[string]string{"entity_id": p.haConfig.EntityID}, client)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

func (p *Publisher) postHA(apiURL string, payload any, client *http.Client) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
