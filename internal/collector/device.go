package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeviceClient reads thermostat state from the device API. When the API
// answers with a 307, the client adopts the new host for every later call.
// A DeviceClient belongs to a single collector and is not safe for
// concurrent use.
type DeviceClient struct {
	scheme       string
	host         string
	thermostatID string
	token        string
	client       *http.Client
	onRelocate   func(host string)
}

// NewDeviceClient creates a client for the given host and thermostat.
func NewDeviceClient(scheme, host, thermostatID, token string, timeout time.Duration) *DeviceClient {
	return &DeviceClient{
		scheme:       scheme,
		host:         host,
		thermostatID: thermostatID,
		token:        token,
		client: &http.Client{
			Timeout: timeout,
			// The redirect is handled by Fetch so the new host can be kept.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// OnRelocate registers fn to be called with the new host after a redirect.
func (c *DeviceClient) OnRelocate(fn func(host string)) {
	c.onRelocate = fn
}

// Host returns the host the next call will use.
func (c *DeviceClient) Host() string {
	return c.host
}

// Fetch reads the thermostat once, following at most one 307.
func (c *DeviceClient) Fetch(ctx context.Context) (DeviceReading, FetchStatus, error) {
	resp, err := c.get(ctx)
	if err != nil {
		return DeviceReading{}, FetchUnavailable, err
	}

	status := FetchOK
	if resp.StatusCode == http.StatusTemporaryRedirect {
		location := resp.Header.Get("Location")
		resp.Body.Close()

		if err := c.relocate(location); err != nil {
			return DeviceReading{}, FetchFailed, err
		}
		log.Printf("collector: followed 307 to %s", c.host)

		resp, err = c.get(ctx)
		if err != nil {
			return DeviceReading{}, FetchUnavailable, err
		}
		status = FetchRedirected
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DeviceReading{}, FetchFailed, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return DeviceReading{}, FetchFailed, fmt.Errorf("decoding device response: %w", err)
	}
	return NormalizeDevice(raw), status, nil
}

func (c *DeviceClient) get(ctx context.Context) (*http.Response, error) {
	reqURL := fmt.Sprintf("%s://%s/devices/thermostats/%s", c.scheme, c.host, c.thermostatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(c.token))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device API request: %w", err)
	}
	return resp, nil
}

// relocate takes the authority from a Location header, e.g.
// "https://firebase-apiserver03-tah01-iad01.dapi.production.nest.com:9553/devices/thermostats/x".
func (c *DeviceClient) relocate(location string) error {
	if location == "" {
		return errors.New("307 without Location header")
	}
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parsing Location %q: %w", location, err)
	}
	if u.Host == "" {
		return fmt.Errorf("redirect location %q has no host", location)
	}

	c.host = u.Host
	if u.Scheme != "" {
		c.scheme = u.Scheme
	}
	if c.onRelocate != nil {
		c.onRelocate(c.host)
	}
	return nil
}

func bearer(token string) string {
	if token == "" || strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}
