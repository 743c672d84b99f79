package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WeatherClient reads current conditions from the weather API.
type WeatherClient struct {
	baseURL  string
	key      string
	location string
	client   *http.Client
}

// NewWeatherClient creates a client. location may be a zip code, a
// "lat,lon" pair or "STATE/City"; it is placed in the path as given.
func NewWeatherClient(scheme, host, key, location string, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		baseURL:  fmt.Sprintf("%s://%s", scheme, host),
		key:      key,
		location: location,
		client:   &http.Client{Timeout: timeout},
	}
}

type conditionsResponse struct {
	CurrentObservation *struct {
		TempF            any `json:"temp_f"`
		RelativeHumidity any `json:"relative_humidity"`
	} `json:"current_observation"`
}

// Fetch reads current conditions once.
func (c *WeatherClient) Fetch(ctx context.Context) (WeatherReading, FetchStatus, error) {
	reqURL := fmt.Sprintf("%s/api/%s/conditions/q/%s.json", c.baseURL, c.key, c.location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return WeatherReading{}, FetchFailed, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return WeatherReading{}, FetchUnavailable, fmt.Errorf("weather API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return WeatherReading{}, FetchFailed, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var body conditionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return WeatherReading{}, FetchFailed, fmt.Errorf("decoding weather response: %w", err)
	}
	if body.CurrentObservation == nil {
		return WeatherReading{}, FetchFailed, errors.New("weather response has no current_observation")
	}

	r := WeatherReading{
		TempF:            number(body.CurrentObservation.TempF),
		RelativeHumidity: number(body.CurrentObservation.RelativeHumidity),
	}
	if r.TempF == nil || r.RelativeHumidity == nil {
		return WeatherReading{}, FetchFailed, errors.New("weather response missing temp_f or relative_humidity")
	}
	return r, FetchOK, nil
}
