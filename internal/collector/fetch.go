package collector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jgoulah/nestlog/pkg/models"
)

// FetchStatus is the outcome of one upstream call within a cycle.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	// FetchRedirected means the call succeeded after following a 307 to a
	// new host.
	FetchRedirected
	// FetchUnavailable means a network-level failure: refused, reset, timeout.
	FetchUnavailable
	// FetchFailed means the upstream answered, but not with usable data.
	FetchFailed
	// FetchNotConfigured means the source has no settings and was not called.
	FetchNotConfigured
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchRedirected:
		return "redirected"
	case FetchUnavailable:
		return "unavailable"
	case FetchFailed:
		return "failed"
	case FetchNotConfigured:
		return "not configured"
	default:
		return fmt.Sprintf("FetchStatus(%d)", int(s))
	}
}

// OK reports whether the fetch produced data.
func (s FetchStatus) OK() bool {
	return s == FetchOK || s == FetchRedirected
}

// StatusError is returned when an upstream answers with an unexpected HTTP
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// DeviceReading holds the thermostat fields this system keeps. Everything
// else the device API reports is dropped at ingestion.
type DeviceReading struct {
	IndoorTempF *float64
	TargetTempF *float64
	HVACState   models.HVACState
}

// WeatherReading holds the outdoor conditions for one cycle.
type WeatherReading struct {
	TempF            *float64
	RelativeHumidity *float64
}

// NormalizeDevice picks the kept fields out of a device API response.
// Missing or mistyped fields are left empty.
func NormalizeDevice(raw map[string]any) DeviceReading {
	var r DeviceReading
	r.IndoorTempF = number(raw["ambient_temperature_f"])
	r.TargetTempF = number(raw["target_temperature_f"])
	if s, ok := raw["hvac_state"].(string); ok {
		r.HVACState = models.HVACState(strings.ToLower(strings.TrimSpace(s)))
	}
	return r
}

// number accepts a JSON number or a numeric string, with an optional
// trailing percent sign as the weather API formats humidity.
func number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(n), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
