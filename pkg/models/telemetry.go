package models

import "time"

// HVACState is the thermostat's reported activity. Values are lower-case.
type HVACState string

const (
	HVACOff     HVACState = "off"
	HVACHeating HVACState = "heating"
	HVACCooling HVACState = "cooling"
)

// TelemetryRecord is one snapshot of thermostat and weather state.
// Optional fields are nil when the corresponding fetch produced nothing.
type TelemetryRecord struct {
	Timestamp       int64     `json:"timestamp"` // collector capture instant, epoch seconds
	IndoorTempF     *float64  `json:"ambient_temperature_f,omitempty"`
	TargetTempF     *float64  `json:"target_temperature_f,omitempty"`
	HVACState       HVACState `json:"hvac_state,omitempty"`
	OutdoorTempF    *float64  `json:"outdoor_temp,omitempty"`
	OutdoorHumidity *float64  `json:"outdoor_rel_humidity,omitempty"`
}

// Time returns the capture instant.
func (r TelemetryRecord) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// HasDevice reports whether every device field is populated.
func (r TelemetryRecord) HasDevice() bool {
	return r.IndoorTempF != nil && r.TargetTempF != nil && r.HVACState != ""
}

// HasWeather reports whether both outdoor fields are populated.
func (r TelemetryRecord) HasWeather() bool {
	return r.OutdoorTempF != nil && r.OutdoorHumidity != nil
}

// AlignedRecord is one row of the merged dataset: a telemetry sample plus the
// usage of the billing window that contains it. Every row of a window
// repeats that window's KWh and Cost.
type AlignedRecord struct {
	TelemetryRecord
	WindowStart int64   `json:"window_start"`
	KWh         float64 `json:"kwh_used"`
	Cost        float64 `json:"cost_usd"`
}

// IsCooling reports whether the thermostat was cooling at capture time.
func (a AlignedRecord) IsCooling() bool {
	return a.HVACState == HVACCooling
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 {
	return &v
}
