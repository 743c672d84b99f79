package models

import "time"

// WindowSeconds is the length of one utility billing window.
const WindowSeconds = 3600

// UsageRecord represents one hourly utility billing sample. It covers
// consumption from WindowStart until WindowStart+WindowSeconds, exclusive.
type UsageRecord struct {
	WindowStart int64   `json:"window_start"` // epoch seconds
	KWh         float64 `json:"kwh_used"`
	Cost        float64 `json:"cost_usd"`
}

// WindowEnd returns the exclusive end of the billing window.
func (u UsageRecord) WindowEnd() int64 {
	return u.WindowStart + WindowSeconds
}

// Contains reports whether ts falls in [WindowStart, WindowEnd).
func (u UsageRecord) Contains(ts int64) bool {
	return ts >= u.WindowStart && ts < u.WindowEnd()
}

// StartTime returns the window start as a time in loc.
func (u UsageRecord) StartTime(loc *time.Location) time.Time {
	return time.Unix(u.WindowStart, 0).In(loc)
}
