// Package collector polls the thermostat and weather APIs on a fixed
// cadence and appends one telemetry record per cycle to the durable log.
//
// Either API failing only makes a record less complete. The loop keeps
// running until its context is cancelled.
package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jgoulah/nestlog/pkg/models"
)

// DefaultInterval is the delay between the end of one cycle and the start
// of the next.
const DefaultInterval = 5 * time.Minute

// DeviceSource fetches thermostat state.
type DeviceSource interface {
	Fetch(ctx context.Context) (DeviceReading, FetchStatus, error)
}

// WeatherSource fetches outdoor conditions.
type WeatherSource interface {
	Fetch(ctx context.Context) (WeatherReading, FetchStatus, error)
}

// Appender persists records. Append must not return until the record is
// durable.
type Appender interface {
	Append(rec models.TelemetryRecord) error
}

// ReadingPublisher receives every record after it has been appended.
type ReadingPublisher interface {
	PublishReading(rec models.TelemetryRecord) error
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	Record  models.TelemetryRecord
	Device  FetchStatus
	Weather FetchStatus
}

// Collector runs the polling loop. It is single-threaded: cycles never
// overlap.
type Collector struct {
	device    DeviceSource
	weather   WeatherSource
	sink      Appender
	publisher ReadingPublisher
	interval  time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithWeather adds a weather source. Without one, records carry no outdoor
// fields.
func WithWeather(w WeatherSource) Option {
	return func(c *Collector) { c.weather = w }
}

// WithPublisher forwards every appended record to p. Publish failures are
// logged and otherwise ignored.
func WithPublisher(p ReadingPublisher) Option {
	return func(c *Collector) { c.publisher = p }
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock overrides the wall clock and the inter-cycle timer.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(c *Collector) {
		c.now = now
		c.after = after
	}
}

// New creates a Collector that appends to sink.
func New(device DeviceSource, sink Appender, opts ...Option) *Collector {
	c := &Collector{
		device:   device,
		sink:     sink,
		interval: DefaultInterval,
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run cycles until ctx is cancelled. The delay is measured from the end of
// one cycle's work, so drift accumulates. Failed appends are logged and the
// loop continues.
func (c *Collector) Run(ctx context.Context) error {
	log.Printf("collector: started, interval=%v", c.interval)
	for {
		if _, err := c.RunCycle(ctx); err != nil {
			log.Printf("collector: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Printf("collector: stopping: %v", ctx.Err())
			return nil
		case <-c.after(c.interval):
		}
	}
}

// RunCycle performs one poll: device, timestamp, weather, append. Upstream
// failures are reported in the result, never as an error. The error is set
// if the record could not be appended, or if ctx was cancelled during the
// cycle, in which case nothing is appended.
func (c *Collector) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	reading, status, err := c.device.Fetch(ctx)
	res.Device = status
	if err != nil {
		log.Printf("collector: device fetch %s: %v", status, err)
	}

	// The capture instant is ours, whatever the device reports.
	res.Record = models.TelemetryRecord{Timestamp: c.now().Unix()}
	if status.OK() {
		res.Record.IndoorTempF = reading.IndoorTempF
		res.Record.TargetTempF = reading.TargetTempF
		res.Record.HVACState = reading.HVACState
		if reading.IndoorTempF != nil {
			log.Printf("collector: current indoor temp: %.1f", *reading.IndoorTempF)
		}
	}

	res.Weather = FetchNotConfigured
	if c.weather != nil {
		w, wStatus, err := c.weather.Fetch(ctx)
		res.Weather = wStatus
		if err != nil {
			log.Printf("collector: weather fetch %s: %v", wStatus, err)
		}
		if wStatus.OK() {
			res.Record.OutdoorTempF = w.TempF
			res.Record.OutdoorHumidity = w.RelativeHumidity
		}
	}

	// Fetches cut short by shutdown say nothing about the device.
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("cycle interrupted: %w", err)
	}

	if err := c.sink.Append(res.Record); err != nil {
		return res, fmt.Errorf("appending record: %w", err)
	}

	if c.publisher != nil {
		if err := c.publisher.PublishReading(res.Record); err != nil {
			log.Printf("collector: publish error: %v", err)
		}
	}
	return res, nil
}
