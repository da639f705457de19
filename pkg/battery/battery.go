package battery

import (
	"context"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/statebus"
)

// Level is a 0 (empty) to 4 (full) battery gauge
type Level int

// Classify maps a cell voltage to a gauge level
func Classify(volts float64) Level {
	switch {
	case volts >= 4.10:
		return 4
	case volts >= 3.95:
		return 3
	case volts >= 3.80:
		return 2
	case volts >= 3.60:
		return 1
	default:
		return 0
	}
}

// Sensor reads the battery voltage and the raw ADC code behind it
type Sensor interface {
	Read() (volts float64, raw int, err error)
}

// Publisher receives classified readings
type Publisher interface {
	Publish(v statebus.BatteryUpdate)
}

// Monitor polls a Sensor and publishes a BatteryUpdate whenever the level changes
type Monitor struct {
	sensor     Sensor
	out        Publisher
	startDelay time.Duration
	poll       time.Duration

	last    Level
	hasLast bool
}

// NewMonitor creates a monitor. out is usually &bus.Battery.
func NewMonitor(sensor Sensor, out Publisher, startDelay, poll time.Duration) *Monitor {
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &Monitor{
		sensor:     sensor,
		out:        out,
		startDelay: startDelay,
		poll:       poll,
	}
}

// Run polls until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	if m.startDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.startDelay):
		}
	}

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		m.Sample()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sample takes one reading and publishes it if the level changed. It
// reports whether an update was published.
func (m *Monitor) Sample() bool {
	volts, raw, err := m.sensor.Read()
	if err != nil {
		logging.Warnf("battery", "read failed: %v", err)
		return false
	}

	level := Classify(volts)
	if m.hasLast && level == m.last {
		return false
	}
	m.last = level
	m.hasLast = true

	m.out.Publish(statebus.BatteryUpdate{Level: int(level), Voltage: volts, Raw: raw})
	logging.Info("battery", "level changed", logging.Fields{
		"raw":   raw,
		"vbat":  volts,
		"level": int(level),
	})
	return true
}
