package statebus

import (
	"time"

	"github.com/dougsko/rfdetect/pkg/scan"
)

// DetectionUpdate is what the scan task shows on the detection screens
type DetectionUpdate struct {
	FreqMHz    float64   `json:"freq_mhz"`
	RSSI       int       `json:"rssi"`
	Modulation string    `json:"modulation"`
	Status     string    `json:"status"`
	Detected   bool      `json:"detected"`
	ScanCount  int       `json:"scan_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// SpectrumUpdate carries one captured sweep
type SpectrumUpdate struct {
	Sweep     scan.SweepResult
	Timestamp time.Time
}

// BatteryUpdate carries a classified battery reading
type BatteryUpdate struct {
	Level   int     `json:"level"`
	Voltage float64 `json:"voltage"`
	Raw     int     `json:"raw"`
}

// Bus groups the three independent slots between producer tasks and the
// display consumer. No ordering holds between slots.
type Bus struct {
	Detection Slot[DetectionUpdate]
	Spectrum  Slot[SpectrumUpdate]
	Battery   Slot[BatteryUpdate]
}

// New creates an empty bus
func New() *Bus {
	return &Bus{}
}

// DetectionFromScan converts a scan result into a display update
func DetectionFromScan(r scan.ScanResult, now time.Time) DetectionUpdate {
	u := DetectionUpdate{
		FreqMHz:   r.FreqMHz(),
		RSSI:      r.RSSI(),
		Detected:  r.SignalDetected,
		ScanCount: r.ScanCount,
		Timestamp: now,
	}
	if r.SignalDetected {
		u.Modulation = r.Modulation()
		u.Status = "Signal detected"
	}
	return u
}

// StatusUpdate builds a detection-slot update with only a status line
func StatusUpdate(status string, scanCount int, now time.Time) DetectionUpdate {
	return DetectionUpdate{
		Status:    status,
		ScanCount: scanCount,
		Timestamp: now,
	}
}
