package scan

import "time"

// Profile identifies the radio configuration the engine applied last
type Profile int

const (
	ProfileNone Profile = iota
	ProfileScan
	ProfileFine
	ProfileModulation
	ProfileSweep
)

func (p Profile) String() string {
	switch p {
	case ProfileNone:
		return "none"
	case ProfileScan:
		return "scan"
	case ProfileFine:
		return "fine"
	case ProfileModulation:
		return "modulation"
	case ProfileSweep:
		return "sweep"
	default:
		return "unknown"
	}
}

// Radio profile parameters
const (
	DefaultTuneMHz = 433.92

	ScanBandwidthKHz = 650.0
	ScanDeviationKHz = 47.6

	FineBandwidthKHz = 58.0
	FineSpanHz       = 300000
	FineStepHz       = 20000

	SweepBandwidthKHz = 200.0
	SweepNudgeMHz     = 0.1

	// Modulation measurement parameters, split at HighBandMHz
	HighBandMHz          = 850.0
	HighBandBandwidthKHz = 250.0
	HighBandDeviationKHz = 50.0
	LowBandBandwidthKHz  = 200.0
	LowBandDeviationKHz  = 47.6

	MinSweepSamples = 2
	MaxSweepSamples = 128
)

// Timing holds the settle delays used between tuning and reading RSSI
type Timing struct {
	CoarseSettle  time.Duration
	StandbySettle time.Duration
	ReceiveSettle time.Duration
	SweepSettle   time.Duration
}

// DefaultTiming returns the settle delays the detector hardware was tuned with
func DefaultTiming() Timing {
	return Timing{
		CoarseSettle:  3 * time.Millisecond,
		StandbySettle: 2 * time.Millisecond,
		ReceiveSettle: 8 * time.Millisecond,
		SweepSettle:   2500 * time.Microsecond,
	}
}

func modulationParams(mhz float64) (bandwidth, deviation float64) {
	if mhz > HighBandMHz {
		return HighBandBandwidthKHz, HighBandDeviationKHz
	}
	return LowBandBandwidthKHz, LowBandDeviationKHz
}
