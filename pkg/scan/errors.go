package scan

import "errors"

// Scan errors
var (
	// ErrReinitFailed is returned when the full radio reinit requested by
	// RestoreScanMode fails. The request stays pending.
	ErrReinitFailed = errors.New("scan: radio reinit failed")

	// ErrInvalidSampleCount is returned by CaptureSweep for counts outside
	// [MinSweepSamples, MaxSweepSamples].
	ErrInvalidSampleCount = errors.New("scan: sweep sample count out of range")

	// ErrRadioInit is returned when the transceiver does not come up.
	ErrRadioInit = errors.New("scan: radio init failed")
)
