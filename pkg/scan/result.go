package scan

import "fmt"

// ScanResult is the outcome of one ScanOnce call
type ScanResult struct {
	CoarseFreqHz   uint32 `json:"coarse_freq_hz"`
	CoarseRSSI     int    `json:"coarse_rssi"`
	FineFreqHz     uint32 `json:"fine_freq_hz"`
	FineRSSI       int    `json:"fine_rssi"`
	IsFSK          bool   `json:"is_fsk"`
	SignalDetected bool   `json:"signal_detected"`
	ScanCount      int    `json:"scan_count"`
}

// FreqMHz returns the refined frequency of a detection, or the coarse
// frequency when nothing was detected.
func (r ScanResult) FreqMHz() float64 {
	if r.SignalDetected {
		return HzToMHz(r.FineFreqHz)
	}
	return HzToMHz(r.CoarseFreqHz)
}

// RSSI returns the refined RSSI of a detection, else the coarse maximum
func (r ScanResult) RSSI() int {
	if r.SignalDetected {
		return r.FineRSSI
	}
	return r.CoarseRSSI
}

// Modulation names the classified modulation
func (r ScanResult) Modulation() string {
	if !r.SignalDetected {
		return ""
	}
	if r.IsFSK {
		return "FSK"
	}
	return "ASK/OOK"
}

func (r ScanResult) String() string {
	if !r.SignalDetected {
		return fmt.Sprintf("scan #%d: no signal (max %d dBm @ %.3f MHz)",
			r.ScanCount, r.CoarseRSSI, HzToMHz(r.CoarseFreqHz))
	}
	return fmt.Sprintf("scan #%d: %s %.3f MHz %d dBm",
		r.ScanCount, r.Modulation(), HzToMHz(r.FineFreqHz), r.FineRSSI)
}

// SweepResult is a uniform-step RSSI capture across a frequency range.
// Samples beyond SampleCount are unused.
type SweepResult struct {
	StartMHz    float64
	EndMHz      float64
	SampleCount int
	Samples     [MaxSweepSamples]int16
	MaxFreqMHz  float64
	MaxRSSI     int
	Valid       bool
}

// RSSI returns the captured samples as a slice of length SampleCount
func (s *SweepResult) RSSI() []int16 {
	n := s.SampleCount
	if n < 0 {
		n = 0
	}
	if n > MaxSweepSamples {
		n = MaxSweepSamples
	}
	return s.Samples[:n]
}

// StepMHz returns the spacing between adjacent samples
func (s *SweepResult) StepMHz() float64 {
	if s.SampleCount < 2 {
		return 0
	}
	return (s.EndMHz - s.StartMHz) / float64(s.SampleCount-1)
}

// FreqAt returns the frequency of sample i
func (s *SweepResult) FreqAt(i int) float64 {
	return s.StartMHz + s.StepMHz()*float64(i)
}
