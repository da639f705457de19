package scan

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// RadioDriver is the narrow command interface the scan engine needs from
// a sub-GHz transceiver.
type RadioDriver interface {
	Begin() error
	SetFrequency(mhz float64) error
	SetBandwidth(khz float64) error
	SetDeviation(khz float64) error
	SetModulation(ook bool) error
	Standby() error
	ReceiveDirect() error
	ReadRSSI() (int, error)
}

// Engine runs coarse/fine scans and spectrum sweeps against a RadioDriver.
//
// ScanOnce, CaptureSweep and Profile must be called from a single radio
// owning goroutine. RestoreScanMode may be called from any one other
// goroutine.
type Engine struct {
	radio   RadioDriver
	timing  Timing
	sleep   func(time.Duration)
	profile Profile

	scanCount   int
	needsReinit atomic.Bool
}

// NewEngine creates a scan engine driving radio with the given settle timing
func NewEngine(radio RadioDriver, timing Timing) *Engine {
	return &Engine{
		radio:  radio,
		timing: timing,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the function used for settle delays
func (e *Engine) SetSleep(fn func(time.Duration)) {
	if fn == nil {
		fn = time.Sleep
	}
	e.sleep = fn
}

// Init brings up the transceiver and tunes the default frequency.
// A failure here is fatal for the detector.
func (e *Engine) Init() error {
	logging.Info("scan", "initializing radio")

	if err := e.radio.Begin(); err != nil {
		return fmt.Errorf("%w: %v", ErrRadioInit, err)
	}
	if err := e.radio.SetFrequency(DefaultTuneMHz); err != nil {
		return fmt.Errorf("%w: tune %.2f MHz: %v", ErrRadioInit, DefaultTuneMHz, err)
	}

	e.needsReinit.Store(false)
	logging.Info("scan", "radio initialized", logging.Fields{
		"frequencies": len(CandidateFrequencies),
	})
	return nil
}

// RestoreScanMode forces the next ScanOnce to fully reinitialize the radio
func (e *Engine) RestoreScanMode() {
	e.needsReinit.Store(true)
}

// ReinitPending reports whether a full reinit is scheduled
func (e *Engine) ReinitPending() bool {
	return e.needsReinit.Load()
}

// Profile returns the radio profile applied last
func (e *Engine) Profile() Profile {
	return e.profile
}

// ScanCount returns the number of ScanOnce calls so far
func (e *Engine) ScanCount() int {
	return e.scanCount
}

// ScanOnce sweeps the candidate table and, when the strongest channel
// exceeds thresholdDBm, refines the frequency and classifies modulation.
func (e *Engine) ScanOnce(thresholdDBm int) (ScanResult, error) {
	e.scanCount++

	if e.needsReinit.Load() {
		if err := e.reinit(); err != nil {
			logging.Warnf("scan", "scan reinit failed: %v", err)
			return ScanResult{}, fmt.Errorf("%w: %v", ErrReinitFailed, err)
		}
	} else if err := e.applyScanProfile(); err != nil {
		e.needsReinit.Store(true)
		return ScanResult{}, fmt.Errorf("apply scan profile: %w", err)
	}

	coarseFreq, coarseRSSI, err := e.coarseScan()
	if err != nil {
		e.needsReinit.Store(true)
		return ScanResult{}, err
	}

	result := ScanResult{
		CoarseFreqHz: coarseFreq,
		CoarseRSSI:   coarseRSSI,
		ScanCount:    e.scanCount,
	}
	if coarseRSSI <= thresholdDBm {
		return result, nil
	}

	logging.Debug("scan", "coarse hit", logging.Fields{
		"scan": e.scanCount,
		"freq": HzToMHz(coarseFreq),
		"rssi": coarseRSSI,
	})

	fineFreq, fineRSSI, err := e.fineScan(coarseFreq)
	if err != nil {
		e.needsReinit.Store(true)
		return result, err
	}

	isFSK, err := e.detectModulation(HzToMHz(fineFreq))
	if err != nil {
		e.needsReinit.Store(true)
		return result, err
	}

	result.FineFreqHz = fineFreq
	result.FineRSSI = fineRSSI
	result.IsFSK = isFSK
	result.SignalDetected = true

	logging.Info("scan", "signal detected", logging.Fields{
		"scan":       e.scanCount,
		"freq":       fmt.Sprintf("%.3f", HzToMHz(fineFreq)),
		"rssi":       fineRSSI,
		"modulation": result.Modulation(),
	})
	return result, nil
}

// CaptureSweep samples RSSI at sampleCount uniformly spaced points between
// startMHz and endMHz. The scan profile is restored before returning once
// the sweep profile has been applied.
func (e *Engine) CaptureSweep(startMHz, endMHz float64, sampleCount int) (result SweepResult, err error) {
	result.MaxRSSI = -120

	if sampleCount < MinSweepSamples || sampleCount > MaxSweepSamples {
		return result, fmt.Errorf("%w: %d", ErrInvalidSampleCount, sampleCount)
	}

	start := clampMHz(startMHz)
	end := clampMHz(endMHz)
	if end <= start {
		end = start + SweepNudgeMHz
	}

	result.StartMHz = start
	result.EndMHz = end
	result.SampleCount = sampleCount
	step := (end - start) / float64(sampleCount-1)

	defer func() {
		if rerr := e.applyScanProfile(); rerr != nil {
			logging.Warnf("scan", "restore scan profile after sweep: %v", rerr)
			e.needsReinit.Store(true)
			if err == nil {
				err = fmt.Errorf("restore scan profile: %w", rerr)
				result.Valid = false
			}
		}
	}()

	if err := e.applySweepProfile(); err != nil {
		return result, fmt.Errorf("apply sweep profile: %w", err)
	}

	first := true
	for i := 0; i < sampleCount; i++ {
		freq := start + step*float64(i)
		rssi, err := e.measure(freq, e.timing.SweepSettle)
		if err != nil {
			return result, fmt.Errorf("sweep at %.3f MHz: %w", freq, err)
		}
		result.Samples[i] = int16(rssi)
		if first || rssi > result.MaxRSSI {
			first = false
			result.MaxRSSI = rssi
			result.MaxFreqMHz = freq
		}
	}

	result.Valid = true
	return result, nil
}

func (e *Engine) reinit() error {
	if err := e.radio.Begin(); err != nil {
		return err
	}
	if err := e.applyScanProfile(); err != nil {
		return err
	}
	e.needsReinit.Store(false)
	logging.Info("scan", "scan reinit OK")
	return nil
}

func (e *Engine) coarseScan() (uint32, int, error) {
	var (
		bestFreq uint32
		bestRSSI int
		first    = true
	)
	for _, freq := range CandidateFrequencies {
		rssi, err := e.measure(HzToMHz(freq), e.timing.CoarseSettle)
		if err != nil {
			return 0, 0, fmt.Errorf("coarse scan at %d Hz: %w", freq, err)
		}
		if first || rssi > bestRSSI {
			first = false
			bestRSSI = rssi
			bestFreq = freq
		}
	}
	return bestFreq, bestRSSI, nil
}

// fineScan walks coarse±FineSpanHz on a FineStepHz grid anchored at the
// coarse frequency. Grid points outside the hardware band are skipped.
func (e *Engine) fineScan(coarse uint32) (uint32, int, error) {
	if err := e.radio.SetBandwidth(FineBandwidthKHz); err != nil {
		return 0, 0, fmt.Errorf("fine bandwidth: %w", err)
	}
	e.profile = ProfileFine

	var (
		bestFreq uint32
		bestRSSI int
		first    = true
	)
	center := int64(coarse)
	for f := center - FineSpanHz; f <= center+FineSpanHz; f += FineStepHz {
		if !inBand(f) {
			continue
		}
		rssi, err := e.measure(HzToMHz(uint32(f)), e.timing.CoarseSettle)
		if err != nil {
			return 0, 0, fmt.Errorf("fine scan at %d Hz: %w", f, err)
		}
		if first || rssi > bestRSSI {
			first = false
			bestRSSI = rssi
			bestFreq = uint32(f)
		}
	}
	return bestFreq, bestRSSI, nil
}

// detectModulation measures RSSI under ASK/OOK then FSK with identical
// settle timing. FSK wins only when strictly stronger.
func (e *Engine) detectModulation(mhz float64) (bool, error) {
	bandwidth, deviation := modulationParams(mhz)
	e.profile = ProfileModulation

	steps := []func() error{
		func() error { return e.radio.SetModulation(true) },
		func() error { return e.radio.SetFrequency(mhz) },
		func() error { return e.radio.SetBandwidth(bandwidth) },
	}
	if err := run(steps); err != nil {
		return false, fmt.Errorf("ask profile: %w", err)
	}
	ask, err := e.settledRead()
	if err != nil {
		return false, fmt.Errorf("ask measurement: %w", err)
	}

	steps = []func() error{
		func() error { return e.radio.SetModulation(false) },
		func() error { return e.radio.SetFrequency(mhz) },
		func() error { return e.radio.SetBandwidth(bandwidth) },
		func() error { return e.radio.SetDeviation(deviation) },
	}
	if err := run(steps); err != nil {
		return false, fmt.Errorf("fsk profile: %w", err)
	}
	fsk, err := e.settledRead()
	if err != nil {
		return false, fmt.Errorf("fsk measurement: %w", err)
	}

	logging.Debugf("scan", "modulation ASK %d dBm, FSK %d dBm", ask, fsk)
	return fsk > ask, nil
}

func (e *Engine) settledRead() (int, error) {
	if err := e.radio.Standby(); err != nil {
		return 0, err
	}
	e.sleep(e.timing.StandbySettle)
	if err := e.radio.ReceiveDirect(); err != nil {
		return 0, err
	}
	e.sleep(e.timing.ReceiveSettle)
	return e.radio.ReadRSSI()
}

func (e *Engine) measure(mhz float64, settle time.Duration) (int, error) {
	if err := e.radio.SetFrequency(mhz); err != nil {
		return 0, err
	}
	if err := e.radio.ReceiveDirect(); err != nil {
		return 0, err
	}
	e.sleep(settle)
	return e.radio.ReadRSSI()
}

func (e *Engine) applyScanProfile() error {
	steps := []func() error{
		e.radio.Standby,
		func() error { return e.radio.SetModulation(false) },
		func() error { return e.radio.SetBandwidth(ScanBandwidthKHz) },
		func() error { return e.radio.SetDeviation(ScanDeviationKHz) },
		func() error { return e.radio.SetFrequency(DefaultTuneMHz) },
	}
	if err := run(steps); err != nil {
		return err
	}
	e.profile = ProfileScan
	return nil
}

func (e *Engine) applySweepProfile() error {
	steps := []func() error{
		e.radio.Standby,
		func() error { return e.radio.SetModulation(false) },
		func() error { return e.radio.SetBandwidth(SweepBandwidthKHz) },
	}
	if err := run(steps); err != nil {
		return err
	}
	e.profile = ProfileSweep
	return nil
}

func run(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
