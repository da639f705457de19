package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/display"
	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/power"
	"github.com/dougsko/rfdetect/pkg/statebus"
	"github.com/dougsko/rfdetect/pkg/storage"
)

// splash holds the splash screen, then leaves it for the start screen.
// Scanning begins once the splash is gone.
func (e *Engine) splash(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(config.Millis(e.config.Display.SplashMs)):
	}

	e.model.SplashDone()

	if s, ok := display.ParseScreen(e.config.Display.StartScreen); ok && s != display.ScreenMenu && s != display.ScreenSplash {
		e.model.SetScreen(s)
	}
	return nil
}

// controlLoop samples the buttons and ticks the power sequencer
func (e *Engine) controlLoop(ctx context.Context) error {
	ticker := time.NewTicker(config.Millis(e.config.Power.TickMs))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.controlStep(time.Since(e.startTime)) == power.PhaseDone {
				e.powerOff()
				return nil
			}
		}
	}
}

func (e *Engine) controlStep(now time.Duration) power.Phase {
	pressed, lock, usb := e.hardware.Buttons().Levels()
	return e.sequencer.Tick(now, power.Inputs{
		PowerPressed: pressed,
		USBPresent:   usb,
		LockPressed:  lock,
		SystemReady:  e.State() == StateScanning,
	})
}

func (e *Engine) powerOff() {
	e.doneOnce.Do(func() {
		e.setState(StatePowerOff)
		cutAt, err := e.sequencer.CutAt()
		logging.Info("engine", "power cut", logging.Fields{"at": cutAt, "error": err})
		close(e.done)
	})
}

// displayLoop drains the state bus into the display model
func (e *Engine) displayLoop(ctx context.Context) error {
	ticker := time.NewTicker(config.Millis(e.config.Display.RefreshMs))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.model.Refresh(now)
		}
	}
}

// rfLoop is the radio owning task. ScanOnce and CaptureSweep are only
// ever called from here.
func (e *Engine) rfLoop(ctx context.Context) error {
	ticker := time.NewTicker(config.Millis(e.config.Scan.IntervalMs))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.State() == StateScanning {
				e.rfStep(time.Now())
			}
		}
	}
}

// rfStep runs one scan or sweep for the current screen
func (e *Engine) rfStep(now time.Time) {
	mode := e.model.Mode()

	// A sweep leaves the transceiver in a profile a scan cannot recover from
	if e.wasSpectrum && mode != display.ModeSpectrum {
		e.scanner.RestoreScanMode()
	}
	e.wasSpectrum = mode == display.ModeSpectrum

	switch mode {
	case display.ModeInactive:
		e.prevDetected = false
	case display.ModeSpectrum:
		e.prevDetected = false
		e.sweep(now)
	case display.ModeDetection:
		e.detect(now)
	}
}

func (e *Engine) sweep(now time.Time) {
	sw := e.config.Sweep
	result, err := e.scanner.CaptureSweep(sw.StartMHz, sw.EndMHz, sw.SampleCount)
	if err != nil {
		logging.Warnf("engine", "sweep: %v", err)
		return
	}
	e.bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: result, Timestamp: now})
}

func (e *Engine) detect(now time.Time) {
	threshold := e.model.Threshold()
	result, err := e.scanner.ScanOnce(threshold)
	e.scanCount.Store(int64(e.scanner.ScanCount()))
	if err != nil {
		logging.Warnf("engine", "scan: %v", err)
		e.prevDetected = false
		return
	}

	if !result.SignalDetected {
		if every := e.config.Scan.StatusEvery; every > 0 && result.ScanCount%every == 0 {
			u := statebus.StatusUpdate(fmt.Sprintf("Scan #%d - Waiting...", result.ScanCount), result.ScanCount, now)
			u.RSSI = result.CoarseRSSI
			u.Modulation = "---"
			e.bus.Detection.Publish(u)
		}
		e.prevDetected = false
		return
	}

	e.model.SetLastSignal(result.FreqMHz(), result.RSSI(), result.Modulation())
	e.bus.Detection.Publish(statebus.DetectionFromScan(result, now))
	logging.Info("engine", "signal detected", logging.Fields{
		"freq_mhz":   result.FreqMHz(),
		"rssi":       result.RSSI(),
		"modulation": result.Modulation(),
	})

	minGap := config.Millis(e.config.Scan.DetectBeepMinMs)
	if e.model.FreqOnlyActive() && (!e.prevDetected || now.Sub(e.lastBeep) >= minGap) {
		e.feedback.Enqueue(audio.EventDetect)
		e.lastBeep = now
	}
	e.prevDetected = true

	if _, err := e.store.RecordDetection(storage.Detection{
		Timestamp:  now,
		FreqHz:     result.FineFreqHz,
		RSSI:       result.FineRSSI,
		Modulation: result.Modulation(),
		Threshold:  threshold,
		ScanCount:  result.ScanCount,
	}); err != nil {
		logging.Warnf("engine", "record detection: %v", err)
	}
}
