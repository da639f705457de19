package hardware

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// MockNoiseFloor is the RSSI the mock radio reports with nothing in range
const MockNoiseFloor = -105

// modulation mismatch penalty in dB
const mockMismatchDB = 8

var errNotReceiving = errors.New("mock radio: not in receive")

// Emitter is a simulated transmitter
type Emitter struct {
	FreqMHz  float64
	PowerDBm int
	FSK      bool

	// Period and OnTime make the emitter burst; zero Period is continuous
	Period time.Duration
	OnTime time.Duration
}

func (e Emitter) active(now time.Time) bool {
	if e.Period <= 0 {
		return true
	}
	return time.Duration(now.UnixNano())%e.Period < e.OnTime
}

// MockRadio simulates a CC1101 in an RF environment made of emitters
type MockRadio struct {
	mu       sync.Mutex
	emitters []Emitter
	now      func() time.Time

	begun     bool
	receiving bool
	freqMHz   float64
	bwKHz     float64
	devKHz    float64
	ook       bool

	beginErr   error
	failBegins int
	readErr    error
	reads      int
	failReadAt int
	begins     int
}

// NewMockRadio creates a simulated radio with the given emitters
func NewMockRadio(emitters ...Emitter) *MockRadio {
	return &MockRadio{
		emitters: emitters,
		now:      time.Now,
		bwKHz:    650,
	}
}

// DefaultEmitters is a small bench environment: a 433.92 MHz OOK remote
// that bursts, and a continuous 868.35 MHz FSK sensor
func DefaultEmitters() []Emitter {
	return []Emitter{
		{FreqMHz: 433.92, PowerDBm: -42, Period: 4 * time.Second, OnTime: 1500 * time.Millisecond},
		{FreqMHz: 868.35, PowerDBm: -58, FSK: true},
	}
}

// SetEmitters replaces the RF environment
func (r *MockRadio) SetEmitters(emitters ...Emitter) {
	r.mu.Lock()
	r.emitters = append([]Emitter(nil), emitters...)
	r.mu.Unlock()
}

// FailBegin makes the next n Begin calls return err
func (r *MockRadio) FailBegin(n int, err error) {
	r.mu.Lock()
	r.failBegins = n
	r.beginErr = err
	r.mu.Unlock()
}

// FailReadAt makes the nth ReadRSSI from now return err
func (r *MockRadio) FailReadAt(n int, err error) {
	r.mu.Lock()
	r.failReadAt = r.reads + n
	r.readErr = err
	r.mu.Unlock()
}

// Begins returns how many times Begin was called
func (r *MockRadio) Begins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins
}

// Tuned returns the current frequency, bandwidth and OOK flag
func (r *MockRadio) Tuned() (mhz, bwKHz float64, ook bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freqMHz, r.bwKHz, r.ook
}

func (r *MockRadio) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.begins++
	if r.failBegins > 0 {
		r.failBegins--
		return fmt.Errorf("mock radio: %w", r.beginErr)
	}
	r.begun = true
	r.receiving = false
	logging.Debug("hardware", "mock radio begin", logging.Fields{"emitters": len(r.emitters)})
	return nil
}

func (r *MockRadio) SetFrequency(mhz float64) error {
	if mhz < 300 || mhz > 928 {
		return fmt.Errorf("frequency %.3f MHz out of range", mhz)
	}
	return r.set(func() {
		r.freqMHz = mhz
		r.receiving = false
	})
}

func (r *MockRadio) SetBandwidth(khz float64) error {
	return r.set(func() { r.bwKHz = khz })
}

func (r *MockRadio) SetDeviation(khz float64) error {
	return r.set(func() { r.devKHz = khz })
}

func (r *MockRadio) SetModulation(ook bool) error {
	return r.set(func() { r.ook = ook })
}

func (r *MockRadio) Standby() error {
	return r.set(func() { r.receiving = false })
}

func (r *MockRadio) ReceiveDirect() error {
	return r.set(func() { r.receiving = true })
}

func (r *MockRadio) set(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.begun {
		return fmt.Errorf("mock radio: not initialized")
	}
	fn()
	return nil
}

// ReadRSSI returns the strongest emitter level seen through the current
// filter, or the noise floor
func (r *MockRadio) ReadRSSI() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	if r.readErr != nil && r.reads == r.failReadAt {
		return 0, r.readErr
	}
	if !r.begun || !r.receiving {
		return 0, errNotReceiving
	}

	now := r.now()
	best := MockNoiseFloor
	for _, e := range r.emitters {
		if !e.active(now) {
			continue
		}
		if level := r.level(e); level > best {
			best = level
		}
	}
	return best, nil
}

// level is the emitter power minus 1 dB per 10 kHz of detuning, with a
// steep skirt outside the filter and a penalty for the wrong demodulator
func (r *MockRadio) level(e Emitter) int {
	offsetKHz := math.Abs(r.freqMHz-e.FreqMHz) * 1000
	atten := offsetKHz / 10
	if offsetKHz > r.bwKHz/2 {
		atten += 40
	}
	if e.FSK == r.ook {
		atten += mockMismatchDB
	}
	return e.PowerDBm - int(math.Round(atten))
}
