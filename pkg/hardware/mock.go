package hardware

import (
	"fmt"
	"sync"
)

// MockPin is an in-memory GPIO line usable as input or output
type MockPin struct {
	mu      sync.Mutex
	name    string
	level   bool
	history []bool
	failSet error
}

// NewMockPin creates a low pin
func NewMockPin(name string) *MockPin {
	return &MockPin{name: name}
}

// ReadLevel implements DigitalInput
func (p *MockPin) ReadLevel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// SetLevel implements DigitalOutput and records the write
func (p *MockPin) SetLevel(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSet != nil {
		return p.failSet
	}
	p.level = high
	p.history = append(p.history, high)
	return nil
}

// Drive sets the level as if from outside, without recording a write
func (p *MockPin) Drive(high bool) {
	p.mu.Lock()
	p.level = high
	p.mu.Unlock()
}

// FailWrites makes every following SetLevel return err
func (p *MockPin) FailWrites(err error) {
	p.mu.Lock()
	p.failSet = err
	p.mu.Unlock()
}

// History returns every level written with SetLevel
func (p *MockPin) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.history...)
}

// Name returns the pin name
func (p *MockPin) Name() string {
	return p.name
}

// MockGPIO is a named set of mock pins
type MockGPIO struct {
	mu   sync.Mutex
	pins map[string]*MockPin
}

// NewMockGPIO creates an empty pin set
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{pins: make(map[string]*MockPin)}
}

// Pin returns the pin called name, creating it on first use
func (g *MockGPIO) Pin(name string) *MockPin {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pins[name]
	if !ok {
		p = NewMockPin(name)
		g.pins[name] = p
	}
	return p
}

// MockBattery is a battery sensor with a settable voltage
type MockBattery struct {
	mu    sync.Mutex
	volts float64
	err   error
}

// NewMockBattery creates a sensor reading volts
func NewMockBattery(volts float64) *MockBattery {
	return &MockBattery{volts: volts}
}

// Set changes the reported voltage
func (b *MockBattery) Set(volts float64) {
	b.mu.Lock()
	b.volts = volts
	b.mu.Unlock()
}

// Fail makes Read return err until cleared with nil
func (b *MockBattery) Fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Read implements battery.Sensor. The raw value mimics a 12-bit ADC behind
// a 1:2 divider on a 3.3 V reference.
func (b *MockBattery) Read() (float64, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, 0, fmt.Errorf("mock battery: %w", b.err)
	}
	raw := int(b.volts / 2 / 3.3 * 4095)
	if raw > 4095 {
		raw = 4095
	}
	return b.volts, raw, nil
}
