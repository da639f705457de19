package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/battery"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/scan"
)

// Manager owns every device the detector talks to. In simulation all of
// them are in-memory mocks.
type Manager struct {
	cfg      *config.Config
	simulate bool
	mutex    sync.RWMutex

	radio   scan.RadioDriver
	spi     *SPIDevice
	buttons Buttons
	latch   *PowerLatch
	battery battery.Sensor
	sink    audio.Sink

	mockRadio   *MockRadio
	mockGPIO    *MockGPIO
	mockBattery *MockBattery

	initialized bool
}

// NewManager creates a hardware manager. simulate forces mock devices
// regardless of the radio driver setting.
func NewManager(cfg *config.Config, simulate bool) *Manager {
	return &Manager{
		cfg:      cfg,
		simulate: simulate || cfg.Radio.Driver == "mock",
	}
}

// Initialize opens all devices and asserts the power latch
func (h *Manager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	logging.Info("hardware", "initializing", logging.Fields{"simulate": h.simulate})

	if h.simulate {
		h.initMock()
	} else if err := h.initDevices(); err != nil {
		h.closeLocked()
		return err
	}

	if err := h.latch.Hold(); err != nil {
		h.closeLocked()
		return fmt.Errorf("failed to hold power: %w", err)
	}

	h.initialized = true
	logging.Info("hardware", "hardware manager initialized")
	return nil
}

func (h *Manager) initMock() {
	hw := h.cfg.Hardware

	h.mockRadio = NewMockRadio(DefaultEmitters()...)
	h.radio = h.mockRadio

	h.mockGPIO = NewMockGPIO()
	h.buttons = Buttons{
		Power: h.mockGPIO.Pin(hw.PowerButtonPin),
		Lock:  h.mockGPIO.Pin(hw.LockButtonPin),
		USB:   h.mockGPIO.Pin(hw.USBSensePin),
	}
	h.latch = NewPowerLatch(
		h.mockGPIO.Pin(hw.LatchPin),
		h.mockGPIO.Pin(hw.AmpPin),
		h.mockGPIO.Pin(hw.BacklightPin),
	)

	h.mockBattery = NewMockBattery(4.05)
	h.battery = h.mockBattery
	h.sink = audio.NewMemorySink(h.cfg.Audio.RecordSessions)
}

func (h *Manager) initDevices() error {
	hw := h.cfg.Hardware

	dev, err := OpenSPI(h.cfg.Radio.SPIPort, int64(h.cfg.Radio.SPISpeedHz))
	if err != nil {
		return fmt.Errorf("failed to open radio SPI: %w", err)
	}
	h.spi = dev
	h.radio = NewCC1101(dev, float64(h.cfg.Radio.CrystalHz))

	inputs := []struct {
		name      string
		activeLow bool
		dst       *DigitalInput
	}{
		{hw.PowerButtonPin, true, &h.buttons.Power},
		{hw.LockButtonPin, true, &h.buttons.Lock},
		{hw.USBSensePin, false, &h.buttons.USB},
	}
	for _, in := range inputs {
		pin, err := OpenInput(in.name, in.activeLow)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		*in.dst = pin
	}

	latch, err := OpenOutput(hw.LatchPin, true)
	if err != nil {
		return fmt.Errorf("failed to open power latch: %w", err)
	}
	amp, err := OpenOutput(hw.AmpPin, false)
	if err != nil {
		return fmt.Errorf("failed to open amplifier enable: %w", err)
	}
	backlight, err := OpenOutput(hw.BacklightPin, true)
	if err != nil {
		return fmt.Errorf("failed to open backlight: %w", err)
	}
	h.latch = NewPowerLatch(latch, amp, backlight)

	h.battery = NewSysfsBattery(h.cfg.Battery.Supply)
	if h.cfg.Audio.Output == "memory" {
		h.sink = audio.NewMemorySink(h.cfg.Audio.RecordSessions)
	} else {
		h.sink = NewAplaySink(h.cfg.Audio.Device)
	}
	return nil
}

// Close releases the devices. The power latch is left as is.
func (h *Manager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}
	h.closeLocked()
	h.initialized = false
	logging.Info("hardware", "hardware manager shut down")
	return nil
}

func (h *Manager) closeLocked() {
	if h.spi != nil {
		if err := h.spi.Close(); err != nil {
			logging.Warnf("hardware", "error closing SPI: %v", err)
		}
		h.spi = nil
	}
}

// IsInitialized returns whether hardware is initialized
func (h *Manager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// Simulated reports whether mock devices are in use
func (h *Manager) Simulated() bool {
	return h.simulate
}

// Radio returns the transceiver
func (h *Manager) Radio() scan.RadioDriver {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.radio
}

// Buttons returns the sampled inputs
func (h *Manager) Buttons() Buttons {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.buttons
}

// Latch returns the power latch controller
func (h *Manager) Latch() *PowerLatch {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.latch
}

// Battery returns the battery sensor
func (h *Manager) Battery() battery.Sensor {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.battery
}

// Sink returns the audio output
func (h *Manager) Sink() audio.Sink {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sink
}

// MockRadio returns the simulated radio, nil unless simulating
func (h *Manager) MockRadio() *MockRadio {
	return h.mockRadio
}

// MockGPIO returns the simulated pins, nil unless simulating
func (h *Manager) MockGPIO() *MockGPIO {
	return h.mockGPIO
}

// MockBattery returns the simulated battery, nil unless simulating
func (h *Manager) MockBattery() *MockBattery {
	return h.mockBattery
}
