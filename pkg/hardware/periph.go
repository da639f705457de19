package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/rfdetect/pkg/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph host drivers once per process
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// SPIDevice is an open SPI port with its connection
type SPIDevice struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens an SPI port by name ("" picks the first one) in mode 0
func OpenSPI(name string, speedHz int64) (*SPIDevice, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open SPI %q: %w", name, err)
	}

	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect SPI %q: %w", name, err)
	}

	logging.Info("hardware", "SPI connected", logging.Fields{"port": name, "hz": speedHz})
	return &SPIDevice{port: port, conn: conn}, nil
}

// Tx implements Conn
func (d *SPIDevice) Tx(w, r []byte) error {
	return d.conn.Tx(w, r)
}

// Close releases the port
func (d *SPIDevice) Close() error {
	return d.port.Close()
}

// PeriphPin is a GPIO line from the periph registry
type PeriphPin struct {
	pin       gpio.PinIO
	activeLow bool
}

// OpenInput looks up a pin by name and configures it as an input with a
// pull-up. Active-low inputs read true when the line is low.
func OpenInput(name string, activeLow bool) (*PeriphPin, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}

	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", name, err)
	}
	return &PeriphPin{pin: p, activeLow: activeLow}, nil
}

// OpenOutput looks up a pin by name and drives it to initial
func OpenOutput(name string, initial bool) (*PeriphPin, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := p.Out(gpio.Level(initial)); err != nil {
		return nil, fmt.Errorf("configure %s as output: %w", name, err)
	}
	return &PeriphPin{pin: p}, nil
}

// ReadLevel implements DigitalInput
func (p *PeriphPin) ReadLevel() bool {
	level := bool(p.pin.Read())
	if p.activeLow {
		return !level
	}
	return level
}

// SetLevel implements DigitalOutput
func (p *PeriphPin) SetLevel(high bool) error {
	return p.pin.Out(gpio.Level(high))
}

// Name returns the pin name
func (p *PeriphPin) Name() string {
	return p.pin.Name()
}
