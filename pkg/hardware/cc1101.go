package hardware

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// CC1101 SPI header bits
const (
	ccWriteBurst = 0x40
	ccRead       = 0x80
	ccReadBurst  = 0xC0
)

// Configuration registers
const (
	ccIOCFG0   = 0x02
	ccPKTCTRL0 = 0x08
	ccFREQ2    = 0x0D
	ccFREQ1    = 0x0E
	ccFREQ0    = 0x0F
	ccMDMCFG4  = 0x10
	ccMDMCFG3  = 0x11
	ccMDMCFG2  = 0x12
	ccDEVIATN  = 0x15
	ccMCSM0    = 0x18
	ccAGCCTRL2 = 0x1B
)

// Command strobes
const (
	ccSRES  = 0x30
	ccSRX   = 0x34
	ccSIDLE = 0x36
)

// Status registers, read with ccReadBurst
const (
	ccPARTNUM = 0x30
	ccVERSION = 0x31
	ccRSSI    = 0x34
)

const (
	rssiOffset = 74

	// MDMCFG2 MOD_FORMAT field
	modFormatMask = 0x70
	modFormat2FSK = 0x00
	modFormatOOK  = 0x30

	// PKTCTRL0 asynchronous serial mode, infinite packet length
	pktAsyncSerial = 0x32
	// IOCFG0 asynchronous serial data output on GDO0
	gdoSerialData = 0x0D
	// MCSM0 FS_AUTOCAL on IDLE to RX/TX
	mcsmAutoCal = 0x18
)

// ErrNoChip is returned by Begin when the part does not answer with a
// CC1101 version
var ErrNoChip = errors.New("cc1101 not found")

// Conn is a full-duplex SPI connection. periph's spi.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// CC1101 drives a TI CC1101 transceiver in direct receive mode for RSSI
// measurements
type CC1101 struct {
	mu        sync.Mutex
	conn      Conn
	crystalHz float64
	sleep     func(time.Duration)

	mdmcfg4 byte
	mdmcfg2 byte
}

// NewCC1101 creates a driver on conn. crystalHz is the reference crystal,
// normally 26 MHz.
func NewCC1101(conn Conn, crystalHz float64) *CC1101 {
	if crystalHz <= 0 {
		crystalHz = 26e6
	}
	return &CC1101{
		conn:      conn,
		crystalHz: crystalHz,
		sleep:     time.Sleep,
	}
}

// Begin resets the chip, checks its version and loads the base register set
func (c *CC1101) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.strobe(ccSRES); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	c.sleep(time.Millisecond)

	part, err := c.readStatus(ccPARTNUM)
	if err != nil {
		return fmt.Errorf("read part number: %w", err)
	}
	version, err := c.readStatus(ccVERSION)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if part != 0x00 || (version != 0x14 && version != 0x04) {
		return fmt.Errorf("%w: part 0x%02x version 0x%02x", ErrNoChip, part, version)
	}

	c.mdmcfg4 = 0x07
	c.mdmcfg2 = modFormatOOK
	regs := []struct{ reg, val byte }{
		{ccIOCFG0, gdoSerialData},
		{ccPKTCTRL0, pktAsyncSerial},
		{ccMDMCFG4, c.mdmcfg4},
		{ccMDMCFG3, 0x93},
		{ccMDMCFG2, c.mdmcfg2},
		{ccMCSM0, mcsmAutoCal},
		{ccAGCCTRL2, 0x07},
	}
	for _, r := range regs {
		if err := c.writeReg(r.reg, r.val); err != nil {
			return fmt.Errorf("write 0x%02x: %w", r.reg, err)
		}
	}

	logging.Info("hardware", "cc1101 ready", logging.Fields{"version": version})
	return nil
}

// SetFrequency programs the synthesizer. The chip is idled first so the
// next receive strobe recalibrates.
func (c *CC1101) SetFrequency(mhz float64) error {
	if mhz < 300 || mhz > 928 {
		return fmt.Errorf("frequency %.3f MHz out of range", mhz)
	}
	word := FrequencyWord(mhz*1e6, c.crystalHz)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.strobe(ccSIDLE); err != nil {
		return err
	}
	return c.writeBurst(ccFREQ2, []byte{byte(word >> 16), byte(word >> 8), byte(word)})
}

// SetBandwidth selects the channel filter closest to khz
func (c *CC1101) SetBandwidth(khz float64) error {
	e, m := BandwidthCode(khz*1e3, c.crystalHz)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mdmcfg4 = (e << 6) | (m << 4) | (c.mdmcfg4 & 0x0F)
	return c.writeReg(ccMDMCFG4, c.mdmcfg4)
}

// SetDeviation selects the FSK deviation closest to khz
func (c *CC1101) SetDeviation(khz float64) error {
	e, m := DeviationCode(khz*1e3, c.crystalHz)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeReg(ccDEVIATN, (e<<4)|m)
}

// SetModulation selects ASK/OOK when ook is set, 2-FSK otherwise
func (c *CC1101) SetModulation(ook bool) error {
	format := byte(modFormat2FSK)
	if ook {
		format = modFormatOOK
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mdmcfg2 = (c.mdmcfg2 &^ modFormatMask) | format
	return c.writeReg(ccMDMCFG2, c.mdmcfg2)
}

// Standby idles the radio
func (c *CC1101) Standby() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strobe(ccSIDLE)
}

// ReceiveDirect enters asynchronous receive
func (c *CC1101) ReceiveDirect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strobe(ccSRX)
}

// ReadRSSI returns the current RSSI in dBm
func (c *CC1101) ReadRSSI() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.readStatus(ccRSSI)
	if err != nil {
		return 0, err
	}
	return RSSIToDBm(raw), nil
}

func (c *CC1101) strobe(cmd byte) error {
	return c.conn.Tx([]byte{cmd}, make([]byte, 1))
}

func (c *CC1101) writeReg(reg, val byte) error {
	return c.conn.Tx([]byte{reg, val}, make([]byte, 2))
}

func (c *CC1101) writeBurst(reg byte, vals []byte) error {
	w := append([]byte{reg | ccWriteBurst}, vals...)
	return c.conn.Tx(w, make([]byte, len(w)))
}

func (c *CC1101) readStatus(reg byte) (byte, error) {
	r := make([]byte, 2)
	if err := c.conn.Tx([]byte{reg | ccReadBurst, 0}, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

// FrequencyWord is the 24-bit FREQ register value for hz
func FrequencyWord(hz, crystalHz float64) uint32 {
	return uint32(math.Round(hz*65536/crystalHz)) & 0xFFFFFF
}

// RSSIToDBm converts the two's-complement RSSI status byte to dBm
func RSSIToDBm(raw byte) int {
	if raw >= 128 {
		return (int(raw)-256)/2 - rssiOffset
	}
	return int(raw)/2 - rssiOffset
}

// BandwidthCode returns the CHANBW exponent and mantissa closest to hz.
// bw = crystal / (8 * (4 + m) * 2^e)
func BandwidthCode(hz, crystalHz float64) (e, m byte) {
	best := math.Inf(1)
	for ee := byte(0); ee < 4; ee++ {
		for mm := byte(0); mm < 4; mm++ {
			bw := crystalHz / (8 * float64(4+mm) * float64(int(1)<<ee))
			if d := math.Abs(bw - hz); d < best {
				best, e, m = d, ee, mm
			}
		}
	}
	return e, m
}

// DeviationCode returns the DEVIATN exponent and mantissa closest to hz.
// dev = crystal / 2^17 * (8 + m) * 2^e
func DeviationCode(hz, crystalHz float64) (e, m byte) {
	best := math.Inf(1)
	for ee := byte(0); ee < 8; ee++ {
		for mm := byte(0); mm < 8; mm++ {
			dev := crystalHz / 131072 * float64(8+mm) * float64(int(1)<<ee)
			if d := math.Abs(dev - hz); d < best {
				best, e, m = d, ee, mm
			}
		}
	}
	return e, m
}
