package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsBattery reads a Linux power-supply voltage (microvolts) from sysfs
type SysfsBattery struct {
	path string
}

// NewSysfsBattery reads /sys/class/power_supply/<supply>/voltage_now. An
// absolute supply is used as the file path directly.
func NewSysfsBattery(supply string) *SysfsBattery {
	path := supply
	if !filepath.IsAbs(supply) {
		path = filepath.Join("/sys/class/power_supply", supply, "voltage_now")
	}
	return &SysfsBattery{path: path}
}

// Read returns the voltage and the value in millivolts as the raw reading
func (b *SysfsBattery) Read() (float64, int, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return 0, 0, fmt.Errorf("read battery voltage: %w", err)
	}
	uv, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse battery voltage %q: %w", strings.TrimSpace(string(data)), err)
	}
	return float64(uv) / 1e6, int(uv / 1000), nil
}
