package power

import (
	"fmt"
	"time"
)

// Config holds the sequencer timing. All durations are measured on the
// monotonic clock passed to Tick, with zero at boot.
type Config struct {
	ArmDelay              time.Duration
	ArmDelayExternalReset time.Duration
	ResetGuard            time.Duration
	Hold                  time.Duration
	IdleStable            time.Duration
	CutEarliest           time.Duration
	CutDeadline           time.Duration
	LockDebounce          time.Duration
}

// DefaultConfig returns the timing the detector hardware was tuned with
func DefaultConfig() Config {
	return Config{
		ArmDelay:              3000 * time.Millisecond,
		ArmDelayExternalReset: 8000 * time.Millisecond,
		ResetGuard:            30000 * time.Millisecond,
		Hold:                  500 * time.Millisecond,
		IdleStable:            1200 * time.Millisecond,
		CutEarliest:           100 * time.Millisecond,
		CutDeadline:           320 * time.Millisecond,
		LockDebounce:          500 * time.Millisecond,
	}
}

// Validate checks the numeric relationships the shutdown race depends on
func (c Config) Validate() error {
	if c.Hold <= 0 || c.IdleStable <= 0 || c.CutDeadline <= 0 {
		return fmt.Errorf("power: hold, idle-stable and cut deadline must be positive")
	}
	if c.CutEarliest < 0 || c.ArmDelay < 0 || c.ResetGuard < 0 || c.LockDebounce < 0 {
		return fmt.Errorf("power: durations must not be negative")
	}
	if c.CutEarliest >= c.CutDeadline {
		return fmt.Errorf("power: cut earliest %v must be before deadline %v", c.CutEarliest, c.CutDeadline)
	}
	if c.Hold >= c.IdleStable {
		return fmt.Errorf("power: hold %v must be shorter than idle-stable window %v", c.Hold, c.IdleStable)
	}
	if c.ArmDelayExternalReset < c.ArmDelay {
		return fmt.Errorf("power: external-reset arm delay %v shorter than arm delay %v",
			c.ArmDelayExternalReset, c.ArmDelay)
	}
	return nil
}

// BootInfo describes how the device came up
type BootInfo struct {
	ExternalReset bool
	USBPresent    bool
}

// ArmDelay returns the delay before button events are accepted
func (b BootInfo) ArmDelay(c Config) time.Duration {
	if b.ExternalReset {
		return c.ArmDelayExternalReset
	}
	return c.ArmDelay
}

// ResetGuard returns how long power-off stays blocked after boot. It is
// only non-zero after an external reset on battery.
func (b BootInfo) ResetGuard(c Config) time.Duration {
	if b.ExternalReset && !b.USBPresent {
		return c.ResetGuard
	}
	return 0
}
