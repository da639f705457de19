package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// PowerLatch drives the outputs involved in a power cut: the self-hold
// latch of the supply, the speaker amplifier enable and the backlight
type PowerLatch struct {
	mu        sync.Mutex
	latch     DigitalOutput
	amp       DigitalOutput
	backlight DigitalOutput

	requested bool
	committed bool
}

// NewPowerLatch creates a latch controller. amp and backlight may be nil.
func NewPowerLatch(latch, amp, backlight DigitalOutput) *PowerLatch {
	return &PowerLatch{latch: latch, amp: amp, backlight: backlight}
}

// Hold asserts the latch and enables the amplifier and backlight. It is
// called once at boot so the board stays powered after the button is
// released.
func (p *PowerLatch) Hold() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.latch.SetLevel(true); err != nil {
		return fmt.Errorf("assert power latch: %w", err)
	}
	if p.amp != nil {
		if err := p.amp.SetLevel(true); err != nil {
			return fmt.Errorf("enable amplifier: %w", err)
		}
	}
	if p.backlight != nil {
		if err := p.backlight.SetLevel(true); err != nil {
			return fmt.Errorf("enable backlight: %w", err)
		}
	}
	return nil
}

// RequestOff blanks the display so the user sees the shutdown at once.
// Audio keeps running for the shutdown chime.
func (p *PowerLatch) RequestOff() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requested = true
	if p.backlight != nil {
		if err := p.backlight.SetLevel(false); err != nil {
			logging.Warnf("hardware", "backlight off: %v", err)
		}
	}
}

// SetBacklight switches the backlight, used by the screen lock
func (p *PowerLatch) SetBacklight(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backlight == nil || p.requested {
		return nil
	}
	return p.backlight.SetLevel(on)
}

// CommitPowerOff disables the amplifier then releases the latch
func (p *PowerLatch) CommitPowerOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.committed {
		return nil
	}
	p.committed = true

	if p.amp != nil {
		if err := p.amp.SetLevel(false); err != nil {
			logging.Warnf("hardware", "amplifier off: %v", err)
		}
	}
	if err := p.latch.SetLevel(false); err != nil {
		return fmt.Errorf("release power latch: %w", err)
	}
	logging.Info("hardware", "power latch released")
	return nil
}

// Committed reports whether the latch has been released
func (p *PowerLatch) Committed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}
