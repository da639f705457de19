package power

import (
	"fmt"
	"time"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/logging"
)

// Chime plays the shutdown cue and reports when playback has drained
type Chime interface {
	Enqueue(ev audio.Event)
	IsIdle() bool
}

// Switch controls the power latch
type Switch interface {
	// RequestOff prepares for power-off, typically blanking the display
	RequestOff()
	// CommitPowerOff releases the latch. The device is expected to lose power.
	CommitPowerOff() error
}

// LockSink receives display lock changes from the secondary button
type LockSink interface {
	SetLocked(locked bool)
}

// Inputs are the digital levels sampled once per control tick
type Inputs struct {
	PowerPressed bool
	USBPresent   bool
	LockPressed  bool
	// SystemReady gates arming until the application is scanning
	SystemReady bool
}

// Sequencer is the power button state machine. Tick must be called from a
// single goroutine; it never blocks.
type Sequencer struct {
	cfg   Config
	chime Chime
	sw    Switch
	lock  LockSink

	phase      Phase
	armAt      time.Duration
	guardUntil time.Duration

	seenRelease bool
	idleStable  bool
	idleSince   time.Duration

	pressing   bool
	pressSince time.Duration

	earliest time.Duration
	deadline time.Duration
	cutAt    time.Duration
	cutErr   error

	lockPressed  bool
	lockPending  bool
	lockToggleAt time.Duration
	locked       bool

	onPhase func(from, to Phase, at time.Duration)
}

// NewSequencer creates a sequencer for the given boot conditions
func NewSequencer(cfg Config, boot BootInfo, chime Chime, sw Switch, lock LockSink) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chime == nil || sw == nil {
		return nil, fmt.Errorf("power: chime and switch are required")
	}

	s := &Sequencer{
		cfg:        cfg,
		chime:      chime,
		sw:         sw,
		lock:       lock,
		armAt:      boot.ArmDelay(cfg),
		guardUntil: boot.ResetGuard(cfg),
	}

	if boot.ExternalReset {
		logging.Info("power", "external reset detected, extended arm delay")
	}
	if s.guardUntil > 0 {
		logging.Info("power", "battery reset guard enabled", logging.Fields{
			"until": s.guardUntil,
		})
	}
	return s, nil
}

// OnPhase registers a callback fired on every phase change
func (s *Sequencer) OnPhase(fn func(from, to Phase, at time.Duration)) {
	s.onPhase = fn
}

// Phase returns the current phase
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// Locked returns the display lock flag
func (s *Sequencer) Locked() bool {
	return s.locked
}

// ArmAt returns the boot-relative time button events become armed
func (s *Sequencer) ArmAt() time.Duration {
	return s.armAt
}

// CutWindow returns the earliest and deadline cut times of a requested
// shutdown
func (s *Sequencer) CutWindow() (earliest, deadline time.Duration) {
	return s.earliest, s.deadline
}

// CutAt returns when the power cut was committed, and any commit error
func (s *Sequencer) CutAt() (time.Duration, error) {
	return s.cutAt, s.cutErr
}

// Tick advances the state machine to now
func (s *Sequencer) Tick(now time.Duration, in Inputs) Phase {
	switch s.phase {
	case PhaseDone:
		return s.phase
	case PhaseUnarmed:
		if !in.SystemReady || now < s.armAt {
			return s.phase
		}
		s.idleSince = now
		s.seenRelease = false
		s.idleStable = false
		s.setPhase(PhaseArmed, now)
		logging.Info("power", "events armed")
	}

	s.trackPowerButton(now, in)

	if s.phase == PhaseShutdownRequested {
		cutTimeReached := now >= s.deadline
		audioDone := s.chime.IsIdle() && now >= s.earliest
		if cutTimeReached || audioDone {
			s.cut(now, audioDone)
			return s.phase
		}
	}

	s.trackLockButton(now, in)
	return s.phase
}

func (s *Sequencer) trackPowerButton(now time.Duration, in Inputs) {
	if !in.PowerPressed {
		s.seenRelease = true
		if !s.idleStable && now-s.idleSince >= s.cfg.IdleStable {
			s.idleStable = true
			logging.Debug("power", "button idle stable")
		}
	} else {
		s.idleSince = now
	}

	accept := in.PowerPressed && s.seenRelease && s.idleStable && s.phase != PhaseShutdownRequested
	if !accept {
		if s.pressing {
			s.pressing = false
			if s.phase == PhasePressTracking {
				s.setPhase(PhaseArmed, now)
			}
		}
		return
	}

	if !s.pressing {
		s.pressing = true
		s.pressSince = now
		s.setPhase(PhasePressTracking, now)
		return
	}

	if now-s.pressSince < s.cfg.Hold {
		return
	}

	switch {
	case in.USBPresent:
		logging.Info("power", "power-off ignored, USB present")
	case s.guardUntil > 0 && now < s.guardUntil:
		logging.Info("power", "power-off blocked by reset guard", logging.Fields{
			"remaining": s.guardUntil - now,
		})
	default:
		logging.Info("power", "power-off requested")
		s.sw.RequestOff()
		s.chime.Enqueue(audio.EventShutdown)
		s.earliest = now + s.cfg.CutEarliest
		s.deadline = now + s.cfg.CutDeadline
		s.setPhase(PhaseShutdownRequested, now)
	}
	s.pressSince = now
}

func (s *Sequencer) cut(now time.Duration, audioDone bool) {
	s.setPhase(PhaseCutting, now)
	s.cutAt = now

	reason := "deadline"
	if audioDone {
		reason = "audio idle"
	}
	logging.Info("power", "cutting power", logging.Fields{
		"reason":  reason,
		"elapsed": now - (s.deadline - s.cfg.CutDeadline),
	})

	if err := s.sw.CommitPowerOff(); err != nil {
		s.cutErr = err
		logging.Errorf("power", "commit power off: %v", err)
	}
	s.setPhase(PhaseDone, now)
}

// trackLockButton toggles the lock flag once the debounce interval after a
// press edge has elapsed. Release only clears the pressed flag.
func (s *Sequencer) trackLockButton(now time.Duration, in Inputs) {
	if in.LockPressed && !s.lockPressed {
		s.lockPressed = true
		s.lockPending = true
		s.lockToggleAt = now + s.cfg.LockDebounce
	} else if !in.LockPressed && s.lockPressed {
		s.lockPressed = false
	}

	if s.lockPending && now >= s.lockToggleAt {
		s.lockPending = false
		s.locked = !s.locked
		if s.lock != nil {
			s.lock.SetLocked(s.locked)
		}
		logging.Infof("power", "screen locked=%v", s.locked)
	}
}

func (s *Sequencer) setPhase(p Phase, at time.Duration) {
	if p == s.phase {
		return
	}
	from := s.phase
	s.phase = p
	if s.onPhase != nil {
		s.onPhase(from, p, at)
	}
}
