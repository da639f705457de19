package engine

import (
	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/power"
	"github.com/dougsko/rfdetect/pkg/scan"
)

// PowerConfig builds the sequencer timing from the power section
func PowerConfig(cfg *config.Config) power.Config {
	p := cfg.Power
	return power.Config{
		ArmDelay:              config.Millis(p.ArmDelayMs),
		ArmDelayExternalReset: config.Millis(p.ArmDelayExtResetMs),
		ResetGuard:            config.Millis(p.ResetGuardMs),
		Hold:                  config.Millis(p.HoldMs),
		IdleStable:            config.Millis(p.IdleStableMs),
		CutEarliest:           config.Millis(p.CutEarliestMs),
		CutDeadline:           config.Millis(p.CutDeadlineMs),
		LockDebounce:          config.Millis(p.LockDebounceMs),
	}
}

// ScanTiming builds the radio settle delays from the scan and sweep sections
func ScanTiming(cfg *config.Config) scan.Timing {
	return scan.Timing{
		CoarseSettle:  config.Micros(cfg.Scan.CoarseSettleUs),
		StandbySettle: config.Micros(cfg.Scan.StandbySettleUs),
		ReceiveSettle: config.Micros(cfg.Scan.ReceiveSettleUs),
		SweepSettle:   config.Micros(cfg.Sweep.SettleUs),
	}
}

// AudioOptions builds the feedback service options from the audio section
func AudioOptions(cfg *config.Config) audio.Options {
	opts := audio.DefaultOptions()
	opts.Format.SampleRate = cfg.Audio.SampleRate
	opts.Format.ChunkFrames = cfg.Audio.ChunkFrames
	opts.Format.Fade = config.Millis(cfg.Audio.FadeMs)
	opts.Volume = cfg.Audio.Volume
	opts.QueueCapacity = cfg.Audio.QueueCapacity
	return opts
}
