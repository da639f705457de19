package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// DefaultVolume is the codec output level set on every stream
const DefaultVolume = 95

// Options configures a Service
type Options struct {
	Format        Format
	Volume        int
	QueueCapacity int
}

// DefaultOptions returns the detector's audio defaults
func DefaultOptions() Options {
	return Options{
		Format:        DefaultFormat(),
		Volume:        DefaultVolume,
		QueueCapacity: DefaultQueueCapacity,
	}
}

// Stats counts cue outcomes
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Played   int64 `json:"played"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

// Service plays queued cues through a Sink on its own goroutine.
// Enqueue is safe from any goroutine and never blocks.
type Service struct {
	sink  Sink
	opts  Options
	queue *Queue
	synth *Synth
	sleep func(time.Duration)

	enqueued atomic.Int64
	played   atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewService creates a feedback service writing to sink
func NewService(sink Sink, opts Options) *Service {
	if opts.Format.SampleRate == 0 {
		opts.Format = DefaultFormat()
	}
	return &Service{
		sink:  sink,
		opts:  opts,
		queue: NewQueue(opts.QueueCapacity),
		synth: NewSynth(opts.Format),
		sleep: time.Sleep,
	}
}

// SetSleep replaces the function used for the pauses inside a cue
func (s *Service) SetSleep(fn func(time.Duration)) {
	if fn == nil {
		fn = time.Sleep
	}
	s.sleep = fn
}

// Enqueue requests a cue. When the queue is full the oldest queued cue is
// dropped.
func (s *Service) Enqueue(ev Event) {
	s.enqueued.Add(1)
	if dropped, evicted := s.queue.Push(ev); evicted {
		s.dropped.Add(1)
		logging.Debugf("audio", "queue full, dropped %s cue for %s", dropped, ev)
	}
}

// IsIdle reports whether no cue is playing or queued
func (s *Service) IsIdle() bool {
	return s.queue.Idle()
}

// Pending returns the queued cues oldest first
func (s *Service) Pending() []Event {
	return s.queue.Snapshot()
}

// Stats returns cue counters
func (s *Service) Stats() Stats {
	return Stats{
		Enqueued: s.enqueued.Load(),
		Played:   s.played.Load(),
		Failed:   s.failed.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// WaitIdle polls until the service is idle, ctx is done or timeout
// elapses. It reports whether the service went idle.
func (s *Service) WaitIdle(ctx context.Context, timeout time.Duration) bool {
	if s.IsIdle() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return s.IsIdle()
		case <-ticker.C:
			if s.IsIdle() {
				return true
			}
		}
	}
}

// Run consumes cues until ctx is cancelled. A cue that fails to play is
// logged and abandoned.
func (s *Service) Run(ctx context.Context) error {
	logging.Info("audio", "feedback service started", logging.Fields{
		"rate":     s.opts.Format.SampleRate,
		"channels": s.opts.Format.Channels,
		"queue":    s.queue.Cap(),
	})

	for {
		ev, err := s.queue.Pop(ctx)
		if err != nil {
			logging.Info("audio", "feedback service stopped")
			return err
		}

		if err := s.play(ev); err != nil {
			s.failed.Add(1)
			logging.Warnf("audio", "%s cue abandoned: %v", ev, err)
		} else {
			s.played.Add(1)
			logging.Debugf("audio", "%s cue done", ev)
		}
		s.queue.Done()
	}
}

func (s *Service) play(ev Event) error {
	if err := s.sink.Prepare(); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	f := s.opts.Format
	if err := s.sink.Open(f.SampleRate, f.Channels, f.BitsPerSample); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if err := s.sink.Close(); err != nil {
			logging.Warnf("audio", "close stream: %v", err)
		}
	}()

	if err := s.sink.SetMute(false); err != nil {
		logging.Warnf("audio", "unmute: %v", err)
	}
	if err := s.sink.SetVolume(s.opts.Volume); err != nil {
		logging.Warnf("audio", "set volume %d: %v", s.opts.Volume, err)
	}

	for _, tone := range Sequence(ev) {
		if tone.IsPause() {
			s.sleep(tone.Duration)
			continue
		}
		if err := s.synth.Render(tone, s.sink.Write); err != nil {
			return fmt.Errorf("write %.0f Hz tone: %w", tone.FreqHz, err)
		}
	}

	if err := s.sink.Write(s.synth.Silence()); err != nil {
		return fmt.Errorf("write trailing silence: %w", err)
	}
	return nil
}
