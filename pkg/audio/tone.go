package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Tone is one step of a cue. A Tone with zero frequency is a pause.
type Tone struct {
	FreqHz   float64
	Duration time.Duration
	Gain     float64
}

// Pause returns a silent step of duration d
func Pause(d time.Duration) Tone {
	return Tone{Duration: d}
}

// IsPause reports whether the step renders no samples
func (t Tone) IsPause() bool {
	return t.FreqHz <= 0
}

var sequences = map[Event][]Tone{
	EventStartup: {
		{FreqHz: 660, Duration: 130 * time.Millisecond, Gain: 0.42},
		Pause(20 * time.Millisecond),
		{FreqHz: 990, Duration: 170 * time.Millisecond, Gain: 0.40},
	},
	EventShutdown: {
		{FreqHz: 880, Duration: 70 * time.Millisecond, Gain: 0.38},
		Pause(10 * time.Millisecond),
		{FreqHz: 520, Duration: 110 * time.Millisecond, Gain: 0.40},
	},
	EventDetect: {
		{FreqHz: 1400, Duration: 45 * time.Millisecond, Gain: 0.32},
		Pause(8 * time.Millisecond),
		{FreqHz: 1700, Duration: 45 * time.Millisecond, Gain: 0.30},
	},
}

// Sequence returns the steps played for ev
func Sequence(ev Event) []Tone {
	steps := sequences[ev]
	out := make([]Tone, len(steps))
	copy(out, steps)
	return out
}

// Format describes the PCM stream the synthesizer produces
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	ChunkFrames   int
	Fade          time.Duration
}

// DefaultFormat is 16 kHz stereo 16-bit in 256-frame chunks with 8 ms fades
func DefaultFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      2,
		BitsPerSample: 16,
		ChunkFrames:   256,
		Fade:          8 * time.Millisecond,
	}
}

// ChunkBytes returns the size of one full chunk
func (f Format) ChunkBytes() int {
	return f.ChunkFrames * f.Channels * (f.BitsPerSample / 8)
}

// Frames returns the number of frames covering d
func (f Format) Frames(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// Synth renders tones into interleaved little-endian 16-bit PCM chunks
type Synth struct {
	format Format
	pool   *PCMPool
}

// NewSynth creates a synthesizer for format
func NewSynth(format Format) *Synth {
	return &Synth{
		format: format,
		pool:   NewPCMPool(format.ChunkBytes()),
	}
}

// Format returns the stream format
func (s *Synth) Format() Format {
	return s.format
}

// Pool exposes the chunk buffer pool
func (s *Synth) Pool() *PCMPool {
	return s.pool
}

// Render streams tone t through write in chunks. The buffer passed to
// write is reused after write returns. The first write error stops
// rendering and is returned.
func (s *Synth) Render(t Tone, write func([]byte) error) error {
	total := s.format.Frames(t.Duration)
	if t.IsPause() || total <= 0 {
		return nil
	}
	fade := s.format.Frames(s.format.Fade)

	step := 2 * math.Pi * t.FreqHz / float64(s.format.SampleRate)
	phase := 0.0
	frameBytes := s.format.Channels * 2

	buf := s.pool.Get()
	defer buf.Release()

	for written := 0; written < total; {
		chunk := total - written
		if chunk > s.format.ChunkFrames {
			chunk = s.format.ChunkFrames
		}

		for i := 0; i < chunk; i++ {
			sample := int16(math.Sin(phase) * t.Gain * envelope(written+i, total, fade) * 32767)
			off := i * frameBytes
			for c := 0; c < s.format.Channels; c++ {
				binary.LittleEndian.PutUint16(buf.Data[off+c*2:], uint16(sample))
			}

			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}

		if err := write(buf.Data[:chunk*frameBytes]); err != nil {
			return err
		}
		written += chunk
	}
	return nil
}

// Silence returns one zeroed chunk
func (s *Synth) Silence() []byte {
	return make([]byte, s.format.ChunkBytes())
}

// envelope ramps linearly in over the first fade frames and out over the last
func envelope(idx, total, fade int) float64 {
	if fade <= 0 {
		return 1
	}
	if idx < fade {
		return float64(idx) / float64(fade)
	}
	if idx > total-fade {
		return float64(total-idx) / float64(fade)
	}
	return 1
}
