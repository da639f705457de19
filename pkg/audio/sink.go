package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Sink is the codec output a cue is played through. Prepare must be
// idempotent. Write must not retain pcm after it returns.
type Sink interface {
	Prepare() error
	Open(sampleRate, channels, bits int) error
	Write(pcm []byte) error
	Close() error
	SetVolume(level int) error
	SetMute(muted bool) error
}

// ErrStreamNotOpen is returned by MemorySink writes outside an open stream
var ErrStreamNotOpen = errors.New("audio: stream not open")

// Stream is one recorded open/close cycle of a MemorySink
type Stream struct {
	SampleRate int
	Channels   int
	Bits       int
	PCM        []byte
	Writes     int
	Closed     bool
}

// Samples returns the first channel as signed 16-bit samples
func (st Stream) Samples() []int16 {
	if st.Channels < 1 || st.Bits != 16 {
		return nil
	}
	frameBytes := st.Channels * 2
	out := make([]int16, len(st.PCM)/frameBytes)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(st.PCM[i*frameBytes:]))
	}
	return out
}

// DominantFrequency returns the strongest tone in the stream
func (st Stream) DominantFrequency() float64 {
	return DominantFrequency(st.Samples(), st.SampleRate)
}

// MemorySink records every stream in memory. It stands in for the codec
// in simulation mode and tests. Fail* fields inject errors.
type MemorySink struct {
	mu sync.Mutex

	keep     int
	prepared bool
	open     *Stream
	streams  []Stream
	volume   int
	muted    bool

	prepareCalls int

	FailPrepare    error
	FailOpen       error
	FailWriteAfter int // fail the Nth write of a stream, 0 disables
	OnClose        func(Stream)
}

// NewMemorySink creates a sink that keeps the last keep streams
func NewMemorySink(keep int) *MemorySink {
	if keep < 1 {
		keep = 16
	}
	return &MemorySink{keep: keep, muted: true}
}

func (m *MemorySink) Prepare() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepareCalls++
	if m.FailPrepare != nil {
		return m.FailPrepare
	}
	m.prepared = true
	return nil
}

func (m *MemorySink) Open(sampleRate, channels, bits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.prepared {
		return fmt.Errorf("audio: open before prepare")
	}
	if m.FailOpen != nil {
		return m.FailOpen
	}
	m.open = &Stream{SampleRate: sampleRate, Channels: channels, Bits: bits}
	return nil
}

func (m *MemorySink) Write(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open == nil {
		return ErrStreamNotOpen
	}
	m.open.Writes++
	if m.FailWriteAfter > 0 && m.open.Writes == m.FailWriteAfter {
		return fmt.Errorf("audio: injected write failure at chunk %d", m.open.Writes)
	}
	m.open.PCM = append(m.open.PCM, pcm...)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	if m.open == nil {
		m.mu.Unlock()
		return ErrStreamNotOpen
	}
	st := *m.open
	st.Closed = true
	m.open = nil
	m.streams = append(m.streams, st)
	if len(m.streams) > m.keep {
		m.streams = m.streams[len(m.streams)-m.keep:]
	}
	onClose := m.OnClose
	m.mu.Unlock()

	if onClose != nil {
		onClose(st)
	}
	return nil
}

func (m *MemorySink) SetVolume(level int) error {
	m.mu.Lock()
	m.volume = level
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) SetMute(muted bool) error {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	return nil
}

// Streams returns the recorded, closed streams oldest first
func (m *MemorySink) Streams() []Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stream, len(m.streams))
	copy(out, m.streams)
	return out
}

// Volume returns the last volume set
func (m *MemorySink) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Muted returns the last mute state set
func (m *MemorySink) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// PrepareCalls returns how many times Prepare was called
func (m *MemorySink) PrepareCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepareCalls
}

// StreamOpen reports whether a stream is currently open
func (m *MemorySink) StreamOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open != nil
}
