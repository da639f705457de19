package hardware

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/logging"
)

// AplaySink plays cues through ALSA by piping raw PCM into aplay. Volume
// and mute are applied in software since there is no codec to program.
type AplaySink struct {
	mu     sync.Mutex
	device string
	binary string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	volume int
	muted  bool
	scaled []byte

	// command builds the player process; replaced in tests
	command func(name string, args ...string) *exec.Cmd
}

// NewAplaySink creates a sink writing to the ALSA device
func NewAplaySink(device string) *AplaySink {
	if device == "" {
		device = "default"
	}
	return &AplaySink{
		device:  device,
		binary:  "aplay",
		volume:  100,
		command: exec.Command,
	}
}

// Prepare checks the player is installed
func (s *AplaySink) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("%s not available: %w", s.binary, err)
	}
	return nil
}

// Open starts a player for one stream
func (s *AplaySink) Open(sampleRate, channels, bits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("stream already open")
	}
	if bits != 16 {
		return fmt.Errorf("unsupported sample width %d", bits)
	}

	cmd := s.command(s.binary, "-q", "-D", s.device, "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(sampleRate), "-c", strconv.Itoa(channels))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.binary, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Write sends pcm to the player after applying volume
func (s *AplaySink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return audio.ErrStreamNotOpen
	}

	if cap(s.scaled) < len(pcm) {
		s.scaled = make([]byte, len(pcm))
	}
	out := s.scaled[:len(pcm)]
	gain := float64(s.volume) / 100
	if s.muted {
		gain = 0
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(float64(v)*gain)))
	}

	_, err := s.stdin.Write(out)
	return err
}

// Close waits for the player to drain
func (s *AplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil

	if err := s.stdin.Close(); err != nil {
		logging.Debugf("hardware", "close player stdin: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", s.binary, err)
	}
	return nil
}

// SetVolume sets the software gain in percent
func (s *AplaySink) SetVolume(level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume %d out of range", level)
	}
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
	return nil
}

// SetMute silences output without closing the stream
func (s *AplaySink) SetMute(muted bool) error {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return nil
}
