package hardware

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tuneAndRead(t *testing.T, r *MockRadio, mhz float64) int {
	t.Helper()
	require.NoError(t, r.SetFrequency(mhz))
	require.NoError(t, r.ReceiveDirect())
	rssi, err := r.ReadRSSI()
	require.NoError(t, err)
	return rssi
}

func TestMockRadio(t *testing.T) {
	t.Run("Requires Begin", func(t *testing.T) {
		r := NewMockRadio()
		assert.Error(t, r.SetFrequency(433.92))
		_, err := r.ReadRSSI()
		assert.Error(t, err)
	})

	t.Run("Noise Floor", func(t *testing.T) {
		r := NewMockRadio()
		require.NoError(t, r.Begin())
		assert.Equal(t, MockNoiseFloor, tuneAndRead(t, r, 433.92))
	})

	t.Run("Read Needs Receive", func(t *testing.T) {
		r := NewMockRadio()
		require.NoError(t, r.Begin())
		require.NoError(t, r.SetFrequency(433.92))
		_, err := r.ReadRSSI()
		assert.Error(t, err)
	})

	t.Run("Emitter Level", func(t *testing.T) {
		r := NewMockRadio(Emitter{FreqMHz: 433.92, PowerDBm: -40})
		require.NoError(t, r.Begin())
		require.NoError(t, r.SetModulation(true))

		assert.Equal(t, -40, tuneAndRead(t, r, 433.92))
		assert.Equal(t, -43, tuneAndRead(t, r, 433.95))

		require.NoError(t, r.SetModulation(false))
		assert.Equal(t, -40-mockMismatchDB, tuneAndRead(t, r, 433.92))

		require.NoError(t, r.SetBandwidth(58))
		assert.Equal(t, MockNoiseFloor, tuneAndRead(t, r, 434.42), "far outside the filter")
	})

	t.Run("Bursting Emitter", func(t *testing.T) {
		r := NewMockRadio(Emitter{FreqMHz: 315, PowerDBm: -50, FSK: true, Period: time.Second, OnTime: 100 * time.Millisecond})
		require.NoError(t, r.Begin())

		r.now = func() time.Time { return time.Unix(10, 50*int64(time.Millisecond)) }
		assert.Equal(t, -50, tuneAndRead(t, r, 315))
		r.now = func() time.Time { return time.Unix(10, 500*int64(time.Millisecond)) }
		assert.Equal(t, MockNoiseFloor, tuneAndRead(t, r, 315))
	})

	t.Run("Failure Injection", func(t *testing.T) {
		r := NewMockRadio()
		boom := errors.New("no answer")
		r.FailBegin(1, boom)
		assert.ErrorIs(t, r.Begin(), boom)
		assert.NoError(t, r.Begin())
		assert.Equal(t, 2, r.Begins())

		r.FailReadAt(2, boom)
		tuneAndRead(t, r, 433.92)
		require.NoError(t, r.ReceiveDirect())
		_, err := r.ReadRSSI()
		assert.ErrorIs(t, err, boom)
	})
}

func TestMockRadioWithScanEngine(t *testing.T) {
	r := NewMockRadio(
		Emitter{FreqMHz: 433.92, PowerDBm: -42},
		Emitter{FreqMHz: 868.35, PowerDBm: -70, FSK: true},
	)
	e := scan.NewEngine(r, scan.DefaultTiming())
	e.SetSleep(func(time.Duration) {})
	require.NoError(t, e.Init())

	res, err := e.ScanOnce(-60)
	require.NoError(t, err)
	assert.True(t, res.SignalDetected)
	assert.Equal(t, uint32(433920000), res.FineFreqHz)
	assert.Equal(t, "ASK/OOK", res.Modulation())

	r.SetEmitters(Emitter{FreqMHz: 868.35, PowerDBm: -45, FSK: true})
	res, err = e.ScanOnce(-60)
	require.NoError(t, err)
	assert.True(t, res.SignalDetected)
	assert.Equal(t, "FSK", res.Modulation())

	sw, err := e.CaptureSweep(433.05, 434.79, 96)
	require.NoError(t, err)
	assert.True(t, sw.Valid)
	assert.Equal(t, MockNoiseFloor, sw.MaxRSSI)
}

func TestMockPins(t *testing.T) {
	g := NewMockGPIO()
	p := g.Pin("GPIO6")
	assert.Same(t, p, g.Pin("GPIO6"))
	assert.False(t, p.ReadLevel())

	require.NoError(t, p.SetLevel(true))
	p.Drive(false)
	assert.False(t, p.ReadLevel())
	assert.Equal(t, []bool{true}, p.History(), "Drive is not a write")

	p.FailWrites(errors.New("stuck"))
	assert.Error(t, p.SetLevel(true))

	b := Buttons{Power: g.Pin("GPIO16")}
	g.Pin("GPIO16").Drive(true)
	power, lock, usb := b.Levels()
	assert.True(t, power)
	assert.False(t, lock)
	assert.False(t, usb)
}

func TestPowerLatch(t *testing.T) {
	g := NewMockGPIO()
	latch, amp, bl := g.Pin("latch"), g.Pin("amp"), g.Pin("bl")
	p := NewPowerLatch(latch, amp, bl)

	require.NoError(t, p.Hold())
	assert.True(t, latch.ReadLevel())
	assert.True(t, amp.ReadLevel())
	assert.True(t, bl.ReadLevel())

	require.NoError(t, p.SetBacklight(false))
	require.NoError(t, p.SetBacklight(true))

	p.RequestOff()
	assert.False(t, bl.ReadLevel())
	assert.True(t, amp.ReadLevel(), "amplifier stays on for the chime")
	require.NoError(t, p.SetBacklight(true))
	assert.False(t, bl.ReadLevel(), "backlight stays off once shutdown started")

	require.NoError(t, p.CommitPowerOff())
	assert.False(t, amp.ReadLevel())
	assert.False(t, latch.ReadLevel())
	assert.True(t, p.Committed())

	require.NoError(t, p.CommitPowerOff())
	assert.Equal(t, []bool{true, false}, latch.History(), "second commit is a no-op")
}

func TestPowerLatchCommitError(t *testing.T) {
	latch := NewMockPin("latch")
	p := NewPowerLatch(latch, nil, nil)
	require.NoError(t, p.Hold())
	p.RequestOff()

	latch.FailWrites(errors.New("pin busy"))
	assert.Error(t, p.CommitPowerOff())
}

func TestMockBattery(t *testing.T) {
	b := NewMockBattery(3.3)
	v, raw, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, 3.3, v)
	assert.Equal(t, 2047, raw)

	b.Set(9)
	_, raw, _ = b.Read()
	assert.Equal(t, 4095, raw)

	b.Fail(errors.New("adc"))
	_, _, err = b.Read()
	assert.Error(t, err)
}

func TestSysfsBattery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voltage_now")
	require.NoError(t, os.WriteFile(path, []byte("3987000\n"), 0644))

	b := NewSysfsBattery(path)
	v, raw, err := b.Read()
	require.NoError(t, err)
	assert.InDelta(t, 3.987, v, 1e-9)
	assert.Equal(t, 3987, raw)

	require.NoError(t, os.WriteFile(path, []byte("n/a"), 0644))
	_, _, err = b.Read()
	assert.Error(t, err)

	_, _, err = NewSysfsBattery(filepath.Join(dir, "missing")).Read()
	assert.Error(t, err)

	assert.Equal(t, "/sys/class/power_supply/BAT1/voltage_now", NewSysfsBattery("BAT1").path)
}

func TestAplaySink(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "pcm.raw")

	s := NewAplaySink("")
	s.binary = "sh"
	var args []string
	s.command = func(name string, a ...string) *exec.Cmd {
		args = a
		return exec.Command("sh", "-c", "cat > "+out)
	}

	require.NoError(t, s.Prepare())
	assert.ErrorIs(t, s.Write([]byte{1, 0}), audio.ErrStreamNotOpen)

	require.NoError(t, s.Open(16000, 2, 16))
	assert.Contains(t, args, "16000")
	assert.Contains(t, args, "default")
	assert.Error(t, s.Open(16000, 2, 16), "one stream at a time")

	require.NoError(t, s.SetVolume(50))
	require.NoError(t, s.Write([]byte{0x00, 0x10, 0x00, 0xF0}))
	require.NoError(t, s.SetMute(true))
	require.NoError(t, s.Write([]byte{0x00, 0x10}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	pcm, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x08, 0x00, 0xF8, 0x00, 0x00}, pcm)

	assert.Error(t, s.SetVolume(101))
	assert.Error(t, s.Open(16000, 2, 24))
}

func TestManagerSimulated(t *testing.T) {
	cfg := config.Default()
	h := NewManager(cfg, true)
	require.NoError(t, h.Initialize())
	defer h.Close()

	assert.True(t, h.IsInitialized())
	assert.True(t, h.Simulated())
	require.NotNil(t, h.MockRadio())
	assert.Same(t, h.MockRadio(), h.Radio())
	assert.NotNil(t, h.MockBattery())
	assert.IsType(t, &audio.MemorySink{}, h.Sink())

	latch := h.MockGPIO().Pin(cfg.Hardware.LatchPin)
	assert.True(t, latch.ReadLevel(), "latch is held after init")

	h.MockGPIO().Pin(cfg.Hardware.PowerButtonPin).Drive(true)
	power, _, _ := h.Buttons().Levels()
	assert.True(t, power)

	require.NoError(t, h.Close())
	assert.False(t, h.IsInitialized())
}

func TestManagerMockDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.Driver = "mock"
	assert.True(t, NewManager(cfg, false).Simulated())

	cfg.Radio.Driver = "cc1101"
	assert.False(t, NewManager(cfg, false).Simulated())
}
