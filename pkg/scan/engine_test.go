package scan

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRadio answers RSSI reads from a caller supplied field function
type fakeRadio struct {
	freq      float64
	bandwidth float64
	deviation float64
	ook       bool

	field func(mhz float64, ook bool) int

	beginErr   error
	beginCalls int
	calls      int
	tuned      []float64
	failReadAt int
	reads      int
}

func newFakeRadio(field func(mhz float64, ook bool) int) *fakeRadio {
	return &fakeRadio{field: field}
}

func (r *fakeRadio) Begin() error {
	r.calls++
	r.beginCalls++
	return r.beginErr
}

func (r *fakeRadio) SetFrequency(mhz float64) error {
	r.calls++
	r.freq = mhz
	r.tuned = append(r.tuned, mhz)
	return nil
}

func (r *fakeRadio) SetBandwidth(khz float64) error {
	r.calls++
	r.bandwidth = khz
	return nil
}

func (r *fakeRadio) SetDeviation(khz float64) error {
	r.calls++
	r.deviation = khz
	return nil
}

func (r *fakeRadio) SetModulation(ook bool) error {
	r.calls++
	r.ook = ook
	return nil
}

func (r *fakeRadio) Standby() error {
	r.calls++
	return nil
}

func (r *fakeRadio) ReceiveDirect() error {
	r.calls++
	return nil
}

func (r *fakeRadio) ReadRSSI() (int, error) {
	r.calls++
	r.reads++
	if r.failReadAt > 0 && r.reads == r.failReadAt {
		return 0, errors.New("spi timeout")
	}
	return r.field(r.freq, r.ook), nil
}

func flat(level int) func(float64, bool) int {
	return func(float64, bool) int { return level }
}

// peak models a single emitter: -30 dBm at center, 1 dB down per 10 kHz
func peak(centerHz int64, fsk bool) func(float64, bool) int {
	return func(mhz float64, ook bool) int {
		hz := int64(math.Round(mhz * 1e6))
		d := hz - centerHz
		if d < 0 {
			d = -d
		}
		rssi := -30 - int(d/10000)
		if rssi < -110 {
			rssi = -110
		}
		if ook == fsk {
			rssi -= 10
		}
		return rssi
	}
}

func newTestEngine(r RadioDriver) (*Engine, *[]time.Duration) {
	var sleeps []time.Duration
	e := NewEngine(r, DefaultTiming())
	e.SetSleep(func(d time.Duration) { sleeps = append(sleeps, d) })
	return e, &sleeps
}

func TestInit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r := newFakeRadio(flat(-100))
		e, _ := newTestEngine(r)
		require.NoError(t, e.Init())
		assert.Equal(t, DefaultTuneMHz, r.freq)
		assert.False(t, e.ReinitPending())
	})

	t.Run("Failure", func(t *testing.T) {
		r := newFakeRadio(flat(-100))
		r.beginErr = errors.New("chip not found")
		e, _ := newTestEngine(r)
		err := e.Init()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRadioInit))
	})
}

func TestCandidateFrequencies(t *testing.T) {
	assert.Len(t, CandidateFrequencies, 57)
	for i, f := range CandidateFrequencies {
		assert.True(t, inBand(int64(f)), "entry %d out of band", i)
		if i > 0 {
			assert.Greater(t, f, CandidateFrequencies[i-1], "table must be ascending")
		}
	}
}

func TestScanOnceThreshold(t *testing.T) {
	cases := []struct {
		name      string
		field     func(float64, bool) int
		threshold int
		detected  bool
		coarse    int
	}{
		{"Above Threshold", peak(433920000, true), -60, true, -30},
		{"Equal To Threshold", peak(433920000, true), -30, false, -30},
		{"Below Threshold", flat(-95), -60, false, -95},
		{"Very Weak Field", flat(-115), -120, true, -115},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFakeRadio(tc.field)
			e, _ := newTestEngine(r)
			res, err := e.ScanOnce(tc.threshold)
			require.NoError(t, err)
			assert.Equal(t, tc.detected, res.SignalDetected)
			assert.Equal(t, tc.coarse, res.CoarseRSSI)
			assert.Equal(t, 1, res.ScanCount)
		})
	}
}

func TestScanOnceCountsEveryCall(t *testing.T) {
	e, _ := newTestEngine(newFakeRadio(flat(-100)))
	for i := 1; i <= 12; i++ {
		res, err := e.ScanOnce(-60)
		require.NoError(t, err)
		assert.Equal(t, i, res.ScanCount)
	}
	assert.Equal(t, 12, e.ScanCount())
}

func TestFineScanGrid(t *testing.T) {
	r := newFakeRadio(peak(434000000, true))
	e, _ := newTestEngine(r)

	res, err := e.ScanOnce(-60)
	require.NoError(t, err)
	require.True(t, res.SignalDetected)

	assert.Equal(t, uint32(434075000), res.CoarseFreqHz)
	assert.Equal(t, uint32(433995000), res.FineFreqHz)
	assert.Equal(t, -30, res.FineRSSI)

	offset := int64(res.FineFreqHz) - int64(res.CoarseFreqHz)
	assert.LessOrEqual(t, abs64(offset), int64(FineSpanHz))
	assert.Zero(t, offset%FineStepHz)
	assert.InDelta(t, 433.995, res.FreqMHz(), 1e-9)
	assert.Equal(t, -30, res.RSSI())
}

func TestFineScanSkipsOutOfBand(t *testing.T) {
	r := newFakeRadio(peak(300000000, true))
	e, _ := newTestEngine(r)

	res, err := e.ScanOnce(-60)
	require.NoError(t, err)
	require.True(t, res.SignalDetected)
	assert.Equal(t, uint32(300000000), res.FineFreqHz)
	for _, f := range r.tuned {
		assert.GreaterOrEqual(t, f, BandMinMHz)
	}
}

func TestModulationClassification(t *testing.T) {
	t.Run("FSK Emitter", func(t *testing.T) {
		e, _ := newTestEngine(newFakeRadio(peak(433920000, true)))
		res, err := e.ScanOnce(-60)
		require.NoError(t, err)
		assert.True(t, res.IsFSK)
		assert.Equal(t, "FSK", res.Modulation())
	})

	t.Run("OOK Emitter", func(t *testing.T) {
		e, _ := newTestEngine(newFakeRadio(peak(433920000, false)))
		res, err := e.ScanOnce(-60)
		require.NoError(t, err)
		assert.False(t, res.IsFSK)
		assert.Equal(t, "ASK/OOK", res.Modulation())
	})

	t.Run("Tie Goes To ASK", func(t *testing.T) {
		e, _ := newTestEngine(newFakeRadio(flat(-40)))
		res, err := e.ScanOnce(-60)
		require.NoError(t, err)
		require.True(t, res.SignalDetected)
		assert.False(t, res.IsFSK)
	})

	t.Run("High Band Parameters", func(t *testing.T) {
		r := newFakeRadio(peak(868350000, true))
		e, _ := newTestEngine(r)
		_, err := e.ScanOnce(-60)
		require.NoError(t, err)
		assert.Equal(t, HighBandBandwidthKHz, r.bandwidth)
		assert.Equal(t, HighBandDeviationKHz, r.deviation)
		assert.Equal(t, ProfileModulation, e.Profile())
	})

	t.Run("Identical Settle Timing", func(t *testing.T) {
		e, sleeps := newTestEngine(newFakeRadio(peak(433920000, true)))
		_, err := e.ScanOnce(-60)
		require.NoError(t, err)

		s := *sleeps
		require.GreaterOrEqual(t, len(s), 4)
		tail := s[len(s)-4:]
		timing := DefaultTiming()
		assert.Equal(t, []time.Duration{
			timing.StandbySettle, timing.ReceiveSettle,
			timing.StandbySettle, timing.ReceiveSettle,
		}, tail)
	})
}

func TestRestoreScanMode(t *testing.T) {
	r := newFakeRadio(flat(-100))
	e, _ := newTestEngine(r)
	require.NoError(t, e.Init())
	assert.Equal(t, 1, r.beginCalls)

	_, err := e.ScanOnce(-60)
	require.NoError(t, err)
	assert.Equal(t, 1, r.beginCalls, "plain scan must not reinit")

	e.RestoreScanMode()
	assert.True(t, e.ReinitPending())

	t.Run("Failed Reinit Stays Pending", func(t *testing.T) {
		r.beginErr = errors.New("no response")
		res, err := e.ScanOnce(-60)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrReinitFailed))
		assert.Equal(t, ScanResult{}, res)
		assert.True(t, e.ReinitPending())
		assert.Equal(t, 2, r.beginCalls)
	})

	t.Run("Successful Reinit Clears Flag", func(t *testing.T) {
		r.beginErr = nil
		res, err := e.ScanOnce(-60)
		require.NoError(t, err)
		assert.Equal(t, 3, res.ScanCount)
		assert.False(t, e.ReinitPending())
		assert.Equal(t, 3, r.beginCalls)
	})
}

func TestReadFailureSchedulesReinit(t *testing.T) {
	r := newFakeRadio(flat(-100))
	r.failReadAt = 5
	e, _ := newTestEngine(r)

	_, err := e.ScanOnce(-60)
	require.Error(t, err)
	assert.True(t, e.ReinitPending())
}

func TestCaptureSweep(t *testing.T) {
	t.Run("Standard Band", func(t *testing.T) {
		r := newFakeRadio(peak(434000000, true))
		e, sleeps := newTestEngine(r)

		sweep, err := e.CaptureSweep(433.05, 434.79, 96)
		require.NoError(t, err)
		assert.True(t, sweep.Valid)
		assert.Equal(t, 96, sweep.SampleCount)
		assert.Len(t, sweep.RSSI(), 96)

		best := 0
		for i, v := range sweep.RSSI() {
			if v > sweep.RSSI()[best] {
				best = i
			}
		}
		assert.Equal(t, int(sweep.RSSI()[best]), sweep.MaxRSSI)
		assert.InDelta(t, sweep.FreqAt(best), sweep.MaxFreqMHz, 1e-9)
		assert.Equal(t, ProfileScan, e.Profile())
		assert.Equal(t, ScanBandwidthKHz, r.bandwidth)
		assert.Equal(t, 96, len(*sleeps))
		for _, d := range *sleeps {
			assert.Equal(t, DefaultTiming().SweepSettle, d)
		}
	})

	t.Run("Clamped Range", func(t *testing.T) {
		e, _ := newTestEngine(newFakeRadio(flat(-90)))
		sweep, err := e.CaptureSweep(100, 1200, 10)
		require.NoError(t, err)
		assert.Equal(t, BandMinMHz, sweep.StartMHz)
		assert.Equal(t, BandMaxMHz, sweep.EndMHz)
	})

	t.Run("Degenerate Range Nudged", func(t *testing.T) {
		e, _ := newTestEngine(newFakeRadio(flat(-90)))
		sweep, err := e.CaptureSweep(500, 450, 2)
		require.NoError(t, err)
		assert.Equal(t, 500.0, sweep.StartMHz)
		assert.InDelta(t, 500.1, sweep.EndMHz, 1e-9)
		assert.Equal(t, -90, sweep.MaxRSSI)
		assert.Equal(t, 500.0, sweep.MaxFreqMHz)
	})

	for _, count := range []int{0, 1, 129, 200} {
		count := count
		t.Run("Invalid Count", func(t *testing.T) {
			r := newFakeRadio(flat(-90))
			e, _ := newTestEngine(r)
			_, err := e.ScanOnce(-60)
			require.NoError(t, err)
			before := r.calls

			sweep, err := e.CaptureSweep(433.05, 434.79, count)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSampleCount))
			assert.False(t, sweep.Valid)
			assert.Equal(t, before, r.calls, "radio must not be touched")
			assert.Equal(t, ProfileScan, e.Profile())
		})
	}

	t.Run("Read Failure Restores Profile", func(t *testing.T) {
		r := newFakeRadio(flat(-90))
		r.failReadAt = 3
		e, _ := newTestEngine(r)
		sweep, err := e.CaptureSweep(433.05, 434.79, 16)
		require.Error(t, err)
		assert.False(t, sweep.Valid)
		assert.Equal(t, ProfileScan, e.Profile())
		assert.Equal(t, DefaultTuneMHz, r.freq)
	})
}

func TestSweepResultHelpers(t *testing.T) {
	s := SweepResult{StartMHz: 433.0, EndMHz: 434.0, SampleCount: 11}
	assert.InDelta(t, 0.1, s.StepMHz(), 1e-12)
	assert.InDelta(t, 433.5, s.FreqAt(5), 1e-12)

	var empty SweepResult
	assert.Empty(t, empty.RSSI())
	assert.Zero(t, empty.StepMHz())
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
