package display

import (
	"testing"
	"time"

	"github.com/dougsko/rfdetect/pkg/scan"
	"github.com/dougsko/rfdetect/pkg/statebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (*Model, *statebus.Bus) {
	t.Helper()
	bus := statebus.New()
	m := NewModel(bus, -60)
	return m, bus
}

func TestModeFor(t *testing.T) {
	cases := map[Screen]Mode{
		ScreenSplash:    ModeInactive,
		ScreenMenu:      ModeInactive,
		ScreenIR:        ModeInactive,
		ScreenFreqOnly:  ModeDetection,
		ScreenMain:      ModeDetection,
		ScreenThreshold: ModeDetection,
		ScreenSpectrum:  ModeSpectrum,
	}
	for s, want := range cases {
		assert.Equal(t, want, ModeFor(s), s.String())
	}
}

func TestParseScreen(t *testing.T) {
	s, ok := ParseScreen(" Spectrum ")
	require.True(t, ok)
	assert.Equal(t, ScreenSpectrum, s)

	s, ok = ParseScreen("freq-only")
	require.True(t, ok)
	assert.Equal(t, ScreenFreqOnly, s)

	_, ok = ParseScreen("settings")
	assert.False(t, ok)
}

func TestNavigation(t *testing.T) {
	m, _ := newTestModel(t)
	splashDone := 0
	m.OnSplashDone(func() { splashDone++ })

	m.SplashDone()
	assert.Equal(t, ScreenMenu, m.Screen())
	m.SplashDone()
	assert.Equal(t, 1, splashDone)

	require.NoError(t, m.SelectMenu("subghz"))
	assert.True(t, m.FreqOnlyActive())
	assert.Equal(t, ModeDetection, m.Mode())

	assert.Equal(t, ScreenMain, m.HandleSwipe(SwipeRight))
	assert.Equal(t, ScreenSpectrum, m.HandleSwipe(SwipeRight))
	assert.Equal(t, ScreenSpectrum, m.HandleSwipe(SwipeRight))
	assert.Equal(t, ModeSpectrum, m.Mode())
	assert.Equal(t, ScreenMain, m.HandleSwipe(SwipeLeft))
	assert.Equal(t, ScreenFreqOnly, m.HandleSwipe(SwipeLeft))
	assert.Equal(t, ScreenFreqOnly, m.HandleSwipe(SwipeLeft))

	assert.Equal(t, ScreenThreshold, m.HandleSwipe(SwipeUp))
	assert.Equal(t, ScreenMenu, m.HandleSwipe(SwipeDown))
	assert.Equal(t, ScreenMenu, m.HandleSwipe(SwipeDown))

	require.NoError(t, m.SelectMenu("ir"))
	assert.Equal(t, ModeInactive, m.Mode())
	assert.Equal(t, ScreenMenu, m.HandleSwipe(SwipeDown))

	assert.Error(t, m.SelectMenu("wifi"))
	m.SetScreen(ScreenMain)
	assert.Error(t, m.SelectMenu("subghz"), "cards only work from the menu")
}

func TestLockIgnoresGestures(t *testing.T) {
	m, _ := newTestModel(t)
	m.SetScreen(ScreenFreqOnly)
	m.SetLocked(true)
	assert.Equal(t, ScreenFreqOnly, m.HandleSwipe(SwipeRight))
	assert.True(t, m.View().Locked)

	m.SetLocked(false)
	assert.Equal(t, ScreenMain, m.HandleSwipe(SwipeRight))
}

func TestThreshold(t *testing.T) {
	m, _ := newTestModel(t)
	var changed, saved []int
	m.OnThresholdChanged(func(v int) { changed = append(changed, v) })
	m.OnThresholdSaved(func(v int) { saved = append(saved, v) })

	assert.Equal(t, -60, m.Threshold())
	assert.Equal(t, -75, m.SetThreshold(-75))
	assert.Equal(t, -120, m.SetThreshold(-200))
	assert.Equal(t, -30, m.SetThreshold(0))
	assert.Equal(t, []int{-75, -120, -30}, changed)
	assert.Empty(t, saved, "moving the slider does not persist")

	m.SetScreen(ScreenThreshold)
	assert.Equal(t, -30, m.CommitThreshold())
	assert.Equal(t, []int{-30}, saved)
	assert.Equal(t, ScreenFreqOnly, m.Screen())
	assert.Equal(t, -30, m.View().Threshold)

	assert.Equal(t, -120, NewModel(statebus.New(), -500).Threshold())
}

func TestRefreshDetection(t *testing.T) {
	m, bus := newTestModel(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.False(t, m.Refresh(now), "empty bus changes nothing")
	assert.Equal(t, "----", m.View().FreqText)

	bus.Detection.Publish(statebus.DetectionUpdate{
		FreqMHz: 433.92, RSSI: -45, Modulation: "ASK/OOK", Status: "Signal detected", ScanCount: 7,
	})
	m.SetLastSignal(433.92, -45, "ASK/OOK")
	require.True(t, m.Refresh(now))

	v := m.View()
	assert.Equal(t, "433.92", v.FreqText)
	assert.Equal(t, "RSSI: -45 dBm", v.RSSIText)
	assert.Equal(t, "ASK/OOK", v.Modulation)
	assert.Equal(t, "Signal detected", v.Status)
	assert.Equal(t, "Last: 433.92 MHz | -45 dBm | ASK/OOK", v.History)
	assert.Equal(t, 7, v.ScanCount)
	assert.Equal(t, now, v.Updated)

	// A status-only update keeps the modulation and blanks the frequency
	bus.Detection.Publish(statebus.StatusUpdate("Scan #10 - Waiting...", 10, now))
	require.True(t, m.Refresh(now))
	v = m.View()
	assert.Equal(t, "----", v.FreqText)
	assert.Equal(t, "ASK/OOK", v.Modulation)
	assert.Equal(t, "Scan #10 - Waiting...", v.Status)
}

func TestRefreshSpectrum(t *testing.T) {
	m, bus := newTestModel(t)

	sw := scan.SweepResult{StartMHz: 433.05, EndMHz: 434.79, SampleCount: 96, Valid: true, MaxRSSI: -50, MaxFreqMHz: 433.92}
	for i := 0; i < 96; i++ {
		sw.Samples[i] = int16(-110 + i)
	}
	bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: sw})
	require.True(t, m.Refresh(time.Now()))

	v := m.View()
	require.Len(t, v.Spectrum.Heights, SpectrumBars)
	assert.True(t, v.Spectrum.Detected)
	assert.Equal(t, -110, v.Spectrum.RSSI[0])
	assert.Equal(t, -15, v.Spectrum.RSSI[95])
	assert.Equal(t, 2, v.Spectrum.Heights[0])
	assert.Equal(t, 98-2, v.Spectrum.Heights[95])
	assert.Equal(t, "Signal detected | Max 433.920 MHz | -50 dBm", v.Spectrum.Info)

	// Below threshold
	m.SetThreshold(-40)
	bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: sw})
	m.Refresh(time.Now())
	assert.False(t, m.View().Spectrum.Detected)

	// Invalid sweeps are ignored
	bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: scan.SweepResult{}})
	m.Refresh(time.Now())
	assert.Equal(t, -50, m.View().Spectrum.MaxRSSI)
}

func TestRefreshResamplesShortSweep(t *testing.T) {
	m, bus := newTestModel(t)
	sw := scan.SweepResult{SampleCount: 3, Valid: true, MaxRSSI: -40}
	sw.Samples[0], sw.Samples[1], sw.Samples[2] = -100, -70, -40
	bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: sw})
	m.Refresh(time.Now())

	rssi := m.View().Spectrum.RSSI
	assert.Equal(t, -100, rssi[0])
	assert.Equal(t, -100, rssi[47])
	assert.Equal(t, -70, rssi[48])
	assert.Equal(t, -40, rssi[95])
}

func TestRefreshBattery(t *testing.T) {
	m, bus := newTestModel(t)
	bus.Battery.Publish(statebus.BatteryUpdate{Level: 3, Voltage: 4.0})
	m.Refresh(time.Now())
	assert.Equal(t, BatteryView{Known: true, Level: 3, Voltage: 4.0}, m.View().Battery)
}

func TestViewIsCopy(t *testing.T) {
	m, bus := newTestModel(t)
	sw := scan.SweepResult{SampleCount: 2, Valid: true}
	bus.Spectrum.Publish(statebus.SpectrumUpdate{Sweep: sw})
	m.Refresh(time.Now())

	v := m.View()
	v.Spectrum.Heights[0] = 77
	assert.NotEqual(t, 77, m.View().Spectrum.Heights[0])
}

func TestBarHeight(t *testing.T) {
	assert.Equal(t, 2, BarHeight(-130))
	assert.Equal(t, 2, BarHeight(-110))
	assert.Equal(t, 96, BarHeight(-35))
	assert.Equal(t, 96, BarHeight(0))
	assert.Equal(t, 48, BarHeight(-72))
}
