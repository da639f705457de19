package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/scan"
	"github.com/dougsko/rfdetect/pkg/statebus"
)

const (
	// Threshold slider range in dBm
	ThresholdMin = -120
	ThresholdMax = -30

	// SpectrumBars is the fixed number of bars on the spectrum screen
	SpectrumBars = 96

	plotHeight   = 98
	minBarHeight = 2
	barRSSIMin   = -110
	barRSSIMax   = -35
)

// SpectrumView is the render-ready spectrum screen
type SpectrumView struct {
	Valid      bool    `json:"valid"`
	StartMHz   float64 `json:"start_mhz"`
	EndMHz     float64 `json:"end_mhz"`
	RSSI       []int   `json:"rssi"`
	Heights    []int   `json:"heights"`
	MaxFreqMHz float64 `json:"max_freq_mhz"`
	MaxRSSI    int     `json:"max_rssi"`
	Detected   bool    `json:"detected"`
	Info       string  `json:"info"`
}

// BatteryView is the battery indicator
type BatteryView struct {
	Known   bool    `json:"known"`
	Level   int     `json:"level"`
	Voltage float64 `json:"voltage"`
}

// View is everything the screens show. It is what the LVGL widgets would
// hold on the device.
type View struct {
	Screen     string       `json:"screen"`
	Mode       string       `json:"mode"`
	Locked     bool         `json:"locked"`
	Threshold  int          `json:"threshold"`
	FreqText   string       `json:"freq_text"`
	RSSIText   string       `json:"rssi_text"`
	Modulation string       `json:"modulation"`
	Status     string       `json:"status"`
	ScanCount  int          `json:"scan_count"`
	History    string       `json:"history"`
	Spectrum   SpectrumView `json:"spectrum"`
	Battery    BatteryView  `json:"battery"`
	Updated    time.Time    `json:"updated"`
}

type lastSignal struct {
	freqMHz    float64
	rssi       int
	modulation string
}

// Model is the display consumer. Producers publish to the bus; Refresh
// drains it into the View. All methods are safe for concurrent use.
type Model struct {
	mu        sync.Mutex
	bus       *statebus.Bus
	screen    Screen
	threshold int
	locked    bool
	last      lastSignal
	view      View

	onThresholdChanged func(int)
	onThresholdSaved   func(int)
	onSplashDone       func()
	onScreen           func(from, to Screen)
}

// NewModel creates a model on the splash screen
func NewModel(bus *statebus.Bus, threshold int) *Model {
	m := &Model{
		bus:       bus,
		screen:    ScreenSplash,
		threshold: clampInt(threshold, ThresholdMin, ThresholdMax),
	}
	m.view = View{
		FreqText:   "----",
		RSSIText:   "RSSI: --- dBm",
		Modulation: "----",
		History:    "Last: no signal",
		Spectrum:   SpectrumView{Info: "Waiting | Max -- MHz | --- dBm"},
	}
	m.syncHeader()
	return m
}

// OnThresholdChanged registers the callback fired while the slider moves
func (m *Model) OnThresholdChanged(fn func(int)) {
	m.mu.Lock()
	m.onThresholdChanged = fn
	m.mu.Unlock()
}

// OnThresholdSaved registers the callback fired when the user confirms a value
func (m *Model) OnThresholdSaved(fn func(int)) {
	m.mu.Lock()
	m.onThresholdSaved = fn
	m.mu.Unlock()
}

// OnSplashDone registers the callback fired when the splash is dismissed
func (m *Model) OnSplashDone(fn func()) {
	m.mu.Lock()
	m.onSplashDone = fn
	m.mu.Unlock()
}

// OnScreen registers the callback fired on every screen change
func (m *Model) OnScreen(fn func(from, to Screen)) {
	m.mu.Lock()
	m.onScreen = fn
	m.mu.Unlock()
}

// Screen returns the current screen
func (m *Model) Screen() Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

// Mode returns the scan mode of the current screen
func (m *Model) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ModeFor(m.screen)
}

// FreqOnlyActive reports whether the frequency-only screen is shown
func (m *Model) FreqOnlyActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen == ScreenFreqOnly
}

// Threshold returns the detection threshold in dBm
func (m *Model) Threshold() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold clamps v to the slider range, stores it and fires the
// change callback. It returns the stored value.
func (m *Model) SetThreshold(v int) int {
	m.mu.Lock()
	v = clampInt(v, ThresholdMin, ThresholdMax)
	m.threshold = v
	m.view.Threshold = v
	fn := m.onThresholdChanged
	m.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	return v
}

// CommitThreshold is the threshold screen's back button: the save callback
// fires with the current value and the frequency-only screen is shown.
func (m *Model) CommitThreshold() int {
	m.mu.Lock()
	v := m.threshold
	fn := m.onThresholdSaved
	m.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	m.SetScreen(ScreenFreqOnly)
	return v
}

// SplashDone leaves the splash for the menu and fires the splash callback.
// It does nothing once the splash is gone.
func (m *Model) SplashDone() {
	m.mu.Lock()
	if m.screen != ScreenSplash {
		m.mu.Unlock()
		return
	}
	fn := m.onSplashDone
	m.mu.Unlock()

	m.SetScreen(ScreenMenu)
	if fn != nil {
		fn()
	}
}

// SetScreen switches screens directly
func (m *Model) SetScreen(s Screen) {
	m.mu.Lock()
	from := m.screen
	if from == s {
		m.mu.Unlock()
		return
	}
	m.screen = s
	m.syncHeader()
	fn := m.onScreen
	m.mu.Unlock()

	logging.Debugf("display", "screen %s -> %s", from, s)
	if fn != nil {
		fn(from, s)
	}
}

// HandleSwipe applies a gesture. Gestures are ignored while the screen is
// locked. It returns the resulting screen.
func (m *Model) HandleSwipe(g Swipe) Screen {
	m.mu.Lock()
	if m.locked {
		s := m.screen
		m.mu.Unlock()
		return s
	}
	to := next(m.screen, g)
	m.mu.Unlock()

	m.SetScreen(to)
	return to
}

// SelectMenu opens a menu card: "subghz" or "ir"
func (m *Model) SelectMenu(card string) error {
	m.mu.Lock()
	if m.screen != ScreenMenu {
		m.mu.Unlock()
		return fmt.Errorf("menu is not shown")
	}
	m.mu.Unlock()

	switch card {
	case "subghz":
		m.SetScreen(ScreenFreqOnly)
	case "ir":
		m.SetScreen(ScreenIR)
	default:
		return fmt.Errorf("unknown menu card %q", card)
	}
	return nil
}

// SetLocked sets the screen lock. A locked screen has its backlight off
// and ignores touch.
func (m *Model) SetLocked(locked bool) {
	m.mu.Lock()
	m.locked = locked
	m.syncHeader()
	m.mu.Unlock()
}

// Locked reports the screen lock
func (m *Model) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// SetLastSignal records the most recent detection for the history line
func (m *Model) SetLastSignal(freqMHz float64, rssi int, modulation string) {
	m.mu.Lock()
	m.last = lastSignal{freqMHz: freqMHz, rssi: rssi, modulation: modulation}
	m.mu.Unlock()
}

// Refresh drains the bus slots into the view. It reports whether anything
// changed.
func (m *Model) Refresh(now time.Time) bool {
	det, hasDet := m.bus.Detection.TryConsume()
	spec, hasSpec := m.bus.Spectrum.TryConsume()
	bat, hasBat := m.bus.Battery.TryConsume()

	if !hasDet && !hasSpec && !hasBat {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if hasDet {
		m.applyDetection(det)
	}
	if hasSpec {
		m.applySpectrum(spec.Sweep)
	}
	if hasBat {
		m.view.Battery = BatteryView{Known: true, Level: bat.Level, Voltage: bat.Voltage}
	}
	m.view.Updated = now
	return true
}

// View returns a copy of the current view
func (m *Model) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.view
	v.Spectrum.RSSI = append([]int(nil), m.view.Spectrum.RSSI...)
	v.Spectrum.Heights = append([]int(nil), m.view.Spectrum.Heights...)
	return v
}

func (m *Model) applyDetection(u statebus.DetectionUpdate) {
	m.view.FreqText = formatFreq(u.FreqMHz)
	m.view.RSSIText = fmt.Sprintf("RSSI: %d dBm", u.RSSI)
	if u.Modulation != "" {
		m.view.Modulation = u.Modulation
	}
	if u.Status != "" {
		m.view.Status = u.Status
	}
	m.view.ScanCount = u.ScanCount

	if m.last.freqMHz > 0.01 {
		m.view.History = fmt.Sprintf("Last: %.2f MHz | %d dBm | %s",
			m.last.freqMHz, m.last.rssi, m.last.modulation)
	} else {
		m.view.History = "Last: no signal"
	}
}

func (m *Model) applySpectrum(sw scan.SweepResult) {
	if !sw.Valid || sw.SampleCount < 2 {
		return
	}

	detected := sw.MaxRSSI >= m.threshold
	rssi := make([]int, SpectrumBars)
	heights := make([]int, SpectrumBars)
	for i := 0; i < SpectrumBars; i++ {
		src := i * (sw.SampleCount - 1) / (SpectrumBars - 1)
		rssi[i] = int(sw.Samples[src])
		heights[i] = BarHeight(rssi[i])
	}

	state := "Waiting"
	if detected {
		state = "Signal detected"
	}
	m.view.Spectrum = SpectrumView{
		Valid:      true,
		StartMHz:   sw.StartMHz,
		EndMHz:     sw.EndMHz,
		RSSI:       rssi,
		Heights:    heights,
		MaxFreqMHz: sw.MaxFreqMHz,
		MaxRSSI:    sw.MaxRSSI,
		Detected:   detected,
		Info:       fmt.Sprintf("%s | Max %.3f MHz | %d dBm", state, sw.MaxFreqMHz, sw.MaxRSSI),
	}
}

func (m *Model) syncHeader() {
	m.view.Screen = m.screen.String()
	m.view.Mode = ModeFor(m.screen).String()
	m.view.Locked = m.locked
	m.view.Threshold = m.threshold
}

// BarHeight maps an RSSI to a spectrum bar height in pixels
func BarHeight(rssi int) int {
	c := clampInt(rssi, barRSSIMin, barRSSIMax)
	h := (c - barRSSIMin) * (plotHeight - minBarHeight) / (barRSSIMax - barRSSIMin)
	return clampInt(h, minBarHeight, plotHeight)
}

func formatFreq(mhz float64) string {
	if mhz > 0.01 {
		return fmt.Sprintf("%.2f", mhz)
	}
	return "----"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
