package display

import "strings"

// Screen identifies one of the device screens
type Screen int

const (
	ScreenSplash Screen = iota
	ScreenMenu
	ScreenFreqOnly
	ScreenMain
	ScreenSpectrum
	ScreenIR
	ScreenThreshold
)

var screenNames = map[Screen]string{
	ScreenSplash:    "splash",
	ScreenMenu:      "menu",
	ScreenFreqOnly:  "freq-only",
	ScreenMain:      "main",
	ScreenSpectrum:  "spectrum",
	ScreenIR:        "ir",
	ScreenThreshold: "threshold",
}

func (s Screen) String() string {
	if name, ok := screenNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseScreen looks a screen up by name, case-insensitively
func ParseScreen(name string) (Screen, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range screenNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Mode is what the scan task should be doing for the current screen
type Mode int

const (
	ModeInactive Mode = iota
	ModeDetection
	ModeSpectrum
)

func (m Mode) String() string {
	switch m {
	case ModeDetection:
		return "detection"
	case ModeSpectrum:
		return "spectrum"
	default:
		return "inactive"
	}
}

// ModeFor maps a screen to its scan mode. The threshold editor keeps
// detection scanning running so the effect of a new value is visible.
func ModeFor(s Screen) Mode {
	switch s {
	case ScreenFreqOnly, ScreenMain, ScreenThreshold:
		return ModeDetection
	case ScreenSpectrum:
		return ModeSpectrum
	default:
		return ModeInactive
	}
}

// Swipe is a touch gesture direction
type Swipe int

const (
	SwipeLeft Swipe = iota
	SwipeRight
	SwipeUp
	SwipeDown
)

// ParseSwipe accepts left, right, up and down
func ParseSwipe(name string) (Swipe, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left":
		return SwipeLeft, true
	case "right":
		return SwipeRight, true
	case "up":
		return SwipeUp, true
	case "down":
		return SwipeDown, true
	}
	return 0, false
}

// next returns the screen a swipe leads to from s, or s when the gesture
// does nothing there
func next(s Screen, g Swipe) Screen {
	switch g {
	case SwipeRight:
		switch s {
		case ScreenFreqOnly:
			return ScreenMain
		case ScreenMain:
			return ScreenSpectrum
		}
	case SwipeLeft:
		switch s {
		case ScreenSpectrum:
			return ScreenMain
		case ScreenMain:
			return ScreenFreqOnly
		}
	case SwipeUp:
		if s == ScreenFreqOnly {
			return ScreenThreshold
		}
	case SwipeDown:
		switch s {
		case ScreenFreqOnly, ScreenMain, ScreenSpectrum, ScreenThreshold, ScreenIR:
			return ScreenMenu
		}
	}
	return s
}
