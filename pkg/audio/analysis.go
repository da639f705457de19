package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// ToneAnalysis summarizes a rendered cue
type ToneAnalysis struct {
	DominantHz float64 `json:"dominant_hz"`
	PeakLevel  float64 `json:"peak_db"`
	RMSLevel   float64 `json:"rms_db"`
	Clipping   bool    `json:"clipping"`
}

// DominantFrequency returns the frequency of the strongest FFT bin of a
// Hann-windowed mono signal, or zero for an empty signal.
func DominantFrequency(samples []int16, sampleRate int) float64 {
	if len(samples) < 2 || sampleRate <= 0 {
		return 0
	}

	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s) / 32768.0
	}
	window.Apply(x, window.Hann)

	spectrum := fft.FFTReal(x)
	best, bestMag := 0, 0.0
	// Skip DC
	for i := 1; i < len(spectrum)/2; i++ {
		if mag := cmplx.Abs(spectrum[i]); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return float64(best) * float64(sampleRate) / float64(len(samples))
}

// Analyze computes the dominant tone and levels of a mono signal
func Analyze(samples []int16, sampleRate int) ToneAnalysis {
	a := ToneAnalysis{PeakLevel: -100, RMSLevel: -100}
	if len(samples) == 0 {
		return a
	}

	var sumSquares float64
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
		if v >= 32000 {
			a.Clipping = true
		}
		sumSquares += v * v
	}

	if rms := math.Sqrt(sumSquares / float64(len(samples))); rms > 0 {
		a.RMSLevel = 20 * math.Log10(rms/32768.0)
	}
	if peak > 0 {
		a.PeakLevel = 20 * math.Log10(peak/32768.0)
	}
	a.DominantHz = DominantFrequency(samples, sampleRate)
	return a
}
