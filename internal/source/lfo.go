package source

import "math"

// Waveform constants for the LFO.
const (
	WaveSine     = 0
	WaveSquare   = 1
	WaveTriangle = 2
	WaveSaw      = 3
)

// LFO is a low-frequency oscillator used to modulate test-signal amplitude.
type LFO struct {
	depth    float64 // output swings over [-depth, +depth]
	rateHz   float64
	waveform int
	phase    float64 // [0, 1)
}

// Set configures the LFO. Unknown waveforms fall back to sine.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSine || waveform > WaveSaw {
		waveform = WaveSine
	}
	l.waveform = waveform
}

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.waveform {
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case WaveTriangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case WaveSaw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase = wrap(l.phase + l.rateHz/sampleRate)
	return v * l.depth
}

// Active reports whether the LFO produces any modulation.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *LFO) Reset() {
	l.phase = 0
}
