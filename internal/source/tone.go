package source

import "math"

// Tone is a sine test signal whose amplitude can wobble under an LFO. It is
// the default input for the dynamics engine: a slow swell across the
// compressor threshold makes the gain reduction visible on the meters.
type Tone struct {
	sampleRate int
	freqHz     float64
	amplitude  float64
	phase      float64
	wobble     LFO
}

// NewTone creates a tone at freqHz with peak amplitude in [0, 1].
func NewTone(sampleRate int, freqHz, amplitude float64) *Tone {
	return &Tone{
		sampleRate: sampleRate,
		freqHz:     freqHz,
		amplitude:  math.Max(0, math.Min(1, amplitude)),
	}
}

// SetWobble modulates the amplitude by ±depth (as a fraction of amplitude)
// at rateHz.
func (t *Tone) SetWobble(depth, rateHz float64) {
	t.wobble.Set(depth, rateHz, WaveTriangle)
}

func (t *Tone) Read(dst []float32) {
	step := phaseStep(t.freqHz, t.sampleRate)
	sr := float64(t.sampleRate)
	for i := range dst {
		amp := t.amplitude * (1 + t.wobble.Sample(sr))
		if amp > 1 {
			amp = 1
		} else if amp < 0 {
			amp = 0
		}
		dst[i] = float32(amp * math.Sin(2*math.Pi*t.phase))
		t.phase = wrap(t.phase + step)
	}
}
