package source

import "math"

// Click is a metronome: a short decaying sine burst on every beat at a fixed
// tempo, over an optional noise floor. It is the default input for the
// beat-clock engine.
type Click struct {
	sampleRate  int
	periodFrame uint64 // frames per beat
	burstFrames uint64
	freqHz      float64
	amplitude   float64
	floor       float64
	pos         uint64 // frame within the current beat
	seed        uint32
}

// NewClick creates a click track at bpm with the given peak amplitude.
func NewClick(sampleRate int, bpm, amplitude float64) *Click {
	c := &Click{
		sampleRate: sampleRate,
		freqHz:     1000,
		amplitude:  math.Max(0, math.Min(1, amplitude)),
		seed:       0x9e3779b9,
	}
	c.SetTempo(bpm)
	return c
}

// SetTempo changes the beat rate. It takes effect from the next beat.
func (c *Click) SetTempo(bpm float64) {
	if !(bpm > 0) {
		bpm = 120
	}
	c.periodFrame = uint64(math.Round(60 * float64(c.sampleRate) / bpm))
	if c.periodFrame == 0 {
		c.periodFrame = 1
	}
	c.burstFrames = uint64(c.sampleRate) * 30 / 1000 // 30 ms
	if c.burstFrames >= c.periodFrame {
		c.burstFrames = c.periodFrame / 2
	}
}

// SetNoiseFloor adds uniform noise of the given peak level between clicks.
func (c *Click) SetNoiseFloor(level float64) {
	c.floor = math.Max(0, level)
}

// PeriodFrames returns the current beat period in frames.
func (c *Click) PeriodFrames() uint64 { return c.periodFrame }

func (c *Click) Read(dst []float32) {
	sr := float64(c.sampleRate)
	for i := range dst {
		var v float64
		if c.pos < c.burstFrames {
			t := float64(c.pos) / sr
			decay := 1 - float64(c.pos)/float64(c.burstFrames)
			v = c.amplitude * decay * math.Sin(2*math.Pi*c.freqHz*t+math.Pi/2)
		}
		if c.floor > 0 {
			v += c.floor * c.noise()
		}
		dst[i] = float32(v)
		c.pos++
		if c.pos >= c.periodFrame {
			c.pos = 0
		}
	}
}

// noise returns a value in [-1, 1) from a xorshift generator.
func (c *Click) noise() float64 {
	x := c.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	c.seed = x
	return float64(x)/float64(math.MaxUint32)*2 - 1
}
