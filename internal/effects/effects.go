package effects

import "math"

// Effector processes mono audio one sample at a time.
type Effector interface {
	Process(x float32) float32
	Reset()
}

// LinearFromDB converts decibels to a linear amplitude factor.
func LinearFromDB(dB float64) float64 {
	return math.Pow(10, dB/20)
}

// DBFromLinear converts a linear amplitude factor to decibels.
// Zero maps to -Inf.
func DBFromLinear(linear float64) float64 {
	return 20 * math.Log10(linear)
}

// Settings carries the per-buffer values the Conditioner needs.
type Settings struct {
	Alpha        float32 // lowpass averaging factor, 1 = no smoothing
	ThresholdDB  float32
	ThresholdLin float32
	RatioRecip   float32
	MakeupLin    float32
}

// Conditioner is the dynamics pipeline: lowpass -> compressor -> makeup gain.
// All state belongs to the audio thread.
type Conditioner struct {
	lowpass    Lowpass
	compressor Compressor
	makeup     Makeup
}

// NewConditioner returns a conditioner with unity settings.
func NewConditioner() *Conditioner {
	c := &Conditioner{}
	c.Configure(Settings{Alpha: 1, ThresholdLin: 1, RatioRecip: 1, MakeupLin: 1})
	return c
}

// Configure applies one buffer's worth of settings. It does not reset state.
func (c *Conditioner) Configure(s Settings) {
	c.lowpass.SetAlpha(s.Alpha)
	c.compressor.Set(s.ThresholdDB, s.ThresholdLin, s.RatioRecip)
	c.makeup.SetGain(s.MakeupLin)
}

func (c *Conditioner) Process(x float32) float32 {
	return c.makeup.Process(c.compressor.Process(c.lowpass.Process(x)))
}

func (c *Conditioner) Reset() {
	c.lowpass.Reset()
	c.compressor.Reset()
	c.makeup.Reset()
}

// Filtered returns the lowpass running average.
func (c *Conditioner) Filtered() float32 {
	return c.lowpass.avg
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
