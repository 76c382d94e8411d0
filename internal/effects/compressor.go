package effects

import "math"

// Compressor is a hard-knee downward compressor computed in the dB domain.
// It has no envelope: the magnitude of each sample is compressed directly,
// so any smoothing has to happen upstream (see Lowpass).
type Compressor struct {
	thresholdDB float32
	threshold   float32 // linear
	ratioRecip  float32
}

// NewCompressor creates a compressor.
// thresholdDB: threshold in dB (0 dB = full scale)
// ratio: compression ratio, clamped to >= 1
func NewCompressor(thresholdDB, ratio float32) *Compressor {
	if !(ratio >= 1) {
		ratio = 1
	}
	c := &Compressor{}
	c.Set(thresholdDB, float32(LinearFromDB(float64(thresholdDB))), 1/ratio)
	return c
}

// Set updates threshold and ratio. thresholdLin must equal 10^(thresholdDB/20);
// both are passed so the audio thread never recomputes the conversion.
func (c *Compressor) Set(thresholdDB, thresholdLin, ratioRecip float32) {
	c.thresholdDB = thresholdDB
	c.threshold = thresholdLin
	c.ratioRecip = clamp(ratioRecip, 0, 1)
}

// Process compresses the magnitude of x and keeps its sign.
func (c *Compressor) Process(x float32) float32 {
	mag := abs32(x)
	out := c.Magnitude(mag)
	if x < 0 {
		return -out
	}
	return out
}

// Magnitude applies the static curve to a non-negative magnitude.
func (c *Compressor) Magnitude(mag float32) float32 {
	if !(mag > c.threshold) {
		return mag
	}
	magDB := DBFromLinear(float64(mag))
	thDB := float64(c.thresholdDB)
	outDB := thDB + (magDB-thDB)*float64(c.ratioRecip)
	return float32(math.Pow(10, outDB/20))
}

func (c *Compressor) Reset() {}
