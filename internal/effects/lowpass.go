package effects

// Lowpass is a one-pole recursive averaging filter (exponential moving average).
type Lowpass struct {
	alpha float32
	avg   float32
}

// NewLowpass creates a lowpass with the given averaging factor in (0, 1].
func NewLowpass(alpha float32) *Lowpass {
	l := &Lowpass{}
	l.SetAlpha(alpha)
	return l
}

// SetAlpha sets the averaging factor. Values outside (0, 1] are clamped;
// 1 passes the input through, values near 0 smooth heavily.
func (l *Lowpass) SetAlpha(alpha float32) {
	if !(alpha > 0) {
		alpha = 0.01
	}
	l.alpha = clamp(alpha, 0, 1)
}

func (l *Lowpass) Process(x float32) float32 {
	if l.alpha == 1 {
		l.avg = x
		return x
	}
	l.avg += l.alpha * (x - l.avg)
	return l.avg
}

func (l *Lowpass) Reset() {
	l.avg = 0
}
