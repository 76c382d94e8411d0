package effects

// Makeup applies a fixed linear gain and hard-clips the magnitude to [0, 1].
type Makeup struct {
	gain float32
}

func NewMakeup(gain float32) *Makeup {
	m := &Makeup{}
	m.SetGain(gain)
	return m
}

func (m *Makeup) SetGain(gain float32) {
	if !(gain >= 0) {
		gain = 0
	}
	m.gain = gain
}

func (m *Makeup) Process(x float32) float32 {
	mag := abs32(x) * m.gain
	if mag > 1 {
		mag = 1
	}
	if x < 0 {
		return -mag
	}
	return mag
}

func (m *Makeup) Reset() {}
