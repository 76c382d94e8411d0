package params

import (
	"math"
	"sync/atomic"
)

// PeakMeter holds a peak magnitude as float32 bits so the audio thread can
// publish and the control thread can drain without locking.
type PeakMeter struct {
	bits atomic.Uint32
}

// Publish raises the stored peak to v if v is larger. Called by the audio
// thread once per buffer.
func (m *PeakMeter) Publish(v float32) {
	if !(v > 0) {
		return
	}
	for {
		old := m.bits.Load()
		if math.Float32frombits(old) >= v {
			return
		}
		if m.bits.CompareAndSwap(old, math.Float32bits(v)) {
			return
		}
	}
}

// Load returns the current peak without resetting it.
func (m *PeakMeter) Load() float32 {
	return math.Float32frombits(m.bits.Load())
}

// Drain returns the peak accumulated since the last Drain and resets it to 0.
func (m *PeakMeter) Drain() float32 {
	return math.Float32frombits(m.bits.Swap(0))
}

// Meters are the input and output peak trackers read by the display.
type Meters struct {
	Input  PeakMeter
	Output PeakMeter
}
