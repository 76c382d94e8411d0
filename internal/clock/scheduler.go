// Package clock turns measured beat periods into a MIDI timing clock.
package clock

const (
	// PulsesPerQuarterNote is the MIDI clock resolution.
	PulsesPerQuarterNote = 24
	// WarmupBeats is the number of beats detected before ticks are emitted.
	WarmupBeats = 4
)

// Scheduler tracks the tick grid derived from the latest beat period.
// It is owned by the audio thread.
type Scheduler struct {
	framesPerTick uint64
	nextTickFrame uint64
	armed         bool
}

// OnPeriod restarts the tick grid at beatStart with a new period in frames.
// The new rate takes effect from this beat on; there is no mid-beat change.
// A period shorter than PulsesPerQuarterNote frames disarms the clock.
func (s *Scheduler) OnPeriod(period, beatStart uint64) {
	s.framesPerTick = period / PulsesPerQuarterNote
	if s.framesPerTick == 0 {
		s.armed = false
		return
	}
	s.nextTickFrame = beatStart + s.framesPerTick
	s.armed = true
}

// Due reports whether a clock pulse fires on frame f and, if so, advances
// the grid by one tick. Nothing fires until beatCount exceeds WarmupBeats;
// a grid left behind during warm-up is restarted by the next OnPeriod.
func (s *Scheduler) Due(f uint64, beatCount uint64) bool {
	if !s.armed || beatCount <= WarmupBeats || f != s.nextTickFrame {
		return false
	}
	s.nextTickFrame += s.framesPerTick
	return true
}

// FramesPerTick returns the current tick spacing, 0 before the first period.
func (s *Scheduler) FramesPerTick() uint64 {
	if !s.armed {
		return 0
	}
	return s.framesPerTick
}

// NextTickFrame returns the frame of the next scheduled pulse.
func (s *Scheduler) NextTickFrame() uint64 {
	return s.nextTickFrame
}

func (s *Scheduler) Reset() {
	*s = Scheduler{}
}

// BPM converts a beat period in frames to beats per minute.
func BPM(period uint64, sampleRate int) float64 {
	if period == 0 {
		return 0
	}
	return 60 * float64(sampleRate) / float64(period)
}
