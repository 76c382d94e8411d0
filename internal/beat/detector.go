// Package beat detects beat onsets in an amplitude envelope.
//
// The detector is a two-state hysteresis machine: it enters a beat when the
// magnitude rises above the rising threshold and leaves it when the magnitude
// drops below the (lower) falling threshold. After a beat ends, a refractory
// window of lowMinFrames suppresses re-triggering on the decaying transient.
package beat

// State is the detector's beat bookkeeping. Frame numbers are on the
// transport's monotonic frame counter.
type State struct {
	InBeat                bool
	BeatCount             uint64
	CurrentBeatStart      uint64
	LastBeatStart         uint64
	CurrentBeatEnd        uint64
	LastBeatEnd           uint64
	EarliestNextBeatStart uint64
}

// Event reports what happened on one sample.
type Event struct {
	Onset    bool   // a beat started on this frame
	Measured bool   // Period is valid (second and later beats)
	Period   uint64 // frames between this beat start and the previous one
}

// Detector is owned by the audio thread.
type Detector struct {
	rising       float32
	falling      float32
	lowMinFrames uint64
	state        State
}

// NewDetector creates a detector with linear thresholds.
func NewDetector(risingLin, fallingLin float32, lowMinFrames uint64) *Detector {
	d := &Detector{}
	d.Configure(risingLin, fallingLin, lowMinFrames)
	return d
}

// Configure updates thresholds and the refractory length without touching
// the beat state.
func (d *Detector) Configure(risingLin, fallingLin float32, lowMinFrames uint64) {
	d.rising = risingLin
	d.falling = fallingLin
	d.lowMinFrames = lowMinFrames
}

// Process advances the state machine by one sample at transport frame f.
func (d *Detector) Process(f uint64, x float32) Event {
	m := x
	if m < 0 {
		m = -m
	}
	st := &d.state
	if !st.InBeat {
		if f > st.EarliestNextBeatStart && m > d.rising {
			st.InBeat = true
			st.BeatCount++
			st.LastBeatStart = st.CurrentBeatStart
			st.CurrentBeatStart = f
			ev := Event{Onset: true}
			if st.BeatCount >= 2 {
				ev.Measured = true
				ev.Period = st.CurrentBeatStart - st.LastBeatStart
			}
			return ev
		}
		return Event{}
	}
	if m < d.falling {
		st.InBeat = false
		st.LastBeatEnd = st.CurrentBeatEnd
		st.CurrentBeatEnd = f
		next := f + d.lowMinFrames
		if next < f {
			next = ^uint64(0)
		}
		if next > st.EarliestNextBeatStart {
			st.EarliestNextBeatStart = next
		}
	}
	return Event{}
}

// State returns a copy of the current beat bookkeeping.
func (d *Detector) State() State {
	return d.state
}

// BeatCount returns the number of beats detected so far.
func (d *Detector) BeatCount() uint64 {
	return d.state.BeatCount
}

func (d *Detector) Reset() {
	d.state = State{}
}
