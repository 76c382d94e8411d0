// Package realtime runs the per-buffer audio callback.
//
// A Callback owns all DSP and state-machine state and is only ever driven by
// the host's audio thread. The only things it shares with the control thread
// are the parameter store (read once per buffer), the peak meters and the
// Status counters, all of which are lock-free.
package realtime

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cbegin/dynclock-go/internal/beat"
	"github.com/cbegin/dynclock-go/internal/clock"
	"github.com/cbegin/dynclock-go/internal/effects"
	"github.com/cbegin/dynclock-go/internal/params"
)

// ErrProcessFault is returned when a buffer could not be processed. The
// output buffer has been silenced.
var ErrProcessFault = errors.New("realtime: process fault, buffer silenced")

// Mode selects which engine runs inside the callback.
type Mode int

const (
	ModeDynamics Mode = iota
	ModeBeatClock
)

func (m Mode) String() string {
	switch m {
	case ModeDynamics:
		return "dynamics"
	case ModeBeatClock:
		return "beatclock"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "dynamics" or "beatclock".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "dynamics", "compressor":
		return ModeDynamics, nil
	case "beatclock", "metronome", "clock":
		return ModeBeatClock, nil
	}
	return 0, fmt.Errorf("unknown mode %q (expected dynamics|beatclock)", s)
}

// Status holds counters published by the audio thread for display.
type Status struct {
	Buffers       atomic.Uint64
	Faults        atomic.Uint64
	BeatCount     atomic.Uint64
	LastPeriod    atomic.Uint64
	FramesPerTick atomic.Uint64
	Ticks         atomic.Uint64
	DroppedEvents atomic.Uint64
}

// StatusSnapshot is a plain copy of Status.
type StatusSnapshot struct {
	Buffers       uint64
	Faults        uint64
	BeatCount     uint64
	LastPeriod    uint64
	FramesPerTick uint64
	Ticks         uint64
	DroppedEvents uint64
}

// Load copies the counters. Individual fields are atomic; the set is not.
func (s *Status) Load() StatusSnapshot {
	return StatusSnapshot{
		Buffers:       s.Buffers.Load(),
		Faults:        s.Faults.Load(),
		BeatCount:     s.BeatCount.Load(),
		LastPeriod:    s.LastPeriod.Load(),
		FramesPerTick: s.FramesPerTick.Load(),
		Ticks:         s.Ticks.Load(),
		DroppedEvents: s.DroppedEvents.Load(),
	}
}

// Callback is the per-buffer processor.
type Callback struct {
	mode   Mode
	store  *params.Store
	meters *params.Meters
	status *Status

	conditioner *effects.Conditioner
	detector    *beat.Detector
	scheduler   clock.Scheduler
}

// New creates a callback for mode reading parameters from store.
func New(store *params.Store, mode Mode) *Callback {
	return &Callback{
		mode:        mode,
		store:       store,
		meters:      &params.Meters{},
		status:      &Status{},
		conditioner: effects.NewConditioner(),
		detector:    beat.NewDetector(1, 1, 0),
	}
}

func (c *Callback) Mode() Mode             { return c.mode }
func (c *Callback) Meters() *params.Meters { return c.meters }
func (c *Callback) Status() *Status        { return c.status }
func (c *Callback) Store() *params.Store   { return c.store }
func (c *Callback) BeatState() beat.State  { return c.detector.State() }

// Process handles one buffer. in and out hold one channel of float32
// samples; midiOut, if non-nil, receives clock pulses stamped with their
// offset in the buffer; frameTime is the transport frame of in[0].
//
// Process never blocks or allocates. A panic in the sample loop is
// recovered, the buffer is silenced and ErrProcessFault is returned.
func (c *Callback) Process(in, out []float32, midiOut *clock.EventBuffer, frameTime uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			for i := range out {
				out[i] = 0
			}
			if midiOut != nil {
				midiOut.Clear()
			}
			c.status.Faults.Add(1)
			err = ErrProcessFault
		}
	}()

	if midiOut != nil {
		midiOut.Clear()
	}
	snap := c.store.Snapshot()

	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	switch c.mode {
	case ModeBeatClock:
		c.processBeatClock(snap, in[:n], out[:n], midiOut, frameTime)
	default:
		c.processDynamics(snap, in[:n], out[:n])
	}
	c.status.Buffers.Add(1)
	return nil
}

func (c *Callback) processDynamics(snap *params.Snapshot, in, out []float32) {
	c.conditioner.Configure(effects.Settings{
		Alpha:        snap.Alpha,
		ThresholdDB:  snap.ThresholdDB,
		ThresholdLin: snap.ThresholdLin,
		RatioRecip:   snap.RatioRecip,
		MakeupLin:    snap.MakeupLin,
	})
	var peakIn, peakOut float32
	for i, x := range in {
		if a := abs32(x); a > peakIn {
			peakIn = a
		}
		y := c.conditioner.Process(x)
		if a := abs32(y); a > peakOut {
			peakOut = a
		}
		out[i] = y
	}
	c.meters.Input.Publish(peakIn)
	c.meters.Output.Publish(peakOut)
}

func (c *Callback) processBeatClock(snap *params.Snapshot, in, out []float32, midiOut *clock.EventBuffer, frameTime uint64) {
	c.detector.Configure(snap.RisingLin, snap.FallingLin, snap.LowMinTimeFrames)
	var peak float32
	var ticks uint64
	for i, x := range in {
		f := frameTime + uint64(i)
		a := abs32(x)
		if a > peak {
			peak = a
		}
		ev := c.detector.Process(f, x)
		if ev.Measured {
			c.scheduler.OnPeriod(ev.Period, f)
			c.status.LastPeriod.Store(ev.Period)
			c.status.FramesPerTick.Store(c.scheduler.FramesPerTick())
		}
		if c.scheduler.Due(f, c.detector.BeatCount()) {
			ticks++
			if midiOut != nil && !midiOut.Add(uint32(i), clock.TimingClock) {
				c.status.DroppedEvents.Add(1)
			}
		}
		out[i] = a
	}
	c.status.BeatCount.Store(c.detector.BeatCount())
	if ticks > 0 {
		c.status.Ticks.Add(ticks)
	}
	c.meters.Input.Publish(peak)
	c.meters.Output.Publish(peak)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
