// Package params holds the user-tunable engine parameters.
//
// The control thread writes raw values through Store.Set; every write clamps
// the value, recomputes the derived values and publishes a fresh immutable
// Snapshot through an atomic pointer. The audio thread loads that pointer once
// per buffer and never takes a lock.
package params

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/dynclock-go/internal/effects"
)

// ID identifies a parameter.
type ID int

const (
	LowpassSteepness ID = iota
	CompressorRatio
	CompressorThreshold
	MakeupGain
	RisingThreshold
	FallingThreshold
	LowMinTime

	numParams
)

// Count is the number of parameters.
const Count = int(numParams)

// Definition describes one parameter: its valid range, default and the step
// sizes used by the control surface.
type Definition struct {
	ID        ID
	Name      string
	Unit      string
	Min       float64
	Max       float64
	Default   float64
	LargeStep float64
	SmallStep float64
	Format    string // printf verb for the raw value
}

var definitions = [numParams]Definition{
	LowpassSteepness: {
		ID: LowpassSteepness, Name: "low-pass filter steepness",
		Min: 0, Max: 0.99, Default: 0,
		LargeStep: 0.1, SmallStep: 0.01, Format: " %1.2f    ",
	},
	CompressorRatio: {
		ID: CompressorRatio, Name: "compressor ratio",
		Min: 1, Max: math.Inf(1), Default: 1,
		LargeStep: 0.1, SmallStep: 0.01, Format: " %1.2f    ",
	},
	CompressorThreshold: {
		ID: CompressorThreshold, Name: "compressor threshold", Unit: "dB",
		Min: math.Inf(-1), Max: math.Inf(1), Default: 0,
		LargeStep: 0.1, SmallStep: 0.01, Format: "%+1.2f dB ",
	},
	MakeupGain: {
		ID: MakeupGain, Name: "makeup gain", Unit: "dB",
		Min: math.Inf(-1), Max: math.Inf(1), Default: 0,
		LargeStep: 0.1, SmallStep: 0.01, Format: "%+1.2f dB ",
	},
	RisingThreshold: {
		ID: RisingThreshold, Name: "rising threshold", Unit: "dB",
		Min: math.Inf(-1), Max: 0, Default: -20,
		LargeStep: 1, SmallStep: 0.1, Format: "%+1.1f dB ",
	},
	FallingThreshold: {
		// Max tracks the rising threshold; see Store.bounds.
		ID: FallingThreshold, Name: "falling threshold", Unit: "dB",
		Min: -100, Max: 0, Default: -30,
		LargeStep: 1, SmallStep: 0.1, Format: "%+1.1f dB ",
	},
	LowMinTime: {
		ID: LowMinTime, Name: "low min time", Unit: "ms",
		Min: 0, Max: math.Inf(1), Default: 100,
		LargeStep: 10, SmallStep: 1, Format: "%5.0f ms ",
	},
}

// Lookup returns the static definition of id.
func Lookup(id ID) (Definition, bool) {
	if id < 0 || id >= numParams {
		return Definition{}, false
	}
	return definitions[id], true
}

func (id ID) String() string {
	if d, ok := Lookup(id); ok {
		return d.Name
	}
	return fmt.Sprintf("param(%d)", int(id))
}

// Snapshot is an immutable set of derived values valid for one audio buffer.
type Snapshot struct {
	Alpha            float32 // 1 - steepness
	RatioRecip       float32
	ThresholdDB      float32
	ThresholdLin     float32
	MakeupLin        float32
	RisingLin        float32
	FallingLin       float32
	LowMinTimeFrames uint64
}

// Info is a display view of one parameter.
type Info struct {
	Definition
	Raw     float64
	Derived float64
	Min     float64 // effective range; FallingThreshold's Max follows RisingThreshold
	Max     float64
}

// Store owns the raw parameter values and the published snapshot.
type Store struct {
	mu         sync.Mutex // serializes control-side writers only
	sampleRate int
	raw        [numParams]float64
	snap       atomic.Pointer[Snapshot]
}

// NewStore creates a store with every parameter at its default.
func NewStore(sampleRate int) *Store {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	s := &Store{sampleRate: sampleRate}
	for i := range definitions {
		s.raw[i] = definitions[i].Default
	}
	s.publish()
	return s
}

// SampleRate returns the rate used to convert milliseconds to frames.
func (s *Store) SampleRate() int { return s.sampleRate }

// Snapshot returns the latest published snapshot. Safe on the audio thread.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Set clamps raw into the parameter's range and publishes a new snapshot.
// Out-of-range input is never an error. NaN is ignored, as is an infinite
// value for a parameter whose derived value would stop being finite.
func (s *Store) Set(id ID, raw float64) {
	if id < 0 || id >= numParams || math.IsNaN(raw) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, raw)
	s.publish()
}

// Adjust adds delta to the current raw value.
func (s *Store) Adjust(id ID, delta float64) {
	if id < 0 || id >= numParams || math.IsNaN(delta) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, s.raw[id]+delta)
	s.publish()
}

// Raw returns the current raw value of id.
func (s *Store) Raw(id ID) float64 {
	if id < 0 || id >= numParams {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw[id]
}

// Info returns the raw value, derived value and effective range of id.
func (s *Store) Info(id ID) Info {
	def, ok := Lookup(id)
	if !ok {
		return Info{}
	}
	s.mu.Lock()
	raw := s.raw[id]
	lo, hi := s.bounds(id)
	s.mu.Unlock()
	return Info{
		Definition: def,
		Raw:        raw,
		Derived:    derive(id, raw, s.sampleRate),
		Min:        lo,
		Max:        hi,
	}
}

func (s *Store) setLocked(id ID, raw float64) {
	lo, hi := s.bounds(id)
	v := math.Min(math.Max(raw, lo), hi)
	if id != CompressorRatio && (math.IsInf(v, 0) || math.IsInf(float64(float32(derive(id, v, s.sampleRate))), 0)) {
		return
	}
	s.raw[id] = v
	if id == RisingThreshold && s.raw[FallingThreshold] > v {
		s.raw[FallingThreshold] = math.Max(v, definitions[FallingThreshold].Min)
	}
}

func (s *Store) bounds(id ID) (float64, float64) {
	d := definitions[id]
	if id == FallingThreshold {
		return d.Min, math.Max(d.Min, s.raw[RisingThreshold])
	}
	return d.Min, d.Max
}

func (s *Store) publish() {
	r := &s.raw
	s.snap.Store(&Snapshot{
		Alpha:            float32(derive(LowpassSteepness, r[LowpassSteepness], s.sampleRate)),
		RatioRecip:       float32(derive(CompressorRatio, r[CompressorRatio], s.sampleRate)),
		ThresholdDB:      float32(r[CompressorThreshold]),
		ThresholdLin:     float32(derive(CompressorThreshold, r[CompressorThreshold], s.sampleRate)),
		MakeupLin:        float32(derive(MakeupGain, r[MakeupGain], s.sampleRate)),
		RisingLin:        float32(derive(RisingThreshold, r[RisingThreshold], s.sampleRate)),
		FallingLin:       float32(derive(FallingThreshold, r[FallingThreshold], s.sampleRate)),
		LowMinTimeFrames: FramesFromMillis(r[LowMinTime], s.sampleRate),
	})
}

func derive(id ID, raw float64, sampleRate int) float64 {
	switch id {
	case LowpassSteepness:
		return 1 - raw
	case CompressorRatio:
		return 1 / raw
	case CompressorThreshold, MakeupGain, RisingThreshold, FallingThreshold:
		return effects.LinearFromDB(raw)
	case LowMinTime:
		return float64(FramesFromMillis(raw, sampleRate))
	}
	return raw
}

// FramesFromMillis converts a duration in milliseconds to a frame count,
// truncating any fractional frame.
func FramesFromMillis(ms float64, sampleRate int) uint64 {
	if !(ms > 0) {
		return 0
	}
	f := float64(sampleRate) * ms / 1000
	if f >= math.MaxUint64/2 {
		return math.MaxUint64 / 2
	}
	return uint64(f)
}
