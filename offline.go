package dynclock

import (
	"encoding/binary"
	"errors"
	"math"

	"gitlab.com/gomidi/midi/v2"

	intaudio "github.com/cbegin/dynclock-go/internal/audio"
	intclock "github.com/cbegin/dynclock-go/internal/clock"
	intrt "github.com/cbegin/dynclock-go/internal/realtime"
	intsrc "github.com/cbegin/dynclock-go/internal/source"
)

// ClockEvent is a MIDI message stamped with its absolute frame.
type ClockEvent struct {
	Frame uint64
	Msg   midi.Message
}

// Rendering is the result of an offline run.
type Rendering struct {
	Output []float32
	Events []ClockEvent
	Status intrt.StatusSnapshot
	Errors uint64 // buffers that faulted
}

// eventLog collects events with absolute frames. It allocates, so it is only
// used for offline runs.
type eventLog struct {
	events []ClockEvent
}

func (l *eventLog) Deliver(frameTime uint64, events []intclock.Event) {
	for _, ev := range events {
		l.events = append(l.events, ClockEvent{Frame: frameTime + uint64(ev.Offset), Msg: ev.Msg})
	}
}

// Render runs input through a fresh callback, exactly as a duplex host with
// the configured buffer size would. WithMode, WithBufferFrames and WithParam
// apply; other options are ignored.
func Render(input []float32, sampleRate int, opts ...EngineOption) (Rendering, error) {
	if sampleRate <= 0 {
		return Rendering{}, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mode != ModeDynamics && cfg.mode != ModeBeatClock {
		return Rendering{}, ErrUnknownMode
	}
	store := newStore(sampleRate, cfg.params)
	cb := intrt.New(store, cfg.mode)
	log := &eventLog{}
	driver := intaudio.NewDriver(cb, nil, log, cfg.bufferFrames)

	out := make([]float32, len(input))
	for start := 0; start < len(input); start += cfg.bufferFrames {
		end := min(start+cfg.bufferFrames, len(input))
		driver.Duplex(input[start:end], out[start:end])
	}
	driver.Detach()
	return Rendering{
		Output: out,
		Events: log.events,
		Status: cb.Status().Load(),
		Errors: driver.Errors(),
	}, nil
}

// RenderSource renders seconds of src.
func RenderSource(src intsrc.Source, sampleRate int, seconds float64, opts ...EngineOption) (Rendering, error) {
	frames := int(float64(sampleRate) * seconds)
	if frames < 0 {
		frames = 0
	}
	input := make([]float32, frames)
	src.Read(input)
	return Render(input, sampleRate, opts...)
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
