package audio

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cbegin/dynclock-go/internal/clock"
	"github.com/cbegin/dynclock-go/internal/source"
)

// Processor is the per-buffer callback the hosts drive. in and out are mono;
// frameTime is the transport frame of in[0].
type Processor interface {
	Process(in, out []float32, midiOut *clock.EventBuffer, frameTime uint64) error
}

// EventSink receives the MIDI events of each processed buffer. It is called
// on the audio thread and must not block; events is only valid during the
// call.
type EventSink interface {
	Deliver(frameTime uint64, events []clock.Event)
}

// DefaultMaxFrames is the largest chunk handed to the processor at once.
const DefaultMaxFrames = 4096

// Driver adapts a Processor to a host transport: it keeps the transport frame
// counter, feeds synthetic input to output-only hosts, splits oversized host
// buffers into preallocated chunks and forwards MIDI events to a sink.
//
// All buffers are allocated up front; the audio-thread methods never allocate.
type Driver struct {
	proc  Processor
	input source.Source
	sink  EventSink

	midi   *clock.EventBuffer
	inBuf  []float32
	outBuf []float32
	frame  uint64

	gate   gate
	errors atomic.Uint64
}

// NewDriver creates a driver. input may be nil for duplex hosts; sink may be
// nil to discard MIDI.
func NewDriver(proc Processor, input source.Source, sink EventSink, maxFrames int) *Driver {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if input == nil {
		input = source.Silence{}
	}
	return &Driver{
		proc:   proc,
		input:  input,
		sink:   sink,
		midi:   clock.NewEventBuffer(clock.DefaultEventCapacity),
		inBuf:  make([]float32, maxFrames),
		outBuf: make([]float32, maxFrames),
	}
}

// Duplex processes a host buffer that carries real input.
func (d *Driver) Duplex(in, out []float32) {
	if !d.gate.enter() {
		silence(out)
		return
	}
	defer d.gate.leave()

	n := len(out)
	for start := 0; start < n; start += len(d.inBuf) {
		end := start + len(d.inBuf)
		if end > n {
			end = n
		}
		chunkIn := d.inBuf[:end-start]
		if start < len(in) {
			copied := copy(chunkIn, in[start:min(end, len(in))])
			silence(chunkIn[copied:])
		} else {
			silence(chunkIn)
		}
		d.run(chunkIn, out[start:end])
	}
}

// Pull fills out for an output-only host, reading input from the driver's
// source.
func (d *Driver) Pull(out []float32) {
	if !d.gate.enter() {
		silence(out)
		return
	}
	defer d.gate.leave()

	for start := 0; start < len(out); start += len(d.inBuf) {
		end := start + len(d.inBuf)
		if end > len(out) {
			end = len(out)
		}
		chunkIn := d.inBuf[:end-start]
		d.input.Read(chunkIn)
		d.run(chunkIn, out[start:end])
	}
}

func (d *Driver) run(in, out []float32) {
	if err := d.proc.Process(in, out, d.midi, d.frame); err != nil {
		d.errors.Add(1)
	}
	if d.sink != nil && d.midi.Len() > 0 {
		d.sink.Deliver(d.frame, d.midi.Events())
	}
	d.frame += uint64(len(in))
}

// Detach stops the driver from invoking the processor and waits for any
// in-flight callback to return. After Detach the host may keep calling
// Duplex/Pull; they only write silence.
func (d *Driver) Detach() {
	d.gate.close()
}

// Errors returns the number of buffers the processor reported as failed.
func (d *Driver) Errors() uint64 { return d.errors.Load() }

// Frames returns the transport frame counter. Only meaningful after Detach
// or from the audio thread.
func (d *Driver) Frames() uint64 { return d.frame }

// scratch returns the driver's output chunk buffer for hosts that need an
// intermediate mono buffer (interleaving or byte encoding).
func (d *Driver) scratch(n int) []float32 {
	if n > len(d.outBuf) {
		n = len(d.outBuf)
	}
	return d.outBuf[:n]
}

// gate lets the control thread detach from the audio thread without a lock:
// callbacks register as in flight, and close waits for them to drain.
type gate struct {
	active atomic.Int32
	closed atomic.Bool
}

func (g *gate) enter() bool {
	g.active.Add(1)
	if g.closed.Load() {
		g.active.Add(-1)
		return false
	}
	return true
}

func (g *gate) leave() {
	g.active.Add(-1)
}

func (g *gate) close() {
	g.closed.Store(true)
	for g.active.Load() != 0 {
		runtime.Gosched()
		time.Sleep(100 * time.Microsecond)
	}
}

func silence(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
