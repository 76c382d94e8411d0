package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbegin/dynclock-go/internal/clock"
)

// recordingProcessor doubles its input and emits one clock event per buffer.
type recordingProcessor struct {
	calls  atomic.Int64
	frames []uint64
	sizes  []int
}

func (p *recordingProcessor) Process(in, out []float32, midiOut *clock.EventBuffer, frameTime uint64) error {
	p.calls.Add(1)
	p.frames = append(p.frames, frameTime)
	p.sizes = append(p.sizes, len(in))
	midiOut.Clear()
	midiOut.Add(0, clock.TimingClock)
	for i := range out {
		out[i] = in[i] * 2
	}
	return nil
}

type constSource float32

func (c constSource) Read(dst []float32) {
	for i := range dst {
		dst[i] = float32(c)
	}
}

type sinkRecorder struct {
	frames []uint64
}

func (s *sinkRecorder) Deliver(frameTime uint64, events []clock.Event) {
	for range events {
		s.frames = append(s.frames, frameTime)
	}
}

func TestDriverPullChunksAndCountsFrames(t *testing.T) {
	proc := &recordingProcessor{}
	sink := &sinkRecorder{}
	d := NewDriver(proc, constSource(0.25), sink, 100)

	out := make([]float32, 250)
	d.Pull(out)
	if got := proc.sizes; len(got) != 3 || got[0] != 100 || got[1] != 100 || got[2] != 50 {
		t.Fatalf("chunk sizes = %v, want [100 100 50]", got)
	}
	if got := proc.frames; got[0] != 0 || got[1] != 100 || got[2] != 200 {
		t.Fatalf("frame times = %v", got)
	}
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}
	if d.Frames() != 250 {
		t.Fatalf("frames = %d, want 250", d.Frames())
	}
	if len(sink.frames) != 3 {
		t.Fatalf("sink deliveries = %d, want 3", len(sink.frames))
	}
}

func TestDriverDuplexPadsShortInput(t *testing.T) {
	proc := &recordingProcessor{}
	d := NewDriver(proc, nil, nil, 64)
	in := []float32{0.1, 0.2}
	out := make([]float32, 4)
	d.Duplex(in, out)
	want := []float32{0.2, 0.4, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestDetachStopsProcessing(t *testing.T) {
	proc := &recordingProcessor{}
	d := NewDriver(proc, constSource(1), nil, 32)
	out := make([]float32, 32)
	d.Pull(out)
	d.Detach()
	before := proc.calls.Load()
	for i := range out {
		out[i] = 7
	}
	d.Pull(out)
	if proc.calls.Load() != before {
		t.Fatal("processor called after detach")
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want silence after detach", i, v)
		}
	}
}

// slowProcessor blocks until released so Detach can be observed waiting.
type slowProcessor struct {
	entered chan struct{}
	release chan struct{}
	done    atomic.Bool
}

func (p *slowProcessor) Process(in, out []float32, midiOut *clock.EventBuffer, frameTime uint64) error {
	close(p.entered)
	<-p.release
	p.done.Store(true)
	return nil
}

func TestDetachWaitsForInFlightCallback(t *testing.T) {
	proc := &slowProcessor{entered: make(chan struct{}), release: make(chan struct{})}
	d := NewDriver(proc, nil, nil, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Pull(make([]float32, 16))
	}()
	<-proc.entered

	detached := make(chan struct{})
	go func() {
		d.Detach()
		close(detached)
	}()
	select {
	case <-detached:
		t.Fatal("Detach returned while a callback was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(proc.release)
	<-detached
	if !proc.done.Load() {
		t.Fatal("callback did not finish before Detach returned")
	}
	wg.Wait()
}

func TestStreamReaderInterleavesStereo(t *testing.T) {
	proc := &recordingProcessor{}
	d := NewDriver(proc, constSource(0.25), nil, 8)
	r := NewStreamReader(d)
	p := make([]byte, 20*8)
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i := 0; i < 40; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if v != 0.5 {
			t.Fatalf("sample %d = %v, want 0.5", i, v)
		}
	}
	if d.Frames() != 20 {
		t.Fatalf("frames = %d, want 20", d.Frames())
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("jack", 48000, NewDriver(&recordingProcessor{}, nil, nil, 0), 0)
	if err == nil {
		t.Fatal("expected error")
	}
}
