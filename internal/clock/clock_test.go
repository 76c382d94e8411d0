package clock

import (
	"math"
	"testing"
)

func TestFramesPerTickFromPeriod(t *testing.T) {
	var s Scheduler
	if s.FramesPerTick() != 0 {
		t.Fatal("expected no tick rate before first period")
	}
	s.OnPeriod(24000, 30000)
	if got := s.FramesPerTick(); got != 1000 {
		t.Fatalf("framesPerTick = %d, want 1000", got)
	}
	if got := s.NextTickFrame(); got != 31000 {
		t.Fatalf("nextTickFrame = %d, want 31000", got)
	}
	// Integer division truncates.
	s.OnPeriod(24023, 0)
	if got := s.FramesPerTick(); got != 1000 {
		t.Fatalf("framesPerTick = %d, want 1000", got)
	}
}

func TestTicksEveryFrameSpacingAfterWarmup(t *testing.T) {
	var s Scheduler
	const beatStart = 120000
	s.OnPeriod(24000, beatStart)
	var ticks []uint64
	for f := uint64(beatStart); f < beatStart+24000; f++ {
		if s.Due(f, 5) {
			ticks = append(ticks, f)
		}
	}
	if len(ticks) != 23 {
		t.Fatalf("ticks = %d, want 23 within one beat after the start", len(ticks))
	}
	for i, f := range ticks {
		want := uint64(beatStart + (i+1)*1000)
		if f != want {
			t.Fatalf("tick %d at %d, want %d", i, f, want)
		}
	}
}

func TestNoTicksDuringWarmup(t *testing.T) {
	var s Scheduler
	s.OnPeriod(2400, 0)
	for f := uint64(0); f < 10000; f++ {
		for beats := uint64(0); beats <= WarmupBeats; beats++ {
			if s.Due(f, beats) {
				t.Fatalf("tick at %d with beatCount %d", f, beats)
			}
		}
	}
}

func TestNoTicksWithoutPeriod(t *testing.T) {
	var s Scheduler
	for f := uint64(0); f < 5000; f++ {
		if s.Due(f, 100) {
			t.Fatalf("tick at %d before any period", f)
		}
	}
}

func TestShortPeriodDisarms(t *testing.T) {
	var s Scheduler
	s.OnPeriod(2400, 0)
	s.OnPeriod(10, 500)
	if s.FramesPerTick() != 0 {
		t.Fatal("expected disarmed clock")
	}
	for f := uint64(0); f < 3000; f++ {
		if s.Due(f, 10) {
			t.Fatalf("tick at %d after disarm", f)
		}
	}
}

func TestBPM(t *testing.T) {
	if got := BPM(24000, 48000); math.Abs(got-120) > 1e-9 {
		t.Fatalf("BPM = %v, want 120", got)
	}
	if BPM(0, 48000) != 0 {
		t.Fatal("zero period should report 0 BPM")
	}
}

func TestEventBufferFixedCapacity(t *testing.T) {
	b := NewEventBuffer(2)
	if !b.Add(3, TimingClock) || !b.Add(7, TimingClock) {
		t.Fatal("expected room for two events")
	}
	if b.Add(9, TimingClock) {
		t.Fatal("expected overflow")
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}
	ev := b.Events()
	if len(ev) != 2 || ev[0].Offset != 3 || ev[1].Offset != 7 {
		t.Fatalf("events = %+v", ev)
	}
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("len after clear = %d", b.Len())
	}
}

func TestTimingClockByte(t *testing.T) {
	if len(TimingClock) != 1 || TimingClock[0] != 0xF8 {
		t.Fatalf("TimingClock = % X, want F8", []byte(TimingClock))
	}
}

func TestEventBufferAddDoesNotAllocate(t *testing.T) {
	b := NewEventBuffer(64)
	allocs := testing.AllocsPerRun(100, func() {
		b.Clear()
		for i := 0; i < 32; i++ {
			b.Add(uint32(i), TimingClock)
		}
	})
	if allocs != 0 {
		t.Fatalf("allocs per run = %v, want 0", allocs)
	}
}
