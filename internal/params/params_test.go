package params

import (
	"math"
	"sync"
	"testing"
)

func TestDefaultsPublished(t *testing.T) {
	s := NewStore(48000)
	snap := s.Snapshot()
	if snap == nil {
		t.Fatal("expected initial snapshot")
	}
	if snap.Alpha != 1 || snap.RatioRecip != 1 || snap.ThresholdLin != 1 || snap.MakeupLin != 1 {
		t.Fatalf("unexpected dynamics defaults: %+v", *snap)
	}
	if snap.LowMinTimeFrames != 4800 {
		t.Fatalf("low min frames = %d, want 4800", snap.LowMinTimeFrames)
	}
}

func TestClampRules(t *testing.T) {
	cases := []struct {
		name string
		id   ID
		in   float64
		want float64
	}{
		{"steepness high", LowpassSteepness, 1.5, 0.99},
		{"steepness low", LowpassSteepness, -0.2, 0},
		{"ratio below one", CompressorRatio, 0.5, 1},
		{"ratio large", CompressorRatio, 40, 40},
		{"threshold unclamped low", CompressorThreshold, -80, -80},
		{"threshold unclamped high", CompressorThreshold, 12, 12},
		{"makeup unclamped", MakeupGain, 18, 18},
		{"rising above zero", RisingThreshold, 3, 0},
		{"rising very low", RisingThreshold, -150, -150},
		{"low min negative", LowMinTime, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(48000)
			s.Set(tc.id, tc.in)
			if got := s.Raw(tc.id); got != tc.want {
				t.Fatalf("Raw = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFallingThresholdBoundedByRising(t *testing.T) {
	s := NewStore(48000)
	s.Set(RisingThreshold, -20)
	s.Set(FallingThreshold, -10)
	if got := s.Raw(FallingThreshold); got != -20 {
		t.Fatalf("falling = %v, want clamp to rising -20", got)
	}
	s.Set(FallingThreshold, -140)
	if got := s.Raw(FallingThreshold); got != -100 {
		t.Fatalf("falling = %v, want -100", got)
	}
	s.Set(FallingThreshold, -25)
	s.Set(RisingThreshold, -30)
	if got := s.Raw(FallingThreshold); got != -30 {
		t.Fatalf("falling = %v, want re-clamped to -30", got)
	}
	info := s.Info(FallingThreshold)
	if info.Max != -30 || info.Min != -100 {
		t.Fatalf("falling range = [%v,%v], want [-100,-30]", info.Min, info.Max)
	}
	// Decibel semantics are kept for display; the linear value is derived.
	if math.Abs(info.Derived-math.Pow(10, -30.0/20)) > 1e-12 {
		t.Fatalf("falling derived = %v", info.Derived)
	}
}

func TestDerivations(t *testing.T) {
	s := NewStore(48000)
	s.Set(LowpassSteepness, 0.75)
	s.Set(CompressorRatio, 4)
	s.Set(CompressorThreshold, -6)
	s.Set(MakeupGain, 6)
	s.Set(LowMinTime, 20)
	snap := s.Snapshot()
	if snap.Alpha != 0.25 {
		t.Errorf("alpha = %v, want 0.25", snap.Alpha)
	}
	if snap.RatioRecip != 0.25 {
		t.Errorf("ratio recip = %v, want 0.25", snap.RatioRecip)
	}
	if snap.ThresholdDB != -6 {
		t.Errorf("threshold dB = %v", snap.ThresholdDB)
	}
	if math.Abs(float64(snap.ThresholdLin)-0.501187) > 1e-5 {
		t.Errorf("threshold lin = %v", snap.ThresholdLin)
	}
	if math.Abs(float64(snap.MakeupLin)-1.995262) > 1e-5 {
		t.Errorf("makeup lin = %v", snap.MakeupLin)
	}
	if snap.LowMinTimeFrames != 960 {
		t.Errorf("low min frames = %d, want 960", snap.LowMinTimeFrames)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore(48000)
	before := s.Snapshot()
	s.Set(CompressorRatio, 8)
	if before.RatioRecip != 1 {
		t.Fatalf("old snapshot changed: %v", before.RatioRecip)
	}
	if s.Snapshot() == before {
		t.Fatal("expected a new snapshot after Set")
	}
}

func TestNonFiniteInputIgnored(t *testing.T) {
	s := NewStore(48000)
	s.Set(MakeupGain, 3)
	s.Set(MakeupGain, math.NaN())
	s.Set(MakeupGain, math.Inf(1))
	if got := s.Raw(MakeupGain); got != 3 {
		t.Fatalf("makeup = %v, want 3", got)
	}
	s.Set(CompressorRatio, math.Inf(1))
	if got := s.Snapshot().RatioRecip; got != 0 {
		t.Fatalf("infinite ratio recip = %v, want 0", got)
	}
}

func TestAdjust(t *testing.T) {
	s := NewStore(44100)
	s.Adjust(LowpassSteepness, 0.1)
	s.Adjust(LowpassSteepness, 0.1)
	if got := s.Raw(LowpassSteepness); math.Abs(got-0.2) > 1e-12 {
		t.Fatalf("steepness = %v, want 0.2", got)
	}
	for i := 0; i < 20; i++ {
		s.Adjust(LowpassSteepness, 0.1)
	}
	if got := s.Raw(LowpassSteepness); got != 0.99 {
		t.Fatalf("steepness = %v, want 0.99", got)
	}
}

func TestFramesFromMillis(t *testing.T) {
	if got := FramesFromMillis(20, 48000); got != 960 {
		t.Fatalf("20 ms @ 48k = %d, want 960", got)
	}
	if got := FramesFromMillis(0, 48000); got != 0 {
		t.Fatalf("0 ms = %d", got)
	}
	if got := FramesFromMillis(500, 44100); got != 22050 {
		t.Fatalf("500 ms @ 44.1k = %d", got)
	}
	if got := FramesFromMillis(10.99, 44100); got != 484 {
		t.Fatalf("10.99 ms @ 44.1k = %d, want 484 (truncated)", got)
	}
	if got := FramesFromMillis(0.03, 48000); got != 1 {
		t.Fatalf("0.03 ms @ 48k = %d, want 1 (truncated)", got)
	}
}

func TestConcurrentSetAndSnapshot(t *testing.T) {
	s := NewStore(48000)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			// A snapshot is internally consistent: alpha and recip are
			// always in range regardless of concurrent writes.
			if snap.Alpha < 0.01 || snap.Alpha > 1 || snap.RatioRecip <= 0 || snap.RatioRecip > 1 {
				t.Errorf("torn snapshot: %+v", *snap)
				return
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		s.Set(LowpassSteepness, float64(i%100)/100)
		s.Set(CompressorRatio, float64(1+i%16))
	}
	close(stop)
	wg.Wait()
}

func TestPeakMeter(t *testing.T) {
	var m PeakMeter
	m.Publish(0.25)
	m.Publish(0.1)
	m.Publish(-3)
	if got := m.Load(); got != 0.25 {
		t.Fatalf("Load = %v, want 0.25", got)
	}
	m.Publish(0.75)
	if got := m.Drain(); got != 0.75 {
		t.Fatalf("Drain = %v, want 0.75", got)
	}
	if got := m.Drain(); got != 0 {
		t.Fatalf("Drain after reset = %v, want 0", got)
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(ID(99)); ok {
		t.Fatal("expected unknown id")
	}
	d, ok := Lookup(CompressorRatio)
	if !ok || d.Name != "compressor ratio" {
		t.Fatalf("Lookup = %+v", d)
	}
	if CompressorRatio.String() != "compressor ratio" {
		t.Fatalf("String = %q", CompressorRatio.String())
	}
}
