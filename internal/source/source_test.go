package source

import (
	"math"
	"testing"
)

func TestLFOTriangleShape(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 1.0, WaveTriangle)
	sr := 100.0
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	if math.Abs(samples[0]+1) > 0.05 {
		t.Errorf("triangle at phase 0: got %f, want -1.0", samples[0])
	}
	if math.Abs(samples[50]-1) > 0.05 {
		t.Errorf("triangle at phase 0.5: got %f, want 1.0", samples[50])
	}
}

func TestLFOZeroDepthReturnsZero(t *testing.T) {
	l := &LFO{}
	l.Set(0, 5.0, WaveSine)
	if v := l.Sample(44100); v != 0 {
		t.Errorf("zero depth should return 0, got %f", v)
	}
	if l.Active() {
		t.Error("zero-depth LFO should not be active")
	}
}

func TestClickPeriodAndPeaks(t *testing.T) {
	c := NewClick(48000, 120, 0.8)
	if c.PeriodFrames() != 24000 {
		t.Fatalf("period = %d, want 24000", c.PeriodFrames())
	}
	buf := make([]float32, 72000)
	c.Read(buf)
	for _, beat := range []int{0, 24000, 48000} {
		if math.Abs(float64(buf[beat])-0.8) > 1e-6 {
			t.Errorf("click at %d = %v, want 0.8", beat, buf[beat])
		}
		if buf[beat+12000] != 0 {
			t.Errorf("expected silence between clicks at %d", beat+12000)
		}
	}
}

func TestClickNoiseFloorBounded(t *testing.T) {
	c := NewClick(48000, 100, 0.5)
	c.SetNoiseFloor(0.01)
	buf := make([]float32, 48000)
	c.Read(buf)
	for i := 5000; i < 20000; i++ {
		if math.Abs(float64(buf[i])) > 0.01 {
			t.Fatalf("noise floor exceeded at %d: %v", i, buf[i])
		}
	}
}

func TestToneAmplitude(t *testing.T) {
	tone := NewTone(48000, 1000, 0.5)
	buf := make([]float32, 4800)
	tone.Read(buf)
	var peak float64
	for _, v := range buf {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if math.Abs(peak-0.5) > 0.01 {
		t.Fatalf("peak = %v, want ~0.5", peak)
	}
}

func TestToneWobbleStaysInRange(t *testing.T) {
	tone := NewTone(48000, 440, 0.9)
	tone.SetWobble(0.5, 2)
	buf := make([]float32, 48000)
	tone.Read(buf)
	for i, v := range buf {
		if v > 1 || v < -1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestMixSums(t *testing.T) {
	a := NewTone(48000, 1000, 0.25)
	b := NewTone(48000, 1000, 0.25)
	m := NewMix(16, a, b)
	buf := make([]float32, 40)
	m.Read(buf)
	ref := NewTone(48000, 1000, 0.5)
	want := make([]float32, 40)
	ref.Read(want)
	for i := range buf {
		if math.Abs(float64(buf[i]-want[i])) > 1e-6 {
			t.Fatalf("mix[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
	Silence{}.Read(buf)
	if buf[3] != 0 {
		t.Fatal("silence produced non-zero")
	}
}
