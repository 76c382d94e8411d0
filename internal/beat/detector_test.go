package beat

import "testing"

// envelope returns a magnitude source that is high inside any [start, end) span.
func envelope(spans ...[2]uint64) func(uint64) float32 {
	return func(f uint64) float32 {
		for _, s := range spans {
			if f >= s[0] && f < s[1] {
				return 0.8
			}
		}
		return 0.001
	}
}

func run(d *Detector, from, to uint64, env func(uint64) float32) []uint64 {
	var onsets []uint64
	for f := from; f < to; f++ {
		if ev := d.Process(f, env(f)); ev.Onset {
			onsets = append(onsets, f)
		}
	}
	return onsets
}

func TestRefractoryWindowSuppressesRetrigger(t *testing.T) {
	d := NewDetector(0.5, 0.1, 500)
	// Rise at 1000, fall at 1200, re-cross at 1300 and hold through 1800.
	env := envelope([2]uint64{1000, 1200}, [2]uint64{1300, 1800})
	onsets := run(d, 0, 2000, env)
	if len(onsets) != 2 {
		t.Fatalf("onsets = %v, want 2", onsets)
	}
	if onsets[0] != 1000 {
		t.Fatalf("first onset = %d, want 1000", onsets[0])
	}
	if onsets[1] < 1700 {
		t.Fatalf("second onset at %d, before refractory end 1700", onsets[1])
	}
	if onsets[1] != 1701 {
		t.Fatalf("second onset = %d, want 1701 (first frame after 1700)", onsets[1])
	}
	st := d.State()
	if st.LastBeatEnd != 1200 || st.CurrentBeatEnd != 1800 {
		t.Fatalf("beat ends = %d/%d, want 1200/1800", st.LastBeatEnd, st.CurrentBeatEnd)
	}
}

func TestHysteresisIgnoresDipAboveFalling(t *testing.T) {
	d := NewDetector(0.5, 0.1, 0)
	signal := []float32{0, 0.6, 0.3, 0.6, 0.3, 0.05, 0.6}
	var onsets int
	for i, x := range signal {
		if d.Process(uint64(i+1), x).Onset {
			onsets++
		}
	}
	if onsets != 2 {
		t.Fatalf("onsets = %d, want 2 (dips to 0.3 stay in beat)", onsets)
	}
}

func TestPeriodMeasurement(t *testing.T) {
	d := NewDetector(0.5, 0.1, 100)
	env := envelope([2]uint64{1000, 1050}, [2]uint64{25000, 25050}, [2]uint64{49000, 49050})
	var periods []uint64
	for f := uint64(0); f < 50000; f++ {
		ev := d.Process(f, env(f))
		if ev.Onset && !ev.Measured && d.BeatCount() != 1 {
			t.Fatalf("beat %d without period", d.BeatCount())
		}
		if ev.Measured {
			periods = append(periods, ev.Period)
		}
	}
	if len(periods) != 2 || periods[0] != 24000 || periods[1] != 24000 {
		t.Fatalf("periods = %v, want [24000 24000]", periods)
	}
	st := d.State()
	if st.BeatCount != 3 || st.CurrentBeatStart != 49000 || st.LastBeatStart != 25000 {
		t.Fatalf("state = %+v", st)
	}
	if st.LastBeatEnd != 25050 || st.CurrentBeatEnd != 49050 {
		t.Fatalf("ends = %d/%d", st.LastBeatEnd, st.CurrentBeatEnd)
	}
}

func TestNegativeSamplesUseMagnitude(t *testing.T) {
	d := NewDetector(0.5, 0.1, 0)
	if !d.Process(1, -0.9).Onset {
		t.Fatal("expected onset on negative peak")
	}
	d.Process(2, -0.01)
	if d.State().InBeat {
		t.Fatal("expected quiet after small negative sample")
	}
}

func TestNoOnsetAtFrameZero(t *testing.T) {
	d := NewDetector(0.5, 0.1, 0)
	// earliestNextBeatStart starts at 0 and the comparison is strict.
	if d.Process(0, 1).Onset {
		t.Fatal("onset at frame 0")
	}
	if !d.Process(1, 1).Onset {
		t.Fatal("expected onset at frame 1")
	}
}

func TestReset(t *testing.T) {
	d := NewDetector(0.5, 0.1, 0)
	d.Process(5, 1)
	d.Reset()
	if d.State() != (State{}) {
		t.Fatalf("state after reset = %+v", d.State())
	}
}
