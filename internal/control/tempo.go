package control

import (
	"github.com/bmizerany/perks/quantile"

	"github.com/cbegin/dynclock-go/internal/clock"
	"github.com/cbegin/dynclock-go/internal/realtime"
)

// TempoStats summarizes the measured tempo for display. It samples the
// callback's status counters and inserts one BPM value per new beat.
type TempoStats struct {
	sampleRate int
	q          *quantile.Stream
	beats      uint64
	current    float64
}

func NewTempoStats(sampleRate int) *TempoStats {
	return &TempoStats{sampleRate: sampleRate, q: quantile.NewTargeted(0.5, 0.9)}
}

// Observe records st if it carries a beat not seen before. It reports
// whether a value was recorded.
func (t *TempoStats) Observe(st realtime.StatusSnapshot) bool {
	if st.BeatCount == t.beats || st.LastPeriod == 0 {
		t.beats = st.BeatCount
		return false
	}
	t.beats = st.BeatCount
	t.current = clock.BPM(st.LastPeriod, t.sampleRate)
	t.q.Insert(t.current)
	return true
}

// Current is the tempo of the most recent period.
func (t *TempoStats) Current() float64 { return t.current }

func (t *TempoStats) Median() float64 {
	if t.q.Count() == 0 {
		return 0
	}
	return t.q.Query(0.5)
}

func (t *TempoStats) P90() float64 {
	if t.q.Count() == 0 {
		return 0
	}
	return t.q.Query(0.9)
}

func (t *TempoStats) Count() int { return t.q.Count() }

func (t *TempoStats) Reset() {
	t.q.Reset()
	t.current = 0
}
