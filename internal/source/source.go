// Package source generates synthetic input for hosts that have no capture path.
package source

import "math"

// Source fills dst with the next len(dst) mono samples.
// Implementations are called from the audio thread and must not allocate.
type Source interface {
	Read(dst []float32)
}

// Silence is a Source that produces zeros.
type Silence struct{}

func (Silence) Read(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

// Mix sums several sources into one.
type Mix struct {
	sources []Source
	scratch []float32
}

// NewMix creates a mixer. maxFrames sizes the internal scratch buffer; reads
// larger than that are processed in chunks.
func NewMix(maxFrames int, sources ...Source) *Mix {
	if maxFrames <= 0 {
		maxFrames = 4096
	}
	return &Mix{sources: sources, scratch: make([]float32, maxFrames)}
}

func (m *Mix) Read(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	for start := 0; start < len(dst); start += len(m.scratch) {
		end := start + len(m.scratch)
		if end > len(dst) {
			end = len(dst)
		}
		chunk := m.scratch[:end-start]
		for _, s := range m.sources {
			s.Read(chunk)
			for i, v := range chunk {
				dst[start+i] += v
			}
		}
	}
}

func phaseStep(freqHz float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return freqHz / float64(sampleRate)
}

func wrap(phase float64) float64 {
	return phase - math.Floor(phase)
}
