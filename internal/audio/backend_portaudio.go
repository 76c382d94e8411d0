//go:build !headless

package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioHost runs the driver full duplex on the default capture and
// playback devices, so the processor sees real input.
type PortAudioHost struct {
	driver *Driver
	stream *portaudio.Stream
	once   sync.Once
}

func NewPortAudioHost(sampleRate int, driver *Driver, bufferFrames int) (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	h := &PortAudioHost{driver: driver}
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(sampleRate), bufferFrames, h.process)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio open: %w", err)
	}
	h.stream = stream
	return h, nil
}

func (h *PortAudioHost) process(in, out []float32) {
	h.driver.Duplex(in, out)
}

func (h *PortAudioHost) Name() string { return BackendPortAudio }

func (h *PortAudioHost) Start() error {
	if err := h.stream.Start(); err != nil {
		return fmt.Errorf("portaudio start: %w", err)
	}
	return nil
}

func (h *PortAudioHost) Close() error {
	var err error
	h.once.Do(func() {
		h.driver.Detach()
		if stopErr := h.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("portaudio stop: %w", stopErr)
		}
		if closeErr := h.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("portaudio close: %w", closeErr)
		}
		if termErr := portaudio.Terminate(); termErr != nil && err == nil {
			err = fmt.Errorf("portaudio terminate: %w", termErr)
		}
	})
	return err
}
