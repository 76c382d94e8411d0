//go:build headless

package audio

import "fmt"

// OtoHost is unavailable in headless builds.
type OtoHost struct{}

func NewOtoHost(sampleRate int, driver *Driver, bufferFrames int) (*OtoHost, error) {
	return nil, fmt.Errorf("%w: %q (headless build)", ErrUnknownBackend, BackendOto)
}

func (h *OtoHost) Name() string { return BackendOto }
func (h *OtoHost) Start() error { return nil }
func (h *OtoHost) Close() error { return nil }

// PortAudioHost is unavailable in headless builds.
type PortAudioHost struct{}

func NewPortAudioHost(sampleRate int, driver *Driver, bufferFrames int) (*PortAudioHost, error) {
	return nil, fmt.Errorf("%w: %q (headless build)", ErrUnknownBackend, BackendPortAudio)
}

func (h *PortAudioHost) Name() string { return BackendPortAudio }
func (h *PortAudioHost) Start() error { return nil }
func (h *PortAudioHost) Close() error { return nil }

// EbitenHost is unavailable in headless builds.
type EbitenHost struct{}

func NewEbitenHost(sampleRate int, driver *Driver, bufferFrames int) (*EbitenHost, error) {
	return nil, fmt.Errorf("%w: %q (headless build)", ErrUnknownBackend, BackendEbiten)
}

func (h *EbitenHost) Name() string { return BackendEbiten }
func (h *EbitenHost) Start() error { return nil }
func (h *EbitenHost) Close() error { return nil }
