//go:build !headless

package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenHost plays the driver's output through ebiten's audio context.
// ebiten has no capture path, so input comes from the driver's source.
type EbitenHost struct {
	driver *Driver
	player *ebitaudio.Player
	reader io.ReadCloser
	once   sync.Once
}

func NewEbitenHost(sampleRate int, driver *Driver, bufferFrames int) (*EbitenHost, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(driver)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("ebiten player: %w", err)
	}
	if bufferFrames > 0 {
		pl.SetBufferSize(time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate))
	}
	return &EbitenHost{driver: driver, player: pl, reader: reader}, nil
}

func (h *EbitenHost) Name() string { return BackendEbiten }

func (h *EbitenHost) Start() error {
	h.player.Play()
	return nil
}

func (h *EbitenHost) Close() error {
	var err error
	h.once.Do(func() {
		h.driver.Detach()
		h.player.Pause()
		err = errors.Join(h.player.Close(), h.reader.Close())
	})
	return err
}
