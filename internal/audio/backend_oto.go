//go:build !headless

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoContextOnce sync.Once
	otoContext     *oto.Context
	otoContextErr  error
	otoSampleRate  int
)

func sharedOtoContext(sampleRate int, bufferFrames int) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
		}
		if bufferFrames > 0 {
			op.BufferSize = time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate)
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoContextErr = err
			return
		}
		<-ready
		otoSampleRate = sampleRate
		otoContext = ctx
	})
	if otoContextErr != nil {
		return nil, fmt.Errorf("oto context: %w", otoContextErr)
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoContext, nil
}

// monoReader encodes the driver's mono output as float32 LE for oto.
type monoReader struct {
	driver *Driver
}

func (r *monoReader) Read(p []byte) (int, error) {
	frames := len(p) / 4
	done := 0
	for done < frames {
		chunk := r.driver.scratch(frames - done)
		r.driver.Pull(chunk)
		for i, s := range chunk {
			binary.LittleEndian.PutUint32(p[(done+i)*4:], math.Float32bits(s))
		}
		done += len(chunk)
	}
	return frames * 4, nil
}

// OtoHost plays the driver's mono output directly through oto. Like ebiten,
// oto is output-only and input comes from the driver's source.
type OtoHost struct {
	driver *Driver
	player *oto.Player
	once   sync.Once
}

func NewOtoHost(sampleRate int, driver *Driver, bufferFrames int) (*OtoHost, error) {
	ctx, err := sharedOtoContext(sampleRate, bufferFrames)
	if err != nil {
		return nil, err
	}
	return &OtoHost{
		driver: driver,
		player: ctx.NewPlayer(&monoReader{driver: driver}),
	}, nil
}

func (h *OtoHost) Name() string { return BackendOto }

func (h *OtoHost) Start() error {
	h.player.Play()
	return nil
}

func (h *OtoHost) Close() error {
	var err error
	h.once.Do(func() {
		h.driver.Detach()
		h.player.Pause()
		err = h.player.Close()
	})
	return err
}
