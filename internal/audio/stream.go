package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("audio: unknown backend")

// Host is a running audio transport. Close detaches the processor before
// tearing the device down; no callback touches the processor after Close
// returns.
type Host interface {
	Name() string
	Start() error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendEbiten    = "ebiten"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
)

// Open creates the named host around driver.
func Open(backend string, sampleRate int, driver *Driver, bufferFrames int) (Host, error) {
	var (
		host Host
		err  error
	)
	switch backend {
	case BackendEbiten, "":
		host, err = NewEbitenHost(sampleRate, driver, bufferFrames)
	case BackendOto:
		host, err = NewOtoHost(sampleRate, driver, bufferFrames)
	case BackendPortAudio:
		host, err = NewPortAudioHost(sampleRate, driver, bufferFrames)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}
	return host, nil
}

// StreamReader exposes a Driver as the stereo float32 little-endian byte
// stream ebiten's audio player pulls from. The mono output is copied to both
// channels.
type StreamReader struct {
	driver *Driver
}

func NewStreamReader(driver *Driver) *StreamReader {
	return &StreamReader{driver: driver}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	done := 0
	for done < frames {
		chunk := r.driver.scratch(frames - done)
		r.driver.Pull(chunk)
		for i, s := range chunk {
			u := math.Float32bits(s)
			off := (done + i) * 8
			binary.LittleEndian.PutUint32(p[off:], u)
			binary.LittleEndian.PutUint32(p[off+4:], u)
		}
		done += len(chunk)
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }
