// Package midiout forwards clock events from the audio thread to a MIDI port.
//
// The audio thread only ever does a non-blocking channel send; the port
// write happens on a separate goroutine that paces messages by their frame
// position.
package midiout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the rtmidi driver

	"github.com/cbegin/dynclock-go/internal/clock"
)

// queueSize bounds the events in flight between the audio thread and the
// port writer.
const queueSize = 1024

// resyncAfter is how far the writer may fall behind its frame clock before it
// re-anchors instead of sending a burst.
const resyncAfter = 100 * time.Millisecond

type item struct {
	frame uint64
	msg   midi.Message
}

// PortSender delivers events to a MIDI output port.
type PortSender struct {
	sampleRate int
	send       func(midi.Message) error
	closePort  func() error
	log        logrus.FieldLogger

	queue   chan item
	done    chan struct{}
	once    sync.Once
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// ListOutPorts returns the names of the available MIDI output ports.
func ListOutPorts() []string {
	var names []string
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// OpenPort opens the output port whose name contains name.
func OpenPort(name string, sampleRate int, log logrus.FieldLogger) (*PortSender, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("midi out port %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("midi out port %q: %w", name, err)
	}
	log.WithField("port", out.String()).Info("midi output opened")
	return newPortSender(sampleRate, send, out, log), nil
}

// CloseDriver releases the MIDI driver. Call once at shutdown.
func CloseDriver() {
	midi.CloseDriver()
}

func newPortSender(sampleRate int, send func(midi.Message) error, port drivers.Out, log logrus.FieldLogger) *PortSender {
	s := &PortSender{
		sampleRate: sampleRate,
		send:       send,
		log:        log,
		queue:      make(chan item, queueSize),
		done:       make(chan struct{}),
	}
	if port != nil {
		s.closePort = port.Close
	}
	go s.loop()
	return s
}

// Deliver queues events without blocking. Events that do not fit are
// dropped and counted.
func (s *PortSender) Deliver(frameTime uint64, events []clock.Event) {
	for _, ev := range events {
		select {
		case s.queue <- item{frame: frameTime + uint64(ev.Offset), msg: ev.Msg}:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *PortSender) loop() {
	defer close(s.done)
	var (
		anchored    bool
		anchorFrame uint64
		anchorTime  time.Time
	)
	for it := range s.queue {
		now := time.Now()
		if !anchored || it.frame < anchorFrame {
			anchored, anchorFrame, anchorTime = true, it.frame, now
		}
		due := anchorTime.Add(time.Duration(it.frame-anchorFrame) * time.Second / time.Duration(s.sampleRate))
		if wait := due.Sub(now); wait > 0 {
			time.Sleep(wait)
		} else if -wait > resyncAfter {
			anchorFrame, anchorTime = it.frame, now
		}
		if err := s.send(it.msg); err != nil {
			if s.failed.Add(1) == 1 {
				s.log.WithError(err).Warn("midi send failed")
			}
			continue
		}
		s.sent.Add(1)
	}
}

// Close stops the writer after draining queued events and closes the port.
// Deliver must not be called after Close.
func (s *PortSender) Close() error {
	var err error
	s.once.Do(func() {
		close(s.queue)
		<-s.done
		if s.closePort != nil {
			err = s.closePort()
		}
		if n := s.failed.Load(); n > 0 {
			err = errors.Join(err, fmt.Errorf("midi: %d sends failed", n))
		}
	})
	return err
}

func (s *PortSender) Sent() uint64    { return s.sent.Load() }
func (s *PortSender) Dropped() uint64 { return s.dropped.Load() }

// Counter is a sink that only counts events; it stands in for a port when
// none is configured.
type Counter struct {
	events    atomic.Uint64
	lastFrame atomic.Uint64
}

func (c *Counter) Deliver(frameTime uint64, events []clock.Event) {
	if len(events) == 0 {
		return
	}
	c.events.Add(uint64(len(events)))
	c.lastFrame.Store(frameTime + uint64(events[len(events)-1].Offset))
}

func (c *Counter) Events() uint64    { return c.events.Load() }
func (c *Counter) LastFrame() uint64 { return c.lastFrame.Load() }
