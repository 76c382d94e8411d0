package clock

import (
	"gitlab.com/gomidi/midi/v2"
)

// TimingClock is the single-byte System Real-Time clock message (0xF8).
var TimingClock = midi.TimingClock()

// DefaultEventCapacity is enough for every pulse of a 8192-frame buffer at
// 300 BPM / 48 kHz with headroom.
const DefaultEventCapacity = 256

// Event is a MIDI message stamped with its frame offset inside a buffer.
type Event struct {
	Offset uint32
	Msg    midi.Message
}

// EventBuffer is a fixed-capacity per-buffer MIDI output queue. It never
// allocates after construction, so it is safe to fill from the audio thread.
type EventBuffer struct {
	events  []Event
	n       int
	dropped uint64
}

// NewEventBuffer preallocates room for capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventBuffer{events: make([]Event, capacity)}
}

// Clear empties the buffer. The dropped counter is cumulative and not reset.
func (b *EventBuffer) Clear() {
	b.n = 0
}

// Add appends msg at offset. When the buffer is full the event is dropped
// and counted; Add reports whether the event was stored.
func (b *EventBuffer) Add(offset uint32, msg midi.Message) bool {
	if b.n >= len(b.events) {
		b.dropped++
		return false
	}
	b.events[b.n] = Event{Offset: offset, Msg: msg}
	b.n++
	return true
}

// Events returns the events added since the last Clear. The slice aliases
// the buffer's storage and is only valid until the next Clear.
func (b *EventBuffer) Events() []Event {
	return b.events[:b.n]
}

func (b *EventBuffer) Len() int { return b.n }

// Dropped returns the total number of events that did not fit.
func (b *EventBuffer) Dropped() uint64 { return b.dropped }
