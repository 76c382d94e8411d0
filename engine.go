package dynclock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	intaudio "github.com/cbegin/dynclock-go/internal/audio"
	intclock "github.com/cbegin/dynclock-go/internal/clock"
	intparams "github.com/cbegin/dynclock-go/internal/params"
	intrt "github.com/cbegin/dynclock-go/internal/realtime"
	intsrc "github.com/cbegin/dynclock-go/internal/source"
)

var (
	ErrAlreadyRunning = errors.New("dynclock: engine already running")
	ErrUnknownBackend = intaudio.ErrUnknownBackend
	ErrUnknownMode    = errors.New("dynclock: unknown mode")
)

type Mode = intrt.Mode

const (
	ModeDynamics  = intrt.ModeDynamics
	ModeBeatClock = intrt.ModeBeatClock
)

// ParseMode accepts "dynamics" or "beatclock".
func ParseMode(s string) (Mode, error) {
	m, err := intrt.ParseMode(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownMode, err)
	}
	return m, nil
}

// Event carries engine events from Watch().
type Event struct {
	Kind      int // EventBeat or EventFault
	BeatCount uint64
	Period    uint64 // frames between the last two beat starts
	BPM       float64
	Faults    uint64
}

const (
	EventBeat int = iota
	EventFault
)

type EngineOption func(*engineConfig)

type engineConfig struct {
	mode         Mode
	log          logrus.FieldLogger
	bufferFrames int
	sink         intaudio.EventSink
	input        intsrc.Source
	params       map[intparams.ID]float64
	pollInterval time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		mode:         ModeDynamics,
		log:          logrus.StandardLogger(),
		bufferFrames: 512,
		pollInterval: 20 * time.Millisecond,
	}
}

func WithMode(mode Mode) EngineOption {
	return func(cfg *engineConfig) {
		cfg.mode = mode
	}
}

func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(cfg *engineConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithBufferFrames sets the host buffer size and the largest chunk handed to
// the callback.
func WithBufferFrames(n int) EngineOption {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.bufferFrames = n
		}
	}
}

// WithMIDISink installs the receiver of clock pulses. The sink runs on the
// audio thread; it must not block.
func WithMIDISink(sink intaudio.EventSink) EngineOption {
	return func(cfg *engineConfig) {
		cfg.sink = sink
	}
}

// WithInput sets the synthetic input used by output-only backends. Duplex
// backends ignore it.
func WithInput(src intsrc.Source) EngineOption {
	return func(cfg *engineConfig) {
		cfg.input = src
	}
}

// WithParam sets the initial raw value of a parameter. The value is clamped
// like any other write.
func WithParam(id intparams.ID, raw float64) EngineOption {
	return func(cfg *engineConfig) {
		if cfg.params == nil {
			cfg.params = make(map[intparams.ID]float64)
		}
		cfg.params[id] = raw
	}
}

func withPollInterval(d time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		cfg.pollInterval = d
	}
}

// Engine owns the parameter store and runs one realtime callback on an audio
// host. Parameter changes may be made at any time from any goroutine.
type Engine struct {
	mu         sync.Mutex
	sampleRate int
	cfg        engineConfig
	log        logrus.FieldLogger
	store      *intparams.Store
	callback   *intrt.Callback
	driver     *intaudio.Driver
	host       intaudio.Host
	stop       chan struct{}
	stopped    chan struct{}
	eventCh    chan Event
	eventChMu  sync.Mutex
}

func NewEngine(sampleRate int, opts ...EngineOption) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mode != ModeDynamics && cfg.mode != ModeBeatClock {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, cfg.mode)
	}
	store := newStore(sampleRate, cfg.params)
	return &Engine{
		sampleRate: sampleRate,
		cfg:        cfg,
		log:        cfg.log.WithField("mode", cfg.mode.String()),
		store:      store,
		callback:   intrt.New(store, cfg.mode),
	}, nil
}

// newStore applies initial values in ID order, so the rising threshold is in
// place before the falling threshold is clamped against it.
func newStore(sampleRate int, initial map[intparams.ID]float64) *intparams.Store {
	store := intparams.NewStore(sampleRate)
	for id := intparams.ID(0); int(id) < intparams.Count; id++ {
		if raw, ok := initial[id]; ok {
			store.Set(id, raw)
		}
	}
	return store
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) Mode() Mode { return e.cfg.mode }

// Store returns the parameter store shared with the audio thread.
func (e *Engine) Store() *intparams.Store { return e.store }

// Set writes a raw parameter value; it is visible to the audio thread from
// the next buffer.
func (e *Engine) Set(id intparams.ID, raw float64) {
	e.store.Set(id, raw)
	info := e.store.Info(id)
	e.log.WithFields(logrus.Fields{"param": id.String(), "raw": info.Raw, "derived": info.Derived}).Debug("parameter set")
}

// Start opens backend and begins processing. The callback state starts
// fresh; parameter values carry over from earlier runs.
func (e *Engine) Start(backend string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host != nil {
		return ErrAlreadyRunning
	}
	cb := intrt.New(e.store, e.cfg.mode)
	input := e.cfg.input
	if input == nil {
		input = e.defaultInput()
	}
	driver := intaudio.NewDriver(cb, input, e.cfg.sink, e.cfg.bufferFrames)
	host, err := intaudio.Open(backend, e.sampleRate, driver, e.cfg.bufferFrames)
	if err != nil {
		return err
	}
	if err := host.Start(); err != nil {
		_ = host.Close()
		return err
	}
	e.callback = cb
	e.driver = driver
	e.host = host
	e.stop = make(chan struct{})
	e.stopped = make(chan struct{})
	go e.monitor(cb, e.stop, e.stopped)
	e.log.WithFields(logrus.Fields{
		"backend":     host.Name(),
		"sample_rate": e.sampleRate,
		"buffer":      e.cfg.bufferFrames,
	}).Info("engine started")
	return nil
}

func (e *Engine) defaultInput() intsrc.Source {
	if e.cfg.mode == ModeBeatClock {
		return intsrc.NewClick(e.sampleRate, 120, 0.8)
	}
	tone := intsrc.NewTone(e.sampleRate, 220, 0.8)
	tone.SetWobble(0.7, 0.5)
	return tone
}

// Stop detaches the callback from the host and closes it. Once Stop returns
// no callback is running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	host := e.host
	stop, stopped := e.stop, e.stopped
	e.host = nil
	e.stop, e.stopped = nil, nil
	e.mu.Unlock()
	if host == nil {
		return nil
	}
	err := host.Close()
	close(stop)
	<-stopped
	st := e.Status()
	e.log.WithFields(logrus.Fields{
		"buffers": st.Buffers,
		"faults":  st.Faults,
		"beats":   st.BeatCount,
		"ticks":   st.Ticks,
	}).Info("engine stopped")
	return err
}

// Running reports whether a host is attached.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.host != nil
}

func (e *Engine) current() *intrt.Callback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callback
}

// Status returns the callback's counters.
func (e *Engine) Status() intrt.StatusSnapshot {
	return e.current().Status().Load()
}

// Meters returns and resets the input and output peaks since the last call.
func (e *Engine) Meters() (in, out float32) {
	m := e.current().Meters()
	return m.Input.Drain(), m.Output.Drain()
}

// Health summarizes the running engine.
type Health struct {
	Running       bool
	Backend       string
	Mode          Mode
	Buffers       uint64
	Faults        uint64
	DriverErrors  uint64
	DroppedEvents uint64
}

func (e *Engine) Health() Health {
	e.mu.Lock()
	h := Health{Mode: e.cfg.mode}
	if e.host != nil {
		h.Running = true
		h.Backend = e.host.Name()
	}
	cb, driver := e.callback, e.driver
	e.mu.Unlock()
	st := cb.Status().Load()
	h.Buffers = st.Buffers
	h.Faults = st.Faults
	h.DroppedEvents = st.DroppedEvents
	if driver != nil {
		h.DriverErrors = driver.Errors()
	}
	return h
}

// Watch returns a channel that receives engine events:
//   - EventBeat: a new beat was detected (beat-clock mode)
//   - EventFault: one or more buffers were silenced after a fault
//
// The channel is buffered (cap 8); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, 8)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

func (e *Engine) sendEvent(ev Event) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// monitor turns the callback's counters into events and log lines. It runs
// on its own goroutine so nothing on the audio thread logs.
func (e *Engine) monitor(cb *intrt.Callback, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	tick := time.NewTicker(e.cfg.pollInterval)
	defer tick.Stop()
	var last intrt.StatusSnapshot
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		st := cb.Status().Load()
		if st.Faults > last.Faults {
			e.log.WithField("faults", st.Faults).Warn("audio callback fault, buffer silenced")
			e.sendEvent(Event{Kind: EventFault, Faults: st.Faults})
		}
		if st.BeatCount > last.BeatCount {
			bpm := intclock.BPM(st.LastPeriod, e.sampleRate)
			e.log.WithFields(logrus.Fields{"beat": st.BeatCount, "period": st.LastPeriod, "bpm": bpm}).Debug("beat")
			e.sendEvent(Event{Kind: EventBeat, BeatCount: st.BeatCount, Period: st.LastPeriod, BPM: bpm})
		}
		if st.DroppedEvents > last.DroppedEvents {
			e.log.WithField("dropped", st.DroppedEvents).Warn("midi events dropped")
		}
		last = st
	}
}
