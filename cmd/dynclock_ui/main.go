package main

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/cbegin/dynclock-go"
	"github.com/cbegin/dynclock-go/internal/control"
	"github.com/cbegin/dynclock-go/internal/effects"
	"github.com/cbegin/dynclock-go/internal/midiout"
	"github.com/cbegin/dynclock-go/internal/source"
)

const (
	frameInterval = 16 * time.Millisecond
	meterFloorDB  = -60.0
	labelW        = 28
	valueW        = 12
	maxLogLines   = 200
)

var (
	styleDefault  = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleSelected = tcell.StyleDefault.Reverse(true)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBar      = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHot      = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleMarker   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleBeat     = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleErr      = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// logBuffer keeps the most recent log lines while tcell owns the terminal.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		b.lines = append(b.lines, string(line))
	}
	if over := len(b.lines) - maxLogLines; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
	return len(p), nil
}

func (b *logBuffer) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}

func (b *logBuffer) Flush(w *os.File) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range b.lines {
		fmt.Fprintln(w, line)
	}
	b.lines = nil
}

type game struct {
	screen  tcell.Screen
	engine  *dynclock.Engine
	surface *control.Surface
	tempo   *control.TempoStats
	events  <-chan dynclock.Event
	logs    *logBuffer
	backend string

	inPeak    float64
	outPeak   float64
	beatFlash int // frames left to highlight the beat indicator

	status    string
	statusErr bool
	frameTick int
	quit      bool
}

func newGame(screen tcell.Screen, engine *dynclock.Engine, backend string, logs *logBuffer) *game {
	return &game{
		screen:  screen,
		engine:  engine,
		surface: control.NewSurface(engine.Store(), engine.Mode()),
		tempo:   control.NewTempoStats(engine.SampleRate()),
		events:  engine.Watch(),
		logs:    logs,
		backend: backend,
		status:  "Ready",
	}
}

func (g *game) Update() {
	g.frameTick++
	g.pollEvents()
	in, out := g.engine.Meters()
	g.inPeak = math.Max(float64(in), g.inPeak*0.85)
	g.outPeak = math.Max(float64(out), g.outPeak*0.85)
	if g.beatFlash > 0 {
		g.beatFlash--
	}
}

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case dynclock.EventBeat:
				g.tempo.Observe(g.engine.Status())
				g.beatFlash = 6
			case dynclock.EventFault:
				g.setError(fmt.Sprintf("audio fault (%d buffers silenced)", ev.Faults))
			}
		default:
			return
		}
	}
}

func (g *game) HandleKey(ev *tcell.EventKey) {
	action := control.KeyAction(ev)
	if action == control.None {
		return
	}
	if g.surface.Apply(action) {
		g.quit = true
		return
	}
	if action != control.SelectPrev && action != control.SelectNext {
		info := g.engine.Store().Info(g.surface.Selected())
		g.setStatus(fmt.Sprintf("%s = %s", info.Name, strings.TrimSpace(fmt.Sprintf(info.Format, info.Raw))))
	}
}

func (g *game) Draw() {
	s := g.screen
	s.Clear()
	w, _ := s.Size()

	title := fmt.Sprintf("dynclock  %s  %s @ %d Hz", g.engine.Mode(), g.backend, g.engine.SampleRate())
	g.drawText(0, 0, styleTitle, title)
	g.drawText(0, 1, styleDim, strings.Repeat("─", max(0, w)))

	y := 2
	for _, row := range g.surface.Rows() {
		g.drawRow(y, w, row)
		y++
	}
	y++

	barW := max(10, w-labelW-2)
	snap := g.engine.Store().Snapshot()
	if g.engine.Mode() == dynclock.ModeBeatClock {
		g.drawText(0, y, styleDefault, "input")
		g.drawMeter(labelW, y, barW, g.inPeak, snap.RisingLin, snap.FallingLin)
		y += 2
		g.drawBeatStatus(y)
		y += 2
	} else {
		thr := snap.ThresholdLin
		g.drawText(0, y, styleDefault, "input")
		g.drawMeter(labelW, y, barW, g.inPeak, thr)
		y++
		g.drawText(0, y, styleDefault, "output")
		g.drawMeter(labelW, y, barW, g.outPeak, thr, thr*snap.MakeupLin)
		y += 2
	}

	g.drawStatus(y)
	g.drawText(0, y+2, styleDim, "↑/↓ select  →/= +  shift→/+ fine+  ←/- −  shift←/_ fine−  q quit")
	s.Show()
}

func (g *game) drawRow(y, w int, row control.Row) {
	style := styleDefault
	marker := "  "
	if row.Selected {
		style = styleSelected
		marker = "> "
	}
	g.drawText(0, y, style, shortenEnd(marker+row.Name, labelW))
	g.drawText(labelW, y, style, fmt.Sprintf("%*s", valueW, row.Text))
	barX := labelW + valueW + 2
	barW := w - barX - 1
	if barW < 4 || math.IsInf(row.Min, 0) || math.IsInf(row.Max, 0) || row.Max <= row.Min {
		return
	}
	filled := int(math.Round(clamp((row.Raw-row.Min)/(row.Max-row.Min), 0, 1) * float64(barW)))
	g.drawText(barX, y, styleBar, strings.Repeat("▪", filled))
	g.drawText(barX+filled, y, styleDim, strings.Repeat("·", barW-filled))
}

// drawMeter draws a peak bar on a dB scale with markers at the given linear
// levels.
func (g *game) drawMeter(x, y, width int, peak float64, markers ...float32) {
	filled := meterPos(peak, width)
	style := styleBar
	if peak >= 1 {
		style = styleHot
	}
	g.drawText(x, y, style, strings.Repeat("█", filled))
	g.drawText(x+filled, y, styleDim, strings.Repeat("░", width-filled))
	for _, m := range markers {
		pos := meterPos(float64(m), width)
		if pos >= width {
			pos = width - 1
		}
		g.screen.SetContent(x+pos, y, '|', nil, styleMarker)
	}
	g.drawText(x-10, y, styleDim, fmt.Sprintf("%+6.1f dB", clamp(effects.DBFromLinear(peak), meterFloorDB, 99)))
}

func (g *game) drawBeatStatus(y int) {
	st := g.engine.Status()
	indicator := "○"
	style := styleDim
	if g.beatFlash > 0 {
		indicator, style = "●", styleBeat
	}
	g.drawText(0, y, style, indicator+" beat")
	text := fmt.Sprintf("beats %d  ticks %d  bpm %.1f  median %.1f  p90 %.1f",
		st.BeatCount, st.Ticks, g.tempo.Current(), g.tempo.Median(), g.tempo.P90())
	if st.BeatCount <= 4 && st.BeatCount > 0 {
		text += fmt.Sprintf("  (warming up %d/4)", st.BeatCount)
	}
	g.drawText(labelW, y, styleDefault, text)
}

func (g *game) drawStatus(y int) {
	style := styleDefault
	if g.statusErr {
		style = styleErr
	}
	w, _ := g.screen.Size()
	g.drawText(0, y, style, shortenEnd(g.status, w))
	if last := g.logs.Last(); last != "" {
		g.drawText(0, y+1, styleDim, shortenEnd(last, w))
	}
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) drawText(x, y int, style tcell.Style, msg string) {
	for _, r := range msg {
		g.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// meterPos maps a linear level onto width cells between meterFloorDB and 0 dB.
func meterPos(level float64, width int) int {
	if !(level > 0) {
		return 0
	}
	frac := (effects.DBFromLinear(level) - meterFloorDB) / -meterFloorDB
	return int(math.Round(clamp(frac, 0, 1) * float64(width)))
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 1 {
		return string(r[:maxChars])
	}
	return string(r[:maxChars-1]) + "…"
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func main() {
	var (
		modeName   = flag.String("mode", "dynamics", "engine: dynamics|beatclock")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto|portaudio")
		sampleRate = flag.Int("sample-rate", 48000, "sample rate")
		buffer     = flag.Int("buffer", 512, "buffer size in frames")
		bpm        = flag.Float64("bpm", 120, "tempo of the synthetic click input (beatclock)")
		midiOut    = flag.String("midi-out", "", "MIDI output port for clock pulses (substring match)")
		logLevel   = flag.String("log-level", "info", "log level: debug|info|warn|error")
	)
	flag.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "dynclock_ui needs a terminal; use cmd/dynclock for headless runs")
		os.Exit(2)
	}

	logs := &logBuffer{}
	log := logrus.New()
	log.SetOutput(logs)
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(level)

	if err := run(log, logs, *modeName, *backend, *sampleRate, *buffer, *bpm, *midiOut); err != nil {
		logs.Flush(os.Stderr)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logs.Flush(os.Stderr)
}

func run(log *logrus.Logger, logs *logBuffer, modeName, backend string, sampleRate, buffer int, bpm float64, midiOut string) error {
	mode, err := dynclock.ParseMode(strings.ToLower(strings.TrimSpace(modeName)))
	if err != nil {
		return err
	}
	opts := []dynclock.EngineOption{
		dynclock.WithMode(mode),
		dynclock.WithLogger(log),
		dynclock.WithBufferFrames(buffer),
	}
	if mode == dynclock.ModeBeatClock {
		click := source.NewClick(sampleRate, bpm, 0.8)
		click.SetNoiseFloor(0.005)
		opts = append(opts, dynclock.WithInput(click))
	}
	if midiOut != "" {
		sender, err := midiout.OpenPort(midiOut, sampleRate, log)
		if err != nil {
			return err
		}
		defer midiout.CloseDriver()
		defer sender.Close()
		opts = append(opts, dynclock.WithMIDISink(sender))
	}

	engine, err := dynclock.NewEngine(sampleRate, opts...)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()

	if err := engine.Start(backend); err != nil {
		return err
	}
	defer engine.Stop()

	g := newGame(screen, engine, backend, logs)
	done := make(chan struct{})
	defer close(done)
	keys := pollKeys(screen, done)

	frame := time.NewTicker(frameInterval)
	defer frame.Stop()
	for !g.quit {
		select {
		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			g.HandleKey(ev)
		case <-frame.C:
			g.Update()
			g.Draw()
		}
	}
	return nil
}

// pollKeys forwards key events until the screen is finalized or done is
// closed. The returned channel is closed when polling stops.
func pollKeys(screen tcell.Screen, done <-chan struct{}) <-chan *tcell.EventKey {
	keys := make(chan *tcell.EventKey, 16)
	go func() {
		defer close(keys)
		for {
			select {
			case <-done:
				return
			default:
			}
			switch ev := screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				select {
				case keys <- ev:
				case <-done:
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}()
	return keys
}
