package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cznic/mathutil"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/dynclock-go"
	"github.com/cbegin/dynclock-go/internal/control"
	"github.com/cbegin/dynclock-go/internal/midiout"
	"github.com/cbegin/dynclock-go/internal/params"
	"github.com/cbegin/dynclock-go/internal/source"
)

func main() {
	var (
		modeName   = flag.String("mode", "dynamics", "engine: dynamics|beatclock")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto|portaudio")
		sampleRate = flag.Int("sample-rate", 48000, "sample rate")
		buffer     = flag.Int("buffer", 512, "buffer size in frames")
		bpm        = flag.Int("bpm", 120, "tempo of the synthetic click input (beatclock)")
		midiOut    = flag.String("midi-out", "", "MIDI output port for clock pulses (substring match)")
		listMIDI   = flag.Bool("list-midi", false, "list MIDI output ports and exit")
		seconds    = flag.Float64("seconds", 0, "stop after N seconds (0 = until interrupted)")
		offline    = flag.Bool("offline", false, "render the synthetic input without an audio device")
		wavPath    = flag.String("wav", "", "with -offline, write the output to this WAV file")
		logLevel   = flag.String("log-level", "info", "log level: debug|info|warn|error")

		steepness = flag.Float64("steepness", 0, "low-pass filter steepness [0, 0.99]")
		ratio     = flag.Float64("ratio", 1, "compressor ratio (>= 1)")
		threshold = flag.Float64("threshold", 0, "compressor threshold dB")
		makeup    = flag.Float64("makeup", 0, "makeup gain dB")
		rising    = flag.Float64("rising", -20, "beat rising threshold dB (<= 0)")
		falling   = flag.Float64("falling", -30, "beat falling threshold dB (<= rising)")
		lowMinMs  = flag.Float64("low-min-ms", 100, "minimum time below the falling threshold, ms")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)

	if *listMIDI {
		defer midiout.CloseDriver()
		ports := midiout.ListOutPorts()
		if len(ports) == 0 {
			fmt.Println("no MIDI output ports")
		}
		for _, name := range ports {
			fmt.Println(name)
		}
		return
	}

	mode, err := dynclock.ParseMode(strings.ToLower(strings.TrimSpace(*modeName)))
	if err != nil {
		log.Fatal(err)
	}
	input := newInput(mode, *sampleRate, *bpm)
	opts := []dynclock.EngineOption{
		dynclock.WithMode(mode),
		dynclock.WithLogger(log),
		dynclock.WithBufferFrames(*buffer),
		dynclock.WithInput(input),
		dynclock.WithParam(params.LowpassSteepness, *steepness),
		dynclock.WithParam(params.CompressorRatio, *ratio),
		dynclock.WithParam(params.CompressorThreshold, *threshold),
		dynclock.WithParam(params.MakeupGain, *makeup),
		dynclock.WithParam(params.RisingThreshold, *rising),
		dynclock.WithParam(params.FallingThreshold, *falling),
		dynclock.WithParam(params.LowMinTime, *lowMinMs),
	}

	if *offline {
		if err := runOffline(log, input, *sampleRate, *seconds, *wavPath, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *midiOut != "" {
		sender, err := midiout.OpenPort(*midiOut, *sampleRate, log)
		if err != nil {
			log.Fatal(err)
		}
		defer midiout.CloseDriver()
		defer func() {
			if err := sender.Close(); err != nil {
				log.WithError(err).Warn("midi close")
			}
			log.WithFields(logrus.Fields{"sent": sender.Sent(), "dropped": sender.Dropped()}).Info("midi output closed")
		}()
		opts = append(opts, dynclock.WithMIDISink(sender))
	}

	engine, err := dynclock.NewEngine(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	if err := engine.Start(*backend); err != nil {
		log.Fatal(err)
	}
	run(log, engine, *seconds)
	if err := engine.Stop(); err != nil {
		log.WithError(err).Error("stop")
	}
}

func newInput(mode dynclock.Mode, sampleRate, bpm int) source.Source {
	if mode == dynclock.ModeBeatClock {
		click := source.NewClick(sampleRate, float64(mathutil.ClampInt64(int64(bpm), 20, 400)), 0.8)
		click.SetNoiseFloor(0.005)
		return click
	}
	tone := source.NewTone(sampleRate, 220, 0.8)
	tone.SetWobble(0.7, 0.5)
	return tone
}

func run(log logrus.FieldLogger, engine *dynclock.Engine, seconds float64) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var deadline <-chan time.Time
	if seconds > 0 {
		deadline = time.After(time.Duration(seconds * float64(time.Second)))
	}
	events := engine.Watch()
	report := time.NewTicker(time.Second)
	defer report.Stop()
	tempo := control.NewTempoStats(engine.SampleRate())

	for {
		select {
		case <-interrupt:
			log.Info("interrupted")
			return
		case <-deadline:
			return
		case ev := <-events:
			if ev.Kind == dynclock.EventBeat {
				tempo.Observe(engine.Status())
			}
		case <-report.C:
			in, out := engine.Meters()
			st := engine.Status()
			fields := logrus.Fields{"in_peak": in, "out_peak": out, "buffers": st.Buffers}
			if engine.Mode() == dynclock.ModeBeatClock {
				fields["beats"] = st.BeatCount
				fields["ticks"] = st.Ticks
				fields["bpm"] = fmt.Sprintf("%.1f", tempo.Current())
				fields["bpm_median"] = fmt.Sprintf("%.1f", tempo.Median())
			}
			if h := engine.Health(); h.Faults > 0 || h.DriverErrors > 0 {
				fields["faults"] = h.Faults
			}
			log.WithFields(fields).Info("status")
		}
	}
}

func runOffline(log logrus.FieldLogger, input source.Source, sampleRate int, seconds float64, wavPath string, opts []dynclock.EngineOption) error {
	if seconds <= 0 {
		seconds = 10
	}
	r, err := dynclock.RenderSource(input, sampleRate, seconds, opts...)
	if err != nil {
		return err
	}
	fields := logrus.Fields{
		"frames":  len(r.Output),
		"beats":   r.Status.BeatCount,
		"period":  r.Status.LastPeriod,
		"ticks":   len(r.Events),
		"faults":  r.Status.Faults,
		"dropped": r.Status.DroppedEvents,
	}
	if len(r.Events) > 0 {
		fields["first_tick"] = r.Events[0].Frame
	}
	log.WithFields(fields).Info("offline render complete")
	if wavPath == "" {
		return nil
	}
	if err := os.WriteFile(wavPath, dynclock.EncodeWAVFloat32LE(r.Output, sampleRate, 1), 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	log.WithField("path", wavPath).Info("wrote wav")
	return nil
}
