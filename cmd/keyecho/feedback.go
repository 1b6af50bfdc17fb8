package main

import (
	"log/slog"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/rawkey/config"
)

const toneDuration = 50 * time.Millisecond

// feedback plays a short tone; disabled when audio is off or unavailable
type feedback struct {
	enabled bool
	rate    beep.SampleRate
	freq    float64
	log     *slog.Logger
}

func newFeedback(cfg *config.Config, logger *slog.Logger) *feedback {
	fb := &feedback{
		rate: beep.SampleRate(cfg.SampleRate),
		freq: cfg.BeepFrequency,
		log:  logger,
	}
	if !cfg.BeepOnReturn {
		return fb
	}

	if err := speaker.Init(fb.rate, fb.rate.N(time.Second/10)); err != nil {
		// Non-fatal, keyecho runs without sound
		logger.Warn("audio_init_failed", slog.String("error", err.Error()))
		return fb
	}
	fb.enabled = true
	return fb
}

func (f *feedback) play() {
	if !f.enabled {
		return
	}

	sine, err := generators.SineTone(f.rate, f.freq)
	if err != nil {
		f.log.Warn("tone_failed", slog.Float64("freq", f.freq), slog.String("error", err.Error()))
		return
	}
	speaker.Play(beep.Take(f.rate.N(toneDuration), sine))
}

func (f *feedback) close() {
	if f.enabled {
		speaker.Close()
	}
}
