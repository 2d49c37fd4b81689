package stt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/pcm"
)

// MockAnswer is what the mock recognizer hears.
const MockAnswer = "I enjoy working on a team because we learn from each other and I always try to communicate clearly about my progress and my blockers."

func NewRecognizer(cfg config.STTConfig, busClient *bus.Client) (Recognizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockRecognizer(MockAnswer), nil
	case "exec":
		return NewExecRecognizer(cfg)
	case "bus":
		return NewBusRecognizer(busClient)
	default:
		return nil, fmt.Errorf("unsupported stt mode %q", cfg.Mode)
	}
}

func NewSource(cfg config.STTConfig) (Source, error) {
	format := pcm.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	switch cfg.Source.Mode {
	case "", "mock":
		speech := 1500 * time.Millisecond
		silence := time.Duration(cfg.SilenceMS+200) * time.Millisecond
		return NewScriptedSource(format, cfg.FrameDurationMS, cfg.Source.Realtime,
			Segment{Duration: 300 * time.Millisecond},
			Segment{Duration: speech, Amplitude: 4000},
			Segment{Duration: silence},
		), nil
	case "exec":
		return NewExecSource(cfg.Source.Command, format, cfg.FrameDurationMS)
	case "wav":
		return NewWAVSource(cfg.Source.Path, cfg.FrameDurationMS, cfg.Source.Realtime), nil
	default:
		return nil, fmt.Errorf("unsupported audio source mode %q", cfg.Source.Mode)
	}
}

// Options maps the stt config section onto listener options.
func Options(cfg config.STTConfig, device string) ListenerOptions {
	return ListenerOptions{
		Device:          device,
		FrameMS:         cfg.FrameDurationMS,
		PartialEvery:    time.Duration(cfg.PartialEveryMS) * time.Millisecond,
		Interim:         cfg.PublishInterim,
		Silence:         time.Duration(cfg.SilenceMS) * time.Millisecond,
		NoSpeechTimeout: time.Duration(cfg.NoSpeechTimeoutMS) * time.Millisecond,
		MaxAnswer:       time.Duration(cfg.MaxAnswerMS) * time.Millisecond,
		EnergyThreshold: cfg.EnergyThreshold,
		FinalTimeout:    time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// NewListenerFromConfig builds the source, recognizer and listener for cfg.
func NewListenerFromConfig(cfg config.STTConfig, busClient *bus.Client, device string, log *slog.Logger) (*Listener, error) {
	source, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	recognizer, err := NewRecognizer(cfg, busClient)
	if err != nil {
		return nil, err
	}
	return NewListener(source, recognizer, Options(cfg, device), log), nil
}
