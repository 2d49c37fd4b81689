package tts

import (
	"fmt"

	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/config"
)

// NewSynthesizer selects a synthesizer by cfg.Mode. busClient may be nil
// unless mode is bus.
func NewSynthesizer(cfg config.TTSConfig, busClient *bus.Client) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels)
	case "bus":
		return NewBusSynth(busClient, "interview")
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// NewPlayer selects a player by cfg.Mode.
func NewPlayer(cfg config.PlayerConfig) (Player, error) {
	switch cfg.Mode {
	case "", "discard":
		return NewDiscardPlayer(), nil
	case "exec":
		return NewExecPlayer(cfg.Command)
	case "wav":
		return NewWAVPlayer(cfg.Directory)
	default:
		return nil, fmt.Errorf("unsupported tts player mode %q", cfg.Mode)
	}
}
