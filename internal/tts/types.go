package tts

import (
	"context"
	"errors"
)

// ErrBusy is returned when an utterance is already playing.
var ErrBusy = errors.New("speech synthesis already in progress")

// ErrEmptyText is returned when there is nothing to say.
var ErrEmptyText = errors.New("nothing to synthesize")

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     string
}

// SynthChunk contains PCM data.
type SynthChunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// Player renders synthesized audio. Finish is called once per utterance
// after the last chunk, also when synthesis failed.
type Player interface {
	Play(ctx context.Context, chunk SynthChunk) error
	Finish(ctx context.Context, sessionID string) error
}
