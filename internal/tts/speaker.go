package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a speaker lifecycle event.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
)

// Event is reported to the speaker observer.
type Event struct {
	Kind      EventKind
	SessionID string
	Text      string
	Err       error
}

// Speaker plays one utterance at a time through a synthesizer and a player.
type Speaker struct {
	synth    Synthesizer
	player   Player
	voice    string
	timeout  time.Duration
	logger   *slog.Logger
	observer func(Event)
	active   atomic.Bool
}

func NewSpeaker(synth Synthesizer, player Player, voice string, timeout time.Duration, log *slog.Logger) *Speaker {
	if player == nil {
		player = NewDiscardPlayer()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Speaker{
		synth:   synth,
		player:  player,
		voice:   voice,
		timeout: timeout,
		logger:  log.With(slog.String("component", "tts-speaker")),
	}
}

// Observe registers fn to receive lifecycle events. It must be called before Speak.
func (s *Speaker) Observe(fn func(Event)) {
	s.observer = fn
}

// Speaking reports whether an utterance is in progress.
func (s *Speaker) Speaking() bool {
	return s.active.Load()
}

// Speak synthesizes text and blocks until playback finished.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if !s.active.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.active.Store(false)

	sessionID := uuid.NewString()
	s.emit(Event{Kind: EventStart, SessionID: sessionID, Text: text})

	err := s.run(ctx, sessionID, text)
	if err != nil {
		s.logger.Warn("speech synthesis failed", slogError(err))
		s.emit(Event{Kind: EventError, SessionID: sessionID, Text: text, Err: err})
		return err
	}
	s.emit(Event{Kind: EventEnd, SessionID: sessionID, Text: text})
	return nil
}

func (s *Speaker) run(ctx context.Context, sessionID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chunks, errs := s.synth.Synthesize(ctx, SynthRequest{SessionID: sessionID, Text: text, Voice: s.voice})
	var firstErr error
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if firstErr != nil {
				continue
			}
			chunk.SessionID = sessionID
			if err := s.player.Play(ctx, chunk); err != nil {
				firstErr = err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	finishErr := s.player.Finish(context.WithoutCancel(ctx), sessionID)
	return errors.Join(firstErr, finishErr)
}

func (s *Speaker) emit(evt Event) {
	if s.observer != nil {
		s.observer(evt)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
