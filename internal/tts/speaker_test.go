package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingPlayer struct {
	mu       sync.Mutex
	chunks   []SynthChunk
	finished []string
}

func (p *recordingPlayer) Play(_ context.Context, chunk SynthChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunk)
	return nil
}

func (p *recordingPlayer) Finish(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, sessionID)
	return nil
}

type blockingSynth struct {
	release chan struct{}
}

func (b *blockingSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-b.release:
			chunks <- SynthChunk{SessionID: req.SessionID, Final: true}
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()
	return chunks, errs
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	errs <- errors.New("no voices available")
	close(chunks)
	close(errs)
	return chunks, errs
}

func TestSpeakPlaysAndReportsEvents(t *testing.T) {
	player := &recordingPlayer{}
	speaker := NewSpeaker(NewMockSynth(22050, 1), player, "en-US", time.Second, newLogger())

	var events []EventKind
	speaker.Observe(func(e Event) { events = append(events, e.Kind) })

	require.NoError(t, speaker.Speak(context.Background(), "  Tell me about yourself.  "))
	assert.Equal(t, []EventKind{EventStart, EventEnd}, events)
	require.Len(t, player.chunks, 1)
	assert.True(t, player.chunks[0].Final)
	require.Len(t, player.finished, 1)
	assert.Equal(t, player.chunks[0].SessionID, player.finished[0])
	assert.False(t, speaker.Speaking())
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	speaker := NewSpeaker(NewMockSynth(22050, 1), nil, "", time.Second, newLogger())
	assert.ErrorIs(t, speaker.Speak(context.Background(), "   "), ErrEmptyText)
}

func TestSpeakBusy(t *testing.T) {
	synth := &blockingSynth{release: make(chan struct{})}
	speaker := NewSpeaker(synth, nil, "", time.Second, newLogger())

	done := make(chan error, 1)
	go func() { done <- speaker.Speak(context.Background(), "first") }()
	require.Eventually(t, speaker.Speaking, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, speaker.Speak(context.Background(), "second"), ErrBusy)
	close(synth.release)
	require.NoError(t, <-done)
}

func TestSpeakSynthesisError(t *testing.T) {
	player := &recordingPlayer{}
	speaker := NewSpeaker(failingSynth{}, player, "", time.Second, newLogger())
	var last Event
	speaker.Observe(func(e Event) { last = e })

	err := speaker.Speak(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, EventError, last.Kind)
	assert.Len(t, player.finished, 1)
}

func TestSpeakTimeout(t *testing.T) {
	synth := &blockingSynth{release: make(chan struct{})}
	speaker := NewSpeaker(synth, nil, "", 20*time.Millisecond, newLogger())
	assert.ErrorIs(t, speaker.Speak(context.Background(), "hello"), context.DeadlineExceeded)
}
