package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-interview/internal/pcm"
)

// EventKind identifies a listener lifecycle event.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventAudioStarted EventKind = "audio-started"
	EventInterim      EventKind = "interim"
	EventFinal        EventKind = "final"
	EventEnded        EventKind = "ended"
	EventError        EventKind = "error"
)

// Event is reported to the listener observer.
type Event struct {
	Kind EventKind
	Text string
	Err  *RecognitionError
}

// EndReason says why a recognition session stopped.
type EndReason string

const (
	EndManual      EndReason = "manual"
	EndSilence     EndReason = "silence"
	EndMaxDuration EndReason = "max-duration"
	EndOfStream    EndReason = "end-of-stream"
)

// Result is the outcome of one recognition session.
type Result struct {
	Transcript  string
	Confidence  float64
	Duration    time.Duration
	Reason      EndReason
	HeardSpeech bool
}

// ListenerOptions tune voice activity detection and interim reporting.
type ListenerOptions struct {
	Device          string
	FrameMS         int
	PartialEvery    time.Duration
	Interim         bool
	Silence         time.Duration
	NoSpeechTimeout time.Duration
	MaxAnswer       time.Duration
	EnergyThreshold float64
	// FinalTimeout bounds the final transcription. Zero means no limit.
	FinalTimeout time.Duration
}

// Listener runs one recognition session at a time over a Source.
type Listener struct {
	source     Source
	recognizer Recognizer
	opts       ListenerOptions
	logger     *slog.Logger
	observer   func(Event)
	active     atomic.Bool
}

func NewListener(source Source, recognizer Recognizer, opts ListenerOptions, log *slog.Logger) *Listener {
	if opts.Silence <= 0 {
		opts.Silence = 2 * time.Second
	}
	if opts.FrameMS <= 0 {
		opts.FrameMS = 20
	}
	return &Listener{
		source:     source,
		recognizer: recognizer,
		opts:       opts,
		logger:     log.With(slog.String("component", "stt-listener")),
	}
}

// Observe registers fn to receive lifecycle events. It must be called before Listen.
func (l *Listener) Observe(fn func(Event)) {
	l.observer = fn
}

// Listening reports whether a recognition session is running.
func (l *Listener) Listening() bool {
	return l.active.Load()
}

type frameResult struct {
	data []byte
	err  error
}

type interimResult struct {
	text string
	err  error
}

// Listen captures one answer. It returns when stop fires, silence follows
// speech, the answer cap or end of stream is reached, or on error. An empty
// transcript with a nil error means nothing was said.
func (l *Listener) Listen(ctx context.Context, stop <-chan struct{}) (Result, error) {
	if !l.active.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer l.active.Store(false)

	l.emit(Event{Kind: EventStarted})
	res, err := l.listen(ctx, stop)
	if err != nil {
		recErr := AsRecognitionError(err, KindNetwork)
		l.logger.Warn("recognition failed", slog.String("kind", string(recErr.Kind)), slogError(err))
		l.emit(Event{Kind: EventError, Err: recErr})
		return res, recErr
	}
	if res.Transcript != "" {
		l.emit(Event{Kind: EventFinal, Text: res.Transcript})
	}
	l.emit(Event{Kind: EventEnded, Text: res.Transcript})
	l.logger.Info("recognition ended",
		slog.String("reason", string(res.Reason)),
		slog.Duration("duration", res.Duration),
		slog.Bool("heard_speech", res.HeardSpeech),
	)
	return res, nil
}

func (l *Listener) listen(ctx context.Context, stop <-chan struct{}) (Result, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := l.source.Open(streamCtx, l.opts.Device)
	if err != nil {
		return Result{}, AsRecognitionError(err, KindAudioCapture)
	}
	defer stream.Close()
	format := stream.Format()

	frames := make(chan frameResult, 16)
	go func() {
		defer close(frames)
		for {
			data, err := stream.ReadFrame(streamCtx)
			select {
			case frames <- frameResult{data: data, err: err}:
			case <-streamCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var (
		buffer      []byte
		captured    time.Duration
		silenceRun  time.Duration
		lastInterim time.Duration
		heard       bool
		interim     = l.opts.Interim && l.opts.PartialEvery > 0
		inflight    bool
		interims    = make(chan interimResult, 1)
		reason      EndReason
	)

loop:
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-stop:
			reason = EndManual
			break loop
		case out := <-interims:
			inflight = false
			switch {
			case errors.Is(out.err, ErrInterimUnsupported):
				interim = false
			case out.err != nil:
				l.logger.Debug("interim transcription failed", slogError(out.err))
			case out.text != "":
				l.emit(Event{Kind: EventInterim, Text: out.text})
			}
		case fr, ok := <-frames:
			if !ok {
				reason = EndOfStream
				break loop
			}
			if fr.err != nil {
				if errors.Is(fr.err, io.EOF) {
					reason = EndOfStream
					break loop
				}
				return Result{}, AsRecognitionError(fr.err, KindAudioCapture)
			}
			if len(fr.data) == 0 {
				continue
			}
			if buffer == nil {
				l.emit(Event{Kind: EventAudioStarted})
			}
			buffer = append(buffer, fr.data...)
			frameDur := duration(format, len(fr.data))
			captured += frameDur

			if pcm.RMS(fr.data) >= l.opts.EnergyThreshold {
				heard = true
				silenceRun = 0
			} else if heard {
				silenceRun += frameDur
			}

			switch {
			case heard && silenceRun >= l.opts.Silence:
				reason = EndSilence
				break loop
			case l.opts.MaxAnswer > 0 && captured >= l.opts.MaxAnswer:
				reason = EndMaxDuration
				break loop
			case !heard && l.opts.NoSpeechTimeout > 0 && captured >= l.opts.NoSpeechTimeout:
				return Result{Duration: captured}, &RecognitionError{Kind: KindNoSpeech}
			}

			// a tick is skipped while the previous interim call is running
			if interim && heard && !inflight && captured-lastInterim >= l.opts.PartialEvery {
				lastInterim = captured
				inflight = true
				go l.interim(streamCtx, buffer[:len(buffer):len(buffer)], format, interims)
			}
		}
	}
	cancel()

	res := Result{Duration: captured, Reason: reason, HeardSpeech: heard}
	if !heard || len(buffer) == 0 {
		return res, nil
	}
	out, err := l.transcribe(ctx, buffer, format)
	if err != nil {
		return res, err
	}
	res.Transcript = strings.TrimSpace(out.Text)
	res.Confidence = out.Confidence
	return res, nil
}

// transcribe runs the final recognition under FinalTimeout.
func (l *Listener) transcribe(ctx context.Context, buffer []byte, format pcm.Format) (TranscriptResult, error) {
	finalCtx := ctx
	if l.opts.FinalTimeout > 0 {
		var cancel context.CancelFunc
		finalCtx, cancel = context.WithTimeout(ctx, l.opts.FinalTimeout)
		defer cancel()
	}
	out, err := l.recognizer.Transcribe(finalCtx, buffer, format.SampleRate, format.Channels, true)
	if err == nil {
		return out, nil
	}
	if ctx.Err() == nil && errors.Is(finalCtx.Err(), context.DeadlineExceeded) {
		return out, &RecognitionError{Kind: KindNetwork, Err: fmt.Errorf("transcription timed out after %s", l.opts.FinalTimeout)}
	}
	return out, AsRecognitionError(err, KindNetwork)
}

// interim transcribes the audio so far and reports on out, which has room
// for one result. ctx ends with the recording.
func (l *Listener) interim(ctx context.Context, buffer []byte, format pcm.Format, out chan<- interimResult) {
	res, err := l.recognizer.Transcribe(ctx, buffer, format.SampleRate, format.Channels, false)
	out <- interimResult{text: strings.TrimSpace(res.Text), err: err}
}

func (l *Listener) emit(evt Event) {
	if l.observer != nil {
		l.observer(evt)
	}
}

func duration(format pcm.Format, n int) time.Duration {
	perSecond := format.SampleRate * format.Channels * 2
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(perSecond)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
