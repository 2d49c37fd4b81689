package stt

import (
	"context"
	"errors"
)

// ErrInterimUnsupported is returned by recognizers that only produce final
// transcripts. The listener stops asking for interim results when it sees it.
var ErrInterimUnsupported = errors.New("interim transcripts not supported")

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int, final bool) (TranscriptResult, error)
}
