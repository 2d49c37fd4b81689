package stt

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusy is returned when a recognition session is already running.
var ErrBusy = errors.New("recognition session already active")

// ErrorKind names a recognition failure, using the Web Speech API error codes.
type ErrorKind string

const (
	KindNoSpeech             ErrorKind = "no-speech"
	KindAudioCapture         ErrorKind = "audio-capture"
	KindNotAllowed           ErrorKind = "not-allowed"
	KindServiceNotAllowed    ErrorKind = "service-not-allowed"
	KindBadGrammar           ErrorKind = "bad-grammar"
	KindLanguageNotSupported ErrorKind = "language-not-supported"
	KindNetwork              ErrorKind = "network"
	KindAborted              ErrorKind = "aborted"
)

// RecognitionError reports why a recognition session failed.
type RecognitionError struct {
	Kind ErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return "recognition error: " + string(e.Kind)
	}
	return fmt.Sprintf("recognition error: %s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// AsRecognitionError classifies err. Errors that are not already a
// RecognitionError become fallback, or aborted when the context ended.
func AsRecognitionError(err error, fallback ErrorKind) *RecognitionError {
	if err == nil {
		return nil
	}
	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return recErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RecognitionError{Kind: KindAborted, Err: err}
	}
	return &RecognitionError{Kind: fallback, Err: err}
}

var hints = map[ErrorKind]string{
	KindNoSpeech:             "Ensure you are speaking clearly into your microphone.",
	KindAudioCapture:         "No microphone detected. Please check your device settings.",
	KindNotAllowed:           "Microphone access denied. Please allow microphone access in your system settings.",
	KindServiceNotAllowed:    "Speech recognition service not allowed. Check your speech worker settings.",
	KindBadGrammar:           "Grammar error. Please try again.",
	KindLanguageNotSupported: "Language not supported. Please use English.",
}

// Hint returns advice for kind, or "" when there is none.
func Hint(kind ErrorKind) string {
	return hints[kind]
}

// Describe renders err as a status line for the candidate.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	kind := AsRecognitionError(err, KindNetwork).Kind
	msg := fmt.Sprintf("Error: %s. Press Enter to try again. Check microphone permissions and settings.", kind)
	if hint := Hint(kind); hint != "" {
		msg += " " + hint
	}
	return msg
}
