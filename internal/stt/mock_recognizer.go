package stt

import (
	"context"
	"fmt"
)

type mockRecognizer struct {
	answer string
}

// NewMockRecognizer returns answer as the final transcript. With an empty
// answer it describes the audio it was given instead.
func NewMockRecognizer(answer string) Recognizer {
	return &mockRecognizer{answer: answer}
}

func (m *mockRecognizer) Transcribe(_ context.Context, pcm []byte, _ int, _ int, final bool) (TranscriptResult, error) {
	if m.answer != "" {
		if !final {
			return TranscriptResult{Text: interimPrefix(m.answer, len(pcm))}, nil
		}
		return TranscriptResult{Text: m.answer, Confidence: 1}, nil
	}
	mode := "partial"
	if final {
		mode = "final"
	}
	return TranscriptResult{
		Text:       fmt.Sprintf("[%s transcript length=%d]", mode, len(pcm)),
		Confidence: 0,
	}, nil
}

// interimPrefix grows with the amount of audio heard so far.
func interimPrefix(answer string, n int) string {
	words := 0
	for i, r := range answer {
		if r == ' ' {
			words++
			if words*16000 >= n {
				return answer[:i]
			}
		}
	}
	return answer
}
