package tts

import (
	"context"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interview/internal/pcm"
)

// mockWordMS is the amount of silent audio produced per word.
const mockWordMS = 10

type mockSynth struct {
	sampleRate int
	channels   int
	delay      time.Duration
}

// NewMockSynth produces one silent chunk per sentence so players and timing
// can be exercised without a speech engine.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels, delay: 50 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	sentences := splitSentences(req.Text)
	chunks := make(chan SynthChunk, len(sentences))
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(m.delay):
		}
		format := pcm.Format{SampleRate: m.sampleRate, Channels: m.channels}
		for i, sentence := range sentences {
			words := len(strings.Fields(sentence))
			chunks <- SynthChunk{
				SessionID:  req.SessionID,
				Sequence:   i,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        make([]byte, format.BytesPer(words*mockWordMS)),
				Final:      i == len(sentences)-1,
			}
		}
	}()
	return chunks, errs
}

// splitSentences cuts text after '.', '?' and '!'. It always returns at
// least one element.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" && strings.ContainsFunc(s, isWordRune) {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	if len(out) == 0 {
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

func isWordRune(r rune) bool {
	return r != '.' && r != '?' && r != '!' && r != ' '
}
