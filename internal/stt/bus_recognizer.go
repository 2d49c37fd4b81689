package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/nats-io/nats.go"
)

const busChunkBytes = 32 * 1024

type busRecognizer struct {
	bus *bus.Client
}

// NewBusRecognizer hands the recorded answer to a speech worker listening on
// audio.frame.> and waits for its final transcript.
func NewBusRecognizer(busClient *bus.Client) (Recognizer, error) {
	if busClient == nil {
		return nil, errors.New("bus recognizer requires bus client")
	}
	return &busRecognizer{bus: busClient}, nil
}

func (r *busRecognizer) Transcribe(ctx context.Context, data []byte, sampleRate int, channels int, final bool) (TranscriptResult, error) {
	if !final {
		return TranscriptResult{}, ErrInterimUnsupported
	}
	sessionID := uuid.NewString()
	conn := r.bus.Conn()

	msgs := make(chan *nats.Msg, 16)
	sub, err := conn.ChanSubscribe(protocol.SubjectTranscriptFinal, msgs)
	if err != nil {
		return TranscriptResult{}, &RecognitionError{Kind: KindNetwork, Err: fmt.Errorf("subscribe transcripts: %w", err)}
	}
	defer func() { _ = sub.Unsubscribe() }()

	subject := protocol.SubjectAudioFramePrefix + "." + sessionID
	sequence := 0
	for offset := 0; ; offset += busChunkBytes {
		end := min(offset+busChunkBytes, len(data))
		frame := protocol.AudioFrame{
			SessionID:  sessionID,
			Sequence:   sequence,
			SampleRate: sampleRate,
			Channels:   channels,
			PCM:        data[offset:end],
			Final:      end == len(data),
		}
		if err := r.bus.PublishJSON(subject, frame); err != nil {
			return TranscriptResult{}, &RecognitionError{Kind: KindNetwork, Err: err}
		}
		sequence++
		if frame.Final {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			return TranscriptResult{}, ctx.Err()
		case msg := <-msgs:
			var transcript protocol.Transcript
			if err := json.Unmarshal(msg.Data, &transcript); err != nil {
				r.bus.Logger().Warn("failed to decode transcript", slogError(err))
				continue
			}
			if transcript.SessionID != sessionID || transcript.Partial {
				continue
			}
			return TranscriptResult{Text: transcript.Text, Confidence: transcript.Confidence}, nil
		}
	}
}
