package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/nats-io/nats.go"
)

type busSynth struct {
	bus    *bus.Client
	target string
}

// NewBusSynth asks a speech worker on the bus to synthesize text and streams
// back the audio chunks it publishes for the session.
func NewBusSynth(busClient *bus.Client, target string) (Synthesizer, error) {
	if busClient == nil {
		return nil, errors.New("bus synthesizer requires bus client")
	}
	return &busSynth{bus: busClient, target: target}, nil
}

func (b *busSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)

	audioMsgs := make(chan *nats.Msg, 64)
	doneMsgs := make(chan *nats.Msg, 4)
	conn := b.bus.Conn()

	audioSub, err := conn.ChanSubscribe(protocol.SubjectTTSAudio, audioMsgs)
	if err != nil {
		errs <- fmt.Errorf("subscribe tts audio: %w", err)
		close(chunks)
		close(errs)
		return chunks, errs
	}
	doneSub, err := conn.ChanSubscribe(protocol.SubjectTTSDone, doneMsgs)
	if err != nil {
		_ = audioSub.Unsubscribe()
		errs <- fmt.Errorf("subscribe tts done: %w", err)
		close(chunks)
		close(errs)
		return chunks, errs
	}

	go func() {
		defer close(chunks)
		defer close(errs)
		defer func() {
			_ = audioSub.Unsubscribe()
			_ = doneSub.Unsubscribe()
		}()

		if err := b.bus.PublishJSON(protocol.SubjectTTSRequest, protocol.TTSRequest{
			SessionID: req.SessionID,
			Text:      req.Text,
			Voice:     req.Voice,
			Target:    b.target,
		}); err != nil {
			errs <- err
			return
		}

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case msg := <-audioMsgs:
				var packet protocol.AudioChunk
				if err := json.Unmarshal(msg.Data, &packet); err != nil {
					b.bus.Logger().Warn("failed to decode tts chunk", slogError(err))
					continue
				}
				if packet.SessionID != req.SessionID {
					continue
				}
				chunk := SynthChunk{
					SessionID:  packet.SessionID,
					Sequence:   packet.Sequence,
					SampleRate: packet.SampleRate,
					Channels:   packet.Channels,
					PCM:        packet.PCM,
					Final:      packet.Final,
				}
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
				if packet.Final {
					return
				}
			case msg := <-doneMsgs:
				var status protocol.TTSStatus
				if err := json.Unmarshal(msg.Data, &status); err != nil || status.SessionID != req.SessionID {
					continue
				}
				if status.Error != "" {
					errs <- fmt.Errorf("speech worker: %s", status.Error)
				}
				return
			}
		}
	}()
	return chunks, errs
}
