package tts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/natsserver"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSynthCollectsWorkerChunks(t *testing.T) {
	log := newLogger()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := bus.Connect(ctx, config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, log)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	// fake speech worker
	_, err = client.Conn().Subscribe(protocol.SubjectTTSRequest, func(msg *nats.Msg) {
		var req protocol.TTSRequest
		if json.Unmarshal(msg.Data, &req) != nil {
			return
		}
		for i, final := range []bool{false, true} {
			data, _ := json.Marshal(protocol.AudioChunk{SessionID: req.SessionID, SampleRate: 22050, Channels: 1, Sequence: i, PCM: []byte{byte(i), 0}, Final: final})
			_ = client.Conn().Publish(protocol.SubjectTTSAudio, data)
		}
	})
	require.NoError(t, err)
	require.NoError(t, client.Conn().Flush())

	synth, err := NewBusSynth(client, "interview")
	require.NoError(t, err)
	chunks, errs := synth.Synthesize(ctx, SynthRequest{SessionID: "bus-1", Text: "hello"})

	var got []SynthChunk
	for c := range chunks {
		got = append(got, c)
	}
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, got, 2)
	assert.True(t, got[1].Final)
	assert.Equal(t, "bus-1", got[0].SessionID)
}

func TestNewBusSynthRequiresClient(t *testing.T) {
	_, err := NewBusSynth(nil, "")
	assert.Error(t, err)
}
