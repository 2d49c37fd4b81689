package tts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"Hi.", "Why Go?", "Because"}, splitSentences("Hi. Why Go? Because"))
	assert.Equal(t, []string{"Tell me about yourself."}, splitSentences("Tell me about yourself."))
	assert.Equal(t, []string{"..."}, splitSentences("..."))
}

func TestMockSynthChunksPerSentence(t *testing.T) {
	chunks, errs := NewMockSynth(16000, 1).Synthesize(context.Background(), SynthRequest{SessionID: "s", Text: "One two. Three four five?"})

	var got []SynthChunk
	for c := range chunks {
		got = append(got, c)
	}
	require.NoError(t, <-errs)
	require.Len(t, got, 2)
	assert.Len(t, got[0].PCM, 2*mockWordMS*32)
	assert.Len(t, got[1].PCM, 3*mockWordMS*32)
	assert.False(t, got[0].Final)
	assert.True(t, got[1].Final)
	assert.Equal(t, 1, got[1].Sequence)
}
