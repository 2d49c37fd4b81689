package interview

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeQuestions(n int) []protocol.Question {
	out := make([]protocol.Question, n)
	for i := range out {
		out[i] = protocol.Question{ID: int64(i + 1), Category: "General", Text: "Question " + string(rune('A'+i))}
	}
	return out
}

func TestArrangeKeepsIntroAndPermutesRest(t *testing.T) {
	questions := makeQuestions(10)
	original := append([]protocol.Question(nil), questions...)

	arranged := Arrange(questions, 3, rand.New(rand.NewPCG(1, 2)))

	assert.Equal(t, original, questions, "input must not be mutated")
	require.Len(t, arranged, 10)
	assert.Equal(t, original[:3], arranged[:3])
	assert.ElementsMatch(t, original[3:], arranged[3:])
}

func TestArrangeShufflesEventually(t *testing.T) {
	questions := makeQuestions(8)
	rng := rand.New(rand.NewPCG(7, 7))
	changed := false
	for i := 0; i < 20 && !changed; i++ {
		arranged := Arrange(questions, 3, rng)
		changed = arranged[3].ID != 4 || arranged[7].ID != 8
	}
	assert.True(t, changed)
}

func TestArrangeShortList(t *testing.T) {
	questions := makeQuestions(3)
	assert.Equal(t, questions, Arrange(questions, 3, rand.New(rand.NewPCG(1, 1))))
	assert.Empty(t, Arrange(nil, 3, rand.New(rand.NewPCG(1, 1))))
}

func TestSessionProgression(t *testing.T) {
	s := NewSession("abc", makeQuestions(2))
	s.Start()
	q, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), q.ID)
	assert.Equal(t, "Q 1/2", s.Progress())

	s.SetTranscript("  hello \n")
	assert.Equal(t, "hello", s.Transcript())
	s.BeginAnswer(time.Now())
	assert.Empty(t, s.Transcript(), "a new attempt starts with an empty transcript")
	s.SetTranscript("hello")
	assert.True(t, s.Advance())
	assert.Empty(t, s.Transcript())
	assert.Equal(t, "Q 2/2", s.Progress())

	assert.False(t, s.Advance())
	assert.True(t, s.Done())
	_, ok = s.Current()
	assert.False(t, ok)
	assert.False(t, s.Advance())
	assert.Equal(t, 2, s.Index())

	s.Start()
	assert.False(t, s.Done())
	assert.Equal(t, 0, s.Index())
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{"": ActionListen, "listen": ActionListen, " S ": ActionSkip, "q": ActionQuit, "stop": ActionStop}
	for line, want := range cases {
		got, ok := ParseAction(line)
		require.True(t, ok, line)
		assert.Equal(t, want, got, line)
	}
	_, ok := ParseAction("maybe")
	assert.False(t, ok)
}

func TestLineControls(t *testing.T) {
	controls := NewLineControls(t.Context(), strings.NewReader("\nhuh\nskip\nq\n"))
	var got []Action
	for a := range controls.Actions() {
		got = append(got, a)
	}
	assert.Equal(t, []Action{ActionListen, ActionSkip, ActionQuit}, got)
}

func TestScriptedControlsPromptOneAtATime(t *testing.T) {
	controls := NewScriptedControls(ActionListen, ActionSkip)
	p := controls.(Prompter)

	p.Prompt()
	assert.Equal(t, ActionListen, <-controls.Actions())
	select {
	case a := <-controls.Actions():
		assert.Failf(t, "unexpected action before prompt", "got %v", a)
	default:
	}
	p.Prompt()
	assert.Equal(t, ActionSkip, <-controls.Actions())
	p.Prompt()
	_, ok := <-controls.Actions()
	assert.False(t, ok)
}

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker("abc")
	q := protocol.Question{ID: 3, Category: "Behavioral", Text: "Tell me"}
	tr.Update(Update{Kind: KindQuestion, Phase: PhaseSpeaking, Index: 1, Total: 4, Question: &q})
	tr.Update(Update{Kind: KindMic, Text: "listening"})
	score := 72.0
	tr.Update(Update{Kind: KindFeedback, Phase: PhaseFeedback, Score: &score})

	snap := tr.Snapshot()
	assert.Equal(t, PhaseFeedback, snap.Phase)
	assert.Equal(t, 1, snap.QuestionIndex)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, "Behavioral", snap.Category)
	assert.Equal(t, "listening", snap.Mic)
	require.NotNil(t, snap.LastScore)
	assert.InDelta(t, 72, *snap.LastScore, 0.001)
	assert.Equal(t, 1, snap.Scored)
}
