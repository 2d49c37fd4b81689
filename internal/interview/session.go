// Package interview drives a spoken interview: questions are read aloud,
// answers are captured and scored, and feedback is shown.
package interview

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interview/internal/protocol"
)

// Arrange keeps the first intro questions in order and shuffles the rest
// with Fisher-Yates. The input slice is left untouched.
func Arrange(questions []protocol.Question, intro int, rng *rand.Rand) []protocol.Question {
	out := append([]protocol.Question(nil), questions...)
	if intro < 0 {
		intro = 0
	}
	if len(out) <= intro {
		return out
	}
	rest := out[intro:]
	for i := len(rest) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	return out
}

// Session tracks progress through an arranged question list.
type Session struct {
	ID          string
	questions   []protocol.Question
	index       int
	answerStart time.Time
	transcript  string
}

func NewSession(id string, questions []protocol.Question) *Session {
	return &Session{ID: id, questions: questions}
}

// Start resets the session to the first question.
func (s *Session) Start() {
	s.index = 0
	s.answerStart = time.Time{}
	s.transcript = ""
}

// Current returns the question being asked; ok is false once done.
func (s *Session) Current() (protocol.Question, bool) {
	if s.Done() {
		return protocol.Question{}, false
	}
	return s.questions[s.index], true
}

func (s *Session) Index() int { return s.index }
func (s *Session) Total() int { return len(s.questions) }

// Done reports whether every question has been handled.
func (s *Session) Done() bool {
	return s.index >= len(s.questions)
}

// Advance moves to the next question and reports whether one remains.
func (s *Session) Advance() bool {
	if !s.Done() {
		s.index++
	}
	s.answerStart = time.Time{}
	s.transcript = ""
	return !s.Done()
}

// Progress renders the position as "Q i/N".
func (s *Session) Progress() string {
	return fmt.Sprintf("Q %d/%d", s.index+1, len(s.questions))
}

// BeginAnswer marks the start of answer capture.
func (s *Session) BeginAnswer(at time.Time) {
	s.answerStart = at
	s.transcript = ""
}

func (s *Session) AnswerStart() time.Time { return s.answerStart }

// SetTranscript stores the answer text for the current attempt, trimmed.
func (s *Session) SetTranscript(text string) { s.transcript = strings.TrimSpace(text) }

// Transcript is what will be submitted for scoring. BeginAnswer clears it.
func (s *Session) Transcript() string { return s.transcript }
