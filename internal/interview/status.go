package interview

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-interview/internal/protocol"
)

// Kind says which display area an update targets.
type Kind string

const (
	KindStatus     Kind = "status"
	KindMic        Kind = "mic"
	KindQuestion   Kind = "question"
	KindTranscript Kind = "transcript"
	KindFeedback   Kind = "feedback"
)

// Phase is the coarse interview state.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhaseSpeaking  Phase = "speaking"
	PhaseWaiting   Phase = "waiting"
	PhaseListening Phase = "listening"
	PhaseScoring   Phase = "scoring"
	PhaseFeedback  Phase = "feedback"
	PhaseComplete  Phase = "complete"
	PhaseStopped   Phase = "stopped"
	PhaseFailed    Phase = "failed"
)

// Update is one change of what the candidate sees. Phase is empty when it
// does not change.
type Update struct {
	Kind     Kind
	Phase    Phase
	Text     string
	Index    int
	Total    int
	Question *protocol.Question
	Score    *float64
}

// Status receives display updates.
type Status interface {
	Update(Update)
}

type multiStatus []Status

// Multi fans updates out to every non-nil sink.
func Multi(sinks ...Status) Status {
	var out multiStatus
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiStatus) Update(u Update) {
	for _, s := range m {
		s.Update(u)
	}
}

type terminalStatus struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalStatus prints updates for a person at a terminal.
func NewTerminalStatus(w io.Writer) Status {
	return &terminalStatus{w: w}
}

func (t *terminalStatus) Update(u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch u.Kind {
	case KindQuestion:
		fmt.Fprintf(t.w, "\n%s\n", u.Text)
	case KindMic:
		fmt.Fprintf(t.w, "  mic> %s\n", u.Text)
	case KindTranscript:
		fmt.Fprintf(t.w, "  ...  %s\n", u.Text)
	case KindFeedback:
		fmt.Fprint(t.w, u.Text)
	default:
		fmt.Fprintf(t.w, "> %s\n", u.Text)
	}
}

type logStatus struct {
	logger *slog.Logger
}

// NewLogStatus records updates as structured debug logs.
func NewLogStatus(log *slog.Logger) Status {
	return &logStatus{logger: log.With(slog.String("component", "interview-status"))}
}

func (l *logStatus) Update(u Update) {
	if u.Kind == KindFeedback {
		return
	}
	attrs := []any{slog.String("kind", string(u.Kind)), slog.String("text", u.Text)}
	if u.Phase != "" {
		attrs = append(attrs, slog.String("phase", string(u.Phase)))
	}
	l.logger.Debug("status", attrs...)
}

// Snapshot is the interview state served on /status.
type Snapshot struct {
	SessionID     string    `json:"session_id,omitempty"`
	Phase         Phase     `json:"phase"`
	QuestionIndex int       `json:"question_index"`
	Total         int       `json:"total_questions"`
	Category      string    `json:"category,omitempty"`
	Question      string    `json:"question,omitempty"`
	Status        string    `json:"status,omitempty"`
	Mic           string    `json:"mic,omitempty"`
	Transcript    string    `json:"transcript,omitempty"`
	LastScore     *float64  `json:"last_score,omitempty"`
	Scored        int       `json:"scored"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tracker keeps the latest Snapshot.
type Tracker struct {
	mu    sync.RWMutex
	state Snapshot
}

func NewTracker(sessionID string) *Tracker {
	return &Tracker{state: Snapshot{SessionID: sessionID, Phase: PhaseLoading, UpdatedAt: time.Now()}}
}

func (t *Tracker) Update(u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u.Phase != "" {
		t.state.Phase = u.Phase
	}
	if u.Total > 0 {
		t.state.Total = u.Total
		t.state.QuestionIndex = u.Index
	}
	if u.Question != nil {
		t.state.Category = u.Question.Category
		t.state.Question = u.Question.Text
		t.state.Transcript = ""
	}
	switch u.Kind {
	case KindStatus:
		t.state.Status = u.Text
	case KindMic:
		t.state.Mic = u.Text
	case KindTranscript:
		t.state.Transcript = u.Text
	}
	if u.Score != nil {
		score := *u.Score
		t.state.LastScore = &score
		t.state.Scored++
	}
	t.state.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
