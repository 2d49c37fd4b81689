package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interview/internal/protocol"
)

// Entry is the outcome of one question.
type Entry struct {
	Question protocol.Question     `json:"question"`
	Report   *protocol.ScoreReport `json:"report,omitempty"`
	Attempts int                   `json:"attempts"`
	Skipped  bool                  `json:"skipped,omitempty"`
}

// Averages over the scored entries of a summary.
type Averages struct {
	Overall float64 `json:"overall"`
	Content float64 `json:"content"`
	Fluency float64 `json:"fluency"`
	WPM     float64 `json:"wpm"`
}

// Summary collects the results of one interview.
type Summary struct {
	SessionID  string    `json:"session_id"`
	BackendURL string    `json:"backend_url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Completed  bool      `json:"completed"`
	Total      int       `json:"total_questions"`
	Entries    []Entry   `json:"entries"`
	Averages   Averages  `json:"averages"`
}

func NewSummary(sessionID, backendURL string, total int, startedAt time.Time) *Summary {
	return &Summary{SessionID: sessionID, BackendURL: backendURL, Total: total, StartedAt: startedAt}
}

// Add records a scored answer and refreshes the averages.
func (s *Summary) Add(q protocol.Question, r protocol.ScoreReport, attempts int) {
	s.Entries = append(s.Entries, Entry{Question: q, Report: &r, Attempts: attempts})
	s.recompute()
}

// Skip records a question that was not scored.
func (s *Summary) Skip(q protocol.Question, attempts int) {
	s.Entries = append(s.Entries, Entry{Question: q, Attempts: attempts, Skipped: true})
}

// Scored returns the number of answered questions.
func (s *Summary) Scored() int {
	n := 0
	for _, e := range s.Entries {
		if e.Report != nil {
			n++
		}
	}
	return n
}

// Finish stamps the end of the interview.
func (s *Summary) Finish(at time.Time, completed bool) {
	s.FinishedAt = at
	s.Completed = completed
	s.recompute()
}

func (s *Summary) recompute() {
	var avg Averages
	n := 0
	for _, e := range s.Entries {
		if e.Report == nil {
			continue
		}
		avg.Overall += e.Report.OverallScore
		avg.Content += e.Report.Content.Score
		avg.Fluency += e.Report.Fluency.Score
		avg.WPM += e.Report.Fluency.WPM
		n++
	}
	if n > 0 {
		avg.Overall /= float64(n)
		avg.Content /= float64(n)
		avg.Fluency /= float64(n)
		avg.WPM /= float64(n)
	}
	s.Averages = avg
}

// Render writes the end-of-interview summary.
func (s *Summary) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\nInterview Summary\n")
	fmt.Fprintf(&b, "Answered %d of %d questions\n", s.Scored(), s.Total)
	for i, e := range s.Entries {
		if e.Report == nil {
			fmt.Fprintf(&b, "  %2d. [%s] %s: skipped after %d attempt(s)\n", i+1, e.Question.Category, e.Question.Text, e.Attempts)
			continue
		}
		fmt.Fprintf(&b, "  %2d. [%s] %s: %s%% (%s)\n", i+1, e.Question.Category, e.Question.Text, num(e.Report.OverallScore), ScoreClass(e.Report.OverallScore))
	}
	if s.Scored() > 0 {
		fmt.Fprintf(&b, "Average overall: %.1f%% (%s)\n", s.Averages.Overall, ScoreClass(s.Averages.Overall))
		fmt.Fprintf(&b, "Average content: %.1f%%  Average fluency: %.1f%%  Average WPM: %.0f\n",
			s.Averages.Content, s.Averages.Fluency, s.Averages.WPM)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FileName is the results file name for a session.
func FileName(sessionID string) string {
	return fmt.Sprintf("interview_%s.json", sessionID)
}

// WriteJSON stores the summary in dir and returns the file path.
func (s *Summary) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(dir, FileName(s.SessionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// LoadSummary reads a summary written by WriteJSON.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &s, nil
}

// ListSummaries loads every summary in dir, newest first. A missing
// directory yields no summaries.
func ListSummaries(dir string) ([]*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read results dir %s: %w", dir, err)
	}
	var out []*Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "interview_") || filepath.Ext(name) != ".json" {
			continue
		}
		s, err := LoadSummary(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
