// Package report renders scorecards and keeps per-interview summaries.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interview/internal/protocol"
)

// Class buckets a score for display.
type Class string

const (
	ClassGood    Class = "good"
	ClassAverage Class = "average"
	ClassPoor    Class = "poor"
)

// ScoreClass returns good for >= 80, average for >= 50 and poor otherwise.
func ScoreClass(score float64) Class {
	switch {
	case score >= 80:
		return ClassGood
	case score >= 50:
		return ClassAverage
	default:
		return ClassPoor
	}
}

// Card is one scored answer ready for display.
type Card struct {
	Index    int
	Question protocol.Question
	Report   protocol.ScoreReport
	NextIn   time.Duration
}

// Render writes the scorecard for one answer.
func Render(w io.Writer, card Card) error {
	r := card.Report
	var b strings.Builder
	rule := strings.Repeat("-", 60)

	fmt.Fprintf(&b, "\nQuestion %d Scorecard\n", card.Index+1)
	fmt.Fprintf(&b, "Question: %s\n", card.Question.Text)
	fmt.Fprintf(&b, "Your Answer (Transcript): %s\n", r.Transcript)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Overall Performance: %s%% [%s]\n", num(r.OverallScore), ScoreClass(r.OverallScore))
	fmt.Fprintf(&b, "Content Score: %s%% [%s]\n", num(r.Content.Score), ScoreClass(r.Content.Score))
	fmt.Fprintf(&b, "Content Feedback: %s\n", r.Content.Feedback)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Fluency Score: %s%% [%s]\n", num(r.Fluency.Score), ScoreClass(r.Fluency.Score))
	b.WriteString("Fluency Metrics:\n")
	fmt.Fprintf(&b, "  - Words Per Minute (WPM): %s (Target: 130-170)\n", num(r.Fluency.WPM))
	fmt.Fprintf(&b, "  - Filler Word Rate: %s%% (%d fillers detected)\n", num(r.Fluency.FillerRate), r.Fluency.FillerCount)
	fmt.Fprintf(&b, "  - Pacing/Filler Summary: %s\n", r.Fluency.Feedback)
	if card.NextIn > 0 {
		fmt.Fprintf(&b, "Next question coming up in %s seconds...\n", num(card.NextIn.Seconds()))
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// num prints scores the way the backend sends them: no trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
