package interview

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the interview instruments exported through the global meter
// provider.
type Metrics struct {
	questions   metric.Int64Counter
	scored      metric.Int64Counter
	failures    metric.Int64Counter
	recognition metric.Int64Counter
	duration    metric.Float64Histogram
	score       metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/loqalabs/loqa-interview/internal/interview")
	var m Metrics
	var err error
	if m.questions, err = meter.Int64Counter("interview.questions.presented", metric.WithDescription("Questions read to the candidate")); err != nil {
		return nil, err
	}
	if m.scored, err = meter.Int64Counter("interview.answers.scored", metric.WithDescription("Answers scored by the backend")); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter("interview.scoring.failures", metric.WithDescription("Failed scoring requests")); err != nil {
		return nil, err
	}
	if m.recognition, err = meter.Int64Counter("interview.recognition.errors", metric.WithDescription("Speech recognition errors by kind")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("interview.answer.duration", metric.WithUnit("s"), metric.WithDescription("Captured answer length")); err != nil {
		return nil, err
	}
	if m.score, err = meter.Float64Histogram("interview.answer.overall_score", metric.WithDescription("Overall score per answer")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) questionPresented(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.questions.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *Metrics) answerScored(ctx context.Context, seconds, overall float64) {
	if m == nil {
		return
	}
	m.scored.Add(ctx, 1)
	m.duration.Record(ctx, seconds)
	m.score.Record(ctx, overall)
}

func (m *Metrics) scoringFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1)
}

func (m *Metrics) recognitionFailed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.recognition.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
