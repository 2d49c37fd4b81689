// Package backend talks to the interview scoring backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	startPath = "/interview/start"
	scorePath = "/interview/score"

	maxBodyBytes = 4 << 20
)

var errInvalidJSON = errors.New("body is not valid JSON")

// Client fetches questions and submits answers for scoring.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(cfg config.BackendConfig, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.URL)
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/loqalabs/loqa-interview/internal/backend"),
		logger:  log.With(slog.String("component", "backend")),
	}, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type rawQuestion struct {
	ID       *int64  `json:"id"`
	Category string  `json:"category"`
	Question *string `json:"question"`
}

type rawStart struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Questions []*rawQuestion `json:"questions"`
}

// Questions loads the question list from GET /interview/start. Every
// question must carry an id and non-blank text.
func (c *Client) Questions(ctx context.Context) ([]protocol.Question, error) {
	ctx, span := c.tracer.Start(ctx, "backend.questions")
	defer span.End()

	code, body, err := c.do(ctx, http.MethodGet, startPath, nil)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", code))
	if code < 200 || code >= 300 {
		return nil, spanError(span, &StatusError{Code: code})
	}
	if err := c.check(startSchema, startPath, body); err != nil {
		return nil, spanError(span, err)
	}

	var raw rawStart
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, spanError(span, &MalformedResponseError{Endpoint: startPath, Err: err})
	}
	if raw.Status != protocol.StatusSuccess {
		return nil, spanError(span, &RemoteError{Code: code, Message: raw.Message})
	}
	if len(raw.Questions) == 0 {
		return nil, spanError(span, ErrNoQuestions)
	}

	questions := make([]protocol.Question, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		if q == nil || q.ID == nil || q.Question == nil || strings.TrimSpace(*q.Question) == "" {
			c.logger.Warn("invalid question", slog.Int("index", i))
			continue
		}
		questions = append(questions, protocol.Question{ID: *q.ID, Category: q.Category, Text: *q.Question})
	}
	if len(questions) != len(raw.Questions) {
		return nil, spanError(span, &InvalidQuestionsError{Valid: len(questions), Total: len(raw.Questions)})
	}
	span.SetAttributes(attribute.Int("interview.questions", len(questions)))
	c.logger.Info("questions loaded", slog.Int("count", len(questions)))
	return questions, nil
}

// Score submits one answer to POST /interview/score.
func (c *Client) Score(ctx context.Context, req protocol.ScoreRequest) (protocol.ScoreReport, error) {
	req.Transcript = strings.TrimSpace(req.Transcript)
	if req.Transcript == "" {
		return protocol.ScoreReport{}, ErrEmptyTranscript
	}
	if req.DurationSeconds < 0 || math.IsNaN(req.DurationSeconds) || math.IsInf(req.DurationSeconds, 0) {
		return protocol.ScoreReport{}, fmt.Errorf("invalid answer duration %v", req.DurationSeconds)
	}

	ctx, span := c.tracer.Start(ctx, "backend.score", trace.WithAttributes(
		attribute.Int64("interview.question_id", req.QuestionID),
		attribute.Float64("interview.duration_seconds", req.DurationSeconds),
	))
	defer span.End()

	payload, err := json.Marshal(req)
	if err != nil {
		return protocol.ScoreReport{}, spanError(span, err)
	}
	code, body, err := c.do(ctx, http.MethodPost, scorePath, payload)
	if err != nil {
		return protocol.ScoreReport{}, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", code))

	problems, verr := validate(scoreSchema, body)
	if verr != nil || len(problems) > 0 {
		if code < 200 || code >= 300 {
			return protocol.ScoreReport{}, spanError(span, &StatusError{Code: code})
		}
		return protocol.ScoreReport{}, spanError(span, &MalformedResponseError{Endpoint: scorePath, Problems: problems, Err: verr})
	}

	var resp protocol.ScoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return protocol.ScoreReport{}, spanError(span, &MalformedResponseError{Endpoint: scorePath, Err: err})
	}
	if resp.Status != protocol.StatusSuccess {
		if resp.Message == "" && (code < 200 || code >= 300) {
			return protocol.ScoreReport{}, spanError(span, &StatusError{Code: code})
		}
		return protocol.ScoreReport{}, spanError(span, &RemoteError{Code: code, Message: resp.Message})
	}
	if resp.Report == nil {
		return protocol.ScoreReport{}, spanError(span, &MalformedResponseError{Endpoint: scorePath, Problems: []string{"report: missing"}})
	}
	span.SetAttributes(attribute.Float64("interview.overall_score", resp.Report.OverallScore))
	c.logger.Info("answer scored",
		slog.Int64("question_id", req.QuestionID),
		slog.Float64("overall_score", resp.Report.OverallScore),
	)
	return *resp.Report, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, &ConnectError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &ConnectError{URL: c.baseURL, Err: err}
	}
	c.logger.Debug("backend response", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode))
	return resp.StatusCode, data, nil
}

func (c *Client) check(schema gojsonschema.JSONLoader, path string, body []byte) error {
	problems, err := validate(schema, body)
	if err != nil {
		return &MalformedResponseError{Endpoint: path, Err: err}
	}
	if len(problems) > 0 {
		return &MalformedResponseError{Endpoint: path, Problems: problems}
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
