package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(config.BackendConfig{URL: srv.URL, TimeoutMS: 2000}, newLogger())
	require.NoError(t, err)
	return client
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestQuestionsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/interview/start", r.URL.Path)
		respond(http.StatusOK, `{"status":"success","questions":[
			{"id":1,"category":"Introduction","question":"Tell me about yourself.","difficulty":"easy"},
			{"id":2,"category":"Behavioral","question":"Describe a conflict.","keywords":["team"]}
		]}`)(w, r)
	})

	questions, err := client.Questions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []protocol.Question{
		{ID: 1, Category: "Introduction", Text: "Tell me about yourself."},
		{ID: 2, Category: "Behavioral", Text: "Describe a conflict."},
	}, questions)
}

func TestQuestionsFailures(t *testing.T) {
	cases := []struct {
		name  string
		h     http.HandlerFunc
		check func(t *testing.T, err error)
	}{
		{
			name: "http error",
			h:    respond(http.StatusInternalServerError, `oops`),
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, 500, statusErr.Code)
				assert.Equal(t, "HTTP error! status: 500", err.Error())
			},
		},
		{
			name: "non success status",
			h:    respond(http.StatusOK, `{"status":"error","message":"Question bank not loaded"}`),
			check: func(t *testing.T, err error) {
				var remote *RemoteError
				require.ErrorAs(t, err, &remote)
				assert.Equal(t, "Question bank not loaded", remote.Message)
			},
		},
		{
			name: "empty list",
			h:    respond(http.StatusOK, `{"status":"success","questions":[]}`),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoQuestions)
			},
		},
		{
			name: "invalid questions",
			h: respond(http.StatusOK, `{"status":"success","questions":[
				{"id":1,"category":"A","question":"Fine?"},
				{"id":null,"category":"B","question":"No id"},
				{"id":3,"category":"C","question":"   "}
			]}`),
			check: func(t *testing.T, err error) {
				var invalid *InvalidQuestionsError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, 1, invalid.Valid)
				assert.Equal(t, 3, invalid.Total)
				assert.Equal(t, "only 1/3 questions are valid", err.Error())
			},
		},
		{
			name: "schema violation",
			h:    respond(http.StatusOK, `{"status":"success","questions":[{"id":"one","question":"x"}]}`),
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.NotEmpty(t, malformed.Problems)
			},
		},
		{
			name: "not json",
			h:    respond(http.StatusOK, `<html></html>`),
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.h)
			_, err := client.Questions(context.Background())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestQuestionsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(config.BackendConfig{URL: url, TimeoutMS: 500}, newLogger())
	require.NoError(t, err)
	_, err = client.Questions(context.Background())
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
}

const reportBody = `{"status":"success","report":{
	"question_id":7,
	"transcript":"I led the migration.",
	"overall_score":82.5,
	"content":{"score":90,"feedback":"Relevant answer."},
	"fluency":{"score":75,"wpm":142.3,"word_count":4,"duration_seconds":1.7,"filler_count":1,"filler_rate":2.5,"feedback":"Good pacing."}
}}`

func TestScoreSendsRequestBody(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interview/score", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(http.StatusOK, reportBody)(w, r)
	})

	report, err := client.Score(context.Background(), protocol.ScoreRequest{
		QuestionID:      7,
		Transcript:      "  I led the migration.  ",
		DurationSeconds: 1.7,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"question_id": float64(7), "transcript": "I led the migration.", "duration_seconds": 1.7}, got)
	assert.InDelta(t, 82.5, report.OverallScore, 0.001)
	assert.Equal(t, "Relevant answer.", report.Content.Feedback)
	assert.Equal(t, 1, report.Fluency.FillerCount)
	assert.Equal(t, 4, report.Fluency.WordCount)
}

func TestScoreEmptyTranscript(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 1, Transcript: "   "})
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.False(t, called)
}

func TestScoreErrors(t *testing.T) {
	client := newTestClient(t, respond(http.StatusBadRequest, `{"status":"error","message":"Invalid question ID"}`))
	_, err := client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 99, Transcript: "hi", DurationSeconds: 1})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Invalid question ID", remote.Message)
	assert.Equal(t, http.StatusBadRequest, remote.Code)

	client = newTestClient(t, respond(http.StatusBadGateway, `bad gateway`))
	_, err = client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 1, Transcript: "hi", DurationSeconds: 1})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)

	client = newTestClient(t, respond(http.StatusOK, `{"status":"success","report":{"overall_score":"high"}}`))
	_, err = client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 1, Transcript: "hi", DurationSeconds: 1})
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)

	client = newTestClient(t, respond(http.StatusOK, `{"status":"success"}`))
	_, err = client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 1, Transcript: "hi", DurationSeconds: 1})
	require.ErrorAs(t, err, &malformed)

	_, err = client.Score(context.Background(), protocol.ScoreRequest{QuestionID: 1, Transcript: "hi", DurationSeconds: -1})
	require.Error(t, err)
	assert.False(t, errors.As(err, &malformed))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(config.BackendConfig{URL: "localhost:5000"}, newLogger())
	assert.Error(t, err)
}
