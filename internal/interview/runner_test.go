package interview

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interview/internal/backend"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/devices"
	"github.com/loqalabs/loqa-interview/internal/eventstore"
	"github.com/loqalabs/loqa-interview/internal/pcm"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/loqalabs/loqa-interview/internal/stt"
	"github.com/loqalabs/loqa-interview/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeBackend serves /interview/start and /interview/score. scoreFail
// decides per call (1-based) whether scoring fails.
type fakeBackend struct {
	t         *testing.T
	questions []protocol.Question
	scoreFail func(call int) bool
	startFail func(call int) bool

	mu     sync.Mutex
	starts int
	scored []protocol.ScoreRequest
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/interview/start":
		f.mu.Lock()
		f.starts++
		call := f.starts
		f.mu.Unlock()
		if f.startFail != nil && f.startFail(call) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(protocol.StartResponse{Status: protocol.StatusSuccess, Questions: f.questions})
	case "/interview/score":
		var req protocol.ScoreRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.scored = append(f.scored, req)
		call := len(f.scored)
		f.mu.Unlock()
		if f.scoreFail != nil && f.scoreFail(call) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(protocol.ScoreResponse{Status: "error", Message: "Model not loaded"})
			return
		}
		_ = json.NewEncoder(w).Encode(protocol.ScoreResponse{Status: protocol.StatusSuccess, Report: &protocol.ScoreReport{
			QuestionID:   req.QuestionID,
			Transcript:   req.Transcript,
			OverallScore: 70 + float64(req.QuestionID),
			Content:      protocol.ContentScore{Score: 80, Feedback: "Relevant."},
			Fluency:      protocol.FluencyReport{Score: 60, WPM: 140, FillerCount: 1, FillerRate: 2, Feedback: "Steady."},
		}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) requests() []protocol.ScoreRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.ScoreRequest(nil), f.scored...)
}

type recordingStatus struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recordingStatus) Update(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingStatus) texts() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, u := range r.updates {
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}

type harness struct {
	backend *fakeBackend
	status  *recordingStatus
	tracker *Tracker
	events  *eventstore.Store
	out     *strings.Builder
	results string
	runner  *Runner
}

type harnessOptions struct {
	questions  []protocol.Question
	scoreFail  func(int) bool
	startFail  func(int) bool
	source     stt.Source
	recognizer stt.Recognizer
	controls   Controls
	opts       Options
}

var speech = pcm.Format{SampleRate: 16000, Channels: 1}

func answerSource() stt.Source {
	return stt.NewScriptedSource(speech, 20, false,
		stt.Segment{Duration: time.Second, Amplitude: 3000},
		stt.Segment{Duration: 3 * time.Second},
	)
}

func newHarness(t *testing.T, ho harnessOptions) *harness {
	t.Helper()
	fb := &fakeBackend{t: t, questions: ho.questions, scoreFail: ho.scoreFail, startFail: ho.startFail}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	log := newLogger()
	client, err := backend.New(config.BackendConfig{URL: srv.URL, TimeoutMS: 2000}, log)
	require.NoError(t, err)

	store, err := eventstore.Open(context.Background(), config.EventStoreConfig{
		Path:          filepath.Join(t.TempDir(), "events.db"),
		RetentionMode: "session",
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if ho.source == nil {
		ho.source = answerSource()
	}
	if ho.recognizer == nil {
		ho.recognizer = stt.NewMockRecognizer("I enjoy solving hard problems with my team.")
	}
	if ho.controls == nil {
		ho.controls = NewScriptedControls()
	}
	if ho.opts.SessionID == "" {
		ho.opts.SessionID = "test-session"
	}
	ho.opts.ResultsDir = filepath.Join(t.TempDir(), "results")

	speaker := tts.NewSpeaker(tts.NewMockSynth(22050, 1), nil, "", time.Second, log)
	listener := stt.NewListener(ho.source, ho.recognizer, stt.ListenerOptions{
		FrameMS:         20,
		Silence:         2 * time.Second,
		NoSpeechTimeout: 0,
		MaxAnswer:       time.Minute,
		EnergyThreshold: 500,
	}, log)

	metrics, err := NewMetrics()
	require.NoError(t, err)

	h := &harness{
		backend: fb,
		status:  &recordingStatus{},
		tracker: NewTracker(ho.opts.SessionID),
		events:  store,
		out:     &strings.Builder{},
		results: ho.opts.ResultsDir,
	}
	h.runner, err = NewRunner(Deps{
		Backend:  client,
		Speaker:  speaker,
		Listener: listener,
		Devices:  devices.NewStaticEnumerator([]devices.Device{{ID: "hw:0,0"}}),
		Controls: ho.controls,
		Status:   Multi(h.status, h.tracker),
		Events:   store,
		Metrics:  metrics,
		Out:      h.out,
		Rand:     rand.New(rand.NewPCG(3, 4)),
	}, ho.opts, log)
	require.NoError(t, err)
	return h
}

func TestRunFullInterview(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(5),
		opts:      Options{IntroQuestions: 3, AutoListen: true},
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	reqs := h.backend.requests()
	require.Len(t, reqs, 5)
	assert.Equal(t, []int64{1, 2, 3}, []int64{reqs[0].QuestionID, reqs[1].QuestionID, reqs[2].QuestionID})
	for _, req := range reqs {
		assert.Equal(t, "I enjoy solving hard problems with my team.", req.Transcript)
		assert.InDelta(t, 3.0, req.DurationSeconds, 0.001)
	}

	assert.True(t, summary.Completed)
	assert.Equal(t, 5, summary.Scored())
	assert.InDelta(t, 73, summary.Averages.Overall, 0.001)

	texts := h.status.texts()
	assert.Contains(t, texts, "Ready! Loaded 5 questions.")
	assert.Contains(t, texts, "Category: General (Q 1/5)")
	assert.Contains(t, texts, "Interviewer is speaking.")
	assert.Contains(t, texts, "Interview Complete!")
	assert.Contains(t, h.out.String(), "Question 5 Scorecard")
	assert.Contains(t, h.out.String(), "Interview Summary")

	assert.Equal(t, PhaseComplete, h.tracker.Snapshot().Phase)
	assert.Equal(t, 5, h.tracker.Snapshot().Scored)

	_, err = os.Stat(filepath.Join(h.results, "interview_test-session.json"))
	require.NoError(t, err)

	events, err := h.events.ListSessionEvents(context.Background(), "test-session", 100)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range events {
		counts[e.Type]++
	}
	assert.Equal(t, 5, counts[eventstore.TypeQuestionPresented])
	assert.Equal(t, 5, counts[eventstore.TypeReportReceived])
	assert.Equal(t, 1, counts[eventstore.TypeInterviewCompleted])
}

func TestRunScoringFailureRetriesSameQuestion(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(2),
		scoreFail: func(call int) bool { return call == 1 },
		controls:  NewScriptedControls(ActionListen),
		opts:      Options{IntroQuestions: 3, AutoListen: true},
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	reqs := h.backend.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, int64(1), reqs[0].QuestionID)
	assert.Equal(t, int64(1), reqs[1].QuestionID, "failed answer must be retried on the same question")
	assert.Equal(t, int64(2), reqs[2].QuestionID)

	require.Len(t, summary.Entries, 2)
	assert.Equal(t, 2, summary.Entries[0].Attempts)
	assert.Contains(t, h.status.texts(), "Scoring Failed: Model not loaded. Press Enter to try again.")

	events, err := h.events.ListSessionEvents(context.Background(), "test-session", 100)
	require.NoError(t, err)
	var failed int
	for _, e := range events {
		if e.Type == eventstore.TypeScoringFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRunEmptyTranscriptDoesNotSubmit(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(1),
		source:    stt.NewScriptedSource(speech, 20, false, stt.Segment{Duration: time.Second}),
		controls:  NewScriptedControls(ActionSkip),
		opts:      Options{AutoListen: true},
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.backend.requests())
	require.Len(t, summary.Entries, 1)
	assert.True(t, summary.Entries[0].Skipped)
	texts := h.status.texts()
	assert.Contains(t, texts, "No speech detected.")
	assert.Contains(t, texts, "Detected 1 microphone(s).")
}

func TestRunMaxAttemptsSkips(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(1),
		scoreFail: func(int) bool { return true },
		controls:  NewScriptedControls(ActionListen),
		opts:      Options{AutoListen: true, MaxAttempts: 2},
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.backend.requests(), 2)
	require.Len(t, summary.Entries, 1)
	assert.True(t, summary.Entries[0].Skipped)
	assert.Contains(t, h.status.texts(), "Skipping question after 2 attempts.")
}

func TestRunQuitBeforeStart(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(2),
		controls:  NewScriptedControls(ActionQuit),
	})

	summary, err := h.runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	require.NotNil(t, summary)
	assert.False(t, summary.Completed)
	assert.Empty(t, h.backend.requests())
	assert.Equal(t, PhaseStopped, h.tracker.Snapshot().Phase)
}

func TestRunManualListen(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(1),
		controls:  NewScriptedControls(ActionListen, ActionListen),
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Len(t, h.backend.requests(), 1)
}

func TestRunLoadFailure(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: []protocol.Question{{ID: 1, Text: "Fine"}, {ID: 2, Text: "  "}},
	})

	summary, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, h.status.texts(), "Error: Only 1/2 questions are valid.")
	assert.Equal(t, PhaseFailed, h.tracker.Snapshot().Phase)
}

func TestRunRetriesLoadingOnEnter(t *testing.T) {
	h := newHarness(t, harnessOptions{
		questions: makeQuestions(1),
		startFail: func(call int) bool { return call == 1 },
		controls:  NewScriptedControls(ActionListen),
		opts:      Options{AutoListen: true},
	})

	summary, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Len(t, h.backend.requests(), 1)
	texts := h.status.texts()
	assert.Contains(t, texts, "Error: HTTP error! status: 503")
	assert.Contains(t, texts, "Press Enter to retry loading")
	assert.Contains(t, texts, "Ready! Loaded 1 questions.")
}

// stuckRecognizer never finishes a final transcription until its context ends.
type stuckRecognizer struct {
	started chan struct{}
	once    sync.Once
}

func (s *stuckRecognizer) Transcribe(ctx context.Context, _ []byte, _ int, _ int, final bool) (stt.TranscriptResult, error) {
	if !final {
		return stt.TranscriptResult{}, stt.ErrInterimUnsupported
	}
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return stt.TranscriptResult{}, ctx.Err()
}

// chanControls delivers whatever the test sends.
type chanControls struct {
	actions chan Action
}

func (c *chanControls) Actions() <-chan Action { return c.actions }

func TestRunQuitWhileTranscribing(t *testing.T) {
	rec := &stuckRecognizer{started: make(chan struct{})}
	controls := &chanControls{actions: make(chan Action, 1)}
	h := newHarness(t, harnessOptions{
		questions:  makeQuestions(2),
		recognizer: rec,
		controls:   controls,
		opts:       Options{AutoListen: true},
	})

	go func() {
		<-rec.started
		controls.actions <- ActionQuit
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := h.runner.Run(ctx)
	assert.ErrorIs(t, err, ErrQuit)
	require.NoError(t, ctx.Err(), "quit must not wait for the transcription")
	require.NotNil(t, summary)
	assert.False(t, summary.Completed)
	assert.Empty(t, h.backend.requests())
	assert.Equal(t, PhaseStopped, h.tracker.Snapshot().Phase)
}
