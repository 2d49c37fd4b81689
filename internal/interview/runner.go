package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/loqalabs/loqa-interview/internal/backend"
	"github.com/loqalabs/loqa-interview/internal/devices"
	"github.com/loqalabs/loqa-interview/internal/eventstore"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/loqalabs/loqa-interview/internal/report"
	"github.com/loqalabs/loqa-interview/internal/stt"
	"github.com/loqalabs/loqa-interview/internal/tts"
)

// ErrQuit is returned when the candidate quits before the last question.
var ErrQuit = errors.New("interview stopped by candidate")

// Backend is the part of the scoring backend the runner needs.
type Backend interface {
	Questions(ctx context.Context) ([]protocol.Question, error)
	Score(ctx context.Context, req protocol.ScoreRequest) (protocol.ScoreReport, error)
	BaseURL() string
}

// Deps are the collaborators of a Runner. Devices, Events, Metrics and Out
// are optional.
type Deps struct {
	Backend  Backend
	Speaker  *tts.Speaker
	Listener *stt.Listener
	Devices  devices.Enumerator
	Controls Controls
	Status   Status
	Events   *eventstore.Store
	Metrics  *Metrics
	Out      io.Writer
	Rand     *rand.Rand
}

type Options struct {
	SessionID      string
	IntroQuestions int
	StartupDelay   time.Duration
	AdvanceDelay   time.Duration
	AutoListen     bool
	MaxAttempts    int
	ResultsDir     string
}

// Runner drives one interview from question loading to the summary.
type Runner struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	session *Session
	now     func() time.Time
}

func NewRunner(deps Deps, opts Options, log *slog.Logger) (*Runner, error) {
	switch {
	case deps.Backend == nil:
		return nil, errors.New("runner requires a backend")
	case deps.Speaker == nil:
		return nil, errors.New("runner requires a speaker")
	case deps.Listener == nil:
		return nil, errors.New("runner requires a listener")
	case deps.Controls == nil:
		return nil, errors.New("runner requires controls")
	case opts.SessionID == "":
		return nil, errors.New("runner requires a session id")
	}
	if deps.Status == nil {
		deps.Status = Multi()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	r := &Runner{
		deps:   deps,
		opts:   opts,
		logger: log.With(slog.String("component", "interview"), slog.String("session_id", opts.SessionID)),
		now:    time.Now,
	}
	deps.Speaker.Observe(r.onSpeaker)
	deps.Listener.Observe(r.onListener)
	return r, nil
}

type outcome int

const (
	outcomeScored outcome = iota
	outcomeSkipped
	outcomeQuit
)

// Run loads the questions and asks them in turn. The returned summary is
// non-nil once questions were loaded, also when the candidate quit.
func (r *Runner) Run(ctx context.Context) (*report.Summary, error) {
	questions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.session = NewSession(r.opts.SessionID, Arrange(questions, r.opts.IntroQuestions, r.deps.Rand))
	summary := report.NewSummary(r.opts.SessionID, r.deps.Backend.BaseURL(), r.session.Total(), r.now())

	if err := r.deps.Events.BeginSession(ctx, eventstore.Session{
		ID:            r.opts.SessionID,
		BackendURL:    r.deps.Backend.BaseURL(),
		QuestionCount: r.session.Total(),
	}); err != nil {
		r.logger.Warn("failed to record session", slogError(err))
	}

	if !r.opts.AutoListen {
		r.update(Update{Kind: KindStatus, Phase: PhaseReady, Text: "Press Enter to start the interview (q + Enter to quit)."})
		action, err := r.await(ctx)
		if err != nil {
			return summary, r.finish(ctx, summary, false, err)
		}
		if action == ActionQuit {
			return summary, r.finish(ctx, summary, false, ErrQuit)
		}
	}

	r.session.Start()
	for !r.session.Done() {
		q, _ := r.session.Current()
		result, err := r.ask(ctx, q, summary)
		if err != nil {
			return summary, r.finish(ctx, summary, false, err)
		}
		if result == outcomeQuit {
			return summary, r.finish(ctx, summary, false, ErrQuit)
		}
		if !r.session.Advance() {
			break
		}
		if result == outcomeScored && r.opts.AdvanceDelay > 0 {
			r.update(Update{Kind: KindStatus, Text: "Scoring complete. Moving to next question shortly..."})
			if err := sleep(ctx, r.opts.AdvanceDelay); err != nil {
				return summary, r.finish(ctx, summary, false, err)
			}
		}
	}
	return summary, r.finish(ctx, summary, true, nil)
}

// load fetches the questions. A failure leaves the candidate the choice to
// retry or quit.
func (r *Runner) load(ctx context.Context) ([]protocol.Question, error) {
	if r.opts.StartupDelay > 0 {
		if err := sleep(ctx, r.opts.StartupDelay); err != nil {
			return nil, err
		}
	}
	for {
		r.update(Update{Kind: KindStatus, Phase: PhaseLoading, Text: "Loading questions..."})
		questions, err := r.deps.Backend.Questions(ctx)
		if err == nil {
			r.update(Update{Kind: KindStatus, Phase: PhaseReady, Text: fmt.Sprintf("Ready! Loaded %d questions.", len(questions))})
			return questions, nil
		}
		r.update(Update{Kind: KindStatus, Phase: PhaseFailed, Text: describeLoadError(err, r.deps.Backend.BaseURL())})
		if ctx.Err() != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		r.logger.Warn("failed to load questions", slogError(err))
		r.update(Update{Kind: KindMic, Text: "Press Enter to retry loading (q + Enter to quit)."})
		action, aerr := r.await(ctx)
		if aerr != nil {
			return nil, aerr
		}
		if action == ActionQuit {
			return nil, fmt.Errorf("load questions: %w", err)
		}
	}
}

// ask presents q and collects answers until one is scored, the question is
// skipped or the candidate quits.
func (r *Runner) ask(ctx context.Context, q protocol.Question, summary *report.Summary) (outcome, error) {
	if err := r.present(ctx, q); err != nil {
		return outcomeQuit, err
	}

	attempts := 0
	for {
		if attempts > 0 || !r.opts.AutoListen {
			r.update(Update{Kind: KindMic, Phase: PhaseWaiting, Text: "Press Enter to start speaking (s + Enter to skip, q + Enter to quit)."})
			action, err := r.await(ctx)
			if err != nil {
				return outcomeQuit, err
			}
			switch action {
			case ActionQuit:
				return outcomeQuit, nil
			case ActionSkip:
				r.skip(ctx, q, attempts, summary)
				return outcomeSkipped, nil
			case ActionStop:
				continue
			}
		}

		attempts++
		res, quit, err := r.listen(ctx)
		if ctx.Err() != nil {
			return outcomeQuit, ctx.Err()
		}
		if quit {
			return outcomeQuit, nil
		}

		if r.answer(ctx, q, attempts, res, err, summary) {
			return outcomeScored, nil
		}
		if r.opts.MaxAttempts > 0 && attempts >= r.opts.MaxAttempts {
			r.update(Update{Kind: KindStatus, Text: fmt.Sprintf("Skipping question after %d attempts.", attempts)})
			r.skip(ctx, q, attempts, summary)
			return outcomeSkipped, nil
		}
	}
}

func (r *Runner) present(ctx context.Context, q protocol.Question) error {
	category := q.Category
	if category == "" {
		category = "N/A"
	}
	r.update(Update{
		Kind:     KindQuestion,
		Phase:    PhaseSpeaking,
		Text:     fmt.Sprintf("Category: %s (%s)\n%s", category, r.session.Progress(), q.Text),
		Index:    r.session.Index(),
		Total:    r.session.Total(),
		Question: &q,
	})
	r.update(Update{Kind: KindStatus, Text: "Interviewer is speaking."})
	r.record(ctx, q.ID, 0, eventstore.TypeQuestionPresented, map[string]any{
		"index":    r.session.Index(),
		"category": q.Category,
		"question": q.Text,
	})
	r.deps.Metrics.questionPresented(ctx, q.Category)

	if err := r.deps.Speaker.Speak(ctx, q.Text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the question text is on screen, so the answer phase still opens
		r.update(Update{Kind: KindMic, Text: "Error: Speech synthesis failed. Read the question above and answer when ready."})
		return nil
	}
	r.update(Update{Kind: KindMic, Text: "Interviewer done. Your turn to reply."})
	return nil
}

type listenResult struct {
	res stt.Result
	err error
}

// listen runs one recognition session. Any action while listening stops the
// recording; quit additionally ends the interview.
func (r *Runner) listen(ctx context.Context) (stt.Result, bool, error) {
	r.session.BeginAnswer(r.now())
	// quit also abandons a transcription still running after the stop
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := make(chan struct{})
	done := make(chan listenResult, 1)
	go func() {
		res, err := r.deps.Listener.Listen(listenCtx, stop)
		done <- listenResult{res: res, err: err}
	}()

	actions := r.deps.Controls.Actions()
	stopped, quit := false, false
	for {
		select {
		case out := <-done:
			return out.res, quit, out.err
		case action, ok := <-actions:
			if !ok {
				actions = nil
				continue
			}
			if action == ActionQuit {
				quit = true
				cancel()
			}
			if !stopped {
				close(stop)
				stopped = true
			}
		}
	}
}

// answer handles a finished recognition session and reports whether the
// answer was scored.
func (r *Runner) answer(ctx context.Context, q protocol.Question, attempt int, res stt.Result, listenErr error, summary *report.Summary) bool {
	if listenErr != nil {
		recErr := stt.AsRecognitionError(listenErr, stt.KindNetwork)
		text := stt.Describe(recErr)
		if recErr.Kind == stt.KindNoSpeech || recErr.Kind == stt.KindAudioCapture {
			text += " " + r.diagnose(ctx)
		}
		r.update(Update{Kind: KindMic, Phase: PhaseWaiting, Text: text})
		r.record(ctx, q.ID, attempt, eventstore.TypeSpeechError, map[string]any{"kind": recErr.Kind, "error": recErr.Error()})
		r.deps.Metrics.recognitionFailed(ctx, string(recErr.Kind))
		return false
	}

	r.session.SetTranscript(res.Transcript)
	transcript := r.session.Transcript()
	if transcript == "" {
		r.update(Update{Kind: KindMic, Phase: PhaseWaiting, Text: "No speech detected. Press Enter to try again. Make sure your microphone is properly configured. " + r.diagnose(ctx)})
		r.record(ctx, q.ID, attempt, eventstore.TypeSpeechError, map[string]any{"kind": stt.KindNoSpeech, "reason": res.Reason})
		r.deps.Metrics.recognitionFailed(ctx, string(stt.KindNoSpeech))
		return false
	}

	seconds := res.Duration.Seconds()
	if seconds <= 0 {
		seconds = r.now().Sub(r.session.AnswerStart()).Seconds()
	}
	r.update(Update{Kind: KindTranscript, Text: transcript})
	r.update(Update{Kind: KindMic, Phase: PhaseScoring, Text: fmt.Sprintf("Duration recorded: %.2f seconds. Sending to server for scoring...", seconds)})

	req := protocol.ScoreRequest{QuestionID: q.ID, Transcript: transcript, DurationSeconds: seconds}
	r.record(ctx, q.ID, attempt, eventstore.TypeAnswerSubmitted, req)

	scored, err := r.deps.Backend.Score(ctx, req)
	if err != nil {
		r.logger.Warn("scoring failed", slog.Int64("question_id", q.ID), slogError(err))
		r.update(Update{Kind: KindStatus, Phase: PhaseWaiting, Text: describeScoreError(err)})
		r.record(ctx, q.ID, attempt, eventstore.TypeScoringFailed, map[string]any{"error": err.Error()})
		r.deps.Metrics.scoringFailed(ctx)
		return false
	}

	r.record(ctx, q.ID, attempt, eventstore.TypeReportReceived, scored)
	r.deps.Metrics.answerScored(ctx, seconds, scored.OverallScore)
	summary.Add(q, scored, attempt)

	next := time.Duration(0)
	if r.session.Index()+1 < r.session.Total() {
		next = r.opts.AdvanceDelay
	}
	if err := report.Render(r.deps.Out, report.Card{Index: r.session.Index(), Question: q, Report: scored, NextIn: next}); err != nil {
		r.logger.Warn("failed to render scorecard", slogError(err))
	}
	overall := scored.OverallScore
	r.update(Update{Kind: KindFeedback, Phase: PhaseFeedback, Text: fmt.Sprintf("Overall Performance: %.0f%%\n", overall), Score: &overall})
	return true
}

func (r *Runner) skip(ctx context.Context, q protocol.Question, attempts int, summary *report.Summary) {
	summary.Skip(q, attempts)
	r.record(ctx, q.ID, attempts, eventstore.TypeQuestionSkipped, nil)
}

func (r *Runner) finish(ctx context.Context, summary *report.Summary, completed bool, runErr error) error {
	summary.Finish(r.now(), completed)
	// bookkeeping must survive a cancelled run
	bg := context.WithoutCancel(ctx)

	if completed {
		r.update(Update{Kind: KindStatus, Phase: PhaseComplete, Text: "Interview Complete! Thank you for participating."})
	} else {
		r.update(Update{Kind: KindStatus, Phase: PhaseStopped, Text: "Interview stopped."})
	}
	if err := summary.Render(r.deps.Out); err != nil {
		r.logger.Warn("failed to render summary", slogError(err))
	}
	if r.opts.ResultsDir != "" {
		path, err := summary.WriteJSON(r.opts.ResultsDir)
		if err != nil {
			r.logger.Warn("failed to save results", slogError(err))
		} else {
			r.logger.Info("results saved", slog.String("path", path))
		}
	}
	if completed {
		r.record(bg, 0, 0, eventstore.TypeInterviewCompleted, summary.Averages)
	}
	if err := r.deps.Events.FinishSession(bg, r.opts.SessionID, completed, summary.Averages.Overall); err != nil {
		r.logger.Warn("failed to record session end", slogError(err))
	}
	r.logger.Info("interview finished",
		slog.Bool("completed", completed),
		slog.Int("scored", summary.Scored()),
		slog.Float64("average_overall", summary.Averages.Overall),
	)
	return runErr
}

// await blocks until the candidate acts. Closed controls count as quit.
func (r *Runner) await(ctx context.Context) (Action, error) {
	if p, ok := r.deps.Controls.(Prompter); ok {
		p.Prompt()
	}
	select {
	case <-ctx.Done():
		return ActionQuit, ctx.Err()
	case action, ok := <-r.deps.Controls.Actions():
		if !ok {
			return ActionQuit, nil
		}
		return action, nil
	}
}

func (r *Runner) diagnose(ctx context.Context) string {
	if r.deps.Devices == nil {
		return ""
	}
	found, err := r.deps.Devices.Inputs(ctx)
	if err != nil {
		r.logger.Warn("error checking devices", slogError(err))
		return ""
	}
	return devices.Diagnose(found)
}

func (r *Runner) onSpeaker(evt tts.Event) {
	switch evt.Kind {
	case tts.EventStart:
		r.update(Update{Kind: KindMic, Text: "Interviewer speaking..."})
	case tts.EventError:
		r.logger.Warn("speech synthesis failed", slogError(evt.Err))
	}
}

func (r *Runner) onListener(evt stt.Event) {
	switch evt.Kind {
	case stt.EventStarted:
		r.update(Update{Kind: KindMic, Phase: PhaseListening, Text: "Microphone Status: LISTENING... Press Enter to stop."})
	case stt.EventAudioStarted:
		r.update(Update{Kind: KindMic, Text: "Microphone Status: LISTENING... Audio stream confirmed."})
	case stt.EventInterim:
		r.update(Update{Kind: KindTranscript, Text: evt.Text})
	case stt.EventEnded:
		r.update(Update{Kind: KindMic, Text: "Microphone Status: Recording Ended."})
	}
}

func (r *Runner) update(u Update) {
	r.deps.Status.Update(u)
}

func (r *Runner) record(ctx context.Context, questionID int64, attempt int, eventType string, payload any) {
	if err := r.deps.Events.Record(ctx, r.opts.SessionID, questionID, attempt, eventType, payload); err != nil {
		r.logger.Warn("failed to record event", slog.String("type", eventType), slogError(err))
	}
}

func describeLoadError(err error, baseURL string) string {
	var (
		remote  *backend.RemoteError
		invalid *backend.InvalidQuestionsError
		connErr *backend.ConnectError
	)
	switch {
	case errors.As(err, &invalid):
		return fmt.Sprintf("Error: Only %d/%d questions are valid.", invalid.Valid, invalid.Total)
	case errors.Is(err, backend.ErrNoQuestions):
		return "Error: No questions received from server."
	case errors.As(err, &remote):
		return "Error loading questions: " + remote.Message
	case errors.As(err, &connErr):
		return fmt.Sprintf("Error: Could not connect to the backend. Make sure the scoring server is running on %s.", baseURL)
	default:
		return "Error: " + err.Error()
	}
}

func describeScoreError(err error) string {
	var remote *backend.RemoteError
	if errors.As(err, &remote) {
		return "Scoring Failed: " + remote.Message + ". Press Enter to try again."
	}
	return "Communication Error: " + err.Error() + ". Press Enter to try again."
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
