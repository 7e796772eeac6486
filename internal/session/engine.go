// Package session implements the quiz session engine: one user, one quiz
// attempt, driven to completion by discrete answer events and a cooperative
// external clock tick. Every operation is a synchronous in-memory state
// transition; nothing here blocks or touches the network.
package session

import (
	"math"
	"sync"
	"time"

	"trivia-league-service/internal/domain"
)

// Phase is the session lifecycle. Transitions are one-way:
// NotStarted -> Active -> Finished.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseActive
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "notStarted"
	}
}

// FeedbackDelay is how long the engine keeps showing per-question feedback
// before advancing. A UI affordance, not a correctness requirement; tests
// replace the scheduler with an immediate one.
const FeedbackDelay = 1200 * time.Millisecond

// Answer is one recorded submission, kept in insertion order.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	Correct        bool   `json:"correct"`
}

// Feedback is what the presentation layer shows after a submission.
type Feedback struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	CorrectOption  string `json:"correctOption"`
	Correct        bool   `json:"correct"`
}

// Engine drives a single quiz attempt. It is safe for concurrent use; the
// mutex only serializes the externally-arriving events (ticks, answers, the
// advance timer), it never makes an operation wait on I/O.
type Engine struct {
	mu             sync.Mutex
	quiz           domain.QuizDefinition
	phase          Phase
	current        int
	answered       []Answer
	byQuestion     map[string]int
	correct        int
	remaining      int
	result         domain.QuizResult
	advancePending bool

	now       func() time.Time
	schedule  func(func())
	onAdvance func()
}

// Option customizes an Engine, mostly for deterministic tests.
type Option func(*Engine)

// WithNow injects the clock used for the expiry check at Start.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithScheduler replaces the feedback-delay scheduler. The scheduler must
// eventually invoke the callback exactly once.
func WithScheduler(schedule func(func())) Option {
	return func(e *Engine) { e.schedule = schedule }
}

// WithAdvanceHook registers a callback fired after the engine advances to
// the next question. Invoked outside the engine lock.
func WithAdvanceHook(fn func()) Option {
	return func(e *Engine) { e.onAdvance = fn }
}

// NewEngine returns an engine in the NotStarted phase.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:        time.Now,
		byQuestion: make(map[string]int),
	}
	e.schedule = func(fn func()) { time.AfterFunc(FeedbackDelay, fn) }
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins the attempt. Starting a quiz past its availability window
// fails with ErrQuizExpired and leaves the engine NotStarted; expiry never
// interrupts a session that is already Active. Calling Start on a session
// that is no longer NotStarted is a no-op.
func (e *Engine) Start(quiz domain.QuizDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseNotStarted {
		return nil
	}
	if quiz.Expired(e.now()) {
		return domain.ErrQuizExpired
	}

	e.quiz = quiz
	e.current = 0
	e.answered = e.answered[:0]
	e.byQuestion = make(map[string]int)
	e.correct = 0
	e.remaining = quiz.TimeLimitSeconds
	e.phase = PhaseActive

	if len(quiz.Questions) == 0 {
		e.finishLocked(false)
	}
	return nil
}

// Tick consumes one elapsed second. Reaching zero forces a timed-out
// finish. Ticks outside the Active phase are ignored.
func (e *Engine) Tick() (remaining int, finished bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return e.remaining, e.phase == PhaseFinished
	}
	e.remaining--
	if e.remaining <= 0 {
		e.remaining = 0
		e.finishLocked(true)
		return 0, true
	}
	return e.remaining, false
}

// SubmitAnswer evaluates the selected option against the current question.
// Re-submission for an already-answered question is a silent no-op (ok is
// false), guarding against duplicate input events. An option outside the
// question's option set is simply incorrect. When the last question is
// answered the session finishes immediately; otherwise the index advances
// after the feedback delay.
func (e *Engine) SubmitAnswer(selectedOption string) (Feedback, bool) {
	e.mu.Lock()

	if e.phase != PhaseActive || e.current >= len(e.quiz.Questions) {
		e.mu.Unlock()
		return Feedback{}, false
	}
	q := e.quiz.Questions[e.current]
	if _, dup := e.byQuestion[q.ID]; dup {
		e.mu.Unlock()
		return Feedback{}, false
	}

	correct := selectedOption == q.CorrectOption
	e.byQuestion[q.ID] = len(e.answered)
	e.answered = append(e.answered, Answer{
		QuestionID:     q.ID,
		SelectedOption: selectedOption,
		Correct:        correct,
	})
	if correct {
		e.correct++
	}

	fb := Feedback{
		QuestionID:     q.ID,
		SelectedOption: selectedOption,
		CorrectOption:  q.CorrectOption,
		Correct:        correct,
	}

	if e.current == len(e.quiz.Questions)-1 {
		e.finishLocked(false)
		e.mu.Unlock()
		return fb, true
	}

	e.advancePending = true
	e.mu.Unlock()
	e.schedule(e.advance)
	return fb, true
}

// advance moves to the next question once the feedback delay elapses. A
// finish that raced in during the delay wins and the advance is dropped.
func (e *Engine) advance() {
	e.mu.Lock()
	if e.phase != PhaseActive || !e.advancePending {
		e.mu.Unlock()
		return
	}
	e.advancePending = false
	e.current++
	hook := e.onAdvance
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Finish terminates the session and returns the immutable result. A second
// call while already Finished is a no-op returning the same result.
func (e *Engine) Finish(timedOut bool) domain.QuizResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishLocked(timedOut)
}

func (e *Engine) finishLocked(timedOut bool) domain.QuizResult {
	if e.phase == PhaseFinished {
		return e.result
	}
	e.phase = PhaseFinished
	e.advancePending = false

	answeredCount := len(e.answered)
	rate := 0.0
	if answeredCount > 0 {
		rate = math.Round(float64(e.correct)/float64(answeredCount)*1000) / 10
	}
	e.result = domain.QuizResult{
		QuizID:        e.quiz.ID,
		AnsweredCount: answeredCount,
		CorrectCount:  e.correct,
		PointsEarned:  e.correct * e.quiz.PointsPerQuestion,
		AccuracyRate:  rate,
		TimedOut:      timedOut,
	}
	return e.result
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// CurrentQuestion returns the question awaiting an answer. ok is false
// outside the Active phase.
func (e *Engine) CurrentQuestion() (domain.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseActive || e.current >= len(e.quiz.Questions) {
		return domain.Question{}, false
	}
	return e.quiz.Questions[e.current], true
}

// CurrentIndex returns the 0-based question pointer.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// RemainingSeconds reports the countdown value; monotonically non-increasing
// while Active.
func (e *Engine) RemainingSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

// Answers returns the recorded submissions in insertion order.
func (e *Engine) Answers() []Answer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Answer, len(e.answered))
	copy(out, e.answered)
	return out
}

// Result returns the finished snapshot; ok is false until the session is
// Finished.
func (e *Engine) Result() (domain.QuizResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseFinished {
		return domain.QuizResult{}, false
	}
	return e.result, true
}
