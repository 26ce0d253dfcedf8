package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// State is the lifecycle state of a quiz session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// ErrIgnored marks user actions that are invalid in the current state.
// Such actions leave the session untouched; callers may safely drop them.
var ErrIgnored = errors.New("action ignored")

var (
	ErrNotInProgress   = fmt.Errorf("%w: quiz is not in progress", ErrIgnored)
	ErrReviewing       = fmt.Errorf("%w: reviewing a previous question", ErrIgnored)
	ErrAlreadyAnswered = fmt.Errorf("%w: question already answered", ErrIgnored)
	ErrAlreadySelected = fmt.Errorf("%w: an option is already selected", ErrIgnored)
	ErrNoSelection     = fmt.Errorf("%w: no option selected", ErrIgnored)
	ErrOptionRange     = fmt.Errorf("%w: option out of range", ErrIgnored)
	ErrAtStart         = fmt.Errorf("%w: already at the first question", ErrIgnored)
)

// ErrInvalidTotal is returned by Start for a non-positive question count.
var ErrInvalidTotal = errors.New("total question count must be at least 1")

// QuestionSource supplies questions by tier. *Bank implements it.
type QuestionSource interface {
	Next(tier model.Tier, exclude map[string]struct{}) (model.Question, model.Tier, error)
}

// Options configures a Session.
type Options struct {
	Thresholds Thresholds
	Clock      func() time.Time
}

// Outcome is the result of submitting an answer.
type Outcome struct {
	Record      model.AnsweredRecord
	Transition  Transition
	TierChanged bool
	// Last is true when this answer resolved the final question; the next
	// Advance completes the quiz.
	Last bool
}

// View describes the question under the cursor.
type View struct {
	Position  int
	Total     int
	Question  model.Question
	Tier      model.Tier
	Selected  *int
	Resolved  bool
	Record    *model.AnsweredRecord
	Reviewing bool
}

// Stats are the running counters of a session.
type Stats struct {
	Total           int
	Attempted       int
	Correct         int
	Incorrect       int
	Skipped         int
	LongestStreak   int
	Tier            model.Tier
	HighestTier     model.Tier
	CorrectStreak   int
	IncorrectStreak int
	Fastest         time.Duration
	Elapsed         time.Duration
}

type entry struct {
	record model.AnsweredRecord
	before Snapshot
}

// Session drives one quiz from start to completion. It is not safe for
// concurrent use; callers must serialize actions.
type Session struct {
	source QuestionSource
	ctrl   *Controller
	now    func() time.Time

	state State
	total int

	history []entry
	seen    map[string]struct{}
	cursor  int

	// live question
	pending     bool
	current     model.Question
	before      Snapshot
	presentedAt time.Time
	reviewFrom  time.Time
	selected    *int
	latency     time.Duration
	liveSnap    Snapshot

	// attempted is the single authoritative count of resolved questions.
	attempted int
	correct   int
	incorrect int
	skipped   int
	run       int
	longest   int
	fastest   time.Duration
	highest   model.Tier

	startedAt time.Time
	endedAt   time.Time
}

// NewSession creates a session that draws questions from source.
func NewSession(source QuestionSource, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		source: source,
		ctrl:   NewController(opts.Thresholds),
		now:    clock,
		seen:   make(map[string]struct{}),
	}
}

// Start resets the session and presents the first question.
func (s *Session) Start(total int) error {
	if total < 1 {
		return ErrInvalidTotal
	}
	s.ctrl.Reset()
	s.total = total
	s.history = nil
	s.seen = make(map[string]struct{})
	s.cursor = 0
	s.pending = false
	s.selected = nil
	s.attempted, s.correct, s.incorrect, s.skipped = 0, 0, 0, 0
	s.run, s.longest = 0, 0
	s.fastest = 0
	s.highest = model.TierEasy
	s.startedAt = s.now()
	s.endedAt = time.Time{}

	if err := s.present(); err != nil {
		s.state = StateNotStarted
		return err
	}
	s.state = StateInProgress
	return nil
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Tier returns the tier as of the cursor position.
func (s *Session) Tier() model.Tier { return s.ctrl.Tier() }

// Select records the chosen option for the live question. Only one
// selection per question is accepted.
func (s *Session) Select(option int) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if s.selected != nil {
		return ErrAlreadySelected
	}
	if option < 0 || option >= len(s.current.Options) {
		return ErrOptionRange
	}
	s.selected = &option
	s.latency = s.now().Sub(s.presentedAt)
	return nil
}

// Submit finalizes the pending selection and applies any tier transition.
func (s *Session) Submit() (Outcome, error) {
	if err := s.checkLive(); err != nil {
		return Outcome{}, err
	}
	if s.selected == nil {
		return Outcome{}, ErrNoSelection
	}

	selected := *s.selected
	correct := s.current.IsCorrect(selected)
	rec := model.AnsweredRecord{
		Question:  s.current,
		Selected:  &selected,
		IsCorrect: correct,
		Tier:      s.ctrl.Tier(),
		LatencyMs: s.latency.Milliseconds(),
	}
	s.resolve(rec)

	if correct {
		s.correct++
		s.run++
		s.longest = max(s.longest, s.run)
	} else {
		s.incorrect++
		s.run = 0
	}
	if s.correct+s.incorrect == 1 || s.latency < s.fastest {
		s.fastest = s.latency
	}

	tr, moved := s.ctrl.RecordAnswer(correct)
	if moved && tr.To > s.highest {
		s.highest = tr.To
	}
	return Outcome{Record: rec, Transition: tr, TierChanged: moved, Last: s.attempted == s.total}, nil
}

// Skip resolves the live question without an answer, breaks both streaks
// and advances.
func (s *Session) Skip() error {
	if err := s.checkLive(); err != nil {
		return err
	}
	s.resolve(model.AnsweredRecord{
		Question: s.current,
		Tier:     s.ctrl.Tier(),
		Skipped:  true,
	})
	s.skipped++
	s.run = 0
	s.ctrl.BreakStreak()
	return s.advanceLive()
}

// Advance moves forward. While reviewing it replays the next history
// position. At the live position an unanswered question counts as skipped;
// an answered one either completes the quiz or presents the next question.
func (s *Session) Advance() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if s.cursor < s.lastPos() {
		s.cursor++
		s.restoreAt(s.cursor)
		if s.cursor == s.lastPos() && s.pending {
			// Time spent reviewing does not count toward the live answer.
			s.presentedAt = s.presentedAt.Add(s.now().Sub(s.reviewFrom))
		}
		return nil
	}
	if s.pending {
		return s.Skip()
	}
	return s.advanceLive()
}

// GoBack moves the cursor one position back and restores the tier and
// streaks as of that position. The live question's answer clock pauses
// until Advance returns to it.
func (s *Session) GoBack() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if s.cursor == 0 {
		return ErrAtStart
	}
	if s.cursor == s.lastPos() {
		s.liveSnap = s.ctrl.Snapshot()
		s.reviewFrom = s.now()
	}
	s.cursor--
	s.restoreAt(s.cursor)
	return nil
}

// Current describes the question under the cursor.
func (s *Session) Current() View {
	v := View{Position: s.cursor, Total: s.total, Tier: s.ctrl.Tier(), Reviewing: s.cursor < s.lastPos()}
	if s.cursor < len(s.history) {
		rec := s.history[s.cursor].record
		v.Question = rec.Question
		v.Selected = rec.Selected
		v.Resolved = true
		v.Record = &rec
		return v
	}
	v.Question = s.current
	v.Selected = s.selected
	return v
}

// Stats returns the running counters.
func (s *Session) Stats() Stats {
	end := s.endedAt
	if end.IsZero() {
		end = s.now()
	}
	st := Stats{
		Total:           s.total,
		Attempted:       s.attempted,
		Correct:         s.correct,
		Incorrect:       s.incorrect,
		Skipped:         s.skipped,
		LongestStreak:   s.longest,
		Tier:            s.ctrl.Tier(),
		HighestTier:     s.highest,
		CorrectStreak:   s.ctrl.CorrectStreak(),
		IncorrectStreak: s.ctrl.IncorrectStreak(),
		Fastest:         s.fastest,
	}
	if !s.startedAt.IsZero() {
		st.Elapsed = end.Sub(s.startedAt)
	}
	return st
}

// History returns a copy of the resolved records in order.
func (s *Session) History() []model.AnsweredRecord {
	out := make([]model.AnsweredRecord, len(s.history))
	for i, e := range s.history {
		out[i] = e.record
	}
	return out
}

// Summary computes the results of the session.
func (s *Session) Summary(topic string, aiQuiz bool) model.Summary {
	return Summarize(s.Transcript(topic, aiQuiz))
}

// Transcript returns the input for Summarize.
func (s *Session) Transcript(topic string, aiQuiz bool) Transcript {
	st := s.Stats()
	return Transcript{
		Topic:       topic,
		AIQuiz:      aiQuiz,
		History:     s.History(),
		HighestTier: st.HighestTier,
		Elapsed:     st.Elapsed,
	}
}

func (s *Session) present() error {
	q, _, err := s.source.Next(s.ctrl.Tier(), s.seen)
	if err != nil {
		return fmt.Errorf("next question at %s: %w", s.ctrl.Tier(), err)
	}
	s.seen[q.Text] = struct{}{}
	s.current = q
	s.pending = true
	s.before = s.ctrl.Snapshot()
	s.presentedAt = s.now()
	s.selected = nil
	s.latency = 0
	s.cursor = len(s.history)
	return nil
}

func (s *Session) resolve(rec model.AnsweredRecord) {
	s.history = append(s.history, entry{record: rec, before: s.before})
	s.attempted++
	s.pending = false
	s.selected = nil
	s.cursor = len(s.history) - 1
}

func (s *Session) advanceLive() error {
	if s.attempted >= s.total {
		s.state = StateCompleted
		s.endedAt = s.now()
		return nil
	}
	return s.present()
}

// checkLive reports why the cursor is not on an unresolved live question.
func (s *Session) checkLive() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if s.cursor < s.lastPos() {
		return ErrReviewing
	}
	if !s.pending {
		return ErrAlreadyAnswered
	}
	return nil
}

func (s *Session) lastPos() int {
	if s.pending {
		return len(s.history)
	}
	return len(s.history) - 1
}

func (s *Session) restoreAt(pos int) {
	if pos == s.lastPos() {
		s.ctrl.Restore(s.liveSnap)
		return
	}
	s.ctrl.Restore(s.history[pos].before)
}
