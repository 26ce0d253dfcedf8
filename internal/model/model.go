package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier represents a question difficulty level.
type Tier int

const (
	// TierEasy is the starting tier of every quiz.
	TierEasy Tier = 1
	// TierMedium is the middle tier.
	TierMedium Tier = 2
	// TierHard is the top tier.
	TierHard Tier = 3
)

// Tiers lists all tiers in ascending order.
var Tiers = []Tier{TierEasy, TierMedium, TierHard}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierEasy && t <= TierHard
}

// Up returns the next harder tier, or t itself at the ceiling.
func (t Tier) Up() Tier {
	if t >= TierHard {
		return TierHard
	}
	return t + 1
}

// Down returns the next easier tier, or t itself at the floor.
func (t Tier) Down() Tier {
	if t <= TierEasy {
		return TierEasy
	}
	return t - 1
}

func (t Tier) String() string {
	switch t {
	case TierEasy:
		return "easy"
	case TierMedium:
		return "medium"
	case TierHard:
		return "hard"
	}
	return "unknown"
}

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question is a multiple-choice question. The JSON shape is a stable
// contract shared with browsers and stored result payloads.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Validate checks that q has text, exactly OptionCount non-empty options
// and a correct answer index within them.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("missing question text")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("expected %d options, got %d", OptionCount, len(q.Options))
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
		return fmt.Errorf("correct answer %d out of range", q.CorrectAnswer)
	}
	return nil
}

// IsCorrect reports whether option is the correct answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectAnswer
}

// AnsweredRecord is one resolved question in a quiz history.
type AnsweredRecord struct {
	Question  Question `json:"question"`
	Selected  *int     `json:"selectedAnswer"`
	IsCorrect bool     `json:"isCorrect"`
	Tier      Tier     `json:"difficulty"`
	LatencyMs int64    `json:"answerTimeMs"`
	Skipped   bool     `json:"skipped"`
}

// QuestionResult is the per-question part of a Summary.
type QuestionResult struct {
	Question       string `json:"question"`
	Correct        bool   `json:"correct"`
	Skipped        bool   `json:"skipped"`
	Difficulty     Tier   `json:"difficulty"`
	AnswerTime     int64  `json:"answerTime"`
	SelectedAnswer *int   `json:"selectedAnswer"`
	CorrectAnswer  int    `json:"correctAnswer"`
}

// TopicReview is a suggestion for what to study after a quiz.
type TopicReview struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Summary is the flat results record handed to the presentation layer and
// persisted by the server. TimeTaken and FastestAnswer are in seconds.
type Summary struct {
	Topic             string           `json:"topic,omitempty"`
	Total             int              `json:"total"`
	Correct           int              `json:"correct"`
	Incorrect         int              `json:"incorrect"`
	Skipped           int              `json:"skipped"`
	Score             int              `json:"score"`
	HighestDifficulty Tier             `json:"highestDifficulty"`
	TimeTaken         int64            `json:"timeTaken"`
	FastestAnswer     float64          `json:"fastestAnswer"`
	HotStreak         int              `json:"hotstreak"`
	QuestionResults   []QuestionResult `json:"questionResults"`
	TopicsToWorkOn    []TopicReview    `json:"topicsToWorkOn"`
	IsAIQuiz          bool             `json:"isAIQuiz"`
}

// StoredResult is a Summary persisted by the server.
type StoredResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Summary   Summary   `json:"summary"`
}

// Usage is the date-scoped upstream usage tally.
type Usage struct {
	Day      string `json:"day"`
	Requests int    `json:"requests"`
	Tokens   int    `json:"tokens"`
}

// Source identifies where a generated question set came from.
type Source string

const (
	// SourceUpstream means the questions were produced by the generative API.
	SourceUpstream Source = "upstream"
	// SourceCache means the questions were served from the question cache.
	SourceCache Source = "cache"
	// SourceArchive means the questions were drawn from previously generated sets.
	SourceArchive Source = "archive"
	// SourceFallback means the questions are synthetic placeholders.
	SourceFallback Source = "fallback"
)

// GenerateRequest is the body of POST /api/quiz/generate. Pointer fields
// distinguish "absent" (defaulted) from "present but invalid".
type GenerateRequest struct {
	Topic      string `json:"topic"`
	Difficulty *int   `json:"difficulty,omitempty"`
	Count      *int   `json:"count,omitempty"`
}

// GeneratedSet is the data part of a successful generate response.
type GeneratedSet struct {
	Topic      string     `json:"topic"`
	Difficulty Tier       `json:"difficulty"`
	Questions  []Question `json:"questions"`
	Generated  int        `json:"generated"`
	Source     Source     `json:"source"`
	Degraded   bool       `json:"degraded"`
}

// GenerateResponse is the envelope of POST /api/quiz/generate.
type GenerateResponse struct {
	Success bool          `json:"success"`
	Data    *GeneratedSet `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
}

// ErrorResponse is the failure envelope of every JSON endpoint. Message
// carries the underlying error only when debug errors are enabled.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UsageReport is today's upstream usage together with the configured budget.
type UsageReport struct {
	Usage
	DailyLimit int `json:"dailyLimit"`
}

// UsageResponse is the envelope of GET /api/usage.
type UsageResponse struct {
	Success bool        `json:"success"`
	Data    UsageReport `json:"data"`
}

// ResultResponse is the envelope of the single-result endpoints.
type ResultResponse struct {
	Success bool          `json:"success"`
	Data    *StoredResult `json:"data,omitempty"`
}

// ResultListResponse is the envelope of GET /api/results.
type ResultListResponse struct {
	Success bool           `json:"success"`
	Data    []StoredResult `json:"data"`
}

// ServerConfig holds runtime parameters of the HTTP server set via CLI flags.
type ServerConfig struct {
	MaxCount     int           // upper bound for count in generate requests
	DefaultCount int           // count used when the request omits it
	DebugErrors  bool          // include underlying error text in error envelopes
	APIKeyHash   string        // bcrypt hash of the X-API-Key value; empty disables the check
	RateLimit    int           // requests per RateWindow per client IP; 0 disables
	RateWindow   time.Duration // rate limiter window
	CORSOrigins  []string      // allowed origins; empty allows any
}

type requestIDCtxKey struct{}

// ContextWithClientID stores the caller identity (API key or IP) in context.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// ClientIDFromContext retrieves the caller identity from context (empty if not set).
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
