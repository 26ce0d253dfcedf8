package quizgen

import (
	"fmt"
	"strings"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Locale message IDs of validation failures.
const (
	MsgTopicRequired     = "topic_required"
	MsgDifficultyInvalid = "difficulty_invalid"
	MsgCountInvalid      = "count_invalid"
)

// ValidationError reports invalid generate request parameters.
type ValidationError struct {
	MessageID string
	// Max is the count upper bound, set for MsgCountInvalid.
	Max int
}

func (e *ValidationError) Error() string {
	switch e.MessageID {
	case MsgDifficultyInvalid:
		return "Difficulty must be between 1 and 3"
	case MsgCountInvalid:
		return fmt.Sprintf("Count must be between 1 and %d", e.Max)
	}
	return "Topic is required"
}

// Params are the validated generate parameters.
type Params struct {
	Topic string
	Tier  model.Tier
	Count int
}

// Validate checks a generate request. Absent difficulty defaults to easy and
// absent count to defaultCount; present values outside the allowed ranges are
// rejected, never coerced.
func Validate(req model.GenerateRequest, maxCount, defaultCount int) (Params, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return Params{}, &ValidationError{MessageID: MsgTopicRequired}
	}

	tier := model.TierEasy
	if req.Difficulty != nil {
		tier = model.Tier(*req.Difficulty)
		if !tier.Valid() {
			return Params{}, &ValidationError{MessageID: MsgDifficultyInvalid}
		}
	}

	count := defaultCount
	if req.Count != nil {
		count = *req.Count
		if count < 1 || count > maxCount {
			return Params{}, &ValidationError{MessageID: MsgCountInvalid, Max: maxCount}
		}
	}
	return Params{Topic: topic, Tier: tier, Count: count}, nil
}
