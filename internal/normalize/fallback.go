package normalize

import (
	"fmt"
	"math/rand/v2"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Fallback returns count synthetic placeholder questions about topic. The
// correct answer of each is drawn from rng, or the global source when rng
// is nil. They keep a quiz playable when no real questions are available.
func Fallback(topic string, count int, rng *rand.Rand) []model.Question {
	if topic == "" {
		topic = "this topic"
	}
	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}
	qs := make([]model.Question, 0, max(count, 0))
	for i := 1; i <= count; i++ {
		opts := make([]string, model.OptionCount)
		for k := range opts {
			opts[k] = fmt.Sprintf("Option %c for question %d", 'A'+k, i)
		}
		qs = append(qs, model.Question{
			Text:          fmt.Sprintf("Question %d about %s?", i, topic),
			Options:       opts,
			CorrectAnswer: intn(model.OptionCount),
		})
	}
	return qs
}
