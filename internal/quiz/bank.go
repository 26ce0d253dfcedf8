package quiz

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// ErrNoQuestions is returned when every pool of a bank is empty.
var ErrNoQuestions = errors.New("no questions available at any difficulty")

//go:embed sample_questions.json
var sampleJSON []byte

// Bank supplies non-repeating questions by tier.
type Bank struct {
	pools map[model.Tier][]model.Question
	rng   *rand.Rand
}

// NewBank creates a bank over the given pools. A nil rng is seeded from the clock.
func NewBank(pools map[model.Tier][]model.Question, rng *rand.Rand) *Bank {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1|1))
	}
	copied := make(map[model.Tier][]model.Question, len(pools))
	for t, qs := range pools {
		copied[t] = append([]model.Question(nil), qs...)
	}
	return &Bank{pools: copied, rng: rng}
}

// NewSeededBank creates a bank whose draws are reproducible for a given seed.
func NewSeededBank(pools map[model.Tier][]model.Question, seed uint64) *Bank {
	return NewBank(pools, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// SampleBank returns a bank over the bundled sample question set.
func SampleBank(rng *rand.Rand) (*Bank, error) {
	pools, err := SamplePools()
	if err != nil {
		return nil, err
	}
	return NewBank(pools, rng), nil
}

// SamplePools decodes the bundled sample question set.
func SamplePools() (map[model.Tier][]model.Question, error) {
	return ParsePools(sampleJSON)
}

// ParsePools decodes a question set keyed by tier name:
// {"easy": [...], "medium": [...], "hard": [...]}. Every question must pass
// model.Question.Validate.
func ParsePools(data []byte) (map[model.Tier][]model.Question, error) {
	var raw map[string][]model.Question
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	pools := make(map[model.Tier][]model.Question, len(model.Tiers))
	for _, t := range model.Tiers {
		for i, q := range raw[t.String()] {
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("%s question %d: %w", t, i+1, err)
			}
		}
		pools[t] = raw[t.String()]
	}
	return pools, nil
}

// Size returns the number of questions in tier t.
func (b *Bank) Size(t model.Tier) int {
	return len(b.pools[t])
}

// Next picks a question at tier that is not in exclude. When the tier is
// exhausted it searches the neighbouring tiers (lower before higher), then
// every tier by distance, and finally allows already-seen questions in the
// same order. The returned tier is the pool the question came from.
func (b *Bank) Next(tier model.Tier, exclude map[string]struct{}) (model.Question, model.Tier, error) {
	order := searchOrder(tier)
	for _, t := range order {
		if q, ok := b.pick(t, exclude); ok {
			return q, t, nil
		}
	}
	for _, t := range order {
		if q, ok := b.pick(t, nil); ok {
			return q, t, nil
		}
	}
	return model.Question{}, tier, ErrNoQuestions
}

func (b *Bank) pick(t model.Tier, exclude map[string]struct{}) (model.Question, bool) {
	pool := b.pools[t]
	candidates := make([]model.Question, 0, len(pool))
	for _, q := range pool {
		if _, seen := exclude[q.Text]; seen {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return model.Question{}, false
	}
	return candidates[b.rng.IntN(len(candidates))], true
}

// searchOrder lists tiers by distance from t, lower before higher at equal distance.
func searchOrder(t model.Tier) []model.Tier {
	if !t.Valid() {
		t = model.TierEasy
	}
	order := []model.Tier{t}
	for d := model.Tier(1); d < model.Tier(len(model.Tiers)); d++ {
		if lower := t - d; lower.Valid() {
			order = append(order, lower)
		}
		if higher := t + d; higher.Valid() {
			order = append(order, higher)
		}
	}
	return order
}
