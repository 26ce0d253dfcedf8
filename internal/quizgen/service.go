// Package quizgen produces question sets for a topic and tier, using the
// generative model when possible and synthetic questions otherwise.
package quizgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/adaptquiz/internal/llm"
	"github.com/pavelanni/adaptquiz/internal/llm/prompts"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/normalize"
)

var (
	// ErrNoValidQuestions means the model answered but nothing survived
	// normalization.
	ErrNoValidQuestions = errors.New("no valid questions produced")
	// ErrDailyBudget means today's upstream budget is nearly used up.
	ErrDailyBudget = fmt.Errorf("daily request budget nearly exhausted: %w", llm.ErrUpstreamRateLimited)
)

// DayFormat is the layout of usage day keys.
const DayFormat = "2006-01-02"

// Completer sends a prompt to a generative model. *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
}

// Store persists usage and generated sets. *store.Store implements it.
type Store interface {
	RecordUsage(day string, requests, tokens int) error
	GetUsage(day string) (model.Usage, error)
	SaveGeneratedSet(set model.GeneratedSet) error
}

// Archive is implemented by stores that keep past generated sets. When the
// Store passed to New implements it, upstream failures are answered from the
// archive before synthetic questions are used.
type Archive interface {
	ArchivedQuestions(topic string, tier model.Tier) ([]model.Question, error)
}

// Config tunes a Service.
type Config struct {
	// Timeout bounds one upstream call. Zero means 30s.
	Timeout time.Duration
	// DailyLimit is the upstream request budget per day; 0 disables the check.
	DailyLimit int
	// Fallback answers upstream failures with synthetic questions.
	Fallback bool
}

// Service generates question sets.
type Service struct {
	llm     Completer
	cache   Cache
	store   Store
	metrics *Metrics
	cfg     Config
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Service. cache, st and metrics may be nil.
func New(c Completer, cache Cache, st Store, metrics *Metrics, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	seed := uint64(time.Now().UnixNano())
	return &Service{
		llm:     c,
		cache:   cache,
		store:   st,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed>>3|1)),
	}
}

// Generate returns count questions about topic at tier. With fallback
// enabled, upstream failures and unusable output are answered from the
// archive when possible and otherwise with a degraded set of synthetic
// questions. Timeouts are always returned as
// errors wrapping llm.ErrTimeout.
func (s *Service) Generate(ctx context.Context, topic string, tier model.Tier, count int) (model.GeneratedSet, error) {
	log := slog.With("topic", topic, "difficulty", tier.String(), "count", count)
	key := CacheKey(topic, tier, count)

	if s.cache != nil {
		if qs, ok := s.cache.Get(ctx, key); ok {
			log.Debug("question cache hit")
			return s.result(topic, tier, qs, model.SourceCache, false), nil
		}
	}

	if s.nearDailyLimit() {
		log.Warn("approaching daily upstream limit", "limit", s.cfg.DailyLimit)
		if s.cfg.Fallback {
			return s.fallback(topic, tier, count), nil
		}
		return model.GeneratedSet{}, ErrDailyBudget
	}

	prompt, err := prompts.BuildGeneratePrompt(tier, topic, count, s.intn(10000))
	if err != nil {
		return model.GeneratedSet{}, fmt.Errorf("build prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	start := s.now()
	comp, err := s.llm.Complete(callCtx, prompt)
	s.metrics.observeUpstream(s.now().Sub(start), err)
	s.recordUsage(comp.Usage)

	if err != nil {
		if errors.Is(err, llm.ErrTimeout) || ctx.Err() != nil {
			log.Warn("generation timed out or was cancelled", "error", err)
			return model.GeneratedSet{}, err
		}
		log.Error("upstream generation failed", "error", err)
		if s.cfg.Fallback {
			return s.fallback(topic, tier, count), nil
		}
		return model.GeneratedSet{}, err
	}

	res := normalize.Normalize(comp.Text, normalize.Options{Topic: topic, Count: count, Rand: s.childRand()})
	if len(res.Rejected) > 0 {
		log.Info("rejected malformed questions", "rejected", len(res.Rejected), "provenance", res.Provenance)
	}
	if res.Degraded {
		log.Warn("no usable questions in model output")
		if !s.cfg.Fallback {
			return model.GeneratedSet{}, ErrNoValidQuestions
		}
		return s.fallback(topic, tier, count), nil
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, res.Questions)
	}
	set := s.result(topic, tier, res.Questions, model.SourceUpstream, false)
	if s.store != nil {
		if err := s.store.SaveGeneratedSet(set); err != nil {
			log.Warn("save generated set", "error", err)
		}
	}
	log.Info("generated questions", "generated", set.Generated, "provenance", res.Provenance)
	return set, nil
}

// Usage returns today's upstream usage.
func (s *Service) Usage() (model.Usage, error) {
	day := s.now().Format(DayFormat)
	if s.store == nil {
		return model.Usage{Day: day}, nil
	}
	return s.store.GetUsage(day)
}

// DailyLimit returns the configured daily request budget.
func (s *Service) DailyLimit() int { return s.cfg.DailyLimit }

func (s *Service) result(topic string, tier model.Tier, qs []model.Question, src model.Source, degraded bool) model.GeneratedSet {
	s.metrics.countSet(src)
	return model.GeneratedSet{
		Topic:      topic,
		Difficulty: tier,
		Questions:  qs,
		Generated:  len(qs),
		Source:     src,
		Degraded:   degraded,
	}
}

func (s *Service) fallback(topic string, tier model.Tier, count int) model.GeneratedSet {
	if qs := s.fromArchive(topic, tier, count); qs != nil {
		return s.result(topic, tier, qs, model.SourceArchive, false)
	}
	qs := normalize.Fallback(topic, count, s.childRand())
	return s.result(topic, tier, qs, model.SourceFallback, true)
}

// fromArchive returns count distinct archived questions in random order, or
// nil when the archive cannot supply that many.
func (s *Service) fromArchive(topic string, tier model.Tier, count int) []model.Question {
	a, ok := s.store.(Archive)
	if !ok {
		return nil
	}
	all, err := a.ArchivedQuestions(topic, tier)
	if err != nil {
		slog.Warn("read archived questions", "error", err)
		return nil
	}
	seen := make(map[string]bool, len(all))
	var uniq []model.Question
	for _, q := range all {
		k := strings.ToLower(strings.TrimSpace(q.Text))
		if seen[k] {
			continue
		}
		seen[k] = true
		uniq = append(uniq, q)
	}
	if len(uniq) < count {
		return nil
	}
	rng := s.childRand()
	rng.Shuffle(len(uniq), func(i, j int) { uniq[i], uniq[j] = uniq[j], uniq[i] })
	return uniq[:count]
}

// childRand returns an independent rng seeded from the service rng, so
// callers need not hold s.mu while drawing.
func (s *Service) childRand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// nearDailyLimit reports whether today's requests exceed 80% of the limit.
func (s *Service) nearDailyLimit() bool {
	if s.cfg.DailyLimit <= 0 || s.store == nil {
		return false
	}
	u, err := s.store.GetUsage(s.now().Format(DayFormat))
	if err != nil {
		slog.Warn("read usage", "error", err)
		return false
	}
	return float64(u.Requests) > 0.8*float64(s.cfg.DailyLimit)
}

func (s *Service) recordUsage(u llm.Usage) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordUsage(s.now().Format(DayFormat), 1, u.Total()); err != nil {
		slog.Warn("record usage", "error", err)
	}
}
