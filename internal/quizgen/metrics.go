package quizgen

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavelanni/adaptquiz/internal/llm"
	"github.com/pavelanni/adaptquiz/internal/model"
)

// Metrics counts generated sets by source and times upstream calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sets     *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

// NewMetrics creates the generation metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptquiz_question_sets_total",
				Help: "Question sets served, by source",
			},
			[]string{"source"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptquiz_upstream_duration_seconds",
				Help:    "Duration of generative model calls",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.sets, m.upstream)
	return m
}

func (m *Metrics) countSet(src model.Source) {
	if m == nil {
		return
	}
	m.sets.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) observeUpstream(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrUpstreamAuth):
		return "auth"
	case errors.Is(err, llm.ErrUpstreamRateLimited):
		return "rate_limited"
	}
	return "error"
}
