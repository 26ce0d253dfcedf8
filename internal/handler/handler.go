package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/quizgen"
	"github.com/pavelanni/adaptquiz/internal/store"
)

const maxBodyBytes = 1 << 20

// Generator produces question sets. *quizgen.Service implements it.
type Generator interface {
	Generate(ctx context.Context, topic string, tier model.Tier, count int) (model.GeneratedSet, error)
	Usage() (model.Usage, error)
	DailyLimit() int
}

// ResultStore persists quiz summaries. *store.Store implements it.
type ResultStore interface {
	SaveResult(sum model.Summary) (model.StoredResult, error)
	GetResult(id string) (model.StoredResult, error)
	ListResults(topic string, limit int) ([]model.StoredResult, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	gen      Generator
	results  ResultStore
	config   model.ServerConfig
	limiter  *rateLimiter
	metrics  *Metrics
	gatherer prometheus.Gatherer
	keys     *keyCache
}

// New creates a new Handler. When reg is non-nil HTTP metrics are
// registered with it and served on /metrics.
func New(gen Generator, results ResultStore, cfg model.ServerConfig, reg *prometheus.Registry) (*Handler, error) {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 20
	}
	if cfg.DefaultCount <= 0 || cfg.DefaultCount > cfg.MaxCount {
		cfg.DefaultCount = min(10, cfg.MaxCount)
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 15 * time.Minute
	}
	if cfg.APIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.APIKeyHash)); err != nil {
			return nil, fmt.Errorf("invalid api key hash: %w", err)
		}
	}

	h := &Handler{gen: gen, results: results, config: cfg, keys: newKeyCache()}
	if cfg.RateLimit > 0 {
		h.limiter = newRateLimiter(cfg.RateLimit, cfg.RateWindow)
	}
	if reg != nil {
		h.metrics = NewMetrics(reg)
		h.gatherer = reg
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Get("/health", h.handleHealth)
		r.Get("/usage", h.handleUsage)
		r.Get("/results", h.handleListResults)
		r.Get("/results/{id}", h.handleGetResult)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Post("/quiz/generate", h.handleGenerate)
			r.Post("/results", h.handleSaveResult)
		})
	})

	r.Get("/results/{id}", h.handleResultPage)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:  "OK",
		Message: appI18n.T(r.Context(), "ServerRunning"),
	})
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := h.gen.Usage()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "InternalError", err)
		return
	}
	writeJSON(w, http.StatusOK, model.UsageResponse{
		Success: true,
		Data:    model.UsageReport{Usage: u, DailyLimit: h.gen.DailyLimit()},
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "InvalidBody", err)
		return
	}

	p, err := quizgen.Validate(req, h.config.MaxCount, h.config.DefaultCount)
	if err != nil {
		var ve *quizgen.ValidationError
		if errors.As(err, &ve) {
			msg := appI18n.Td(r.Context(), ve.MessageID, map[string]any{"Max": ve.Max})
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: msg})
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "InvalidBody", err)
		return
	}

	slog.Info("generate request",
		"client", model.ClientIDFromContext(r.Context()),
		"topic", p.Topic, "difficulty", p.Tier.String(), "count", p.Count)

	set, err := h.gen.Generate(r.Context(), p.Topic, p.Tier, p.Count)
	if err != nil {
		status, msgID := generateStatus(err)
		h.writeError(w, r, status, msgID, err)
		return
	}
	writeJSON(w, http.StatusOK, model.GenerateResponse{Success: true, Data: &set})
}

func (h *Handler) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	var sum model.Summary
	if err := decodeJSON(w, r, &sum); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "InvalidBody", err)
		return
	}
	if sum.Total <= 0 || sum.Correct+sum.Incorrect+sum.Skipped > sum.Total {
		h.writeError(w, r, http.StatusBadRequest, "InvalidBody",
			fmt.Errorf("inconsistent totals: total=%d correct=%d incorrect=%d skipped=%d",
				sum.Total, sum.Correct, sum.Incorrect, sum.Skipped))
		return
	}

	res, err := h.results.SaveResult(sum)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "InternalError", err)
		return
	}
	slog.Info("result saved", "id", res.ID, "topic", sum.Topic, "score", sum.Score)
	writeJSON(w, http.StatusCreated, model.ResultResponse{Success: true, Data: &res})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.GetResult(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, r, http.StatusNotFound, "ResultNotFound", err)
		return
	}
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "InternalError", err)
		return
	}
	writeJSON(w, http.StatusOK, model.ResultResponse{Success: true, Data: &res})
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "InvalidBody", fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = min(n, 500)
	}

	list, err := h.results.ListResults(r.URL.Query().Get("topic"), limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "InternalError", err)
		return
	}
	if list == nil {
		list = []model.StoredResult{}
	}
	writeJSON(w, http.StatusOK, model.ResultListResponse{Success: true, Data: list})
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.GetResult(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, appI18n.T(r.Context(), "ResultNotFound"), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultReport(res).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
