// Package quizapi is the client side of the generation server: it builds a
// tiered question bank for a topic and submits finished results.
package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/normalize"
)

// MaxPerRequest is the largest count the server accepts in one request.
const MaxPerRequest = 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client talks to an adaptquiz server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the server at baseURL. apiKey may be empty. A
// nil httpClient gets one with a 35s timeout, slightly above the server's
// generation deadline.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 35 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// TierReport describes how one tier of a bank was filled.
type TierReport struct {
	Tier      model.Tier
	Requested int
	Received  int
	Source    model.Source
	Degraded  bool
	Err       error
}

// BankReport lists per-tier outcomes of FetchBank in tier order.
type BankReport struct {
	Tiers []TierReport
}

// Degraded reports whether any tier holds synthetic questions.
func (r BankReport) Degraded() bool {
	for _, t := range r.Tiers {
		if t.Degraded {
			return true
		}
	}
	return false
}

// TierCounts returns how many questions to request per tier for a quiz of
// total questions: 40% easy, 30% medium, 30% hard, each rounded up and
// clamped to 1..MaxPerRequest.
func TierCounts(total int) map[model.Tier]int {
	shares := map[model.Tier]int{model.TierEasy: 4, model.TierMedium: 3, model.TierHard: 3}
	out := make(map[model.Tier]int, len(shares))
	for t, tenths := range shares {
		n := (tenths*total + 9) / 10
		out[t] = min(max(n, 1), MaxPerRequest)
	}
	return out
}

// FetchBank requests questions for every tier, one tier at a time. A tier
// whose request fails in any way is filled with synthetic questions, so the
// returned pools are never empty. Only cancellation of ctx is returned as an
// error.
func (c *Client) FetchBank(ctx context.Context, topic string, total int) (map[model.Tier][]model.Question, BankReport, error) {
	counts := TierCounts(total)
	pools := make(map[model.Tier][]model.Question, len(model.Tiers))
	var report BankReport

	for _, tier := range model.Tiers {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		tr := TierReport{Tier: tier, Requested: counts[tier]}

		set, err := c.Generate(ctx, topic, tier, counts[tier])
		if err == nil && len(set.Questions) == 0 {
			err = errors.New("server returned no questions")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			slog.Warn("tier fetch failed, using fallback questions",
				"topic", topic, "difficulty", tier.String(), "error", err)
			// Tier in the label keeps fallback texts distinct across pools.
			label := fmt.Sprintf("%s (%s)", topic, tier)
			set = model.GeneratedSet{
				Questions: normalize.Fallback(label, counts[tier], nil),
				Source:    model.SourceFallback,
				Degraded:  true,
			}
			tr.Err = err
		}
		pools[tier] = set.Questions
		tr.Received = len(set.Questions)
		tr.Source = set.Source
		tr.Degraded = set.Degraded
		report.Tiers = append(report.Tiers, tr)
	}
	return pools, report, nil
}

// Generate issues one POST /api/quiz/generate. A response holding an
// invalid question is an error.
func (c *Client) Generate(ctx context.Context, topic string, tier model.Tier, count int) (model.GeneratedSet, error) {
	d, n := int(tier), count
	req := model.GenerateRequest{Topic: topic, Difficulty: &d, Count: &n}
	var resp model.GenerateResponse
	if err := c.post(ctx, "/api/quiz/generate", req, &resp); err != nil {
		return model.GeneratedSet{}, err
	}
	if !resp.Success || resp.Data == nil {
		return model.GeneratedSet{}, fmt.Errorf("generate failed: %s", resp.Error)
	}
	for i, q := range resp.Data.Questions {
		if err := q.Validate(); err != nil {
			return model.GeneratedSet{}, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return *resp.Data, nil
}

// SaveResults stores a summary on the server and returns its ID.
func (c *Client) SaveResults(ctx context.Context, sum model.Summary) (string, error) {
	var resp model.ResultResponse
	if err := c.post(ctx, "/api/results", sum, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data == nil {
		return "", errors.New("save results: empty response")
	}
	return resp.Data.ID, nil
}

// ResultURL returns the address of the HTML report for a stored result.
func (c *Client) ResultURL(id string) string {
	return c.baseURL + "/results/" + id
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env model.ErrorResponse
		_ = json.Unmarshal(raw, &env)
		return &StatusError{Code: resp.StatusCode, Message: env.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
