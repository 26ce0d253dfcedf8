package quizapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pavelanni/adaptquiz/internal/model"
)

func TestTierCounts(t *testing.T) {
	tests := []struct {
		total           int
		easy, med, hard int
	}{
		{1, 1, 1, 1},
		{5, 2, 2, 2},
		{10, 4, 3, 3},
		{20, 8, 6, 6},
		{100, 20, 20, 20},
	}
	for _, tt := range tests {
		got := TierCounts(tt.total)
		if got[model.TierEasy] != tt.easy || got[model.TierMedium] != tt.med || got[model.TierHard] != tt.hard {
			t.Errorf("TierCounts(%d) = %v, want %d/%d/%d", tt.total, got, tt.easy, tt.med, tt.hard)
		}
	}
}

// fakeServer answers generate requests per difficulty and checks that no
// two requests overlap.
type fakeServer struct {
	mu       sync.Mutex
	inflight int
	overlap  bool
	order    []int
	apiKeys  []string
	status   map[int]int
	short    map[int]bool
	saved    []model.Summary
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > 1 {
		f.overlap = true
	}
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-Key"))
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/quiz/generate":
		var req model.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d, n := *req.Difficulty, *req.Count
		f.mu.Lock()
		f.order = append(f.order, d)
		status := f.status[d]
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(model.ErrorResponse{Error: "Question generation timed out"})
			return
		}
		opts := []string{"a", "b", "c", "d"}
		if f.short[d] {
			opts = opts[:2]
		}
		qs := make([]model.Question, n)
		for i := range qs {
			qs[i] = model.Question{
				Text:    fmt.Sprintf("%s tier %d question %d?", req.Topic, d, i+1),
				Options: opts,
			}
		}
		json.NewEncoder(w).Encode(model.GenerateResponse{Success: true, Data: &model.GeneratedSet{
			Topic: req.Topic, Difficulty: model.Tier(d), Questions: qs, Generated: n, Source: model.SourceUpstream,
		}})
	case "/api/results":
		var sum model.Summary
		json.NewDecoder(r.Body).Decode(&sum)
		f.mu.Lock()
		f.saved = append(f.saved, sum)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.ResultResponse{Success: true, Data: &model.StoredResult{ID: "abc-123", Summary: sum}})
	default:
		http.NotFound(w, r)
	}
}

func TestFetchBankAllTiers(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	c := New(srv.URL+"/", "k3y", nil)
	pools, report, err := c.FetchBank(context.Background(), "Go", 10)
	if err != nil {
		t.Fatalf("FetchBank: %v", err)
	}
	want := map[model.Tier]int{model.TierEasy: 4, model.TierMedium: 3, model.TierHard: 3}
	for tier, n := range want {
		if len(pools[tier]) != n {
			t.Errorf("tier %s: expected %d questions, got %d", tier, n, len(pools[tier]))
		}
	}
	if report.Degraded() {
		t.Errorf("expected no degraded tiers, got %+v", report)
	}
	if fmt.Sprint(fs.order) != "[1 2 3]" {
		t.Errorf("expected tiers requested in order, got %v", fs.order)
	}
	if fs.overlap {
		t.Error("tier requests overlapped")
	}
	for _, k := range fs.apiKeys {
		if k != "k3y" {
			t.Errorf("expected api key header, got %q", k)
		}
	}
}

func TestFetchBankFallsBackPerTier(t *testing.T) {
	fs := &fakeServer{status: map[int]int{2: http.StatusInternalServerError, 3: http.StatusRequestTimeout}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	pools, report, err := New(srv.URL, "", nil).FetchBank(context.Background(), "History", 10)
	if err != nil {
		t.Fatalf("FetchBank: %v", err)
	}
	if !report.Degraded() {
		t.Fatal("expected degraded report")
	}
	if len(report.Tiers) != 3 {
		t.Fatalf("expected 3 tier reports, got %d", len(report.Tiers))
	}
	if report.Tiers[0].Degraded || report.Tiers[0].Source != model.SourceUpstream {
		t.Errorf("easy tier should come from the server, got %+v", report.Tiers[0])
	}
	for _, tr := range report.Tiers[1:] {
		if !tr.Degraded || tr.Source != model.SourceFallback || tr.Err == nil {
			t.Errorf("expected fallback for %s, got %+v", tr.Tier, tr)
		}
	}
	var se *StatusError
	if !errors.As(report.Tiers[2].Err, &se) || se.Code != http.StatusRequestTimeout {
		t.Errorf("expected 408 StatusError, got %v", report.Tiers[2].Err)
	}
	if len(pools[model.TierMedium]) != 3 || len(pools[model.TierHard]) != 3 {
		t.Errorf("fallback pools have wrong size: %d/%d", len(pools[model.TierMedium]), len(pools[model.TierHard]))
	}
	if pools[model.TierMedium][0].Text == pools[model.TierHard][0].Text {
		t.Error("fallback texts must differ across tiers")
	}
	if !strings.Contains(pools[model.TierHard][0].Text, "History") {
		t.Errorf("fallback text should mention topic, got %q", pools[model.TierHard][0].Text)
	}
}

func TestFetchBankRejectsMalformedQuestions(t *testing.T) {
	fs := &fakeServer{short: map[int]bool{1: true}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	pools, report, err := New(srv.URL, "", nil).FetchBank(context.Background(), "Go", 10)
	if err != nil {
		t.Fatalf("FetchBank: %v", err)
	}
	easy := report.Tiers[0]
	if !easy.Degraded || easy.Err == nil || !strings.Contains(easy.Err.Error(), "expected 4 options") {
		t.Errorf("expected easy tier to fall back on malformed questions, got %+v", easy)
	}
	for _, tier := range model.Tiers {
		for _, q := range pools[tier] {
			if err := q.Validate(); err != nil {
				t.Errorf("tier %s: invalid question %q: %v", tier, q.Text, err)
			}
		}
	}
}

func TestFetchBankUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	pools, report, err := New(url, "", nil).FetchBank(context.Background(), "Go", 5)
	if err != nil {
		t.Fatalf("FetchBank: %v", err)
	}
	for _, tier := range model.Tiers {
		if len(pools[tier]) != 2 {
			t.Errorf("tier %s: expected 2 fallback questions, got %d", tier, len(pools[tier]))
		}
	}
	for _, tr := range report.Tiers {
		if !tr.Degraded {
			t.Errorf("tier %s should be degraded", tr.Tier)
		}
	}
}

func TestFetchBankCancelled(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := New(srv.URL, "", nil).FetchBank(ctx, "Go", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSaveResults(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	c := New(srv.URL, "", nil)
	id, err := c.SaveResults(context.Background(), model.Summary{Topic: "Go", Total: 3, Correct: 2, Score: 67})
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("expected id abc-123, got %q", id)
	}
	if len(fs.saved) != 1 || fs.saved[0].Score != 67 {
		t.Errorf("unexpected saved summaries %+v", fs.saved)
	}
	if got := c.ResultURL(id); got != srv.URL+"/results/abc-123" {
		t.Errorf("unexpected result url %q", got)
	}
}
