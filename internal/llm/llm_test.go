package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "test-model")
}

func TestComplete(t *testing.T) {
	var gotModel, gotAuth string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", req.ResponseFormat.Type)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "x", "object": "chat.completion", "model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"questions\": []}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 80, "total_tokens": 200}
		}`))
	})

	got, err := c.Complete(context.Background(), "generate")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != `{"questions": []}` {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.Usage.PromptTokens != 120 || got.Usage.CompletionTokens != 80 || got.Usage.Total() != 200 {
		t.Errorf("unexpected usage %+v", got.Usage)
	}
	if gotModel != "test-model" {
		t.Errorf("expected model test-model, got %q", gotModel)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	})
	_, err := c.Complete(context.Background(), "generate")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "API key not valid", "type": "invalid_request_error"}}`, ErrUpstreamAuth},
		{"forbidden", http.StatusForbidden, `{"error": {"message": "PERMISSION_DENIED"}}`, ErrUpstreamAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "quota exceeded"}}`, ErrUpstreamRateLimited},
		{"server error", http.StatusInternalServerError, `{"error": {"message": "boom"}}`, ErrUpstreamUnavailable},
		{"non-json error", http.StatusBadGateway, `bad gateway`, ErrUpstreamUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, `{"error": {"message": "deadline"}}`, ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), "generate")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "generate")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClassifyTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", "k", "m")
	_, err := c.Complete(context.Background(), "generate")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable for a refused connection, got %v", err)
	}
	if Classify(context.Background(), nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
