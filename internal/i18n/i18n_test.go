package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "topic_required")
	if got != "Topic is required" {
		t.Errorf("T(topic_required) = %q, want 'Topic is required'", got)
	}

	got = T(ctx, "ServerRunning")
	if got != "Server is running" {
		t.Errorf("T(ServerRunning) = %q, want 'Server is running'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "topic_required")
	if got != "Необходимо указать тему" {
		t.Errorf("T(topic_required) = %q, want 'Необходимо указать тему'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsAnswered", 1)
	if got1 != "1 question" {
		t.Errorf("Tp(QuestionsAnswered, 1) = %q, want '1 question'", got1)
	}

	got5 := Tp(ctx, "QuestionsAnswered", 5)
	if got5 != "5 questions" {
		t.Errorf("Tp(QuestionsAnswered, 5) = %q, want '5 questions'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "count_invalid", map[string]any{"Max": 20})
	if got != "Count must be between 1 and 20" {
		t.Errorf("Td(count_invalid, Max=20) = %q, want 'Count must be between 1 and 20'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestDefaultLanguageWithoutLocalizer(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got := T(context.Background(), "topic_required")
	if got != "Необходимо указать тему" {
		t.Errorf("T without localizer = %q, want the default language", got)
	}
}

func TestLanguages(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	langs := Languages()
	if len(langs) != 2 {
		t.Errorf("expected 2 loaded languages, got %v", langs)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "Topic is required"},
		{"ru-RU,ru;q=0.9", "Необходимо указать тему"},
		{"de-DE", "Topic is required"},
	}
	for _, tt := range tests {
		var got string
		h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = T(r.Context(), "topic_required")
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Accept-Language %q: expected %q, got %q", tt.header, tt.want, got)
		}
	}
}
