package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle     *i18n.Bundle
	defaultTag language.Tag
)

// Init loads every embedded locale with lang as the bundle default.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}
	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return fmt.Errorf("list locales: %w", err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, name := range files {
		if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
			return fmt.Errorf("load locale %s: %w", name, err)
		}
		slog.Debug("loaded locale file", "file", name)
	}
	bundle, defaultTag = b, tag
	return nil
}

// NewLocalizer creates a localizer that tries langs in order. Entries may be
// language tags or raw Accept-Language header values.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// Languages returns the tags that have a loaded locale file.
func Languages() []language.Tag {
	return bundle.LanguageTags()
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// localize renders cfg with the context localizer, or the bundle default
// when the context has none. Missing messages render as their ID.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer)
	if !ok {
		loc = NewLocalizer(defaultTag.String())
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message; the count is available as {{.Count}}.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}
