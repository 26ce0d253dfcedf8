package handler

import (
	"context"

	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
)

func reportHeading(ctx context.Context, topic string) string {
	title := appI18n.T(ctx, "ResultsTitle")
	if topic == "" {
		return title
	}
	return title + ": " + topic
}

func reportSeconds(ctx context.Context, v any) string {
	return appI18n.Td(ctx, "Seconds", map[string]any{"Value": v})
}

func questionOutcome(ctx context.Context, qr model.QuestionResult) string {
	switch {
	case qr.Skipped:
		return appI18n.T(ctx, "Skipped")
	case qr.Correct:
		return appI18n.T(ctx, "Correct")
	}
	return appI18n.T(ctx, "Incorrect")
}
