package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// MaxTopicRunes bounds the topic length inserted into a prompt.
const MaxTopicRunes = 200

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[model.Tier]*template.Template
)

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Topic string
	Count int
	Seed  int
}

// Default returns the bundled prompt templates.
func Default() fs.FS {
	return templateFS
}

// Load parses the generation templates, one per tier, from fsys. The files
// are named templates/generate_<tier>.txt. Only the first call has effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		parsed := make(map[model.Tier]*template.Template, len(model.Tiers))
		for _, tier := range model.Tiers {
			file := "templates/generate_" + tier.String() + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(tier.String()).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			parsed[tier] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

// BuildGeneratePrompt renders the generation prompt for tier. seed is
// echoed into the prompt to vary the model's picks between calls.
func BuildGeneratePrompt(tier model.Tier, topic string, count, seed int) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[tier]
	if !ok {
		return "", fmt.Errorf("invalid tier: %d", tier)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, GenerateData{Topic: SanitizeTopic(topic), Count: count, Seed: seed}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeTopic strips control characters and quotes that would break out
// of the quoted topic, collapses whitespace and truncates to MaxTopicRunes.
func SanitizeTopic(topic string) string {
	topic = strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '`':
			return '\''
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, topic)
	topic = strings.Join(strings.Fields(topic), " ")

	if utf8.RuneCountInString(topic) > MaxTopicRunes {
		topic = string([]rune(topic)[:MaxTopicRunes])
	}
	return topic
}
