// Package normalize turns loosely structured generative-model output into
// validated multiple-choice questions.
package normalize

import (
	"encoding/json"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Provenance names the extraction strategy that produced a result.
type Provenance string

const (
	ProvenanceDirect    Provenance = "direct"
	ProvenanceArray     Provenance = "array"
	ProvenanceObjects   Provenance = "objects"
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceFallback  Provenance = "fallback"
)

// Options controls one normalization.
type Options struct {
	Topic string
	// Count caps the number of returned questions and sizes the fallback
	// set. Zero means no cap and a single fallback question.
	Count int
	// Rand picks fallback correct answers. Nil uses the global source.
	Rand *rand.Rand
}

// Rejection records why a raw entry was dropped.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is the outcome of Normalize. Questions is never empty.
type Result struct {
	Questions  []model.Question
	Provenance Provenance
	Rejected   []Rejection
	Degraded   bool
}

var (
	fenceRe   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	arrayRe   = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
	objectsRe = regexp.MustCompile(`\{[^{}]+\}`)
)

type strategy struct {
	provenance Provenance
	extract    func(string) []any
}

var strategies = []strategy{
	{ProvenanceDirect, extractDirect},
	{ProvenanceArray, extractArray},
	{ProvenanceObjects, extractObjects},
	{ProvenanceHeuristic, extractHeuristic},
}

// Normalize runs the extraction strategies in order and returns the
// validated questions of the first one that yields any. When none does it
// returns synthetic fallback questions with Degraded set.
func Normalize(text string, opts Options) Result {
	var rejected []Rejection
	for _, s := range strategies {
		entries := s.extract(text)
		if len(entries) == 0 {
			continue
		}
		qs, rej := clean(entries, opts.Count)
		if len(qs) > 0 {
			return Result{Questions: qs, Provenance: s.provenance, Rejected: rej}
		}
		rejected = rej
	}

	n := opts.Count
	if n <= 0 {
		n = 1
	}
	return Result{
		Questions:  Fallback(opts.Topic, n, opts.Rand),
		Provenance: ProvenanceFallback,
		Rejected:   rejected,
		Degraded:   true,
	}
}

// clean validates, dedups and truncates raw entries.
func clean(entries []any, limit int) ([]model.Question, []Rejection) {
	var (
		out      []model.Question
		rejected []Rejection
		seen     = make(map[string]struct{})
	)
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			rejected = append(rejected, Rejection{Index: i, Reason: "entry is not an object"})
			continue
		}
		q, reason := toQuestion(m)
		if reason != "" {
			rejected = append(rejected, Rejection{Index: i, Reason: reason})
			continue
		}
		key := strings.ToLower(strings.TrimSpace(q.Text))
		if _, dup := seen[key]; dup {
			rejected = append(rejected, Rejection{Index: i, Reason: "duplicate question"})
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, rejected
}

func extractDirect(text string) []any {
	body := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if qs, ok := t["questions"].([]any); ok {
			return qs
		}
		if _, ok := t["question"]; ok {
			return []any{t}
		}
	}
	return nil
}

func extractArray(text string) []any {
	frag := arrayRe.FindString(text)
	if frag == "" {
		return nil
	}
	var v []any
	if err := json.Unmarshal([]byte(frag), &v); err != nil {
		return nil
	}
	return v
}

func extractObjects(text string) []any {
	var out []any
	for _, frag := range objectsRe.FindAllString(text, -1) {
		var m map[string]any
		if err := json.Unmarshal([]byte(frag), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
