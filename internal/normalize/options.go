package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/adaptquiz/internal/model"
)

var (
	upperMarkerRe = regexp.MustCompile(`(?:^|[\s,;])([A-D])[:.)]`)
	anyMarkerRe   = regexp.MustCompile(`(?:^|[\s,;])([A-Da-d])[:.)]`)
)

// toQuestion validates one decoded entry. A non-empty reason means the
// entry was rejected.
func toQuestion(m map[string]any) (model.Question, string) {
	text := firstString(m, "question", "text")
	if text == "" {
		return model.Question{}, "missing question text"
	}

	opts, reason := repairOptions(m["options"])
	if reason != "" {
		return model.Question{}, reason
	}

	raw, ok := firstPresent(m, "correctAnswer", "correct_answer", "answer")
	if !ok {
		return model.Question{}, "missing correct answer"
	}
	idx, ok := coerceIndex(raw, opts)
	if !ok {
		return model.Question{}, fmt.Sprintf("invalid correct answer %v", raw)
	}
	if idx < 0 || idx >= model.OptionCount {
		return model.Question{}, fmt.Sprintf("correct answer %d out of range", idx)
	}
	return model.Question{Text: text, Options: opts, CorrectAnswer: idx}, ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// repairOptions accepts a proper four-string list, or a single string
// (bare or wrapped in a one-element list) holding all options.
func repairOptions(raw any) ([]string, string) {
	switch v := raw.(type) {
	case nil:
		return nil, "missing options"
	case string:
		return splitOptions(v)
	case []any:
		if len(v) == 1 {
			if s, ok := v[0].(string); ok {
				return splitOptions(s)
			}
		}
		if len(v) != model.OptionCount {
			return nil, fmt.Sprintf("expected %d options, got %d", model.OptionCount, len(v))
		}
		out := make([]string, len(v))
		for i, o := range v {
			s, ok := o.(string)
			if !ok {
				return nil, fmt.Sprintf("option %d is not a string", i)
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, fmt.Sprintf("option %d is empty", i)
			}
			out[i] = s
		}
		return out, ""
	default:
		return nil, "options is not a list"
	}
}

// splitOptions splits a combined option string on A/B/C/D markers in
// sequence, or on newlines when there are at least four lines.
func splitOptions(s string) ([]string, string) {
	if opts := splitMarkers(s); len(opts) > 0 {
		return pad(opts), ""
	}
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) >= model.OptionCount {
		return lines[:model.OptionCount], ""
	}
	return nil, "options is a single string without recognizable markers"
}

// splitMarkers splits on upper-case markers, falling back to lower-case ones
// only when no upper-case "A" marker is present.
func splitMarkers(s string) []string {
	if opts := splitOn(upperMarkerRe, s); opts != nil {
		return opts
	}
	return splitOn(anyMarkerRe, s)
}

func splitOn(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	// starts[k] is the offset of letter k's marker, ends[k] where its text begins.
	var starts, ends []int
	want := byte('A')
	for _, m := range matches {
		letter := s[m[2]] &^ 0x20 // upper-case
		if letter != want {
			continue
		}
		starts = append(starts, m[2])
		ends = append(ends, m[1])
		want++
		if want > 'D' {
			break
		}
	}
	if len(starts) == 0 {
		return nil
	}
	out := make([]string, len(starts))
	for k := range starts {
		stop := len(s)
		if k+1 < len(starts) {
			stop = starts[k+1]
		}
		out[k] = strings.Trim(s[ends[k]:stop], " \t\r\n,;")
	}
	return out
}

func pad(opts []string) []string {
	if len(opts) > model.OptionCount {
		return opts[:model.OptionCount]
	}
	for i := len(opts); i < model.OptionCount; i++ {
		opts = append(opts, placeholder(i))
	}
	for i, o := range opts {
		if o == "" {
			opts[i] = placeholder(i)
		}
	}
	return opts
}

func placeholder(i int) string {
	return "Option " + string(rune('A'+i))
}

// coerceIndex accepts an integral number, a numeric string, a letter A-D
// or the exact text of one of the options.
func coerceIndex(raw any, opts []string) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if len(s) == 1 {
			if c := s[0] &^ 0x20; c >= 'A' && c <= 'D' {
				return int(c - 'A'), true
			}
		}
		for i, o := range opts {
			if strings.EqualFold(o, s) {
				return i, true
			}
		}
	}
	return 0, false
}
