package normalize

import (
	"regexp"
	"strings"
)

var (
	blockSplitRe  = regexp.MustCompile(`\n\s*\d+[.)]`)
	optionLineRe  = regexp.MustCompile(`(?m)^\s*[A-Da-d][.):]\s*(.+)$`)
	answerLineRe  = regexp.MustCompile(`(?im)^\s*(?:correct\s+)?answer\s*[:\-]\s*\(?([A-Da-d])\b`)
	answerStripRe = regexp.MustCompile(`(?im)^\s*(?:correct\s+)?answer\s*[:\-].*$`)
)

// extractHeuristic reads free-form numbered questions such as
//
//	1. What is 2+2?
//	A) 3
//	B) 4
//	...
//	Answer: B
//
// Options missing from a block are padded later; the answer defaults to
// the first option when no answer line is present.
func extractHeuristic(text string) []any {
	var out []any
	for _, block := range blockSplitRe.Split("\n"+text, -1) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		qText, rest, ok := questionLine(block)
		if !ok {
			continue
		}

		answer := 0
		if m := answerLineRe.FindStringSubmatch(rest); m != nil {
			answer = int(m[1][0]&^0x20) - 'A'
		}
		rest = answerStripRe.ReplaceAllString(rest, "")

		var opts []string
		if ms := optionLineRe.FindAllStringSubmatch(rest, -1); len(ms) > 0 {
			for _, m := range ms {
				opts = append(opts, strings.TrimSpace(m[1]))
			}
		} else {
			for _, l := range strings.Split(rest, "\n") {
				if l = strings.TrimSpace(l); l != "" {
					opts = append(opts, l)
				}
			}
		}
		if len(opts) == 0 {
			continue
		}
		opts = pad(opts)

		options := make([]any, len(opts))
		for i, o := range opts {
			options[i] = o
		}
		out = append(out, map[string]any{
			"question":      qText,
			"options":       options,
			"correctAnswer": float64(answer),
		})
	}
	return out
}

// questionLine finds the first line containing a question mark and returns
// it up to its last '?', plus the text after that line.
func questionLine(block string) (string, string, bool) {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		j := strings.LastIndex(l, "?")
		if j < 0 {
			continue
		}
		q := strings.TrimSpace(l[:j+1])
		if q == "?" {
			continue
		}
		return q, strings.Join(lines[i+1:], "\n"), true
	}
	return "", "", false
}
