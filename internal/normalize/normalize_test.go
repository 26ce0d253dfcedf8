package normalize

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pavelanni/adaptquiz/internal/model"
)

func fiveQuestions() []model.Question {
	return []model.Question{
		{Text: "What is the capital of France?", Options: []string{"London", "Berlin", "Paris", "Madrid"}, CorrectAnswer: 2},
		{Text: "Which planet is known as the Red Planet?", Options: []string{"Earth", "Mars", "Jupiter", "Venus"}, CorrectAnswer: 1},
		{Text: "What is 2 + 3?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: 1},
		{Text: "Which gas do plants absorb?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, CorrectAnswer: 2},
		{Text: "How many sides does a triangle have?", Options: []string{"2", "3", "4", "5"}, CorrectAnswer: 1},
	}
}

func sameQuestions(t *testing.T, got, want []model.Question) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d questions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Text != want[i].Text || got[i].CorrectAnswer != want[i].CorrectAnswer {
			t.Errorf("question %d: expected %+v, got %+v", i, want[i], got[i])
		}
		if strings.Join(got[i].Options, "|") != strings.Join(want[i].Options, "|") {
			t.Errorf("question %d options: expected %v, got %v", i, want[i].Options, got[i].Options)
		}
	}
}

func TestWellFormedArrayUnchanged(t *testing.T) {
	want := fiveQuestions()
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	res := Normalize(string(data), Options{Topic: "General", Count: 10})
	if res.Provenance != ProvenanceDirect || res.Degraded {
		t.Errorf("expected direct, non-degraded, got %s/%v", res.Provenance, res.Degraded)
	}
	if len(res.Rejected) != 0 {
		t.Errorf("expected no rejections, got %+v", res.Rejected)
	}
	sameQuestions(t, res.Questions, want)
}

func TestStrategies(t *testing.T) {
	arr, _ := json.Marshal(fiveQuestions()[:2])
	tests := []struct {
		name  string
		input string
		want  Provenance
		n     int
	}{
		{"fenced json", "```json\n" + string(arr) + "\n```", ProvenanceDirect, 2},
		{"wrapped object", `{"questions": ` + string(arr) + `}`, ProvenanceDirect, 2},
		{"array in prose", "Here are your questions:\n" + string(arr) + "\nGood luck!", ProvenanceArray, 2},
		{
			"loose objects",
			`First: {"question": "What is 2 + 3?", "options": ["4","5","6","7"], "correctAnswer": 1}
			and a broken one {"question": "Oops" "options"}
			then {"question": "What is 3 + 3?", "options": ["4","5","6","7"], "correctAnswer": 2}`,
			ProvenanceObjects, 2,
		},
		{
			"numbered list",
			"Sure!\n1. What is 2 + 2?\nA) 3\nB) 4\nC) 5\nD) 6\nAnswer: B\n2) Which is a fruit?\na. Carrot\nb. Apple\nc. Potato\nd. Onion\n",
			ProvenanceHeuristic, 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.input, Options{Topic: "Math", Count: 10})
			if res.Provenance != tt.want {
				t.Fatalf("expected provenance %s, got %s", tt.want, res.Provenance)
			}
			if len(res.Questions) != tt.n {
				t.Errorf("expected %d questions, got %d: %+v", tt.n, len(res.Questions), res.Questions)
			}
			for _, q := range res.Questions {
				if len(q.Options) != model.OptionCount {
					t.Errorf("question %q has %d options", q.Text, len(q.Options))
				}
			}
		})
	}
}

func TestHeuristicAnswers(t *testing.T) {
	input := "1. What is 2 + 2?\nA) 3\nB) 4\nC) 5\nD) 6\nAnswer: B\n2) Which is a fruit?\na. Carrot\nb. Apple\n"
	res := Normalize(input, Options{Count: 10})
	if len(res.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %+v", res.Questions)
	}
	first, second := res.Questions[0], res.Questions[1]
	if first.Text != "What is 2 + 2?" || first.CorrectAnswer != 1 {
		t.Errorf("unexpected first question %+v", first)
	}
	if first.Options[1] != "4" {
		t.Errorf("expected option B to be 4, got %v", first.Options)
	}
	if second.CorrectAnswer != 0 {
		t.Errorf("expected default answer 0, got %d", second.CorrectAnswer)
	}
	if second.Options[2] != "Option C" || second.Options[3] != "Option D" {
		t.Errorf("expected padded options, got %v", second.Options)
	}
}

func TestOptionRepair(t *testing.T) {
	tests := []struct {
		name    string
		options any
		want    []string
		reason  bool
	}{
		{"proper list", []any{"a", "b", "c", "d"}, []string{"a", "b", "c", "d"}, false},
		{"single string with markers", "A: Red B: Green C: Blue D: Yellow", []string{"Red", "Green", "Blue", "Yellow"}, false},
		{"one element list with newlines", []any{"A. Red\nB. Green\nC. Blue\nD. Yellow"}, []string{"Red", "Green", "Blue", "Yellow"}, false},
		{"parenthesis markers with commas", "A) one, B) two, C) three, D) four", []string{"one", "two", "three", "four"}, false},
		{"partial markers padded", "A: yes B: no", []string{"yes", "no", "Option C", "Option D"}, false},
		{"plain lines", "Red\nGreen\nBlue\nYellow\nPurple", []string{"Red", "Green", "Blue", "Yellow"}, false},
		{"out of order markers ignored", "B: x A: y", []string{"y", "Option B", "Option C", "Option D"}, false},
		{"lower-case letter inside option text", "A: Vitamin b. B: Iron C: Zinc D: Copper", []string{"Vitamin b.", "Iron", "Zinc", "Copper"}, false},
		{"lower-case markers only", "a) one b) two c) three d) four", []string{"one", "two", "three", "four"}, false},
		{"three items", []any{"a", "b", "c"}, nil, true},
		{"five items", []any{"a", "b", "c", "d", "e"}, nil, true},
		{"non-string option", []any{"a", 2.0, "c", "d"}, nil, true},
		{"empty option", []any{"a", " ", "c", "d"}, nil, true},
		{"missing", nil, nil, true},
		{"object", map[string]any{"a": "b"}, nil, true},
		{"unstructured string", "yes or no", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := repairOptions(tt.options)
			if (reason != "") != tt.reason {
				t.Fatalf("expected rejection=%v, got reason %q", tt.reason, reason)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCorrectAnswerCoercion(t *testing.T) {
	opts := []string{"Red", "Green", "Blue", "Yellow"}
	tests := []struct {
		raw  any
		want int
		ok   bool
	}{
		{2.0, 2, true},
		{2.5, 0, false},
		{"3", 3, true},
		{" 1 ", 1, true},
		{"C", 2, true},
		{"b", 1, true},
		{"yellow", 3, true},
		{"purple", 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceIndex(tt.raw, opts)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("coerceIndex(%v) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidationAndDedup(t *testing.T) {
	input := `[
		{"question": "What is 2 + 3?", "options": ["4","5","6","7"], "correctAnswer": 1},
		{"question": "  what is 2 + 3?  ", "options": ["1","2","3","4"], "correctAnswer": 0},
		{"question": "", "options": ["a","b","c","d"], "correctAnswer": 0},
		{"question": "No answer?", "options": ["a","b","c","d"]},
		{"question": "Out of range?", "options": ["a","b","c","d"], "correctAnswer": 4},
		{"text": "Alias fields?", "options": ["a","b","c","d"], "correct_answer": "D"},
		"not an object"
	]`
	res := Normalize(input, Options{Count: 10})
	if res.Provenance != ProvenanceDirect {
		t.Fatalf("expected direct, got %s", res.Provenance)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %+v", res.Questions)
	}
	if res.Questions[1].Text != "Alias fields?" || res.Questions[1].CorrectAnswer != 3 {
		t.Errorf("alias fields not honoured: %+v", res.Questions[1])
	}
	if len(res.Rejected) != 5 {
		t.Errorf("expected 5 rejections, got %+v", res.Rejected)
	}
	wantIdx := []int{1, 2, 3, 4, 6}
	for i, r := range res.Rejected {
		if i < len(wantIdx) && r.Index != wantIdx[i] {
			t.Errorf("rejection %d: expected index %d, got %d (%s)", i, wantIdx[i], r.Index, r.Reason)
		}
	}
}

func TestTruncateToCount(t *testing.T) {
	data, _ := json.Marshal(fiveQuestions())
	res := Normalize(string(data), Options{Count: 3})
	sameQuestions(t, res.Questions, fiveQuestions()[:3])
}

func TestFallbackWhenNothingUsable(t *testing.T) {
	tests := []string{
		"",
		"I cannot help with that.",
		`[{"question": "Bad", "options": ["a"], "correctAnswer": 9}]`,
	}
	for _, input := range tests {
		res := Normalize(input, Options{Topic: "Photosynthesis", Count: 3, Rand: rand.New(rand.NewPCG(1, 2))})
		if !res.Degraded || res.Provenance != ProvenanceFallback {
			t.Errorf("%q: expected degraded fallback, got %s/%v", input, res.Provenance, res.Degraded)
		}
		if len(res.Questions) != 3 {
			t.Errorf("%q: expected 3 fallback questions, got %d", input, len(res.Questions))
		}
	}
}

func TestFallbackShape(t *testing.T) {
	qs := Fallback("Photosynthesis", 3, rand.New(rand.NewPCG(5, 6)))
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	for i, q := range qs {
		n := i + 1
		if want := "Question " + string(rune('0'+n)) + " about Photosynthesis?"; q.Text != want {
			t.Errorf("expected %q, got %q", want, q.Text)
		}
		if want := "Option B for question " + string(rune('0'+n)); q.Options[1] != want {
			t.Errorf("expected %q, got %q", want, q.Options[1])
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= model.OptionCount {
			t.Errorf("correct answer out of range: %d", q.CorrectAnswer)
		}
	}
	if got := Fallback("x", 0, nil); len(got) != 0 {
		t.Errorf("expected no questions for count 0, got %d", len(got))
	}
}
