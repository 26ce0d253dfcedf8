package quiz

import (
	"testing"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

func record(text string, correct, skipped bool, tier model.Tier, ms int64) model.AnsweredRecord {
	rec := model.AnsweredRecord{
		Question:  model.Question{Text: text, Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1},
		IsCorrect: correct,
		Tier:      tier,
		LatencyMs: ms,
		Skipped:   skipped,
	}
	if !skipped {
		sel := 1
		if !correct {
			sel = 2
		}
		rec.Selected = &sel
	}
	return rec
}

func TestScore(t *testing.T) {
	tests := []struct {
		correct, attempted, want int
	}{
		{7, 10, 70},
		{0, 0, 0},
		{0, 5, 0},
		{2, 3, 67},
		{1, 3, 33},
		{10, 10, 100},
	}
	for _, tt := range tests {
		if got := Score(tt.correct, tt.attempted); got != tt.want {
			t.Errorf("Score(%d, %d) = %d, want %d", tt.correct, tt.attempted, got, tt.want)
		}
	}
}

func TestSummarizeSevenOfTen(t *testing.T) {
	var history []model.AnsweredRecord
	pattern := []bool{true, true, false, true, true, true, true, false, true, false}
	for i, c := range pattern {
		history = append(history, record("Q"+string(rune('A'+i)), c, false, model.TierEasy, int64(1000+i*100)))
	}
	sum := Summarize(Transcript{Topic: "Misc", History: history, HighestTier: model.TierMedium, Elapsed: 95 * time.Second})

	if sum.Score != 70 {
		t.Errorf("expected score 70, got %d", sum.Score)
	}
	if sum.Correct != 7 || sum.Incorrect != 3 || sum.Total != 10 {
		t.Errorf("unexpected counts %+v", sum)
	}
	if sum.HotStreak != 4 {
		t.Errorf("expected hotstreak 4, got %d", sum.HotStreak)
	}
	if sum.HighestDifficulty != model.TierMedium {
		t.Errorf("expected highest medium, got %s", sum.HighestDifficulty)
	}
	if sum.TimeTaken != 95 {
		t.Errorf("expected 95s, got %d", sum.TimeTaken)
	}
	if sum.FastestAnswer != 1 {
		t.Errorf("expected fastest 1s, got %v", sum.FastestAnswer)
	}
	if len(sum.QuestionResults) != 10 {
		t.Errorf("expected 10 question results, got %d", len(sum.QuestionResults))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(Transcript{})
	if sum.Score != 0 || sum.Total != 0 || sum.FastestAnswer != 0 {
		t.Errorf("unexpected empty summary %+v", sum)
	}
	if sum.HighestDifficulty != model.TierEasy {
		t.Errorf("expected easy, got %s", sum.HighestDifficulty)
	}
	if sum.TopicsToWorkOn == nil || len(sum.TopicsToWorkOn) != 0 {
		t.Errorf("expected empty non-nil topics, got %#v", sum.TopicsToWorkOn)
	}
}

func TestTopicsToWorkOn(t *testing.T) {
	tests := []struct {
		name    string
		history []model.AnsweredRecord
		want    []string
	}{
		{
			name: "each topic once in table order",
			history: []model.AnsweredRecord{
				record("What is the capital of France?", false, false, 1, 100),
				record("Solve the equation 2x = 4", false, false, 1, 100),
				record("Which continent is Kenya in?", false, false, 1, 100),
				record("Which cell organelle makes energy?", true, false, 1, 100),
			},
			want: []string{"Mathematics", "Geography"},
		},
		{
			name: "skipped questions count as missed",
			history: []model.AnsweredRecord{
				record("Who wrote Hamlet?", false, true, 1, 0),
			},
			want: []string{"Literature"},
		},
		{
			name: "generic entry when nothing matches",
			history: []model.AnsweredRecord{
				record("How many legs does a spider have?", false, false, 1, 100),
				record("What colour is the sky?", false, false, 1, 100),
			},
			want: []string{GenericReview},
		},
		{
			name: "all correct",
			history: []model.AnsweredRecord{
				record("What is the capital of France?", true, false, 1, 100),
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Summarize(Transcript{History: tt.history})
			if len(sum.TopicsToWorkOn) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, sum.TopicsToWorkOn)
			}
			for i, name := range tt.want {
				if sum.TopicsToWorkOn[i].Name != name {
					t.Errorf("topic %d: expected %q, got %q", i, name, sum.TopicsToWorkOn[i].Name)
				}
			}
		})
	}

	sum := Summarize(Transcript{History: tests[2].history})
	if got := sum.TopicsToWorkOn[0].Description; got != "How many legs does a spider have?" {
		t.Errorf("generic entry should carry the first missed question, got %q", got)
	}
}
