package quiz

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Transcript is everything Summarize needs from a finished session.
type Transcript struct {
	Topic       string
	AIQuiz      bool
	History     []model.AnsweredRecord
	HighestTier model.Tier
	Elapsed     time.Duration
}

// GenericReview is the topic name used when no keyword category matches.
const GenericReview = "Review this question"

var topicPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Mathematics", regexp.MustCompile(`(?i)math|equation|calculate|solve`)},
	{"Physics", regexp.MustCompile(`(?i)physics|force|energy|motion`)},
	{"Chemistry", regexp.MustCompile(`(?i)chemistry|element|compound|reaction`)},
	{"History", regexp.MustCompile(`(?i)history|war|century|period|civilization`)},
	{"Literature", regexp.MustCompile(`(?i)literature|author|wrote|book|novel`)},
	{"Geography", regexp.MustCompile(`(?i)geography|country|capital|continent`)},
	{"Computer Science", regexp.MustCompile(`(?i)computer|algorithm|programming|code`)},
	{"Biology", regexp.MustCompile(`(?i)biology|cell|organism|species`)},
}

// Summarize computes the flat results record for a transcript.
func Summarize(t Transcript) model.Summary {
	sum := model.Summary{
		Topic:             t.Topic,
		Total:             len(t.History),
		HighestDifficulty: t.HighestTier,
		TimeTaken:         int64(math.Round(t.Elapsed.Seconds())),
		IsAIQuiz:          t.AIQuiz,
		QuestionResults:   make([]model.QuestionResult, 0, len(t.History)),
		TopicsToWorkOn:    []model.TopicReview{},
	}
	if !sum.HighestDifficulty.Valid() {
		sum.HighestDifficulty = model.TierEasy
	}

	var (
		run     int
		fastest int64 = -1
		missed  []model.Question
	)
	for _, rec := range t.History {
		switch {
		case rec.Skipped:
			sum.Skipped++
		case rec.IsCorrect:
			sum.Correct++
		default:
			sum.Incorrect++
		}

		if rec.IsCorrect {
			run++
			sum.HotStreak = max(sum.HotStreak, run)
		} else {
			run = 0
			missed = append(missed, rec.Question)
		}

		if !rec.Skipped && (fastest < 0 || rec.LatencyMs < fastest) {
			fastest = rec.LatencyMs
		}
		if rec.Tier > sum.HighestDifficulty {
			sum.HighestDifficulty = rec.Tier
		}

		sum.QuestionResults = append(sum.QuestionResults, model.QuestionResult{
			Question:       rec.Question.Text,
			Correct:        rec.IsCorrect,
			Skipped:        rec.Skipped,
			Difficulty:     rec.Tier,
			AnswerTime:     rec.LatencyMs,
			SelectedAnswer: rec.Selected,
			CorrectAnswer:  rec.Question.CorrectAnswer,
		})
	}

	sum.Score = Score(sum.Correct, sum.Total)
	if fastest >= 0 {
		sum.FastestAnswer = math.Round(float64(fastest)/100) / 10
	}
	sum.TopicsToWorkOn = topicsToWorkOn(missed)
	return sum
}

// Score returns the rounded percentage of correct answers, 0 when nothing
// was attempted.
func Score(correct, attempted int) int {
	if attempted <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(attempted)))
}

// topicsToWorkOn matches missed questions against the keyword table. Each
// question counts toward its first matching category; categories are
// reported once, in table order.
func topicsToWorkOn(missed []model.Question) []model.TopicReview {
	if len(missed) == 0 {
		return []model.TopicReview{}
	}
	counts := make([]int, len(topicPatterns))
	for _, q := range missed {
		for i, tp := range topicPatterns {
			if tp.pattern.MatchString(q.Text) {
				counts[i]++
				break
			}
		}
	}

	var out []model.TopicReview
	for i, n := range counts {
		if n == 0 {
			continue
		}
		out = append(out, model.TopicReview{
			Name:        topicPatterns[i].name,
			Description: fmt.Sprintf("%d missed question(s) touched on %s.", n, topicPatterns[i].name),
		})
	}
	if len(out) == 0 {
		out = append(out, model.TopicReview{Name: GenericReview, Description: missed[0].Text})
	}
	return out
}
