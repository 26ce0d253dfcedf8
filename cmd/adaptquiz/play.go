package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/quiz"
	"github.com/pavelanni/adaptquiz/internal/quizapi"
)

var errQuit = errors.New("quit")

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a quiz in the terminal",
		Long: "Take an adaptive quiz in the terminal. Questions come from a running adaptquiz\n" +
			"server (--server with --topic), a JSON file (--questions), or the bundled sample set.",
		RunE: runPlay,
	}
	f := cmd.Flags()
	f.String("server", "", "Base URL of an adaptquiz server to generate questions from")
	f.String("api-key", "", "X-API-Key sent to the server")
	f.StringP("topic", "t", "", "Quiz topic (required with --server)")
	f.IntP("count", "n", 10, "Number of questions in the quiz")
	f.StringP("questions", "q", "", "JSON file with easy/medium/hard question pools")
	f.Uint64("seed", 0, "Random seed for question order (0 = random)")
	f.Bool("save", true, "Store the results on the server when playing with --server")
	f.Int("level-up-streak", 3, "Consecutive correct answers that raise the difficulty")
	f.Int("level-down-streak", 3, "Consecutive incorrect answers that lower the difficulty")
	addLogFlags(f)
	return cmd
}

func runPlay(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	topic, total := strings.TrimSpace(v.GetString("topic")), v.GetInt("count")

	var (
		pools  map[model.Tier][]model.Question
		client *quizapi.Client
		err    error
	)
	switch {
	case v.GetString("server") != "":
		if topic == "" {
			return errors.New("--topic is required with --server")
		}
		client = quizapi.New(v.GetString("server"), v.GetString("api-key"), nil)
		fmt.Fprintf(out, "Generating questions about %q...\n", topic)
		var report quizapi.BankReport
		pools, report, err = client.FetchBank(ctx, topic, total)
		if err != nil {
			return fmt.Errorf("fetch questions: %w", err)
		}
		for _, tr := range report.Tiers {
			if tr.Degraded {
				fmt.Fprintf(out, "Note: %s questions are placeholders.\n", tr.Tier)
			}
		}
	case v.GetString("questions") != "":
		data, err := os.ReadFile(v.GetString("questions"))
		if err != nil {
			return fmt.Errorf("read questions: %w", err)
		}
		if pools, err = quiz.ParsePools(data); err != nil {
			return err
		}
	default:
		if pools, err = quiz.SamplePools(); err != nil {
			return err
		}
	}

	var bank *quiz.Bank
	if seed := v.GetUint64("seed"); seed != 0 {
		bank = quiz.NewSeededBank(pools, seed)
	} else {
		bank = quiz.NewBank(pools, nil)
	}

	sess := quiz.NewSession(bank, quiz.Options{Thresholds: quiz.Thresholds{
		LevelUp:   v.GetInt("level-up-streak"),
		LevelDown: v.GetInt("level-down-streak"),
	}})
	if err := sess.Start(total); err != nil {
		return err
	}

	p := &player{sess: sess, in: bufio.NewScanner(cmd.InOrStdin()), out: out}
	err = p.run()
	if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, io.EOF) {
		return err
	}
	if sess.State() != quiz.StateCompleted {
		fmt.Fprintln(out, "Quiz ended early.")
	}

	sum := sess.Summary(topic, client != nil)
	printSummary(out, sum)

	if client != nil && v.GetBool("save") && sess.State() == quiz.StateCompleted {
		id, err := client.SaveResults(ctx, sum)
		if err != nil {
			fmt.Fprintf(out, "Could not save results: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "Results saved: %s\n", client.ResultURL(id))
	}
	return nil
}

// player drives a session from line-oriented input.
type player struct {
	sess *quiz.Session
	in   *bufio.Scanner
	out  io.Writer
}

func (p *player) run() error {
	for p.sess.State() == quiz.StateInProgress {
		p.render()
		fmt.Fprint(p.out, "answer [1-4/a-d], s=skip, p=previous, n=next, q=quit > ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return err
			}
			return io.EOF
		}

		var err error
		switch input := strings.ToLower(strings.TrimSpace(p.in.Text())); input {
		case "":
			continue
		case "q":
			return errQuit
		case "s":
			err = p.sess.Skip()
		case "p":
			err = p.sess.GoBack()
		case "n":
			err = p.sess.Advance()
		default:
			idx, ok := optionIndex(input)
			if !ok {
				fmt.Fprintf(p.out, "Unknown command %q\n", input)
				continue
			}
			err = p.answer(idx)
		}
		if errors.Is(err, quiz.ErrIgnored) {
			fmt.Fprintf(p.out, "(%v)\n", err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *player) answer(idx int) error {
	if err := p.sess.Select(idx); err != nil {
		return err
	}
	oc, err := p.sess.Submit()
	if err != nil {
		return err
	}
	if oc.Record.IsCorrect {
		fmt.Fprintln(p.out, "Correct!")
	} else {
		q := oc.Record.Question
		fmt.Fprintf(p.out, "Incorrect. The answer is %c) %s\n", 'A'+q.CorrectAnswer, q.Options[q.CorrectAnswer])
	}
	if oc.TierChanged {
		if oc.Transition.LevelUp() {
			fmt.Fprintf(p.out, "Level up! Difficulty is now %s.\n", oc.Transition.To)
		} else {
			fmt.Fprintf(p.out, "Difficulty lowered to %s.\n", oc.Transition.To)
		}
	}
	if oc.Last {
		fmt.Fprintln(p.out, "That was the last question. Press n to see your results.")
	}
	return nil
}

func (p *player) render() {
	view := p.sess.Current()
	st := p.sess.Stats()
	fmt.Fprintf(p.out, "\nQuestion %d/%d [%s]  score %d/%d  streak %d",
		view.Position+1, view.Total, view.Tier, st.Correct, st.Attempted, st.CorrectStreak)
	if view.Reviewing {
		fmt.Fprint(p.out, "  (review)")
	}
	fmt.Fprintf(p.out, "\n%s\n", view.Question.Text)

	for i, opt := range view.Question.Options {
		mark := " "
		if view.Resolved {
			switch {
			case view.Question.IsCorrect(i):
				mark = "+"
			case view.Selected != nil && *view.Selected == i:
				mark = "x"
			}
		} else if view.Selected != nil && *view.Selected == i {
			mark = ">"
		}
		fmt.Fprintf(p.out, " %s %c) %s\n", mark, 'A'+i, opt)
	}
	if view.Record != nil && view.Record.Skipped {
		fmt.Fprintln(p.out, "   (skipped)")
	}
}

// optionIndex maps "1".."4" and "a".."d" to a zero-based option index.
func optionIndex(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	switch c := s[0]; {
	case c >= '1' && c <= '0'+model.OptionCount:
		return int(c - '1'), true
	case c >= 'a' && c < 'a'+model.OptionCount:
		return int(c - 'a'), true
	}
	return 0, false
}

func printSummary(w io.Writer, sum model.Summary) {
	fmt.Fprintln(w, "\n=== Results ===")
	if sum.Topic != "" {
		fmt.Fprintf(w, "Topic:              %s\n", sum.Topic)
	}
	fmt.Fprintf(w, "Score:              %d%%\n", sum.Score)
	fmt.Fprintf(w, "Correct:            %d / %d\n", sum.Correct, sum.Total)
	fmt.Fprintf(w, "Incorrect:          %d\n", sum.Incorrect)
	fmt.Fprintf(w, "Skipped:            %d\n", sum.Skipped)
	fmt.Fprintf(w, "Highest difficulty: %s\n", sum.HighestDifficulty)
	fmt.Fprintf(w, "Time taken:         %ds\n", sum.TimeTaken)
	fmt.Fprintf(w, "Fastest answer:     %.1fs\n", sum.FastestAnswer)
	fmt.Fprintf(w, "Longest streak:     %d\n", sum.HotStreak)
	if len(sum.TopicsToWorkOn) > 0 {
		fmt.Fprintln(w, "Topics to work on:")
		for _, t := range sum.TopicsToWorkOn {
			fmt.Fprintf(w, "  - %s: %s\n", t.Name, t.Description)
		}
	}
}
