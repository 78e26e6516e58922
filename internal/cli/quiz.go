package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"pathquest/internal/app"
	"pathquest/internal/domain"
)

func newClozeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cloze <quiz> show|answer <question> <text>|submit|retry|reset",
		Short: "Play a fill-in-the-blank quiz",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizID, verb := args[0], args[1]
			return withGame(cmd.Context(), func(rt *runtime) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				engine, err := rt.game.OpenCloze(quizID)
				if err != nil {
					return err
				}
				switch verb {
				case "show":
				case "answer":
					if len(args) < 4 {
						return fmt.Errorf("usage: cloze %s answer <question> <text>", quizID)
					}
					qid, err := parseQuestionID(args[2])
					if err != nil {
						return err
					}
					if _, err := engine.Answer(ctx, qid, strings.Join(args[3:], " ")); err != nil {
						return err
					}
				case "submit":
					res, err := rt.game.SubmitCloze(ctx, quizID)
					if err != nil {
						return err
					}
					printClozeResult(out, res)
					printNotice(out, rt.game)
					return nil
				case "retry":
					if _, err := engine.Retry(ctx); err != nil {
						return err
					}
				case "reset":
					if _, err := engine.ResetByAdmin(ctx); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown cloze action %q", verb)
				}
				progress, err := engine.Progress(ctx)
				if err != nil {
					return err
				}
				printCloze(out, engine, progress)
				return nil
			})
		},
	}
}

func printCloze(w io.Writer, engine *app.ClozeEngine, p domain.ClozeProgress) {
	quiz := engine.Quiz()
	fmt.Fprintf(w, "%s [%s, %d lives]\n", quiz.Title, p.Phase(), p.LivesRemaining)
	var b strings.Builder
	for _, seg := range engine.Segments() {
		switch {
		case !seg.Blank:
			b.WriteString(seg.Text)
		case seg.Missing:
			b.WriteString("[" + seg.Text + "]")
		default:
			answer := p.Answers[seg.QuestionID]
			if answer == "" {
				answer = "____"
			}
			fmt.Fprintf(&b, "(%d:%s)", seg.QuestionID, answer)
		}
	}
	fmt.Fprintln(w, b.String())
	if p.Phase() != domain.ClozePlaying {
		return
	}
	for _, q := range quiz.Questions {
		if p.Locked[q.ID] {
			continue
		}
		texts := make([]string, len(q.Options))
		for i, opt := range q.Options {
			texts[i] = opt.Text
		}
		fmt.Fprintf(w, "  %d: %s\n", q.ID, strings.Join(texts, " / "))
	}
}

func printClozeResult(w io.Writer, res app.ClozeResult) {
	if res.Correct {
		fmt.Fprintf(w, "correct! +%d cells, now on cell %d\n", res.Bonus, res.CurrentStep+1)
		return
	}
	ids := make([]int, 0, len(res.Blanks))
	for id := range res.Blanks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		mark := "x"
		if res.Blanks[id] {
			mark = "ok"
		}
		fmt.Fprintf(w, "  blank %d: %s\n", id, mark)
	}
	fmt.Fprintf(w, "%s, %d lives left\n", res.Phase, res.LivesRemaining)
}

func newMCQCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcq <quiz> show|select <option>|validate|continue|replay",
		Short: "Play a multiple-choice quiz",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizID, verb := args[0], args[1]
			return withGame(cmd.Context(), func(rt *runtime) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				engine, err := rt.game.OpenMCQ(quizID)
				if err != nil {
					return err
				}
				switch verb {
				case "show":
				case "select":
					if len(args) < 3 {
						return fmt.Errorf("usage: mcq %s select <option>", quizID)
					}
					if _, err := engine.SelectOption(ctx, strings.Join(args[2:], " ")); err != nil {
						return err
					}
				case "validate":
					fb, err := engine.Validate(ctx)
					if err != nil {
						return err
					}
					if fb.Correct {
						fmt.Fprintf(out, "correct: %s\n", fb.Chosen)
					} else {
						fmt.Fprintf(out, "wrong: %s (answer: %s)\n", fb.Chosen, fb.CorrectText)
					}
					return nil
				case "continue":
					res, err := rt.game.ContinueMCQ(ctx, quizID)
					if err != nil {
						return err
					}
					if res.Finished {
						fmt.Fprintf(out, "finished with %d correct: +%d cells, now on cell %d\n", res.CorrectCount, res.Bonus, res.CurrentStep+1)
						printNotice(out, rt.game)
						return nil
					}
				case "replay":
					if _, err := engine.Replay(ctx); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown mcq action %q", verb)
				}
				printMCQ(out, engine)
				return nil
			})
		},
	}
}

func printMCQ(w io.Writer, engine *app.MCQEngine) {
	quiz := engine.Quiz()
	p := engine.Progress()
	if p.Finished {
		fmt.Fprintf(w, "%s: finished, %d/%d correct\n", quiz.Title, p.CorrectCount, len(quiz.Questions))
		return
	}
	q, ok := engine.Current()
	if !ok {
		return
	}
	fmt.Fprintf(w, "%s %d/%d: %s\n", quiz.Title, p.QuestionIndex+1, len(quiz.Questions), q.Prompt)
	for _, opt := range q.Options {
		marker := " "
		if opt.Text == p.Selected {
			marker = ">"
		}
		fmt.Fprintf(w, " %s %s\n", marker, opt.Text)
	}
	if p.ShowFeedback {
		fmt.Fprintf(w, "last answer: %s (correct: %t)\n", p.LastChosenText, p.LastChosenCorrect)
	}
}
