package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pathquest/internal/app"
	"pathquest/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show position, character, victories and quiz progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				return printStatus(cmd, rt.game)
			})
		},
	}
}

func printStatus(cmd *cobra.Command, g *app.Game) error {
	out := cmd.OutOrStdout()
	p := g.State()
	fmt.Fprintf(out, "cell %d/%d", p.CurrentStep+1, p.MaxSteps)
	if p.AtFinish() {
		fmt.Fprint(out, " (finish)")
	}
	fmt.Fprintln(out)
	if ch, ok := g.SelectedCharacter(); ok {
		fmt.Fprintf(out, "character: %s\n", ch.Name)
	} else {
		fmt.Fprintln(out, "character: none")
	}
	fmt.Fprintf(out, "victories: %d\n", p.VictoryCount)
	if p.IsAdminMode {
		fmt.Fprintln(out, "admin mode: on")
	}
	for _, id := range g.ClozeIDs() {
		engine, _ := g.Cloze(id)
		progress, err := engine.Progress(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cloze %s: %s, %d lives\n", id, progress.Phase(), progress.LivesRemaining)
	}
	for _, id := range g.MCQIDs() {
		engine, _ := g.MCQ(id)
		mp := engine.Progress()
		switch {
		case mp.Finished:
			fmt.Fprintf(out, "mcq %s: finished, %d/%d correct\n", id, mp.CorrectCount, len(engine.Quiz().Questions))
		default:
			fmt.Fprintf(out, "mcq %s: question %d/%d\n", id, mp.QuestionIndex+1, len(engine.Quiz().Questions))
		}
	}
	return nil
}

func newRollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roll",
		Short: "Throw the die and move forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				roll, err := rt.game.Roll(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "rolled %d: cell %d -> %d\n", roll.Value, roll.From+1, roll.To+1)
				if roll.Finished {
					fmt.Fprintln(out, "you reached the finish!")
				}
				printNotice(out, rt.game)
				return nil
			})
		},
	}
}

func newCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <token>",
		Short: "Enter a secret code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				d, err := rt.game.SubmitCode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch d.Action {
				case app.ActionSetMaxSteps:
					fmt.Fprintf(out, "path resized to %d cells\n", d.MaxSteps)
				case app.ActionClozeQuiz:
					fmt.Fprintf(out, "unlocked cloze quiz %s: run `pathquest cloze %s show`\n", d.QuizID, d.QuizID)
				case app.ActionMCQQuiz:
					fmt.Fprintf(out, "unlocked quiz %s: run `pathquest mcq %s show`\n", d.QuizID, d.QuizID)
				case app.ActionAdminPanel:
					fmt.Fprintln(out, "admin panel unlocked: run `pathquest admin on`")
				case app.ActionPositionEditor:
					fmt.Fprintln(out, "position editor unlocked: run `pathquest position <cell>`")
				}
				return nil
			})
		},
	}
}

func newCharacterCmd() *cobra.Command {
	var next, prev bool
	cmd := &cobra.Command{
		Use:   "character [id]",
		Short: "List characters or pick one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				out := cmd.OutOrStdout()
				var (
					ch  domain.Character
					err error
				)
				switch {
				case len(args) == 1:
					ch, err = rt.game.SelectCharacter(cmd.Context(), args[0])
				case next:
					ch, err = rt.game.CycleCharacter(cmd.Context(), 1)
				case prev:
					ch, err = rt.game.CycleCharacter(cmd.Context(), -1)
				default:
					selected := rt.game.State().SelectedCharacterID
					for _, c := range rt.game.Catalog().Characters {
						marker := " "
						if c.ID == selected {
							marker = "*"
						}
						fmt.Fprintf(out, "%s %-10s %s\n", marker, c.ID, c.Name)
					}
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "playing as %s\n", ch.Name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "select the next character")
	cmd.Flags().BoolVar(&prev, "prev", false, "select the previous character")
	return cmd
}

func newPositionCmd() *cobra.Command {
	var maxSteps bool
	cmd := &cobra.Command{
		Use:   "position <value>",
		Short: "Move to a cell (1-based), or resize the path with --max (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				edit := rt.game.EditPosition
				if maxSteps {
					edit = rt.game.EditMaxSteps
				}
				applied, err := edit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !applied {
					fmt.Fprintf(out, "ignored %q\n", args[0])
					return nil
				}
				p := rt.game.State()
				fmt.Fprintf(out, "cell %d/%d\n", p.CurrentStep+1, p.MaxSteps)
				printNotice(out, rt.game)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&maxSteps, "max", false, "set the path length instead of the position")
	return cmd
}

func newAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "admin on|off",
		Short:     "Toggle admin mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return withGame(cmd.Context(), func(rt *runtime) error {
				if _, err := rt.game.SetAdminMode(cmd.Context(), enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin mode %s\n", args[0])
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe all progress and quiz state (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGame(cmd.Context(), func(rt *runtime) error {
				if _, err := rt.game.ResetAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all progress cleared")
				return nil
			})
		},
	}
}

func printNotice(w io.Writer, g *app.Game) {
	if n, ok := g.Notice(); ok {
		fmt.Fprintf(w, "[%s] %s\n", n.Kind, n.Text)
	}
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", raw)
}

func parseQuestionID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("question id must be a number, got %q", raw)
	}
	return id, nil
}
