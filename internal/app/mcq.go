package app

import (
	"context"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"pathquest/internal/content"
	"pathquest/internal/domain"
)

// MaxMCQBonus caps the step bonus of a multiple-choice quiz.
const MaxMCQBonus = 5

// MCQBonus scales the score to [1, MaxMCQBonus], rounding half away from zero.
// Zero correct answers earn nothing.
func MCQBonus(correct, total int) int {
	if correct <= 0 || total <= 0 {
		return 0
	}
	scaled := int(math.Round(float64(MaxMCQBonus*correct) / float64(total)))
	return clamp(scaled, 1, MaxMCQBonus)
}

// MCQFeedback is returned by Validate for the feedback screen.
type MCQFeedback struct {
	QuizID        string `json:"quizId"`
	QuestionIndex int    `json:"questionIndex"`
	Chosen        string `json:"chosen"`
	Correct       bool   `json:"correct"`
	CorrectText   string `json:"correctText"`
	CorrectCount  int    `json:"correctCount"`
	LastQuestion  bool   `json:"lastQuestion"`
}

// MCQOutcome is returned by Continue.
type MCQOutcome struct {
	QuizID        string `json:"quizId"`
	QuestionIndex int    `json:"questionIndex"`
	Finished      bool   `json:"finished"`
	Bonus         int    `json:"bonus"`
	CorrectCount  int    `json:"correctCount"`
	CurrentStep   int    `json:"currentStep"`
}

// MCQEngine runs one multiple-choice quiz. Its progress lives inside the
// store blob so the final bonus and the finished flag land in one write.
type MCQEngine struct {
	store *Store
	quiz  domain.MCQQuiz
	log   zerolog.Logger
}

// NewMCQEngine shuffles the quiz options once with rng (nil keeps catalog order).
func NewMCQEngine(store *Store, quiz domain.MCQQuiz, rng *rand.Rand, logger zerolog.Logger) *MCQEngine {
	return &MCQEngine{
		store: store,
		quiz:  content.ShuffleMCQ(quiz, rng),
		log:   logger.With().Str("component", "mcq").Str("quiz", quiz.ID).Logger(),
	}
}

func (e *MCQEngine) Quiz() domain.MCQQuiz {
	return e.quiz
}

// Progress returns the stored entry, or a fresh one.
func (e *MCQEngine) Progress() domain.MCQProgress {
	p, _ := e.store.MCQ(e.quiz.ID)
	return p
}

// Current returns the question awaiting an answer.
func (e *MCQEngine) Current() (domain.MCQQuestion, bool) {
	return e.question(e.Progress().QuestionIndex)
}

func (e *MCQEngine) question(idx int) (domain.MCQQuestion, bool) {
	if idx < 0 || idx >= len(e.quiz.Questions) {
		return domain.MCQQuestion{}, false
	}
	return e.quiz.Questions[idx], true
}

func (e *MCQEngine) update(ctx context.Context, fn func(state *domain.GameProgress, p *domain.MCQProgress) error) (domain.GameProgress, domain.MCQProgress, error) {
	state, err := e.store.Update(ctx, func(state *domain.GameProgress) error {
		p := state.MCQProgress[e.quiz.ID]
		if err := fn(state, &p); err != nil {
			return err
		}
		state.MCQProgress[e.quiz.ID] = p
		return nil
	})
	return state, state.MCQProgress[e.quiz.ID], err
}

// SelectOption picks an option of the current question without scoring it.
func (e *MCQEngine) SelectOption(ctx context.Context, text string) (domain.MCQProgress, error) {
	_, p, err := e.update(ctx, func(_ *domain.GameProgress, p *domain.MCQProgress) error {
		if p.Finished {
			return domain.ErrQuizFinished
		}
		if p.ShowFeedback {
			return domain.ErrSelectionClosed
		}
		q, ok := e.question(p.QuestionIndex)
		if !ok {
			return domain.ErrQuestionNotFound
		}
		if _, ok := findOption(q.Options, text); !ok {
			return domain.ErrOptionNotFound
		}
		p.Selected = text
		return nil
	})
	return p, err
}

// Validate scores the selection and moves to the feedback screen.
func (e *MCQEngine) Validate(ctx context.Context) (MCQFeedback, error) {
	var fb MCQFeedback
	_, _, err := e.update(ctx, func(_ *domain.GameProgress, p *domain.MCQProgress) error {
		if p.Finished {
			return domain.ErrQuizFinished
		}
		if p.ShowFeedback {
			return domain.ErrFeedbackPending
		}
		if p.Selected == "" {
			return domain.ErrNoSelection
		}
		q, ok := e.question(p.QuestionIndex)
		if !ok {
			return domain.ErrQuestionNotFound
		}
		chosen, _ := findOption(q.Options, p.Selected)
		if chosen.Correct {
			p.CorrectCount++
		}
		p.LastChosenText = chosen.Text
		p.LastChosenCorrect = chosen.Correct
		p.ShowFeedback = true

		want, _ := domain.CorrectOption(q.Options)
		fb = MCQFeedback{
			QuizID:        e.quiz.ID,
			QuestionIndex: p.QuestionIndex,
			Chosen:        chosen.Text,
			Correct:       chosen.Correct,
			CorrectText:   want.Text,
			CorrectCount:  p.CorrectCount,
			LastQuestion:  p.QuestionIndex == len(e.quiz.Questions)-1,
		}
		return nil
	})
	return fb, err
}

// Continue leaves the feedback screen. After the last question the bonus is
// applied to the path and the quiz is finished, both in a single store write.
func (e *MCQEngine) Continue(ctx context.Context) (MCQOutcome, error) {
	var out MCQOutcome
	state, p, err := e.update(ctx, func(state *domain.GameProgress, p *domain.MCQProgress) error {
		if p.Finished {
			return domain.ErrQuizFinished
		}
		if !p.ShowFeedback {
			return domain.ErrNoFeedback
		}
		p.ShowFeedback = false
		p.Selected = ""
		if p.QuestionIndex < len(e.quiz.Questions)-1 {
			p.QuestionIndex++
			return nil
		}
		if p.AppliedBonus == nil {
			bonus := MCQBonus(p.CorrectCount, len(e.quiz.Questions))
			state.CurrentStep = advance(state.CurrentStep, bonus, state.MaxSteps)
			p.AppliedBonus = &bonus
		}
		p.Finished = true
		return nil
	})
	if err != nil {
		return out, err
	}
	out = MCQOutcome{
		QuizID:        e.quiz.ID,
		QuestionIndex: p.QuestionIndex,
		Finished:      p.Finished,
		CorrectCount:  p.CorrectCount,
		CurrentStep:   state.CurrentStep,
	}
	if p.Finished && p.AppliedBonus != nil {
		out.Bonus = *p.AppliedBonus
		e.log.Info().Int("bonus", out.Bonus).Int("correct", p.CorrectCount).Int("step", state.CurrentStep).Msg("quiz finished")
	}
	return out, nil
}

// Replay resets the quiz entry to its initial state. Requires admin mode; the
// bonus already applied stays on the path.
func (e *MCQEngine) Replay(ctx context.Context) (domain.MCQProgress, error) {
	_, p, err := e.update(ctx, func(state *domain.GameProgress, p *domain.MCQProgress) error {
		if !state.IsAdminMode {
			return domain.ErrAdminRequired
		}
		*p = domain.MCQProgress{}
		return nil
	})
	return p, err
}

func findOption(options []domain.Option, text string) (domain.Option, bool) {
	for _, opt := range options {
		if opt.Text == text {
			return opt, true
		}
	}
	return domain.Option{}, false
}
