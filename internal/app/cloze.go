package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"pathquest/internal/content"
	"pathquest/internal/domain"
)

// ClozeResult summarizes one submission.
type ClozeResult struct {
	QuizID         string            `json:"quizId"`
	Correct        bool              `json:"correct"`
	Blanks         map[int]bool      `json:"blanks"`
	LivesRemaining int               `json:"livesRemaining"`
	Bonus          int               `json:"bonus"`
	Phase          domain.ClozePhase `json:"phase"`
	CurrentStep    int               `json:"currentStep"`
}

// ClozeEngine runs one fill-in-the-blank quiz. Its progress lives in the
// quiz_<id>_* keys, so a reset of the store wipes it too.
type ClozeEngine struct {
	store *Store
	kv    KeyValueStore
	quiz  domain.ClozeQuiz
	log   zerolog.Logger

	mu sync.Mutex
}

// NewClozeEngine shuffles the quiz options once with rng (nil keeps catalog order).
func NewClozeEngine(store *Store, kv KeyValueStore, quiz domain.ClozeQuiz, rng *rand.Rand, logger zerolog.Logger) *ClozeEngine {
	return &ClozeEngine{
		store: store,
		kv:    kv,
		quiz:  content.ShuffleCloze(quiz, rng),
		log:   logger.With().Str("component", "cloze").Str("quiz", quiz.ID).Logger(),
	}
}

func (e *ClozeEngine) Quiz() domain.ClozeQuiz {
	return e.quiz
}

// Segments renders the template; unknown blanks become placeholders.
func (e *ClozeEngine) Segments() []content.Segment {
	return content.Segments(e.quiz)
}

func (e *ClozeEngine) livesKey() string { return QuizKeyPrefix + e.quiz.ID + "_lives" }
func (e *ClozeEngine) wonKey() string { return QuizKeyPrefix + e.quiz.ID + "_won" }
func (e *ClozeEngine) answersKey() string { return QuizKeyPrefix + e.quiz.ID + "_answers" }

type clozeAnswers struct {
	Answers   map[int]string `json:"answers"`
	Locked    map[int]bool   `json:"locked"`
	Submitted bool           `json:"submitted"`
}

// Progress reads the persisted state, defaulting anything missing or corrupt.
func (e *ClozeEngine) Progress(ctx context.Context) (domain.ClozeProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx)
}

func (e *ClozeEngine) load(ctx context.Context) (domain.ClozeProgress, error) {
	p := domain.ClozeProgress{
		LivesRemaining: domain.MaxLives,
		Answers:        make(map[int]string),
		Locked:         make(map[int]bool),
	}

	raw, ok, err := e.kv.Get(ctx, e.livesKey())
	if err != nil {
		return p, fmt.Errorf("load lives: %w", err)
	}
	if ok {
		lives, err := strconv.Atoi(raw)
		if err != nil {
			e.log.Warn().Str("value", raw).Msg("unreadable lives value, using default")
		} else {
			p.LivesRemaining = clamp(lives, 0, domain.MaxLives)
		}
	}

	raw, ok, err = e.kv.Get(ctx, e.wonKey())
	if err != nil {
		return p, fmt.Errorf("load won flag: %w", err)
	}
	p.HasWon = ok && raw == "true"

	raw, ok, err = e.kv.Get(ctx, e.answersKey())
	if err != nil {
		return p, fmt.Errorf("load answers: %w", err)
	}
	if ok {
		var stored clozeAnswers
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			e.log.Warn().Err(err).Msg("unreadable answers, starting blank")
		} else {
			for id, text := range stored.Answers {
				p.Answers[id] = text
			}
			for id, locked := range stored.Locked {
				if locked {
					p.Locked[id] = true
				}
			}
			p.Submitted = stored.Submitted
		}
	}
	return p, nil
}

func (e *ClozeEngine) save(ctx context.Context, p domain.ClozeProgress) error {
	answers, err := json.Marshal(clozeAnswers{Answers: p.Answers, Locked: p.Locked, Submitted: p.Submitted})
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	return e.kv.SetMany(ctx, map[string]string{
		e.livesKey():   strconv.Itoa(p.LivesRemaining),
		e.wonKey():     strconv.FormatBool(p.HasWon),
		e.answersKey(): string(answers),
	})
}

func phaseError(phase domain.ClozePhase) error {
	switch phase {
	case domain.ClozeWon:
		return domain.ErrQuizWon
	case domain.ClozeLocked:
		return domain.ErrQuizLocked
	case domain.ClozeIncorrect:
		return domain.ErrNotPlaying
	}
	return nil
}

// Answer records the text typed into one blank.
func (e *ClozeEngine) Answer(ctx context.Context, questionID int, text string) (domain.ClozeProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return p, err
	}
	if err := phaseError(p.Phase()); err != nil {
		return p, err
	}
	if _, ok := e.quiz.Question(questionID); !ok {
		return p, domain.ErrQuestionNotFound
	}
	if p.Locked[questionID] {
		return p, domain.ErrBlankLocked
	}
	p.Answers[questionID] = text
	if err := e.save(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// Submit checks every blank. All correct wins the quiz and applies the bonus
// exactly once; anything else costs a life and locks the correct blanks.
func (e *ClozeEngine) Submit(ctx context.Context) (ClozeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return ClozeResult{}, err
	}
	result := ClozeResult{
		QuizID:         e.quiz.ID,
		Blanks:         make(map[int]bool, len(e.quiz.Questions)),
		LivesRemaining: p.LivesRemaining,
		Phase:          p.Phase(),
		CurrentStep:    e.store.Snapshot().CurrentStep,
	}
	if err := phaseError(p.Phase()); err != nil {
		return result, err
	}

	allCorrect := true
	for _, q := range e.quiz.Questions {
		ok := false
		if want, found := domain.CorrectOption(q.Options); found {
			ok = answerMatches(p.Answers[q.ID], want.Text)
		}
		result.Blanks[q.ID] = ok
		allCorrect = allCorrect && ok
	}
	result.Correct = allCorrect

	if allCorrect {
		return e.win(ctx, p, result)
	}

	prev := p
	p.LivesRemaining--
	p.Submitted = true
	p.Locked = make(map[int]bool, len(prev.Locked))
	for id, locked := range prev.Locked {
		p.Locked[id] = locked
	}
	for id, ok := range result.Blanks {
		if ok {
			p.Locked[id] = true
		}
	}
	if err := e.save(ctx, p); err != nil {
		return result, err
	}
	result.LivesRemaining = p.LivesRemaining
	result.Phase = p.Phase()
	e.log.Info().Int("lives", p.LivesRemaining).Msg("incorrect submission")
	return result, nil
}

// win marks the quiz won before moving the player, and rolls the flag back if
// the move fails, so the bonus can never be applied twice.
func (e *ClozeEngine) win(ctx context.Context, p domain.ClozeProgress, result ClozeResult) (ClozeResult, error) {
	prev := p
	p.HasWon = true
	p.Submitted = true
	if err := e.save(ctx, p); err != nil {
		return result, err
	}
	state, err := e.store.AdvanceBy(ctx, e.quiz.BonusSteps)
	if err != nil {
		if rbErr := e.save(ctx, prev); rbErr != nil {
			e.log.Error().Err(rbErr).Msg("rollback of won flag failed")
		}
		return result, err
	}
	result.Bonus = e.quiz.BonusSteps
	result.Phase = domain.ClozeWon
	result.CurrentStep = state.CurrentStep
	e.log.Info().Int("bonus", e.quiz.BonusSteps).Int("step", state.CurrentStep).Msg("quiz won")
	return result, nil
}

// Retry clears the wrong answers after an incorrect submission, keeping locked blanks.
func (e *ClozeEngine) Retry(ctx context.Context) (domain.ClozeProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return p, err
	}
	if p.Phase() != domain.ClozeIncorrect {
		return p, domain.ErrRetryNotAllowed
	}
	for id := range p.Answers {
		if !p.Locked[id] {
			delete(p.Answers, id)
		}
	}
	p.Submitted = false
	if err := e.save(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// ResetByAdmin reopens the quiz from any state. Requires admin mode.
func (e *ClozeEngine) ResetByAdmin(ctx context.Context) (domain.ClozeProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.Snapshot().IsAdminMode {
		return domain.ClozeProgress{}, domain.ErrAdminRequired
	}
	p := domain.ClozeProgress{
		LivesRemaining: domain.MaxLives,
		Answers:        make(map[int]string),
		Locked:         make(map[int]bool),
	}
	if err := e.save(ctx, p); err != nil {
		return p, err
	}
	e.log.Info().Msg("quiz reset by admin")
	return p, nil
}

// answerMatches compares trimmed, case-folded, NFC-normalized text. Blank never matches.
func answerMatches(got, want string) bool {
	got = strings.TrimSpace(got)
	if got == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(norm.NFC.String(got)) == fold.String(norm.NFC.String(strings.TrimSpace(want)))
}
