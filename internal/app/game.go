package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pathquest/internal/domain"
)

// Options tune a Game. Zero values pick sensible defaults.
type Options struct {
	DefaultMaxSteps int
	// Seed drives dice and option shuffles; 0 seeds from the clock.
	Seed      int64
	NoticeTTL time.Duration
	Codes     map[string]string
	Now       func() time.Time
	Logger    zerolog.Logger
}

// DefaultCodes is the code table used when none is configured.
func DefaultCodes(catalog domain.Catalog) map[string]string {
	codes := map[string]string{
		"sesame":  string(ActionAdminPanel),
		"compass": string(ActionPositionEditor),
	}
	if len(catalog.Cloze) > 0 {
		codes["quill"] = string(ActionClozeQuiz) + ":" + catalog.Cloze[0].ID
	}
	if len(catalog.MCQ) > 0 {
		codes["owl"] = string(ActionMCQQuiz) + ":" + catalog.MCQ[0].ID
	}
	return codes
}

// Game wires the store, the quiz engines and the code gate together. It is
// the single entry point for player actions; consumers read state through
// Store snapshots and subscriptions.
type Game struct {
	store   *Store
	catalog domain.Catalog
	gate    *Gate
	cloze   map[string]*ClozeEngine
	mcq     map[string]*MCQEngine
	dice    *Dice
	watcher *CompletionWatcher
	notices *Notices
	log     zerolog.Logger
}

// NewGame loads persisted progress from kv and builds one engine per quiz.
func NewGame(ctx context.Context, kv KeyValueStore, catalog domain.Catalog, opts Options) (*Game, error) {
	maxSteps := opts.DefaultMaxSteps
	if catalog.MaxSteps > 0 {
		maxSteps = catalog.MaxSteps
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 3 * time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	store, err := NewStore(ctx, kv, maxSteps, opts.Logger)
	if err != nil {
		return nil, err
	}

	codes := opts.Codes
	if len(codes) == 0 {
		codes = DefaultCodes(catalog)
	}
	gate, err := NewGate(codes)
	if err != nil {
		return nil, err
	}

	g := &Game{
		store:   store,
		catalog: catalog,
		gate:    gate,
		cloze:   make(map[string]*ClozeEngine, len(catalog.Cloze)),
		mcq:     make(map[string]*MCQEngine, len(catalog.MCQ)),
		dice:    NewDice(rand.New(rand.NewSource(rng.Int63()))),
		watcher: NewCompletionWatcher(store),
		notices: NewNotices(opts.NoticeTTL, opts.Now),
		log:     opts.Logger.With().Str("component", "game").Logger(),
	}
	for _, quiz := range catalog.Cloze {
		g.cloze[quiz.ID] = NewClozeEngine(store, kv, quiz, rand.New(rand.NewSource(rng.Int63())), opts.Logger)
	}
	for _, quiz := range catalog.MCQ {
		g.mcq[quiz.ID] = NewMCQEngine(store, quiz, rand.New(rand.NewSource(rng.Int63())), opts.Logger)
	}

	for _, id := range gate.QuizIDs(ActionClozeQuiz) {
		if _, ok := g.cloze[id]; !ok {
			return nil, fmt.Errorf("code table references unknown cloze quiz %q", id)
		}
	}
	for _, id := range gate.QuizIDs(ActionMCQQuiz) {
		if _, ok := g.mcq[id]; !ok {
			return nil, fmt.Errorf("code table references unknown mcq quiz %q", id)
		}
	}
	return g, nil
}

func (g *Game) Store() *Store { return g.store }

func (g *Game) Catalog() domain.Catalog { return g.catalog }

// Notice returns the live banner, if any.
func (g *Game) Notice() (Notice, bool) { return g.notices.Current() }

func (g *Game) State() domain.GameProgress { return g.store.Snapshot() }

// Cloze returns the engine of a cloze quiz without checking its unlock.
func (g *Game) Cloze(id string) (*ClozeEngine, error) {
	e, ok := g.cloze[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return e, nil
}

// MCQ returns the engine of a multiple-choice quiz without checking its unlock.
func (g *Game) MCQ(id string) (*MCQEngine, error) {
	e, ok := g.mcq[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return e, nil
}

// OpenCloze returns the engine of a cloze quiz once its code has been entered.
func (g *Game) OpenCloze(id string) (*ClozeEngine, error) {
	e, err := g.Cloze(id)
	if err != nil {
		return nil, err
	}
	if err := g.requireUnlocked(QuizFeature(ActionClozeQuiz, id)); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenMCQ returns the engine of a multiple-choice quiz once its code has been entered.
func (g *Game) OpenMCQ(id string) (*MCQEngine, error) {
	e, err := g.MCQ(id)
	if err != nil {
		return nil, err
	}
	if err := g.requireUnlocked(QuizFeature(ActionMCQQuiz, id)); err != nil {
		return nil, err
	}
	return e, nil
}

// requireUnlocked passes when a code opened the feature. Admin mode opens every quiz.
func (g *Game) requireUnlocked(feature string) error {
	p := g.store.Snapshot()
	if p.HasUnlocked(feature) || (p.IsAdminMode && feature != string(ActionAdminPanel)) {
		return nil
	}
	return domain.ErrCodeRequired
}

// ClozeIDs and MCQIDs list quiz ids in sorted order.
func (g *Game) ClozeIDs() []string { return sortedKeys(g.cloze) }

func (g *Game) MCQIDs() []string { return sortedKeys(g.mcq) }

// afterMove feeds the completion watcher; every step-changing action calls it.
func (g *Game) afterMove(ctx context.Context) {
	won, err := g.watcher.Observe(ctx, g.store.Snapshot())
	if err != nil {
		g.log.Error().Err(err).Msg("record victory")
		return
	}
	if won {
		g.notices.Post(NoticeSuccess, "Path complete!")
		g.log.Info().Int("victories", g.store.Snapshot().VictoryCount).Msg("path complete")
	}
}

// SubmitCode resolves a secret code. game_<n> resizes the path; the other
// actions are returned for the caller to open the matching panel.
func (g *Game) SubmitCode(ctx context.Context, token string) (Decision, error) {
	d, err := g.gate.Resolve(token)
	if err != nil {
		g.notices.Post(NoticeError, "Unknown code")
		return d, err
	}
	if d.Action == ActionSetMaxSteps {
		if _, err := g.store.SetMaxSteps(ctx, d.MaxSteps); err != nil {
			return d, err
		}
		g.afterMove(ctx)
		g.notices.Post(NoticeSuccess, fmt.Sprintf("Path resized to %d cells", d.MaxSteps))
		return d, nil
	}
	if _, err := g.store.Unlock(ctx, d.Feature()); err != nil {
		return d, err
	}
	g.notices.Post(NoticeSuccess, "Code accepted")
	return d, nil
}

// Roll throws the die and advances the player, stopping on the terminal cell.
func (g *Game) Roll(ctx context.Context) (Roll, error) {
	before := g.store.Snapshot()
	if before.AtFinish() {
		return Roll{From: before.CurrentStep, To: before.CurrentStep, Finished: true}, domain.ErrPathComplete
	}
	value := g.dice.Throw()
	after, err := g.store.AdvanceBy(ctx, value)
	if err != nil {
		return Roll{}, err
	}
	g.afterMove(ctx)
	return Roll{
		Value:    value,
		From:     before.CurrentStep,
		To:       after.CurrentStep,
		Path:     walk(before.CurrentStep, after.CurrentStep),
		Finished: after.AtFinish(),
	}, nil
}

// SelectCharacter stores a catalog character as the player's avatar.
func (g *Game) SelectCharacter(ctx context.Context, id string) (domain.Character, error) {
	for _, ch := range g.catalog.Characters {
		if ch.ID == id {
			_, err := g.store.SetSelectedCharacter(ctx, id)
			return ch, err
		}
	}
	return domain.Character{}, domain.ErrCharacterNotFound
}

// CycleCharacter moves through the catalog by offset, wrapping around.
func (g *Game) CycleCharacter(ctx context.Context, offset int) (domain.Character, error) {
	n := len(g.catalog.Characters)
	if n == 0 {
		return domain.Character{}, domain.ErrCharacterNotFound
	}
	current := 0
	selected := g.store.Snapshot().SelectedCharacterID
	for i, ch := range g.catalog.Characters {
		if ch.ID == selected {
			current = i
			break
		}
	}
	next := ((current+offset)%n + n) % n
	return g.SelectCharacter(ctx, g.catalog.Characters[next].ID)
}

// SelectedCharacter returns the avatar, if one is chosen and still in the catalog.
func (g *Game) SelectedCharacter() (domain.Character, bool) {
	id := g.store.Snapshot().SelectedCharacterID
	for _, ch := range g.catalog.Characters {
		if ch.ID == id {
			return ch, true
		}
	}
	return domain.Character{}, false
}

// SetAdminMode toggles the debug affordances. Turning them on needs the admin code first.
func (g *Game) SetAdminMode(ctx context.Context, enabled bool) (domain.GameProgress, error) {
	if enabled {
		if err := g.requireUnlocked(string(ActionAdminPanel)); err != nil {
			return g.store.Snapshot(), err
		}
	}
	return g.store.SetAdminMode(ctx, enabled)
}

func (g *Game) requireAdmin() error {
	if !g.store.Snapshot().IsAdminMode {
		return domain.ErrAdminRequired
	}
	return nil
}

// EditPosition takes a 1-based cell number as typed by the player. Anything
// that is not an integer in [1, maxSteps] is ignored and reported as not applied.
func (g *Game) EditPosition(ctx context.Context, raw string) (bool, error) {
	if err := g.requireAdmin(); err != nil {
		return false, err
	}
	cell, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false, nil
	}
	if cell < 1 || cell > g.store.Snapshot().MaxSteps {
		return false, nil
	}
	if _, err := g.store.SetCurrentStep(ctx, cell-1); err != nil {
		return false, err
	}
	g.afterMove(ctx)
	return true, nil
}

// EditMaxSteps takes the path length as typed. Non-integers and values below 1 are ignored.
func (g *Game) EditMaxSteps(ctx context.Context, raw string) (bool, error) {
	if err := g.requireAdmin(); err != nil {
		return false, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return false, nil
	}
	if _, err := g.store.SetMaxSteps(ctx, n); err != nil {
		return false, err
	}
	g.afterMove(ctx)
	return true, nil
}

// ResetAll wipes progress and every quiz key. Requires admin mode.
func (g *Game) ResetAll(ctx context.Context) (domain.GameProgress, error) {
	if err := g.requireAdmin(); err != nil {
		return g.store.Snapshot(), err
	}
	state, err := g.store.ResetAll(ctx)
	if err != nil {
		return state, err
	}
	g.afterMove(ctx)
	g.notices.Post(NoticeSuccess, "All progress cleared")
	return state, nil
}

// SubmitCloze submits a cloze quiz and records a victory if the bonus reached the end.
func (g *Game) SubmitCloze(ctx context.Context, quizID string) (ClozeResult, error) {
	e, err := g.OpenCloze(quizID)
	if err != nil {
		return ClozeResult{}, err
	}
	res, err := e.Submit(ctx)
	if err != nil {
		return res, err
	}
	if res.Correct {
		g.afterMove(ctx)
		g.notices.Post(NoticeSuccess, fmt.Sprintf("+%d bonus cells", res.Bonus))
	} else {
		g.notices.Post(NoticeError, fmt.Sprintf("Wrong answer, %d lives left", res.LivesRemaining))
	}
	return res, nil
}

// ContinueMCQ leaves the MCQ feedback screen and records a victory if the bonus reached the end.
func (g *Game) ContinueMCQ(ctx context.Context, quizID string) (MCQOutcome, error) {
	e, err := g.OpenMCQ(quizID)
	if err != nil {
		return MCQOutcome{}, err
	}
	out, err := e.Continue(ctx)
	if err != nil {
		return out, err
	}
	if out.Finished {
		g.afterMove(ctx)
		g.notices.Post(NoticeSuccess, fmt.Sprintf("+%d bonus cells", out.Bonus))
	}
	return out, nil
}

// IsTransient reports errors that are user mistakes rather than failures.
func IsTransient(err error) bool {
	for _, target := range []error{
		domain.ErrUnknownCode, domain.ErrAdminRequired, domain.ErrCodeRequired, domain.ErrQuizNotFound,
		domain.ErrQuestionNotFound, domain.ErrOptionNotFound, domain.ErrCharacterNotFound,
		domain.ErrQuizWon, domain.ErrQuizLocked, domain.ErrRetryNotAllowed, domain.ErrNotPlaying,
		domain.ErrBlankLocked, domain.ErrNoSelection, domain.ErrSelectionClosed,
		domain.ErrFeedbackPending, domain.ErrNoFeedback, domain.ErrQuizFinished, domain.ErrPathComplete,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
