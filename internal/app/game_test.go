package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pathquest/internal/app"
	"pathquest/internal/domain"
	"pathquest/internal/infra/memory"
)

func TestMaxStepsCodeClampsPosition(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())

	_, err := game.Store().SetCurrentStep(ctx, 30)
	require.NoError(t, err)

	d, err := game.SubmitCode(ctx, "game_25")
	require.NoError(t, err)
	require.Equal(t, app.ActionSetMaxSteps, d.Action)

	p := game.State()
	require.Equal(t, 25, p.MaxSteps)
	require.Equal(t, 24, p.CurrentStep)
	require.Equal(t, 1, p.VictoryCount, "clamping onto the last cell completes the path")
}

func TestUnknownCodePostsTransientNotice(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	game, err := app.NewGame(ctx, memory.NewKVStore(), sampleCatalog(), app.Options{
		Seed:      1,
		NoticeTTL: 3 * time.Second,
		Now:       func() time.Time { return now },
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	before := game.State()

	_, err = game.SubmitCode(ctx, "abracadabra")
	require.ErrorIs(t, err, domain.ErrUnknownCode)
	require.True(t, app.IsTransient(err))
	require.Equal(t, before, game.State())

	notice, ok := game.Notice()
	require.True(t, ok)
	require.Equal(t, app.NoticeError, notice.Kind)

	_, err = game.SubmitCode(ctx, "sesame")
	require.NoError(t, err)
	notice, ok = game.Notice()
	require.True(t, ok)
	require.Equal(t, app.NoticeSuccess, notice.Kind, "a newer notice replaces the old one")

	now = now.Add(3 * time.Second)
	_, ok = game.Notice()
	require.False(t, ok)
}

func TestRollAdvancesAlongPath(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())

	roll, err := game.Roll(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, roll.Value, 1)
	require.LessOrEqual(t, roll.Value, app.DieFaces)
	require.Equal(t, 0, roll.From)
	require.Equal(t, roll.Value, roll.To)
	require.Len(t, roll.Path, roll.Value)
	require.Equal(t, roll.To, roll.Path[len(roll.Path)-1])
	require.Equal(t, roll.To, game.State().CurrentStep)
}

func TestRollIsSeeded(t *testing.T) {
	ctx := context.Background()
	a := newTestGame(t, memory.NewKVStore())
	b := newTestGame(t, memory.NewKVStore())
	for i := 0; i < 5; i++ {
		ra, err := a.Roll(ctx)
		require.NoError(t, err)
		rb, err := b.Roll(ctx)
		require.NoError(t, err)
		require.Equal(t, ra.Value, rb.Value)
	}
}

func TestVictoryCountedOncePerArrival(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())
	enableAdmin(t, game)

	applied, err := game.EditPosition(ctx, "40")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 1, game.State().VictoryCount)

	_, err = game.Roll(ctx)
	require.ErrorIs(t, err, domain.ErrPathComplete)
	_, err = game.EditPosition(ctx, "40")
	require.NoError(t, err)
	require.Equal(t, 1, game.State().VictoryCount, "staying on the last cell is the same arrival")

	_, err = game.EditPosition(ctx, "3")
	require.NoError(t, err)
	_, err = game.EditPosition(ctx, "40")
	require.NoError(t, err)
	require.Equal(t, 2, game.State().VictoryCount)
}

func TestVictoryLatchSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	game := newTestGame(t, kv)
	enableAdmin(t, game)
	_, err := game.EditPosition(ctx, "40")
	require.NoError(t, err)

	restarted := newTestGame(t, kv)
	_, err = restarted.EditPosition(ctx, "40")
	require.NoError(t, err)
	require.Equal(t, 1, restarted.State().VictoryCount)
}

func TestClozeBonusCanCompletePath(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())
	_, err := game.Store().SetCurrentStep(ctx, 37)
	require.NoError(t, err)
	_, err = game.SubmitCode(ctx, "quill")
	require.NoError(t, err)

	engine, err := game.OpenCloze("forest-tale")
	require.NoError(t, err)
	answerAll(t, engine, "woodcutter", "cottage", "forest")

	res, err := game.SubmitCloze(ctx, "forest-tale")
	require.NoError(t, err)
	require.Equal(t, 39, res.CurrentStep)
	require.Equal(t, 1, game.State().VictoryCount)
}

func TestEditInputsAreValidatedSilently(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())

	_, err := game.EditPosition(ctx, "5")
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	enableAdmin(t, game)
	before := game.State()

	for _, raw := range []string{"abc", "", "0", "41", "-2", "3.5"} {
		applied, err := game.EditPosition(ctx, raw)
		require.NoError(t, err, raw)
		require.False(t, applied, raw)
	}
	for _, raw := range []string{"zero", "0", "-10"} {
		applied, err := game.EditMaxSteps(ctx, raw)
		require.NoError(t, err, raw)
		require.False(t, applied, raw)
	}
	require.Equal(t, before, game.State())

	applied, err := game.EditPosition(ctx, " 10 ")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 9, game.State().CurrentStep)

	applied, err = game.EditMaxSteps(ctx, "8")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 7, game.State().CurrentStep)
}

func TestResetAllWipesQuizzes(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())
	_, err := game.SubmitCode(ctx, "quill")
	require.NoError(t, err)

	engine, err := game.OpenCloze("forest-tale")
	require.NoError(t, err)
	answerAll(t, engine, "woodcutter", "cottage", "forest")
	_, err = game.SubmitCloze(ctx, "forest-tale")
	require.NoError(t, err)

	_, err = game.ResetAll(ctx)
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	enableAdmin(t, game)
	p, err := game.ResetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.CurrentStep)
	require.False(t, p.IsAdminMode)
	require.Empty(t, p.Unlocked, "codes must be entered again after a reset")

	progress, err := engine.Progress(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ClozePlaying, progress.Phase())
	require.Equal(t, domain.MaxLives, progress.LivesRemaining)
}

func TestAdminModeNeedsItsCode(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	game := newTestGame(t, kv)

	_, err := game.SetAdminMode(ctx, true)
	require.ErrorIs(t, err, domain.ErrCodeRequired)
	require.True(t, app.IsTransient(err))
	require.False(t, game.State().IsAdminMode)

	_, err = game.SubmitCode(ctx, "compass")
	require.NoError(t, err)
	_, err = game.SetAdminMode(ctx, true)
	require.ErrorIs(t, err, domain.ErrCodeRequired, "another code does not open the admin panel")

	_, err = game.SubmitCode(ctx, "sesame")
	require.NoError(t, err)
	p, err := game.SetAdminMode(ctx, true)
	require.NoError(t, err)
	require.True(t, p.IsAdminMode)
	require.Equal(t, []string{"admin", "position"}, p.Unlocked)

	_, err = game.SetAdminMode(ctx, false)
	require.NoError(t, err)
	_, err = game.SetAdminMode(ctx, true)
	require.NoError(t, err, "the unlock outlives switching admin mode off")

	restarted := newTestGame(t, kv)
	require.True(t, restarted.State().HasUnlocked("admin"))
}

func TestQuizzesOpenWithTheirCode(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())

	_, err := game.OpenCloze("forest-tale")
	require.ErrorIs(t, err, domain.ErrCodeRequired)
	_, err = game.OpenMCQ("trivia")
	require.ErrorIs(t, err, domain.ErrCodeRequired)
	_, err = game.SubmitCloze(ctx, "forest-tale")
	require.ErrorIs(t, err, domain.ErrCodeRequired)
	_, err = game.OpenCloze("missing")
	require.ErrorIs(t, err, domain.ErrQuizNotFound)

	_, err = game.SubmitCode(ctx, "owl")
	require.NoError(t, err)
	_, err = game.OpenMCQ("trivia")
	require.NoError(t, err)
	_, err = game.OpenCloze("forest-tale")
	require.ErrorIs(t, err, domain.ErrCodeRequired)

	enableAdmin(t, game)
	_, err = game.OpenCloze("forest-tale")
	require.NoError(t, err, "admin mode opens every quiz")
}

func TestCharacterSelection(t *testing.T) {
	ctx := context.Background()
	game := newTestGame(t, memory.NewKVStore())

	_, err := game.SelectCharacter(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrCharacterNotFound)
	_, ok := game.SelectedCharacter()
	require.False(t, ok)

	ch, err := game.CycleCharacter(ctx, -1)
	require.NoError(t, err)
	require.Equal(t, "witch", ch.ID, "wraps backwards from the first character")

	ch, err = game.CycleCharacter(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "knight", ch.ID)
	require.Equal(t, "knight", game.State().SelectedCharacterID)
}

func TestNewGameRejectsUnknownQuizReference(t *testing.T) {
	_, err := app.NewGame(context.Background(), memory.NewKVStore(), sampleCatalog(), app.Options{
		Codes:  map[string]string{"x": "mcq:missing"},
		Logger: zerolog.Nop(),
	})
	require.Error(t, err)
}

func newTestGame(t *testing.T, kv app.KeyValueStore) *app.Game {
	t.Helper()
	game, err := app.NewGame(context.Background(), kv, sampleCatalog(), app.Options{
		Seed:   42,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return game
}

func enableAdmin(t *testing.T, game *app.Game) {
	t.Helper()
	_, err := game.SubmitCode(context.Background(), "sesame")
	require.NoError(t, err)
	_, err = game.SetAdminMode(context.Background(), true)
	require.NoError(t, err)
}

func sampleCatalog() domain.Catalog {
	return domain.Catalog{
		MaxSteps: 40,
		Characters: []domain.Character{
			{ID: "knight", Name: "Knight"},
			{ID: "witch", Name: "Witch"},
		},
		Cloze: []domain.ClozeQuiz{sampleCloze()},
		MCQ:   []domain.MCQQuiz{sampleMCQ()},
	}
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
