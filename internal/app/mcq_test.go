package app_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pathquest/internal/app"
	"pathquest/internal/domain"
	"pathquest/internal/infra/memory"
)

func TestMCQBonus(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{3, 4, 4},
		{0, 4, 0},
		{0, 1, 0},
		{4, 4, 5},
		{2, 4, 3}, // 2.5 rounds away from zero
		{1, 4, 1},
		{1, 10, 1}, // 0.5 rounds up, floor of 1 anyway
		{1, 20, 1}, // 0.25 clamps up to 1
		{7, 7, 5},
		{0, 0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, app.MCQBonus(tc.correct, tc.total), "%d/%d", tc.correct, tc.total)
	}
}

func TestMCQFullRunAppliesBonusOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)
	engine := app.NewMCQEngine(store, sampleMCQ(), nil, zerolog.Nop())

	picks := []string{"4", "Paris", "blue", "wrong"}
	for i, pick := range picks {
		_, err := engine.SelectOption(ctx, pick)
		require.NoError(t, err)
		fb, err := engine.Validate(ctx)
		require.NoError(t, err)
		require.Equal(t, i, fb.QuestionIndex)
		require.Equal(t, i < 3, fb.Correct)
		require.Equal(t, i == 3, fb.LastQuestion)

		out, err := engine.Continue(ctx)
		require.NoError(t, err)
		require.Equal(t, i == 3, out.Finished)
	}

	p := engine.Progress()
	require.True(t, p.Finished)
	require.Equal(t, 3, p.CorrectCount)
	require.NotNil(t, p.AppliedBonus)
	require.Equal(t, 4, *p.AppliedBonus)
	require.Equal(t, 4, store.Snapshot().CurrentStep)

	_, err := engine.Continue(ctx)
	require.ErrorIs(t, err, domain.ErrQuizFinished)
	_, err = engine.SelectOption(ctx, "4")
	require.ErrorIs(t, err, domain.ErrQuizFinished)
	require.Equal(t, 4, store.Snapshot().CurrentStep)
}

func TestMCQZeroCorrectEarnsNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)
	engine := app.NewMCQEngine(store, sampleMCQ(), nil, zerolog.Nop())

	for _, pick := range []string{"5", "Rome", "red", "wrong"} {
		_, err := engine.SelectOption(ctx, pick)
		require.NoError(t, err)
		_, err = engine.Validate(ctx)
		require.NoError(t, err)
		_, err = engine.Continue(ctx)
		require.NoError(t, err)
	}
	p := engine.Progress()
	require.True(t, p.Finished)
	require.Equal(t, 0, *p.AppliedBonus)
	require.Equal(t, 0, store.Snapshot().CurrentStep)
}

func TestMCQStepGuards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)
	engine := app.NewMCQEngine(store, sampleMCQ(), nil, zerolog.Nop())

	_, err := engine.Validate(ctx)
	require.ErrorIs(t, err, domain.ErrNoSelection)
	_, err = engine.Continue(ctx)
	require.ErrorIs(t, err, domain.ErrNoFeedback)
	_, err = engine.SelectOption(ctx, "not an option")
	require.ErrorIs(t, err, domain.ErrOptionNotFound)

	_, err = engine.SelectOption(ctx, "3")
	require.NoError(t, err)
	_, err = engine.SelectOption(ctx, "4")
	require.NoError(t, err, "selection can change before validation")
	fb, err := engine.Validate(ctx)
	require.NoError(t, err)
	require.True(t, fb.Correct)
	require.Equal(t, "4", fb.CorrectText)

	_, err = engine.SelectOption(ctx, "5")
	require.ErrorIs(t, err, domain.ErrSelectionClosed)
	_, err = engine.Validate(ctx)
	require.ErrorIs(t, err, domain.ErrFeedbackPending)

	p := engine.Progress()
	require.True(t, p.ShowFeedback)
	require.Equal(t, "4", p.LastChosenText)
	require.True(t, p.LastChosenCorrect)
	require.Equal(t, 1, p.CorrectCount)
}

func TestMCQProgressSurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv, 40)
	engine := app.NewMCQEngine(store, sampleMCQ(), nil, zerolog.Nop())

	_, err := engine.SelectOption(ctx, "4")
	require.NoError(t, err)
	_, err = engine.Validate(ctx)
	require.NoError(t, err)

	reloaded := app.NewMCQEngine(newTestStore(t, kv, 40), sampleMCQ(), nil, zerolog.Nop())
	p := reloaded.Progress()
	require.True(t, p.ShowFeedback)
	require.Equal(t, 1, p.CorrectCount)
	out, err := reloaded.Continue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.QuestionIndex)
	q, ok := reloaded.Current()
	require.True(t, ok)
	require.Equal(t, "Capital of France?", q.Prompt)
}

func TestMCQReplayRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)
	engine := app.NewMCQEngine(store, sampleMCQ(), nil, zerolog.Nop())

	for _, pick := range []string{"4", "Paris", "blue", "right"} {
		_, err := engine.SelectOption(ctx, pick)
		require.NoError(t, err)
		_, err = engine.Validate(ctx)
		require.NoError(t, err)
		_, err = engine.Continue(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 5, store.Snapshot().CurrentStep)

	_, err := engine.Replay(ctx)
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	_, err = store.SetAdminMode(ctx, true)
	require.NoError(t, err)
	p, err := engine.Replay(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MCQProgress{}, p)
	require.Equal(t, 5, store.Snapshot().CurrentStep)
}

func TestMCQShuffleKeepsOptions(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore(), 40)
	a := app.NewMCQEngine(store, sampleMCQ(), seeded(3), zerolog.Nop())
	b := app.NewMCQEngine(store, sampleMCQ(), seeded(3), zerolog.Nop())
	require.Equal(t, a.Quiz(), b.Quiz())
	for i, q := range a.Quiz().Questions {
		require.ElementsMatch(t, sampleMCQ().Questions[i].Options, q.Options)
	}
}

func sampleMCQ() domain.MCQQuiz {
	return domain.MCQQuiz{
		ID:       "trivia",
		Title:    "Trivia",
		MaxBonus: 5,
		Questions: []domain.MCQQuestion{
			{ID: 1, Prompt: "What is 2 + 2?", Options: []domain.Option{{Text: "3"}, {Text: "4", Correct: true}, {Text: "5"}}},
			{ID: 2, Prompt: "Capital of France?", Options: []domain.Option{{Text: "Paris", Correct: true}, {Text: "Rome"}}},
			{ID: 3, Prompt: "Color of the sky?", Options: []domain.Option{{Text: "blue", Correct: true}, {Text: "red"}}},
			{ID: 4, Prompt: "Pick right", Options: []domain.Option{{Text: "right", Correct: true}, {Text: "wrong"}}},
		},
	}
}
