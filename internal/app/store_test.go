package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pathquest/internal/app"
	"pathquest/internal/domain"
	"pathquest/internal/infra/memory"
)

func TestSetCurrentStepClamps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	for input, want := range map[int]int{-5: 0, 0: 0, 12: 12, 39: 39, 40: 39, 1000: 39} {
		p, err := store.SetCurrentStep(ctx, input)
		require.NoError(t, err)
		require.Equal(t, want, p.CurrentStep, "input %d", input)
	}
}

func TestAdvanceByStopsOnTerminalCell(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	_, err := store.SetCurrentStep(ctx, 37)
	require.NoError(t, err)
	p, err := store.AdvanceBy(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 39, p.CurrentStep)
}

func TestSetMaxStepsReclampsStep(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	_, err := store.SetCurrentStep(ctx, 30)
	require.NoError(t, err)

	p, err := store.SetMaxSteps(ctx, 25)
	require.NoError(t, err)
	require.Equal(t, 25, p.MaxSteps)
	require.Equal(t, 24, p.CurrentStep)

	for _, bad := range []int{0, -3} {
		p, err = store.SetMaxSteps(ctx, bad)
		require.NoError(t, err)
		require.Equal(t, 25, p.MaxSteps)
		require.Equal(t, 24, p.CurrentStep)
	}

	p, err = store.SetMaxSteps(ctx, 60)
	require.NoError(t, err)
	require.Equal(t, 24, p.CurrentStep, "growing the path keeps the position")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv, 40)

	_, err := store.SetSelectedCharacter(ctx, "fox")
	require.NoError(t, err)
	_, err = store.SetMaxSteps(ctx, 30)
	require.NoError(t, err)
	_, err = store.SetCurrentStep(ctx, 17)
	require.NoError(t, err)
	_, err = store.SetAdminMode(ctx, true)
	require.NoError(t, err)
	_, err = store.IncrementVictory(ctx)
	require.NoError(t, err)
	bonus := 4
	_, err = store.Update(ctx, func(p *domain.GameProgress) error {
		p.MCQProgress["trivia"] = domain.MCQProgress{QuestionIndex: 3, CorrectCount: 3, Finished: true, AppliedBonus: &bonus}
		p.MCQProgress["other"] = domain.MCQProgress{QuestionIndex: 1, Selected: "B", ShowFeedback: true, LastChosenText: "B"}
		return nil
	})
	require.NoError(t, err)

	reloaded := newTestStore(t, kv, 40)
	require.Equal(t, store.Snapshot(), reloaded.Snapshot())
}

func TestStoreLoadFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		blob     string
		step     int
		maxSteps int
	}{
		"corrupt":        {blob: "{not json", step: 0, maxSteps: 40},
		"missing fields": {blob: `{"currentStep":5}`, step: 5, maxSteps: 40},
		"invalid max":    {blob: `{"currentStep":5,"maxSteps":0}`, step: 5, maxSteps: 40},
		"step too far":   {blob: `{"currentStep":90,"maxSteps":10}`, step: 9, maxSteps: 10},
		"negative step":  {blob: `{"currentStep":-4,"maxSteps":10}`, step: 0, maxSteps: 10},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			kv := memory.NewKVStore()
			require.NoError(t, app.Set(ctx, kv, app.StoreKey, tc.blob))
			p := newTestStore(t, kv, 40).Snapshot()
			require.Equal(t, tc.step, p.CurrentStep)
			require.Equal(t, tc.maxSteps, p.MaxSteps)
			require.NotNil(t, p.MCQProgress)
		})
	}
}

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KVStore: memory.NewKVStore()}
	store := newTestStore(t, kv, 40)

	_, err := store.SetCurrentStep(ctx, 10)
	require.NoError(t, err)

	kv.failWrites = true
	_, err = store.SetCurrentStep(ctx, 20)
	require.Error(t, err)
	require.Equal(t, 10, store.Snapshot().CurrentStep)

	_, err = store.Update(ctx, func(p *domain.GameProgress) error {
		p.CurrentStep = 30
		return errors.New("rejected")
	})
	require.Error(t, err)
	require.Equal(t, 10, store.Snapshot().CurrentStep)
}

func TestResetAllClearsQuizKeys(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv, 40)

	_, err := store.SetCurrentStep(ctx, 12)
	require.NoError(t, err)
	_, err = store.IncrementVictory(ctx)
	require.NoError(t, err)
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"quiz_forest_lives": "1",
		"quiz_forest_won":   "true",
		"unrelated":         "kept",
	}))

	p, err := store.ResetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.CurrentStep)
	require.Equal(t, 40, p.MaxSteps)
	require.Equal(t, 0, p.VictoryCount)

	keys, err := kv.Keys(ctx, app.QuizKeyPrefix)
	require.NoError(t, err)
	require.Empty(t, keys)
	_, ok, _ := kv.Get(ctx, "unrelated")
	require.True(t, ok)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	ch, cancel := store.Subscribe()
	defer cancel()

	initial := <-ch
	require.Equal(t, 0, initial.CurrentStep)

	_, err := store.SetCurrentStep(ctx, 7)
	require.NoError(t, err)

	update := <-ch
	require.Equal(t, 7, update.CurrentStep)
}

func TestSlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	ch, cancel := store.Subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		_, err := store.SetCurrentStep(ctx, i)
		require.NoError(t, err)
	}

	var last domain.GameProgress
	for len(ch) > 0 {
		last = <-ch
	}
	require.Equal(t, 20, last.CurrentStep)
}

func TestSubscribeNeverBlocksWriters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore(), 40)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_, _ = store.SetCurrentStep(ctx, i%40)
		}
	}()

	// nobody drains these channels
	for i := 0; i < 50; i++ {
		ch, cancel := store.Subscribe()
		defer cancel()
		require.NotZero(t, len(ch), "initial snapshot is buffered")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer stalled behind an undrained subscriber")
	}
}

func TestUnlockIsSortedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv, 40)

	for _, feature := range []string{"mcq:trivia", "admin", "mcq:trivia"} {
		_, err := store.Unlock(ctx, feature)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"admin", "mcq:trivia"}, store.Snapshot().Unlocked)

	reloaded := newTestStore(t, kv, 40)
	require.True(t, reloaded.Snapshot().HasUnlocked("admin"))
	require.False(t, reloaded.Snapshot().HasUnlocked("cloze:forest-tale"))
}

func newTestStore(t *testing.T, kv app.KeyValueStore, maxSteps int) *app.Store {
	t.Helper()
	store, err := app.NewStore(context.Background(), kv, maxSteps, zerolog.Nop())
	require.NoError(t, err)
	return store
}

type flakyKV struct {
	*memory.KVStore
	failWrites bool
}

func (f *flakyKV) SetMany(ctx context.Context, values map[string]string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.KVStore.SetMany(ctx, values)
}
