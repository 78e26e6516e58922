package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestKVStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	_, ok, err := store.Get(ctx, "gameStore")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetMany(ctx, map[string]string{
		"gameStore":       `{"currentStep":4}`,
		"quiz_tale_lives": "1",
		"quiz_tale_won":   "false",
	}))
	require.NoError(t, store.Delete(ctx, "quiz_tale_won"))

	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "gameStore")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"currentStep":4}`, v)

	keys, err := reopened.Keys(ctx, "quiz_")
	require.NoError(t, err)
	require.Equal(t, []string{"quiz_tale_lives"}, keys)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestKVStoreMovesCorruptFileAside(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	require.Equal(t, "{nope", string(kept))

	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1"}))
	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)
}

func TestKVStoreFailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.json"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1"}))

	// Point the store at a path whose parent is a regular file.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	store.path = filepath.Join(blocker, "state.json")

	require.Error(t, store.SetMany(ctx, map[string]string{"a": "2"}))
	v, _, _ := store.Get(ctx, "a")
	require.Equal(t, "1", v)
}
