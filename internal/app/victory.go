package app

import (
	"context"
	"sync"

	"pathquest/internal/domain"
)

// CompletionWatcher turns arrivals on the terminal cell into victories. It
// stays latched while the player remains there, so repeated observations of
// the same arrival count once.
type CompletionWatcher struct {
	store *Store

	mu      sync.Mutex
	latched bool
}

// NewCompletionWatcher starts latched when the player already stands on the
// terminal cell: that arrival was counted when it happened.
func NewCompletionWatcher(store *Store) *CompletionWatcher {
	return &CompletionWatcher{
		store:   store,
		latched: store.Snapshot().AtFinish(),
	}
}

// Observe inspects a snapshot and increments the victory count on a new arrival.
func (w *CompletionWatcher) Observe(ctx context.Context, p domain.GameProgress) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !p.AtFinish() {
		w.latched = false
		return false, nil
	}
	if w.latched {
		return false, nil
	}
	if _, err := w.store.IncrementVictory(ctx); err != nil {
		return false, err
	}
	w.latched = true
	return true, nil
}
