package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pathquest/internal/domain"
)

const (
	// StoreKey holds the serialized GameProgress blob.
	StoreKey = "gameStore"
	// QuizKeyPrefix marks every standalone per-quiz key; reset removes all of them.
	QuizKeyPrefix = "quiz_"
)

// Store is the single writer of GameProgress. Every mutation is clamped,
// persisted, then published to subscribers; a failed write changes nothing.
type Store struct {
	kv              KeyValueStore
	defaultMaxSteps int
	log             zerolog.Logger

	mu          sync.RWMutex
	state       domain.GameProgress
	subscribers map[chan domain.GameProgress]struct{}
}

// NewStore loads the persisted blob, falling back to defaults for anything missing or unreadable.
func NewStore(ctx context.Context, kv KeyValueStore, defaultMaxSteps int, logger zerolog.Logger) (*Store, error) {
	if defaultMaxSteps < 1 {
		defaultMaxSteps = 1
	}
	s := &Store{
		kv:              kv,
		defaultMaxSteps: defaultMaxSteps,
		log:             logger.With().Str("component", "store").Logger(),
		subscribers:     make(map[chan domain.GameProgress]struct{}),
	}
	state, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

func (s *Store) defaults() domain.GameProgress {
	return domain.GameProgress{
		MaxSteps:    s.defaultMaxSteps,
		MCQProgress: make(map[string]domain.MCQProgress),
	}
}

func (s *Store) load(ctx context.Context) (domain.GameProgress, error) {
	raw, ok, err := s.kv.Get(ctx, StoreKey)
	if err != nil {
		return domain.GameProgress{}, fmt.Errorf("load progress: %w", err)
	}
	state := s.defaults()
	if !ok {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.log.Warn().Err(err).Msg("corrupt progress blob, using defaults")
		return s.defaults(), nil
	}
	s.normalize(&state)
	return state, nil
}

// normalize restores every invariant of GameProgress.
func (s *Store) normalize(p *domain.GameProgress) {
	if p.MaxSteps < 1 {
		p.MaxSteps = s.defaultMaxSteps
	}
	p.CurrentStep = clamp(p.CurrentStep, 0, p.MaxSteps-1)
	if p.VictoryCount < 0 {
		p.VictoryCount = 0
	}
	if p.MCQProgress == nil {
		p.MCQProgress = make(map[string]domain.MCQProgress)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.GameProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// MCQ returns the progress entry for a multiple-choice quiz.
func (s *Store) MCQ(quizID string) (domain.MCQProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.MCQProgress[quizID]
	return p.Clone(), ok
}

// Update applies fn to a copy of the state, re-validates it and persists it.
// If fn or the write fails the observable state is left untouched.
func (s *Store) Update(ctx context.Context, fn func(p *domain.GameProgress) error) (domain.GameProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return s.state.Clone(), err
	}
	s.normalize(&next)

	data, err := json.Marshal(next)
	if err != nil {
		return s.state.Clone(), fmt.Errorf("encode progress: %w", err)
	}
	if err := Set(ctx, s.kv, StoreKey, string(data)); err != nil {
		return s.state.Clone(), fmt.Errorf("persist progress: %w", err)
	}
	s.state = next
	s.broadcastLocked()
	return next.Clone(), nil
}

// SetCurrentStep clamps step into [0, maxSteps-1].
func (s *Store) SetCurrentStep(ctx context.Context, step int) (domain.GameProgress, error) {
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.CurrentStep = clamp(step, 0, p.MaxSteps-1)
		return nil
	})
}

// AdvanceBy moves forward by delta cells, stopping on the terminal cell.
func (s *Store) AdvanceBy(ctx context.Context, delta int) (domain.GameProgress, error) {
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.CurrentStep = advance(p.CurrentStep, delta, p.MaxSteps)
		return nil
	})
}

// SetMaxSteps is a no-op for newMax < 1; otherwise the current step is re-clamped in the same write.
func (s *Store) SetMaxSteps(ctx context.Context, newMax int) (domain.GameProgress, error) {
	if newMax < 1 {
		return s.Snapshot(), nil
	}
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.MaxSteps = newMax
		p.CurrentStep = clamp(p.CurrentStep, 0, newMax-1)
		return nil
	})
}

func (s *Store) SetAdminMode(ctx context.Context, enabled bool) (domain.GameProgress, error) {
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.IsAdminMode = enabled
		return nil
	})
}

// Unlock records a feature opened by a code. Already unlocked features are not rewritten.
func (s *Store) Unlock(ctx context.Context, feature string) (domain.GameProgress, error) {
	if current := s.Snapshot(); current.HasUnlocked(feature) {
		return current, nil
	}
	return s.Update(ctx, func(p *domain.GameProgress) error {
		if !p.HasUnlocked(feature) {
			p.Unlocked = append(p.Unlocked, feature)
			sort.Strings(p.Unlocked)
		}
		return nil
	})
}

func (s *Store) SetSelectedCharacter(ctx context.Context, id string) (domain.GameProgress, error) {
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.SelectedCharacterID = id
		return nil
	})
}

// IncrementVictory records one path completion. Debouncing is the caller's job (see CompletionWatcher).
func (s *Store) IncrementVictory(ctx context.Context) (domain.GameProgress, error) {
	return s.Update(ctx, func(p *domain.GameProgress) error {
		p.VictoryCount++
		return nil
	})
}

// ResetAll drops the blob and every quiz_ key in one delete and returns to defaults.
func (s *Store) ResetAll(ctx context.Context) (domain.GameProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.Keys(ctx, QuizKeyPrefix)
	if err != nil {
		return s.state.Clone(), fmt.Errorf("list quiz keys: %w", err)
	}
	if err := s.kv.Delete(ctx, append(keys, StoreKey)...); err != nil {
		return s.state.Clone(), fmt.Errorf("reset progress: %w", err)
	}
	s.state = s.defaults()
	s.log.Info().Int("quiz_keys", len(keys)).Msg("progress reset")
	s.broadcastLocked()
	return s.state.Clone(), nil
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state. The caller must invoke cancel to avoid leaks.
func (s *Store) Subscribe() (<-chan domain.GameProgress, func()) {
	ch := make(chan domain.GameProgress, 8)

	s.mu.Lock()
	// the buffer is empty here, so this send never blocks
	ch <- s.state.Clone()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) broadcastLocked() {
	for ch := range s.subscribers {
		snapshot := s.state.Clone()
		select {
		case ch <- snapshot:
		default:
			// slow reader: drop its oldest snapshot, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func advance(step, delta, maxSteps int) int {
	return clamp(step+delta, 0, maxSteps-1)
}
