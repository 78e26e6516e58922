package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// KVStore keeps every key in one JSON object on disk. Writes replace the
// file through a temp file and rename, so a crash never leaves half a state.
type KVStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// Open reads path if it exists; a missing file starts empty. An unreadable
// JSON document is moved aside to <path>.corrupt and the store starts empty.
func Open(path string, logger zerolog.Logger) (*KVStore, error) {
	s := &KVStore{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		aside := path + ".corrupt"
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("move corrupt state file %s: %w", path, rerr)
		}
		logger.Warn().Err(err).Str("path", path).Str("moved_to", aside).Msg("corrupt state file, starting empty")
		s.values = make(map[string]string)
		return s, nil
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *KVStore) Path() string { return s.path }

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *KVStore) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	for k, v := range values {
		next[k] = v
	}
	return s.commitLocked(next)
}

func (s *KVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	for _, k := range keys {
		delete(next, k)
	}
	return s.commitLocked(next)
}

// Keys returns every key starting with prefix, sorted.
func (s *KVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KVStore) copyLocked() map[string]string {
	next := make(map[string]string, len(s.values))
	for k, v := range s.values {
		next[k] = v
	}
	return next
}

// commitLocked writes next to disk and only then swaps it in.
func (s *KVStore) commitLocked(next map[string]string) error {
	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pathquest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	s.values = next
	return nil
}
