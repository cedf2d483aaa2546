package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// FileStore keeps all sessions in a single JSON document on disk,
// keyed by user id.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(userID int64) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.loadUnlocked()
	st, ok := all[key(userID)]
	if !ok {
		return nil, false
	}
	return st, true
}

func (s *FileStore) Save(userID int64, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.loadUnlocked()
	all[key(userID)] = state
	return s.saveUnlocked(all)
}

func (s *FileStore) Purge(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.loadUnlocked()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for k, st := range all {
		if st.UpdatedAt.Before(cutoff) {
			delete(all, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.saveUnlocked(all)
}

func (s *FileStore) loadUnlocked() map[string]*State {
	f, err := os.Open(s.path)
	if err != nil {
		return map[string]*State{}
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
		}
	}(f)
	var all map[string]*State
	if err := json.NewDecoder(f).Decode(&all); err != nil || all == nil {
		// empty or malformed -> start fresh
		return map[string]*State{}
	}
	return all
}

func (s *FileStore) saveUnlocked(all map[string]*State) error {
	f, err := os.OpenFile(s.path, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open write: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
		}
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func key(userID int64) string { return strconv.FormatInt(userID, 10) }
