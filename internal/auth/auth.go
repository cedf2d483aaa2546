package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenSource yields the bearer token used against the backend API.
// Token acquisition (login flow) happens outside this service.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token, typically injected from the environment.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

// FileTokenStore reads the bearer token from a file so that an external
// login flow can rotate it without restarting the assistant.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileTokenStore{path: path}, nil
}

func (s *FileTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FileTokenStore) Store(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
