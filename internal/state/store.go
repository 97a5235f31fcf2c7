package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"reentrybot/internal/core"
)

// FileStore keeps all symbol states in one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (map[string]core.SymbolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Save(ctx context.Context, st core.SymbolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	all[st.Symbol] = st
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	// write-then-rename so a crash never leaves a truncated file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) read() (map[string]core.SymbolState, error) {
	if s.path == "" {
		return nil, errors.New("empty state path")
	}
	out := map[string]core.SymbolState{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Memory is a process-local store.
type Memory struct {
	mu sync.Mutex
	m  map[string]core.SymbolState
}

func NewMemory() *Memory { return &Memory{m: map[string]core.SymbolState{}} }

func (s *Memory) Load(ctx context.Context) (map[string]core.SymbolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.SymbolState, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *Memory) Save(ctx context.Context, st core.SymbolState) error {
	s.mu.Lock()
	s.m[st.Symbol] = st
	s.mu.Unlock()
	return nil
}
