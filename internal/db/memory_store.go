package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore holds collections in process. With a snapshot path every
// save rewrites the snapshot file, so data survives restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	path string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// NewMemoryStoreFromPath loads the snapshot at path if it exists.
func NewMemoryStoreFromPath(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.path = path
	if path == "" {
		return s, nil
	}
	snap, err := ReadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	for name, payload := range snap {
		s.data[name] = []byte(payload)
	}
	return s, nil
}

func (s *MemoryStore) Load(_ context.Context, collection string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[collection]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, collection string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[collection]
	s.data[collection] = append([]byte(nil), data...)
	if s.path == "" {
		return nil
	}
	if err := writeSnapshot(s.path, s.snapshotLocked()); err != nil {
		if had {
			s.data[collection] = prev
		} else {
			delete(s.data, collection)
		}
		return err
	}
	return nil
}

// Snapshot copies every collection payload.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *MemoryStore) snapshotLocked() Snapshot {
	out := make(Snapshot, len(s.data))
	for name, payload := range s.data {
		out[name] = json.RawMessage(append([]byte(nil), payload...))
	}
	return out
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Snapshot maps collection names to their JSON array payloads. It is the
// on-disk format of the memory backend and the import format of the
// migrate command.
type Snapshot map[string]json.RawMessage

func ReadSnapshot(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

func writeSnapshot(path string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
