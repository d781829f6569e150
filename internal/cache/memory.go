package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a process-local LRU cache.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

// NewMemory creates an in-memory cache bounded to capacity entries.
func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}
	return &Memory{entries: entries}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.entries.Add(key, value)
	return nil
}

func (m *Memory) Close() error {
	m.entries.Purge()
	return nil
}
