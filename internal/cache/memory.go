package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process LRU cache.
type Memory[V any] struct {
	cache *lru.Cache[string, V]
}

// NewMemory creates a cache holding at most size entries.
func NewMemory[V any](size int) (*Memory[V], error) {
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Memory[V]{cache: c}, nil
}

// Get implements Cache.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	return m.cache.Get(key)
}

// Set implements Cache.
func (m *Memory[V]) Set(_ context.Context, key string, v V) {
	m.cache.Add(key, v)
}

// Len returns the current number of entries.
func (m *Memory[V]) Len() int {
	return m.cache.Len()
}
