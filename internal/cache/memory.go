// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is used when a non-positive size is requested.
const DefaultMemorySize = 256

// Memory is an in-process LRU cache. Stored and returned slices are copies.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

// NewMemory creates a Memory cache holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU: %w", err)
	}
	return &Memory{entries: entries}, nil
}

// Get implements resource.Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

// Set implements resource.Cache.
func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	m.entries.Add(key, slices.Clone(data))
	return nil
}

// Len reports the number of cached entries.
func (m *Memory) Len() int { return m.entries.Len() }
