// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"sync"
)

// MemoryCache is a map-backed resource.Cache that counts hits and writes.
type MemoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	Hits   int
	Writes int
	// Err, when set, is returned from every Get and Set.
	Err error
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

// Get implements resource.Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, false, c.Err
	}
	v, ok := c.data[key]
	if ok {
		c.Hits++
	}
	return v, ok, nil
}

// Set implements resource.Cache.
func (c *MemoryCache) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Writes++
	c.data[key] = append([]byte(nil), data...)
	return nil
}

// Keys returns the stored keys.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}
