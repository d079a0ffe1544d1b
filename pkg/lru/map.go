// Package lru provides bounded containers that drop the least recently used
// entry once capacity is exceeded. They are not safe for concurrent use.
package lru

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Map is a key-value store with least-recently-used eviction.
// Put, PutSafe and Get count as a use. Exists does not.
type Map[K comparable, V any] struct {
	capacity int
	entries  *simplelru.LRU[K, V]
}

// NewMap panics if capacity is not positive.
func NewMap[K comparable, V any](capacity int) *Map[K, V] {
	return NewMapWithEvict[K, V](capacity, nil)
}

// NewMapWithEvict is NewMap with a callback run for every evicted entry.
func NewMapWithEvict[K comparable, V any](capacity int, onEvict func(K, V)) *Map[K, V] {
	var cb simplelru.EvictCallback[K, V]
	if onEvict != nil {
		cb = simplelru.EvictCallback[K, V](onEvict)
	}

	entries, err := simplelru.NewLRU[K, V](capacity, cb)
	if err != nil {
		panic(fmt.Sprintf("lru: invalid capacity %d: %v", capacity, err))
	}

	return &Map[K, V]{
		capacity: capacity,
		entries:  entries,
	}
}

// Put inserts a key that must not already be present.
func (m *Map[K, V]) Put(key K, value V) {
	if m.entries.Contains(key) {
		panic(fmt.Sprintf("lru: put of existing key %v", key))
	}
	m.entries.Add(key, value)
}

// PutSafe inserts key if it is absent and reports whether it did.
func (m *Map[K, V]) PutSafe(key K, value V) bool {
	if m.entries.Contains(key) {
		return false
	}
	m.entries.Add(key, value)
	return true
}

// Get returns the value for key and marks it most recently used.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.entries.Get(key)
}

// Exists reports whether key is present without touching its recency.
func (m *Map[K, V]) Exists(key K) bool {
	return m.entries.Contains(key)
}

// Remove deletes key and reports whether it was present. The evict callback
// runs for a removed entry.
func (m *Map[K, V]) Remove(key K) bool {
	return m.entries.Remove(key)
}

func (m *Map[K, V]) Size() int {
	return m.entries.Len()
}

func (m *Map[K, V]) Capacity() int {
	return m.capacity
}

// Keys returns keys from least to most recently used.
func (m *Map[K, V]) Keys() []K {
	return m.entries.Keys()
}
