package lru

// Set is a bounded set of values with least-recently-used eviction.
type Set[V comparable] struct {
	m *Map[V, struct{}]
}

func NewSet[V comparable](capacity int) *Set[V] {
	return &Set[V]{m: NewMap[V, struct{}](capacity)}
}

// Put inserts a value that must not already be present.
func (s *Set[V]) Put(value V) {
	s.m.Put(value, struct{}{})
}

// PutSafe inserts value if it is absent and reports whether it did.
func (s *Set[V]) PutSafe(value V) bool {
	return s.m.PutSafe(value, struct{}{})
}

// Get reports whether value is present and marks it most recently used.
func (s *Set[V]) Get(value V) bool {
	_, ok := s.m.Get(value)
	return ok
}

// Exists reports whether value is present without touching its recency.
func (s *Set[V]) Exists(value V) bool {
	return s.m.Exists(value)
}

func (s *Set[V]) Size() int {
	return s.m.Size()
}

func (s *Set[V]) Capacity() int {
	return s.m.Capacity()
}
