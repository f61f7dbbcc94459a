package model

import "sync"

// Scope is the runtime context of one scenario execution. Steps share state
// through it; its final contents are kept on the ScenarioResult.
type Scope struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]any)}
}

// Set stores value under key, keeping first-insertion order.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Keys returns the keys in insertion order.
func (s *Scope) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Snapshot copies the current contents.
func (s *Scope) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
