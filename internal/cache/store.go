package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a stored value is missing or expired
var ErrNotFound = errors.New("not found")

// Store is a typed view over a Cache namespace. Every value of a Store
// shares one key prefix and one TTL.
type Store[T any] struct {
	cache  *Cache
	prefix string
	ttl    time.Duration
}

// NewStore creates a Store of kind on top of c
func NewStore[T any](c *Cache, kind string, ttl time.Duration) *Store[T] {
	return &Store[T]{cache: c, prefix: kind + ":", ttl: ttl}
}

// Put stores v under id, replacing any previous value
func (s *Store[T]) Put(id string, v T) error {
	return s.cache.Set(s.prefix+id, v, s.ttl, strings.TrimSuffix(s.prefix, ":"))
}

// Get returns the value stored under id or ErrNotFound
func (s *Store[T]) Get(id string) (T, error) {
	var v T
	found, err := s.cache.Get(s.prefix+id, &v)
	if err != nil {
		return v, err
	}
	if !found {
		return v, fmt.Errorf("%s %q: %w", strings.TrimSuffix(s.prefix, ":"), id, ErrNotFound)
	}
	return v, nil
}

// Delete removes the value stored under id
func (s *Store[T]) Delete(id string) {
	s.cache.Delete(s.prefix + id)
}

// IDs lists the live identifiers, sorted
func (s *Store[T]) IDs() []string {
	keys := s.cache.Keys(s.prefix)
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, s.prefix)
	}
	return ids
}

// List returns every live value ordered by identifier
func (s *Store[T]) List() ([]T, error) {
	var out []T
	for _, id := range s.IDs() {
		v, err := s.Get(id)
		if errors.Is(err, ErrNotFound) {
			continue // expired between IDs and Get
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Clear removes every value of the store and reports how many went
func (s *Store[T]) Clear() int {
	return s.cache.DeletePrefix(s.prefix)
}
