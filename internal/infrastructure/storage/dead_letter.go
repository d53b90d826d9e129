// Package storage archives the bundles of failed deliveries so they can be
// inspected and replayed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
)

// ErrObjectNotFound is returned by Get for an unknown key.
var ErrObjectNotFound = errors.New("storage: object not found")

// DefaultPrefix is the key prefix of archived deliveries.
const DefaultPrefix = "dead-letter"

// DeadLetterKey builds dead-letter/YYYY/MM/DD/<correlation>/<delivery>.json.
// Path separators inside ids are replaced so each id stays one segment.
func DeadLetterKey(prefix string, at time.Time, correlationKey, deliveryID string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if correlationKey == "" {
		correlationKey = "_unknown"
	}
	at = at.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		at.Format("2006"), at.Format("01"), at.Format("02"),
		segment(correlationKey),
		segment(deliveryID)+".json",
	)
}

var segmentReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func segment(s string) string {
	return segmentReplacer.Replace(s)
}

// MemoryDeadLetterStore keeps archived payloads in process memory. Used when
// no object store is configured and in tests.
type MemoryDeadLetterStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryDeadLetterStore creates an empty store
func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{objects: make(map[string][]byte)}
}

// Put stores a copy of payload under key
func (s *MemoryDeadLetterStore) Put(_ context.Context, key string, payload []byte) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), payload...)
	return nil
}

// Get returns the payload stored under key
func (s *MemoryDeadLetterStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Keys returns the stored keys
func (s *MemoryDeadLetterStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
