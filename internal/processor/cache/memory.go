package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"k8s.io/utils/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in a bounded in-process LRU. It only suits a
// single processor replica.
type MemoryStore struct {
	mu    sync.Mutex
	lru   *expirable.LRU[string, memoryEntry]
	clock clock.PassiveClock
}

// NewMemoryStore creates a store holding at most size entries. maxTTL is the
// longest ttl used with the store and bounds how long the LRU keeps an entry.
func NewMemoryStore(size int, maxTTL time.Duration, clk clock.PassiveClock) *MemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryStore{
		lru:   expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		clock: clk,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(key, memoryEntry{value: value, expiresAt: s.clock.Now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.lru.Add(key, memoryEntry{value: value, expiresAt: e.expiresAt})
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Remove(key)
	return nil
}
