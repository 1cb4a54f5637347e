package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MemoryStorage is an in-memory Storage guarded by a single reader/writer
// lock. Values and deadlines live in parallel maps; every key in expiry is
// also present in data.
type MemoryStorage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	expiry map[string]time.Time

	observers []StorageObserver
	now       func() time.Time
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an observer for set and expiry events
func WithObserver(observer StorageObserver) MemoryOption {
	return func(s *MemoryStorage) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// NewMemory creates a new in-memory storage instance
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		data:   make(map[string][]byte),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get retrieves a value by key
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	value, exists := s.data[key]
	if !exists {
		s.mu.RUnlock()
		return nil, false
	}

	if deadline, ok := s.expiry[key]; ok && s.expired(deadline) {
		s.mu.RUnlock()
		s.deleteExpiredKey(key)
		return nil, false
	}

	result := make([]byte, len(value))
	copy(result, value)
	s.mu.RUnlock()

	return result, true
}

// deleteExpiredKey removes key if it is still expired once the write lock
// is held. A concurrent Set may have replaced it in between.
func (s *MemoryStorage) deleteExpiredKey(key string) {
	s.mu.Lock()
	deadline, ok := s.expiry[key]
	if !ok || !s.expired(deadline) {
		s.mu.Unlock()
		return
	}
	delete(s.data, key)
	delete(s.expiry, key)
	s.mu.Unlock()

	for _, observer := range s.observers {
		observer.OnKeyExpired(key)
	}
}

func (s *MemoryStorage) expired(deadline time.Time) bool {
	return !s.now().Before(deadline)
}

// Set stores a value with optional expiration. Setting a key without an
// expiry clears any deadline left by an earlier Set.
func (s *MemoryStorage) Set(key string, value []byte, expiry *time.Time) error {
	stored := append([]byte(nil), value...)

	s.mu.Lock()
	s.data[key] = stored
	if expiry != nil {
		s.expiry[key] = *expiry
	} else {
		delete(s.expiry, key)
	}
	s.mu.Unlock()

	for _, observer := range s.observers {
		observer.OnKeySet(key, stored)
	}

	return nil
}

// Keys returns all stored keys in sorted order. Keys past their deadline
// are listed until they are read.
func (s *MemoryStorage) Keys(pattern string) ([]string, error) {
	if pattern != "*" {
		return nil, ErrUnsupportedPattern
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// KeyCount returns the number of keys in the store
func (s *MemoryStorage) KeyCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data))
}

// Digest returns an order-independent checksum of every key, value and
// deadline in the store. Two stores with equal contents have equal digests.
func (s *MemoryStorage) Digest() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var digest uint64
	h := xxhash.New()
	for key, value := range s.data {
		h.Reset()
		h.WriteString(key)
		h.Write([]byte{0})
		h.Write(value)
		if deadline, ok := s.expiry[key]; ok {
			h.WriteString(deadline.UTC().Format(time.RFC3339Nano))
		}
		digest ^= h.Sum64()
	}
	return digest
}
