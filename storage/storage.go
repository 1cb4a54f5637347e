package storage

import (
	"errors"
	"time"
)

// ErrUnsupportedPattern is returned by Keys for any pattern other than "*"
var ErrUnsupportedPattern = errors.New("storage: only the '*' pattern is supported")

// Storage defines the key-value operations served to clients
type Storage interface {
	// Get returns a copy of the value stored at key. Expired keys are
	// removed on read and reported absent.
	Get(key string) ([]byte, bool)

	// Set overwrites the value at key. A nil expiry clears any deadline
	// the key had, so the new value never expires.
	Set(key string, value []byte, expiry *time.Time) error

	// Keys lists present keys matching pattern
	Keys(pattern string) ([]string, error)

	// KeyCount returns the number of stored keys, including expired keys
	// that have not been read yet
	KeyCount() int64
}

// StorageObserver provides hooks for storage events
type StorageObserver interface {
	OnKeySet(key string, value []byte)
	OnKeyExpired(key string)
}
