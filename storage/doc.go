// Package storage provides the expiring key-value store behind redis-lite.
//
// Basic usage:
//
//	store := storage.NewMemory()
//	deadline := time.Now().Add(100 * time.Millisecond)
//	err := store.Set("key", []byte("value"), &deadline)
//	value, exists := store.Get("key")
//
// Expiry is lazy: a key past its deadline is removed only when it is read
// with Get. There is no background sweep, so Keys and KeyCount may still
// include expired keys that nobody has read.
package storage
