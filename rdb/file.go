package rdb

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/exp/mmap"
)

var (
	// ErrNoDirectory indicates no snapshot directory was configured
	ErrNoDirectory = errors.New("rdb: no directory configured")

	// ErrNoFilename indicates no snapshot filename was configured
	ErrNoFilename = errors.New("rdb: no filename configured")
)

// LoadFile reads the snapshot at dir/filename and loads it into sink.
// The file contents are copied into a buffer that is released when the load
// returns.
func LoadFile(dir, filename string, sink Sink, opts ...Option) (Stats, error) {
	if dir == "" {
		return Stats{}, ErrNoDirectory
	}
	if filename == "" {
		return Stats{}, ErrNoFilename
	}

	data, err := readFile(filepath.Join(dir, filename))
	if err != nil {
		return Stats{}, err
	}

	return Load(data, sink, opts...)
}

func readFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && len(data) > 0 {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return data, nil
}
