package rdb

import (
	"errors"
	"fmt"
	"time"
)

// RDB format constants
const (
	Magic = "REDIS"

	OpcodeEOF       = 0xFF
	OpcodeSelectDB  = 0xFE
	OpcodeExpirySec = 0xFD
	OpcodeExpiryMs  = 0xFC
	OpcodeResizeDB  = 0xFB
	OpcodeAux       = 0xFA

	TypeString = 0x00
)

var (
	// ErrBadMagic indicates the buffer does not start with the REDIS magic string
	ErrBadMagic = errors.New("rdb: invalid magic header")

	// ErrUnsupportedType indicates a value type other than string
	ErrUnsupportedType = errors.New("rdb: unsupported value type")
)

// Logger receives loader diagnostics as key/value pairs
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Sink receives decoded key/value pairs. deadline is nil for keys without
// an expiry.
type Sink interface {
	OnKey(key, value string, deadline *time.Time) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(key, value string, deadline *time.Time) error

// OnKey calls f
func (f SinkFunc) OnKey(key, value string, deadline *time.Time) error {
	return f(key, value, deadline)
}

// Setter is the storage capability needed to populate a store from a snapshot
type Setter interface {
	Set(key string, value []byte, expiry *time.Time) error
}

// StorageSink returns a Sink that writes every key into s
func StorageSink(s Setter) Sink {
	return SinkFunc(func(key, value string, deadline *time.Time) error {
		return s.Set(key, []byte(value), deadline)
	})
}

// Stats summarizes a completed load
type Stats struct {
	Keys         int64 // keys delivered to the sink
	Expiring     int64 // keys delivered with a deadline
	Tables       int   // hash-table-size sections scanned
	SkippedBytes int64 // unrecognized bytes skipped by the scanner
	ReachedEOF   bool  // scanning stopped at the end-of-file opcode
}

// Option configures a load
type Option func(*loader)

// WithLogger sets the logger used for load diagnostics
func WithLogger(logger Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	r      *Reader
	sink   Sink
	logger Logger
	stats  Stats
}

// Load scans a snapshot buffer and delivers every key to sink. Keys already
// delivered when an error occurs stay delivered.
func Load(data []byte, sink Sink, opts ...Option) (Stats, error) {
	l := &loader{
		r:    NewReader(data),
		sink: sink,
	}
	for _, opt := range opts {
		opt(l)
	}

	err := l.run()
	return l.stats, err
}

func (l *loader) logDebug(msg string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func (l *loader) run() error {
	magic, err := l.r.ReadN(len(Magic))
	if err != nil || string(magic) != Magic {
		return ErrBadMagic
	}

	for l.r.Remaining() > 0 {
		opcode, err := l.r.ReadByte()
		if err != nil {
			return err
		}

		switch opcode {
		case OpcodeEOF:
			l.stats.ReachedEOF = true
			return nil

		case OpcodeAux:
			// Aux key/value bytes are left to the single-byte fallback below.

		case OpcodeSelectDB:
			index, err := l.r.ReadByte()
			if err != nil {
				return fmt.Errorf("failed to read database index: %w", err)
			}
			l.logDebug("Snapshot database selector", "db", index)

		case OpcodeResizeDB:
			if err := l.readTable(); err != nil {
				return err
			}

		default:
			l.stats.SkippedBytes++
		}
	}

	return nil
}

// readTable reads the hash-table-size header and the entries it announces
func (l *loader) readTable() error {
	total, err := l.r.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read table size: %w", err)
	}
	expires, err := l.r.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read expires size: %w", err)
	}
	l.stats.Tables++
	l.logDebug("Snapshot table", "keys", total, "expires", expires)

	for i := 0; i < int(total); i++ {
		if err := l.readEntry(); err != nil {
			return fmt.Errorf("entry %d of %d: %w", i+1, total, err)
		}
	}

	return nil
}

// readEntry reads one key/value pair, optionally preceded by an expiry opcode
func (l *loader) readEntry() error {
	next, err := l.r.PeekByte()
	if err != nil {
		return err
	}

	var deadline *time.Time
	switch next {
	case OpcodeExpiryMs:
		l.r.pos++
		raw, err := l.r.ReadN(8)
		if err != nil {
			return fmt.Errorf("failed to read expiry timestamp: %w", err)
		}
		t := time.UnixMilli(int64(reverseUint(raw)))
		deadline = &t

	case OpcodeExpirySec:
		l.r.pos++
		raw, err := l.r.ReadN(4)
		if err != nil {
			return fmt.Errorf("failed to read expiry timestamp: %w", err)
		}
		t := time.Unix(int64(reverseUint(raw)), 0)
		deadline = &t
	}

	key, value, err := l.readKeyValue()
	if err != nil {
		return err
	}

	if err := l.sink.OnKey(key, value, deadline); err != nil {
		return err
	}

	l.stats.Keys++
	if deadline != nil {
		l.stats.Expiring++
		l.logDebug("Snapshot key", "key", key, "expires_at", deadline.UnixMilli())
	} else {
		l.logDebug("Snapshot key", "key", key)
	}
	return nil
}

// readKeyValue reads a value-type byte followed by the key and value strings
func (l *loader) readKeyValue() (string, string, error) {
	valueType, err := l.r.ReadByte()
	if err != nil {
		return "", "", err
	}
	if valueType != TypeString {
		return "", "", fmt.Errorf("%w: 0x%02x at offset %d", ErrUnsupportedType, valueType, l.r.Pos()-1)
	}

	key, err := l.r.ReadString()
	if err != nil {
		return "", "", fmt.Errorf("failed to read key: %w", err)
	}
	value, err := l.r.ReadString()
	if err != nil {
		return "", "", fmt.Errorf("failed to read value for key %s: %w", key, err)
	}
	return key, value, nil
}

// reverseUint interprets raw as a little-endian unsigned integer, i.e. the
// bytes reversed and read big-endian
func reverseUint(raw []byte) uint64 {
	var n uint64
	for i := len(raw) - 1; i >= 0; i-- {
		n = n<<8 | uint64(raw[i])
	}
	return n
}
