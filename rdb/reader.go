package rdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Length encoding tags, stored in the top two bits of the first length byte
const (
	Len6Bit    = 0
	Len14Bit   = 1
	Len32Bit   = 2
	LenSpecial = 3
)

var (
	// ErrTruncated indicates a read past the end of the snapshot buffer
	ErrTruncated = errors.New("rdb: truncated data")
)

// Reader is a cursor over a snapshot buffer. All reads are bounds checked.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader positioned at the start of data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current cursor position
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the total buffer length
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// truncated builds a wrapped ErrTruncated describing the failed read
func (r *Reader) truncated(need int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, need, r.pos, r.Remaining())
}

// PeekByte returns the next byte without advancing
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.truncated(1)
	}
	return r.data[r.pos], nil
}

// ReadByte reads a single byte
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.PeekByte()
	if err != nil {
		return 0, err
	}
	r.pos++
	return b, nil
}

// ReadN reads exactly n bytes. The returned slice aliases the buffer.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, r.truncated(n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes
func (r *Reader) Skip(n int) error {
	_, err := r.ReadN(n)
	return err
}

// ReadLengthEncoding reads a length-encoded integer and also reports the
// encoding tag of the first byte
func (r *Reader) ReadLengthEncoding() (uint64, int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	tag := int(b&0xC0) >> 6
	switch tag {
	case Len6Bit:
		return uint64(b & 0x3F), tag, nil

	case Len14Bit:
		b2, err := r.ReadByte()
		if err != nil {
			return 0, tag, err
		}
		return uint64(b&0x3F)<<8 | uint64(b2), tag, nil

	case Len32Bit:
		raw, err := r.ReadN(4)
		if err != nil {
			return 0, tag, err
		}
		return uint64(binary.BigEndian.Uint32(raw)), tag, nil

	default:
		// Integer and compressed encodings are not decoded; the low six
		// bits are taken as a plain length.
		return uint64(b & 0x3F), tag, nil
	}
}

// ReadLength reads a length-encoded integer
func (r *Reader) ReadLength() (uint64, error) {
	n, _, err := r.ReadLengthEncoding()
	return n, err
}

// ReadString reads a length-prefixed string. Invalid UTF-8 sequences are
// replaced with U+FFFD rather than reported.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	if length > uint64(r.Remaining()) {
		return "", r.truncated(int(min(length, uint64(^uint32(0)))))
	}

	raw, err := r.ReadN(int(length))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(raw), "�"), nil
}
