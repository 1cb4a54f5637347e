package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxFrameSize is the number of bytes read per request. Larger frames are
// truncated by the transport.
const MaxFrameSize = 1024

var (
	// ErrInvalidEncoding indicates the frame is not valid UTF-8
	ErrInvalidEncoding = errors.New("protocol: frame is not valid UTF-8")

	// ErrEmptyFrame indicates the frame contains no lines
	ErrEmptyFrame = errors.New("protocol: empty frame")

	// ErrMalformedFrame indicates a missing or invalid array header or bulk length
	ErrMalformedFrame = errors.New("protocol: malformed frame")
)

// ParseOption configures ParseFrame
type ParseOption func(*parseConfig)

type parseConfig struct {
	preserveCase bool
}

// WithPreservedCase keeps argument tokens in their received case. The
// command name is always folded.
func WithPreservedCase() ParseOption {
	return func(c *parseConfig) {
		c.preserveCase = true
	}
}

// ParseFrame decodes one request frame. The buffer may carry trailing NUL
// padding from a fixed-size read.
func ParseFrame(buf []byte, opts ...ParseOption) (*Command, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	buf = bytes.TrimRight(buf, "\x00")
	if !utf8.Valid(buf) {
		return nil, ErrInvalidEncoding
	}

	lines := splitLines(string(buf))
	if len(lines) == 0 {
		return nil, ErrEmptyFrame
	}

	header := lines[0]
	if len(header) < 2 || header[0] != byte(TypeArray) {
		return nil, fmt.Errorf("%w: expected array header, got %q", ErrMalformedFrame, header)
	}
	count, err := strconv.Atoi(header[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length %q", ErrMalformedFrame, header[1:])
	}

	// A Caser holds state and cannot be shared between connections.
	lower := cases.Lower(language.Und)
	hint := min(max(count, 0), len(lines))
	cmd := &Command{
		Count:   count,
		Lengths: make([]int, 0, hint),
		Args:    make([]string, 0, hint),
		Raw:     make([]string, 0, hint),
	}

	for _, line := range lines[1:] {
		if line[0] == byte(TypeBulkString) {
			n, err := strconv.Atoi(line[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: invalid bulk length %q", ErrMalformedFrame, line[1:])
			}
			cmd.Lengths = append(cmd.Lengths, n)
			continue
		}

		cmd.Raw = append(cmd.Raw, line)
		if cfg.preserveCase && len(cmd.Args) > 0 {
			cmd.Args = append(cmd.Args, line)
		} else {
			cmd.Args = append(cmd.Args, lower.String(line))
		}
	}

	return cmd, nil
}

// splitLines splits on CRLF and drops empty lines
func splitLines(s string) []string {
	parts := strings.Split(s, CRLF)
	lines := parts[:0]
	for _, p := range parts {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
