package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

const (
	// CRLF is the Redis protocol line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size accepted for a bulk string reply
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum element count accepted for an array reply
	maxArraySize = 1024 * 1024
)

var crlfBytes = []byte(CRLF)

// Reader decodes RESP replies from a stream. The server reads requests with
// ParseFrame; Reader is the client side of the same connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new streaming RESP reader
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadNext reads the next RESP value from the stream
func (r *Reader) ReadNext() (Value, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch ValueType(typeByte) {
	case TypeSimpleString, TypeError:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: ValueType(typeByte), Data: line}, nil

	case TypeInteger:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer: %s", line)
		}
		return Value{Type: TypeInteger, Integer: n}, nil

	case TypeBulkString:
		return r.readBulkString()

	case TypeArray:
		return r.readArray()

	default:
		return Value{}, fmt.Errorf("unknown RESP type: %q (0x%02x)", typeByte, typeByte)
	}
}

func (r *Reader) readBulkString() (Value, error) {
	length, err := r.readLength(maxBulkSize)
	if err != nil {
		return Value{}, fmt.Errorf("invalid bulk string: %w", err)
	}
	if length == -1 {
		return NullBulkString(), nil
	}

	data := make([]byte, length+2)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return Value{}, err
	}
	if !bytes.HasSuffix(data, crlfBytes) {
		return Value{}, fmt.Errorf("bulk string of %d bytes not terminated by CRLF", length)
	}

	return Value{Type: TypeBulkString, Data: data[:length]}, nil
}

func (r *Reader) readArray() (Value, error) {
	length, err := r.readLength(maxArraySize)
	if err != nil {
		return Value{}, fmt.Errorf("invalid array: %w", err)
	}
	if length == -1 {
		return Value{Type: TypeArray, IsNull: true}, nil
	}

	array := make([]Value, length)
	for i := range array {
		if array[i], err = r.ReadNext(); err != nil {
			return Value{}, err
		}
	}

	return Value{Type: TypeArray, Array: array}, nil
}

// readLength reads a length header line. -1 denotes a null value.
func (r *Reader) readLength(limit int64) (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad length %q", line)
	}
	if n < -1 || n > limit {
		return 0, fmt.Errorf("length %d out of range", n)
	}
	return n, nil
}

// readLine reads a line terminated by CRLF
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}
	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, fmt.Errorf("missing CRLF terminator in %q", line)
	}
	return line[:len(line)-2], nil
}
