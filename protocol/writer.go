package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// lineBreaks keeps status and error payloads on a single line
var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// Writer encodes RESP responses onto a buffered stream. Nothing reaches the
// underlying writer until Flush.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new RESP protocol writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// WriteValue writes a RESP value to the output stream
func (w *Writer) WriteValue(v Value) error {
	switch v.Type {
	case TypeSimpleString:
		return w.WriteSimpleString(string(v.Data))
	case TypeError:
		return w.WriteError(string(v.Data))
	case TypeInteger:
		return w.WriteInteger(v.Integer)
	case TypeBulkString:
		if v.IsNull {
			return w.WriteNullBulkString()
		}
		return w.WriteBulkString(v.Data)
	case TypeArray:
		if v.IsNull {
			return w.writeHeader(TypeArray, -1)
		}
		return w.WriteArray(v.Array)
	default:
		return fmt.Errorf("unsupported value type: %c", v.Type)
	}
}

// WriteSimpleString writes a status line. Line breaks in s become spaces.
func (w *Writer) WriteSimpleString(s string) error {
	return w.writeLine(TypeSimpleString, lineBreaks.Replace(s))
}

// WriteError writes an error line. Line breaks in msg become spaces.
func (w *Writer) WriteError(msg string) error {
	return w.writeLine(TypeError, lineBreaks.Replace(msg))
}

// WriteInteger writes an integer
func (w *Writer) WriteInteger(n int64) error {
	return w.writeLine(TypeInteger, strconv.FormatInt(n, 10))
}

// WriteBulkString writes data as a bulk string using its actual length
func (w *Writer) WriteBulkString(data []byte) error {
	return w.writeBulk(len(data), data)
}

// WriteBulkStringFromString writes a bulk string from a string
func (w *Writer) WriteBulkStringFromString(s string) error {
	return w.writeBulk(len(s), []byte(s))
}

// WriteNullBulkString writes a null bulk string
func (w *Writer) WriteNullBulkString() error {
	return w.writeHeader(TypeBulkString, -1)
}

// WriteArray writes an array of values
func (w *Writer) WriteArray(values []Value) error {
	if err := w.writeHeader(TypeArray, len(values)); err != nil {
		return err
	}
	for _, value := range values {
		if err := w.WriteValue(value); err != nil {
			return err
		}
	}
	return nil
}

// WriteStringArray writes items as an array of bulk strings
func (w *Writer) WriteStringArray(items []string) error {
	if err := w.writeHeader(TypeArray, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.WriteBulkStringFromString(item); err != nil {
			return err
		}
	}
	return nil
}

// WriteDeclaredArgs echoes the arguments of cmd, excluding its name, as
// consecutive bulk strings. Each length header repeats the length the client
// declared for that argument, not the length of the token itself.
func (w *Writer) WriteDeclaredArgs(cmd *Command) error {
	for i := 1; i < len(cmd.Args); i++ {
		if err := w.writeBulk(cmd.DeclaredLength(i), []byte(cmd.Args[i])); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand writes a Redis command as a RESP array
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	return w.WriteStringArray(append([]string{cmd}, args...))
}

// WriteOK writes a simple "OK" response
func (w *Writer) WriteOK() error {
	return w.WriteSimpleString("OK")
}

// WritePONG writes a simple "PONG" response
func (w *Writer) WritePONG() error {
	return w.WriteSimpleString("PONG")
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeBulk(declared int, data []byte) error {
	if err := w.writeHeader(TypeBulkString, declared); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.writeCRLF()
}

func (w *Writer) writeHeader(t ValueType, n int) error {
	return w.writeLine(t, strconv.Itoa(n))
}

func (w *Writer) writeLine(t ValueType, s string) error {
	if err := w.bw.WriteByte(byte(t)); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	return w.writeCRLF()
}

// writeCRLF writes the CRLF terminator
func (w *Writer) writeCRLF() error {
	_, err := w.bw.WriteString(CRLF)
	return err
}
