package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the type of a RESP value
type ValueType byte

const (
	// RESP value types
	TypeSimpleString ValueType = '+'
	TypeError        ValueType = '-'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'
	TypeArray        ValueType = '*'
)

// Value represents a parsed RESP value
type Value struct {
	Type    ValueType
	Data    []byte
	Integer int64
	Array   []Value
	IsNull  bool
}

// BulkString returns a bulk string value holding s
func BulkString(s string) Value {
	return Value{Type: TypeBulkString, Data: []byte(s)}
}

// NullBulkString returns the null bulk string value
func NullBulkString() Value {
	return Value{Type: TypeBulkString, IsNull: true}
}

// StringArray returns an array of bulk strings
func StringArray(items []string) Value {
	arr := make([]Value, len(items))
	for i, item := range items {
		arr[i] = BulkString(item)
	}
	return Value{Type: TypeArray, Array: arr}
}

// String returns a string representation of the value
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeError:
		return string(v.Data)
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case TypeBulkString:
		if v.IsNull {
			return "(nil)"
		}
		return string(v.Data)
	case TypeArray:
		if v.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", v.Type)
	}
}

// IsError returns true if this is an error value
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// Command is one parsed request frame. Args[0] is the command name.
type Command struct {
	// Count is the element count announced by the array header
	Count int

	// Lengths holds the declared bulk lengths in frame order. They are
	// never checked against the decoded tokens.
	Lengths []int

	// Args holds the case-folded tokens
	Args []string

	// Raw holds the tokens exactly as received
	Raw []string
}

// Name returns the command name, or "" for a frame without tokens
func (c *Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// DeclaredLength returns the declared length of token i, or the decoded
// length when the frame declared fewer lengths than it carried tokens
func (c *Command) DeclaredLength(i int) int {
	if i >= 0 && i < len(c.Lengths) {
		return c.Lengths[i]
	}
	if i >= 0 && i < len(c.Raw) {
		return len(c.Raw[i])
	}
	return 0
}

// String returns a string representation of the command
func (c *Command) String() string {
	return strings.Join(c.Args, " ")
}
