package rdb

import "encoding/binary"

// AppendLength appends the length encoding of n to dst using the smallest
// of the 6, 14 and 32 bit forms
func AppendLength(dst []byte, n uint32) []byte {
	switch {
	case n < 1<<6:
		return append(dst, byte(n))
	case n < 1<<14:
		return append(dst, byte(Len14Bit<<6)|byte(n>>8), byte(n))
	default:
		dst = append(dst, byte(Len32Bit<<6))
		return binary.BigEndian.AppendUint32(dst, n)
	}
}

// AppendString appends a length-prefixed string to dst
func AppendString(dst []byte, s string) []byte {
	dst = AppendLength(dst, uint32(len(s)))
	return append(dst, s...)
}
