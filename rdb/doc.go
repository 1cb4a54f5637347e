// Package rdb decodes legacy Redis snapshot (RDB) files into a key sink.
//
// The decoder works over an in-memory buffer through a bounds-checked
// Reader: every fixed-size or length-prefixed read either succeeds or
// returns ErrTruncated, it never indexes past the end of the data.
//
// Basic usage:
//
//	stats, err := rdb.LoadFile("/var/lib/redis", "dump.rdb", rdb.StorageSink(store))
//	if err != nil {
//		log.Printf("snapshot not loaded: %v", err)
//	}
//	fmt.Printf("loaded %d keys\n", stats.Keys)
//
// Only string values are understood. The scanner is opcode driven and
// best-effort: unknown single bytes are skipped, and the end-of-file opcode
// stops scanning without inspecting the trailing checksum.
package rdb
