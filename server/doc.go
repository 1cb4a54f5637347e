// Package server implements the redis-lite TCP server.
//
// Every accepted connection runs on its own goroutine. A connection reads at
// most protocol.MaxFrameSize bytes at a time and treats each read as one
// complete request frame. Frames are resolved into Request values and
// executed by a Dispatcher that shares one Storage and one Settings
// instance across all connections.
package server
