// Package lua provides Redis-compatible Lua script execution functionality.
//
// Scripts run in a fresh gopher-lua state per call with the base, table,
// string and math libraries loaded. The environment includes:
//   - KEYS and ARGV tables passed from the client
//   - redis.call() and redis.pcall() for GET, SET [PX], KEYS, PING and ECHO
//   - redis.status_reply() and redis.error_reply()
//
// Reply converts a script result into the RESP value returned to clients.
package lua
