// Package protocol implements the request framing and response encoding of
// the Redis Serialization Protocol (RESP) as spoken by redis-lite.
//
// Requests are decoded one read at a time with ParseFrame, which assumes the
// read holds exactly one complete frame:
//
//	buf := make([]byte, protocol.MaxFrameSize)
//	n, _ := conn.Read(buf)
//	cmd, err := protocol.ParseFrame(buf[:n])
//
// Command tokens are lower-cased unless WithPreservedCase is given; the
// tokens as received stay available in Command.Raw.
//
// Responses are written with Writer:
//
//	w := protocol.NewWriter(conn)
//	w.WriteDeclaredArgs(cmd) // ECHO
//	w.Flush()
//
// Reader decodes replies and is used by clients of the server.
package protocol
