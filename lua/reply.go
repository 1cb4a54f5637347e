package lua

import (
	"strings"

	"github.com/raniellyferreira/redis-lite/protocol"
)

// Reply converts a script result returned by Eval into the RESP value sent
// to the client, following the Redis Lua-to-RESP conversion rules: true is
// the integer 1, false and nil are null, numbers are truncated to integers,
// and tables carrying an ok or err field become status or error replies.
func Reply(result interface{}) protocol.Value {
	switch v := result.(type) {
	case nil:
		return protocol.NullBulkString()
	case bool:
		if v {
			return protocol.Value{Type: protocol.TypeInteger, Integer: 1}
		}
		return protocol.NullBulkString()
	case string:
		return protocol.BulkString(v)
	case int64:
		return protocol.Value{Type: protocol.TypeInteger, Integer: v}
	case float64:
		return protocol.Value{Type: protocol.TypeInteger, Integer: int64(v)}
	case []interface{}:
		items := make([]protocol.Value, len(v))
		for i, item := range v {
			items[i] = Reply(item)
		}
		return protocol.Value{Type: protocol.TypeArray, Array: items}
	case map[string]interface{}:
		if msg, ok := v["err"].(string); ok {
			return protocol.Value{Type: protocol.TypeError, Data: []byte(singleLine(msg))}
		}
		if msg, ok := v["ok"].(string); ok {
			return protocol.Value{Type: protocol.TypeSimpleString, Data: []byte(singleLine(msg))}
		}
		return protocol.Value{Type: protocol.TypeArray, Array: []protocol.Value{}}
	default:
		return protocol.NullBulkString()
	}
}

// singleLine replaces the line breaks a status or error reply cannot carry
func singleLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
