package server

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/redis-lite/protocol"
	"github.com/raniellyferreira/redis-lite/storage"
)

// Simple RESP client for testing
type testClient struct {
	conn   net.Conn
	reader *protocol.Reader
}

func newTestClient(addr string) (*testClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &testClient{
		conn:   conn,
		reader: protocol.NewReader(conn),
	}, nil
}

func (c *testClient) Close() error {
	return c.conn.Close()
}

func encodeCommand(cmd string, args ...string) string {
	parts := append([]string{cmd}, args...)
	resp := "*" + strconv.Itoa(len(parts)) + "\r\n"
	for _, part := range parts {
		resp += "$" + strconv.Itoa(len(part)) + "\r\n" + part + "\r\n"
	}
	return resp
}

// sendCommand writes one frame and returns the reply rendered as a string:
// errors keep their leading '-', null replies render as (nil) and arrays as
// [a, b]
func (c *testClient) sendCommand(cmd string, args ...string) (string, error) {
	if _, err := c.conn.Write([]byte(encodeCommand(cmd, args...))); err != nil {
		return "", err
	}

	value, err := c.reader.ReadNext()
	if err != nil {
		return "", err
	}
	if value.IsError() {
		return "-" + string(value.Data), nil
	}
	return value.String(), nil
}

// sendRaw writes frame and reads exactly n reply bytes
func (c *testClient) sendRaw(frame string, n int) (string, error) {
	if _, err := c.conn.Write([]byte(frame)); err != nil {
		return "", err
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	_, err := io.ReadFull(c.conn, buf)
	return string(buf), err
}

func startTestServer(t *testing.T, settings map[string]string, opts ...Option) (*Server, *storage.MemoryStorage) {
	t.Helper()

	stor := storage.NewMemory()
	server := NewServer("127.0.0.1:0", NewDispatcher(stor, NewSettings(settings)), opts...)
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	return server, stor
}

func connect(t *testing.T, server *Server) *testClient {
	t.Helper()

	client, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServer_EchoScenario(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	resp, err := client.sendRaw("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n", len("$2\r\nhi\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if resp != "$2\r\nhi\r\n" {
		t.Errorf("expected %q, got %q", "$2\r\nhi\r\n", resp)
	}
}

func TestServer_SetGetScenario(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	resp, err := client.sendRaw("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n", len("+OK\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if resp != "+OK\r\n" {
		t.Errorf("SET reply = %q, want +OK", resp)
	}

	resp, err = client.sendRaw("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", len("$1\r\nv\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if resp != "$1\r\nv\r\n" {
		t.Errorf("GET reply = %q, want %q", resp, "$1\r\nv\r\n")
	}
}

func TestServer_BasicCommands(t *testing.T) {
	server, _ := startTestServer(t, map[string]string{
		ParamDir:        "/var/lib/redis-lite",
		ParamDBFilename: "dump.rdb",
	})
	client := connect(t, server)

	tests := []struct {
		cmd      string
		args     []string
		expected string
	}{
		{"PING", nil, "PONG"},
		{"PING", []string{"hello"}, "hello"},
		{"GET", []string{"missing"}, "(nil)"},
		{"SET", []string{"testkey", "testvalue"}, "OK"},
		{"GET", []string{"testkey"}, "testvalue"},
		{"SET", []string{"another", "1"}, "OK"},
		{"KEYS", []string{"*"}, "[another, testkey]"},
		{"CONFIG", []string{"GET", "dir"}, "[dir, /var/lib/redis-lite]"},
		{"CONFIG", []string{"GET", "dbfilename"}, "[dbfilename, dump.rdb]"},
		{"CONFIG", []string{"GET", "maxmemory"}, "[maxmemory, ]"},
		{"CONFIG", []string{"SET", "dir", "/elsewhere"}, "OK"},
		{"CONFIG", []string{"GET", "dir"}, "[dir, /var/lib/redis-lite]"},
		{"INFO", nil, "role:master"},
		{"INFO", []string{"replication"}, "role:master"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand(tt.cmd, tt.args...)
		if err != nil {
			t.Fatalf("%s %v: %v", tt.cmd, tt.args, err)
		}
		if resp != tt.expected {
			t.Errorf("%s %v = %q, want %q", tt.cmd, tt.args, resp, tt.expected)
		}
	}
}

func TestServer_EmptyKeys(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	resp, err := client.sendRaw(encodeCommand("KEYS", "*"), len("*0\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if resp != "*0\r\n" {
		t.Errorf("KEYS reply = %q, want *0", resp)
	}
}

func TestServer_ReplicaRole(t *testing.T) {
	server, _ := startTestServer(t, map[string]string{ParamReplicaOf: "localhost 6379"})
	client := connect(t, server)

	resp, err := client.sendCommand("INFO")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "role:slave" {
		t.Errorf("expected role:slave, got %s", resp)
	}
}

func TestServer_CaseFolding(t *testing.T) {
	t.Run("default folds values", func(t *testing.T) {
		server, _ := startTestServer(t, nil)
		client := connect(t, server)

		client.sendCommand("SET", "Greeting", "Hello")
		resp, _ := client.sendCommand("GET", "greeting")
		if resp != "hello" {
			t.Errorf("expected folded value hello, got %s", resp)
		}
	})

	t.Run("preserved case", func(t *testing.T) {
		server, _ := startTestServer(t, map[string]string{ParamDir: "/data"}, WithParseOptions(protocol.WithPreservedCase()))
		client := connect(t, server)

		if resp, _ := client.sendCommand("CONFIG", "GET", "DIR"); resp != "[dir, /data]" {
			t.Errorf("CONFIG GET DIR = %s, want [dir, /data]", resp)
		}

		client.sendCommand("SET", "Greeting", "Hello")
		resp, _ := client.sendCommand("GET", "Greeting")
		if resp != "Hello" {
			t.Errorf("expected Hello, got %s", resp)
		}
		resp, _ = client.sendCommand("GET", "greeting")
		if resp != "(nil)" {
			t.Errorf("expected keys to be case-sensitive, got %s", resp)
		}
	})
}

func TestServer_SetPX(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	stor := storage.NewMemory(storage.WithClock(clock))
	server := NewServer("127.0.0.1:0", NewDispatcher(stor, NewSettings(nil), WithClock(clock)))
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = server.Stop() }()
	client := connect(t, server)

	if resp, _ := client.sendCommand("SET", "session", "abc", "PX", "100"); resp != "OK" {
		t.Fatalf("SET PX = %s, want OK", resp)
	}

	advance(99 * time.Millisecond)
	if resp, _ := client.sendCommand("GET", "session"); resp != "abc" {
		t.Errorf("GET before deadline = %s, want abc", resp)
	}

	advance(time.Millisecond)
	if resp, _ := client.sendCommand("KEYS", "*"); resp != "[session]" {
		t.Errorf("KEYS before expired read = %s, want [session]", resp)
	}
	if resp, _ := client.sendCommand("GET", "session"); resp != "(nil)" {
		t.Errorf("GET after deadline = %s, want (nil)", resp)
	}
	if resp, _ := client.sendCommand("KEYS", "*"); resp != "[]" {
		t.Errorf("KEYS after expired read = %s, want []", resp)
	}
}

func TestServer_LuaScripts(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	resp, err := client.sendCommand("EVAL", "return 'hello world'", "0")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "hello world" {
		t.Errorf("expected 'hello world', got %s", resp)
	}

	resp, _ = client.sendCommand("EVAL", "return KEYS[1] .. ':' .. ARGV[1]", "1", "User", "ABC")
	if resp != "User:ABC" {
		t.Errorf("expected 'User:ABC', got %s", resp)
	}

	resp, _ = client.sendCommand("EVAL", "redis.call('SET', KEYS[1], ARGV[1]); return redis.call('GET', KEYS[1])", "1", "luakey", "luavalue")
	if resp != "luavalue" {
		t.Errorf("expected 'luavalue', got %s", resp)
	}

	resp, _ = client.sendCommand("EVAL", "return redis.call('SET', 'k', 'v')", "0")
	if resp != "OK" {
		t.Errorf("expected status OK, got %s", resp)
	}

	sha, _ := client.sendCommand("SCRIPT", "LOAD", "return 'Cached Script'")
	if len(sha) != 40 {
		t.Fatalf("expected SHA1 from SCRIPT LOAD, got %s", sha)
	}

	resp, _ = client.sendCommand("EVALSHA", sha, "0")
	if resp != "Cached Script" {
		t.Errorf("expected 'Cached Script', got %s", resp)
	}

	resp, _ = client.sendCommand("SCRIPT", "EXISTS", sha, "nonexistent")
	if resp != "[1, 0]" {
		t.Errorf("expected '[1, 0]', got %s", resp)
	}

	resp, _ = client.sendCommand("SCRIPT", "FLUSH")
	if resp != "OK" {
		t.Errorf("expected 'OK', got %s", resp)
	}

	resp, _ = client.sendCommand("SCRIPT", "EXISTS", sha)
	if resp != "[0]" {
		t.Errorf("expected '[0]', got %s", resp)
	}

	resp, _ = client.sendCommand("EVALSHA", sha, "0")
	if !strings.HasPrefix(resp, "-NOSCRIPT") {
		t.Errorf("expected NOSCRIPT error, got %s", resp)
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	tests := []struct {
		cmd    string
		args   []string
		prefix string
	}{
		{"UNKNOWNCMD", nil, "-ERR unknown command 'unknowncmd'"},
		{"GET", nil, "-ERR wrong number of arguments for 'get' command"},
		{"SET", []string{"k"}, "-ERR wrong number of arguments for 'set' command"},
		{"SET", []string{"k", "v", "PX", "soon"}, "-ERR value is not an integer or out of range"},
		{"SET", []string{"k", "v", "EX", "10"}, "-ERR syntax error"},
		{"SET", []string{"k", "v", "PX", "9223372036854775"}, "-ERR invalid expire time"},
		{"ECHO", nil, "-ERR wrong number of arguments for 'echo' command"},
		{"KEYS", []string{"user:*"}, "-ERR only the '*' pattern is supported"},
		{"CONFIG", []string{"RESETSTAT"}, "-ERR unknown subcommand"},
		{"EVAL", []string{"invalid lua syntax !!!", "0"}, "-ERR"},
		{"EVAL", []string{"return 1", "2", "onlyone"}, "-ERR Number of keys"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand(tt.cmd, tt.args...)
		if err != nil {
			t.Fatalf("%s %v: %v", tt.cmd, tt.args, err)
		}
		if !strings.HasPrefix(resp, tt.prefix) {
			t.Errorf("%s %v = %q, want prefix %q", tt.cmd, tt.args, resp, tt.prefix)
		}
	}

	if resp, _ := client.sendCommand("KEYS", "*"); resp != "[]" {
		t.Errorf("rejected SET stored a key: KEYS = %s", resp)
	}

	// Command errors leave the connection usable.
	if resp, _ := client.sendCommand("PING"); resp != "PONG" {
		t.Errorf("expected PONG after errors, got %s", resp)
	}
}

func TestServer_ScriptRepliesStayOnOneLine(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	tests := []struct {
		script string
		want   string
	}{
		{`return redis.error_reply('boom\r\n+OK')`, "-boom  +OK"},
		{`return redis.status_reply('fine\n:1')`, "fine :1"},
		{`return {err='bad\r\n$1'}`, "-bad  $1"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand("EVAL", tt.script, "0")
		if err != nil {
			t.Fatalf("EVAL %s: %v", tt.script, err)
		}
		if resp != tt.want {
			t.Errorf("EVAL %s = %q, want %q", tt.script, resp, tt.want)
		}

		// The next reply must belong to the next command.
		if resp, _ := client.sendCommand("PING"); resp != "PONG" {
			t.Fatalf("after EVAL %s: PING = %q, want PONG", tt.script, resp)
		}
	}
}

func TestServer_MalformedFrameClosesOnlyThatConnection(t *testing.T) {
	server, _ := startTestServer(t, nil)

	frames := map[string]string{
		"inline command": "PING\r\n",
		"invalid utf-8":  "*2\r\n$4\r\nECHO\r\n$2\r\n\xff\xfe\r\n",
	}

	healthy := connect(t, server)

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			bad := connect(t, server)
			if _, err := bad.conn.Write([]byte(frame)); err != nil {
				t.Fatal(err)
			}

			bad.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, err := bad.reader.ReadNext(); err == nil {
				t.Error("expected connection to be closed without a reply")
			}

			if resp, err := healthy.sendCommand("PING"); err != nil || resp != "PONG" {
				t.Errorf("healthy connection: %q, %v", resp, err)
			}
		})
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	server, stor := startTestServer(t, nil)

	const clients = 8
	const perClient = 25

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			client, err := newTestClient(server.Addr())
			if err != nil {
				t.Error(err)
				return
			}
			defer client.Close()

			for j := 0; j < perClient; j++ {
				key := fmt.Sprintf("c%d:k%d", i, j)
				if resp, err := client.sendCommand("SET", key, key); err != nil || resp != "OK" {
					t.Errorf("SET %s = %q, %v", key, resp, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if got := stor.KeyCount(); got != clients*perClient {
		t.Errorf("KeyCount() = %d, want %d", got, clients*perClient)
	}
}

func TestServer_StopClosesIdleConnections(t *testing.T) {
	stor := storage.NewMemory()
	server := NewServer("127.0.0.1:0", NewDispatcher(stor, nil))
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}

	client, err := newTestClient(server.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// Make sure the connection is being served before stopping.
	if resp, _ := client.sendCommand("PING"); resp != "PONG" {
		t.Fatalf("expected PONG, got %s", resp)
	}

	done := make(chan struct{})
	go func() {
		_ = server.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() did not return with an idle client connected")
	}
}

func TestServer_Stats(t *testing.T) {
	server, _ := startTestServer(t, nil)
	client := connect(t, server)

	_, _ = client.sendCommand("PING")
	_, _ = client.sendCommand("SET", "key", "value")
	_, _ = client.sendCommand("GET", "key")
	_, _ = client.sendCommand("GET")

	stats := server.Stats()

	if stats["connected_clients"].(int) != 1 {
		t.Errorf("expected 1 connected client, got %v", stats["connected_clients"])
	}
	if stats["total_commands"].(int64) != 4 {
		t.Errorf("expected 4 commands, got %v", stats["total_commands"])
	}
	if stats["total_errors"].(int64) != 1 {
		t.Errorf("expected 1 error, got %v", stats["total_errors"])
	}
	if stats["total_connections"].(int64) != 1 {
		t.Errorf("expected 1 connection, got %v", stats["total_connections"])
	}
}
