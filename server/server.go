package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/raniellyferreira/redis-lite/protocol"
)

// Logger receives server diagnostics as key/value pairs
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives per-command measurements
type MetricsCollector interface {
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordNetworkBytes(bytes int64)
	RecordError(errorType string)
}

// Server accepts RESP connections and serves each on its own goroutine
type Server struct {
	dispatcher *Dispatcher

	// Server configuration
	addr      string
	parseOpts []protocol.ParseOption
	logger    Logger
	metrics   MetricsCollector

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	connCount    int64
	commandCount int64
	errorCount   int64
	mu           sync.RWMutex
}

// Client represents a connected client
type Client struct {
	id     string
	conn   net.Conn
	writer *protocol.Writer
	server *Server

	closeOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for connection events
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics MetricsCollector) Option {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithParseOptions sets the options passed to protocol.ParseFrame
func WithParseOptions(opts ...protocol.ParseOption) Option {
	return func(s *Server) {
		s.parseOpts = append(s.parseOpts, opts...)
	}
}

// NewServer creates a new server that will listen on addr
func NewServer(addr string, dispatcher *Dispatcher, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		dispatcher: dispatcher,
		addr:       addr,
		logger:     nopLogger{},
		metrics:    nopMetrics{},
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and starts accepting connections
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("Server listening", "addr", s.listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop closes the listener and every open connection and waits for their
// goroutines to exit
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	clientCount := 0
	s.clients.Range(func(key, value interface{}) bool {
		clientCount++
		return true
	})

	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"connected_clients": clientCount,
		"total_commands":    s.commandCount,
		"total_errors":      s.errorCount,
		"total_connections": s.connCount,
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Accept failed", "error", err)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient registers conn and starts its goroutine
func (s *Server) handleNewClient(conn net.Conn) {
	s.mu.Lock()
	s.connCount++
	s.mu.Unlock()

	client := &Client{
		id:     ulid.Make().String(),
		conn:   conn,
		writer: protocol.NewWriter(conn),
		server: s,
	}

	s.clients.Store(conn, client)
	if s.ctx.Err() != nil {
		client.Close()
	}
	s.logger.Debug("Client connected", "conn", client.id, "remote", conn.RemoteAddr().String())

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
		c.server.clients.Delete(c.conn)
	})
}

// handle serves requests until the peer closes the connection. Each read is
// treated as exactly one frame.
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	buf := make([]byte, protocol.MaxFrameSize)
	for {
		n, err := c.conn.Read(buf)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) && c.server.ctx.Err() == nil {
				c.server.logger.Debug("Client read failed", "conn", c.id, "error", err)
			}
			c.server.logger.Debug("Client disconnected", "conn", c.id)
			return
		}

		if !c.serve(buf[:n]) {
			return
		}
		if err != nil {
			return
		}
	}
}

// serve handles one frame. It returns false when the connection must be
// closed.
func (c *Client) serve(frame []byte) bool {
	start := time.Now()
	s := c.server
	s.metrics.RecordNetworkBytes(int64(len(frame)))

	cmd, err := protocol.ParseFrame(frame, s.parseOpts...)
	if err != nil {
		s.recordError("protocol")
		s.logger.Error("Closing connection after unreadable frame",
			"conn", c.id, "remote", c.conn.RemoteAddr().String(), "error", err)
		return false
	}

	s.mu.Lock()
	s.commandCount++
	s.mu.Unlock()

	name := cmd.Name()
	req, err := Resolve(cmd)
	if _, unknown := req.(UnknownRequest); unknown {
		// Keep metric labels bounded.
		name = "unknown"
	}
	if err != nil {
		s.recordError("command")
		err = c.writer.WriteError(err.Error())
	} else {
		err = s.dispatcher.Dispatch(req, c.writer)
	}
	if err == nil {
		err = c.writer.Flush()
	}
	if err != nil {
		s.logger.Error("Failed to write reply", "conn", c.id, "command", name, "error", err)
		return false
	}

	s.metrics.RecordCommandProcessed(name, time.Since(start))
	return true
}

func (s *Server) recordError(errorType string) {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
	s.metrics.RecordError(errorType)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordCommandProcessed(string, time.Duration) {}
func (nopMetrics) RecordNetworkBytes(int64)                     {}
func (nopMetrics) RecordError(string)                           {}
