package redislite

import (
	"log/slog"
	"strings"
)

// config holds the configuration for an Engine
type config struct {
	// Listener
	bind string
	port int

	// Snapshot location
	dir        string
	dbfilename string

	// "<host> <port>" of the upstream peer; only changes the reported role
	replicaOf string

	// Observability
	logger  Logger
	metrics MetricsCollector

	// Behavioral options
	preserveCase bool
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		bind:   "127.0.0.1",
		port:   6379,
		logger: NewSlogLogger(slog.Default()),
	}
}

// Option represents a configuration option for an Engine
type Option func(*config) error

// WithBind sets the address the server listens on
//
// Example:
//
//	WithBind("0.0.0.0")
func WithBind(host string) Option {
	return func(c *config) error {
		if host == "" {
			return ErrInvalidConfig
		}
		c.bind = host
		return nil
	}
}

// WithPort sets the TCP port. Port 0 picks a free port; see Engine.Addr.
//
// Example:
//
//	WithPort(6380)
func WithPort(port int) Option {
	return func(c *config) error {
		if port < 0 || port > 65535 {
			return ErrInvalidConfig
		}
		c.port = port
		return nil
	}
}

// WithDir sets the directory holding the snapshot file
func WithDir(dir string) Option {
	return func(c *config) error {
		c.dir = dir
		return nil
	}
}

// WithDBFilename sets the snapshot file name inside the directory
func WithDBFilename(filename string) Option {
	return func(c *config) error {
		c.dbfilename = filename
		return nil
	}
}

// WithReplicaOf records an upstream peer as "<host> <port>". The engine
// then reports role:slave in INFO; no data is replicated.
//
// Example:
//
//	WithReplicaOf("localhost 6379")
func WithReplicaOf(peer string) Option {
	return func(c *config) error {
		peer = strings.TrimSpace(peer)
		if peer != "" && len(strings.Fields(peer)) != 2 {
			return ErrInvalidConfig
		}
		c.replicaOf = peer
		return nil
	}
}

// WithLogger sets a custom logger for the engine
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

// WithPreservedCase keeps keys and values in the case they were sent.
// By default every token of a request is lower-cased.
func WithPreservedCase(enabled bool) Option {
	return func(c *config) error {
		c.preserveCase = enabled
		return nil
	}
}
