package redislite

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/raniellyferreira/redis-lite/protocol"
	"github.com/raniellyferreira/redis-lite/rdb"
	"github.com/raniellyferreira/redis-lite/server"
	"github.com/raniellyferreira/redis-lite/storage"
)

// LoadResult describes the snapshot load performed by Start
type LoadResult struct {
	// Attempted is false when neither a directory nor a filename was configured
	Attempted bool
	Stats     rdb.Stats
	Duration  time.Duration

	// Digest fingerprints the store contents right after the load
	Digest uint64

	// Err is a *SnapshotError when the load failed or stopped early
	Err error
}

// Engine owns the store, the shared settings and the TCP server
type Engine struct {
	// Configuration
	config *config

	// Components
	storage  *storage.MemoryStorage
	settings *server.Settings
	server   *server.Server

	// State
	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
	load    LoadResult
}

// New creates a new Engine with the given options
//
// The engine is created but not started. Use Start() to load the snapshot
// and begin serving.
//
// Example:
//
//	engine, err := redislite.New(
//		redislite.WithPort(6380),
//		redislite.WithReplicaOf("localhost 6379"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var memOpts []storage.MemoryOption
	var observer *keyCountObserver
	if cfg.metrics != nil {
		observer = &keyCountObserver{metrics: cfg.metrics}
		memOpts = append(memOpts, storage.WithObserver(observer))
	}
	stor := storage.NewMemory(memOpts...)
	if observer != nil {
		observer.storage = stor
	}

	port := strconv.Itoa(cfg.port)
	settings := server.NewSettings(map[string]string{
		server.ParamDir:        cfg.dir,
		server.ParamDBFilename: cfg.dbfilename,
		server.ParamBind:       cfg.bind,
		server.ParamPort:       port,
		server.ParamReplicaOf:  cfg.replicaOf,
	})

	serverOpts := []server.Option{
		server.WithLogger(&loggerAdapter{logger: cfg.logger}),
	}
	if cfg.metrics != nil {
		serverOpts = append(serverOpts, server.WithMetrics(&metricsAdapter{metrics: cfg.metrics}))
	}
	if cfg.preserveCase {
		serverOpts = append(serverOpts, server.WithParseOptions(protocol.WithPreservedCase()))
	}

	addr := net.JoinHostPort(cfg.bind, port)
	srv := server.NewServer(addr, server.NewDispatcher(stor, settings), serverOpts...)

	return &Engine{
		config:   cfg,
		storage:  stor,
		settings: settings,
		server:   srv,
		done:     make(chan struct{}),
	}, nil
}

// Start loads the configured snapshot and starts the server
//
// A snapshot that cannot be loaded is logged and recorded in LoadResult;
// only a failure to bind the listener is returned. The engine closes itself
// when ctx is cancelled.
//
// Example:
//
//	if err := engine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil // Already started
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.load = e.loadSnapshot()

	if err := e.server.Start(); err != nil {
		e.config.logger.Error("Failed to start server", Field{Key: "error", Value: err})
		return &ConnectionError{Addr: e.server.Addr(), Err: err}
	}
	e.started = true

	e.config.logger.Info("Server ready",
		Field{Key: "addr", Value: e.server.Addr()},
		Field{Key: "role", Value: e.settings.Role()},
		Field{Key: "version", Value: VersionString()})

	go func() {
		select {
		case <-ctx.Done():
			_ = e.Close()
		case <-e.done:
		}
	}()

	return nil
}

// loadSnapshot reads dir/dbfilename into the store. Setting only one of
// the two is reported as a failed load.
func (e *Engine) loadSnapshot() LoadResult {
	cfg := e.config
	logger := cfg.logger

	if cfg.dir == "" && cfg.dbfilename == "" {
		logger.Info("No snapshot configured, starting empty")
		return LoadResult{}
	}

	start := time.Now()
	stats, err := rdb.LoadFile(cfg.dir, cfg.dbfilename, rdb.StorageSink(e.storage),
		rdb.WithLogger(&loggerAdapter{logger: logger}))
	result := LoadResult{
		Attempted: true,
		Stats:     stats,
		Duration:  time.Since(start),
		Digest:    e.storage.Digest(),
	}

	if cfg.metrics != nil {
		cfg.metrics.RecordSnapshotLoad(stats.Keys, result.Duration)
		cfg.metrics.RecordKeyCount(e.storage.KeyCount())
	}

	if err != nil {
		result.Err = &SnapshotError{Dir: cfg.dir, Filename: cfg.dbfilename, Err: err}
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("Snapshot not found, starting empty", Field{Key: "error", Value: result.Err})
		} else {
			logger.Error("Snapshot load failed", Field{Key: "error", Value: result.Err},
				Field{Key: "keys_loaded", Value: stats.Keys})
		}
		if cfg.metrics != nil {
			cfg.metrics.RecordError("snapshot")
		}
		return result
	}

	logger.Info("Snapshot loaded",
		Field{Key: "keys", Value: stats.Keys},
		Field{Key: "expiring", Value: stats.Expiring},
		Field{Key: "skipped_bytes", Value: stats.SkippedBytes},
		Field{Key: "duration", Value: result.Duration},
		Field{Key: "digest", Value: strconv.FormatUint(result.Digest, 16)})
	return result
}

// Close stops the server and closes every client connection
//
// Example:
//
//	defer engine.Close()
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)

	if !e.started {
		return nil
	}

	if err := e.server.Stop(); err != nil {
		e.config.logger.Error("Error stopping server", Field{Key: "error", Value: err})
		return err
	}
	e.config.logger.Info("Server stopped")
	return nil
}

// Done returns a channel closed once Close has been called
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Addr returns the listening address. After Start it reflects the port the
// operating system picked when port 0 was configured.
func (e *Engine) Addr() string {
	return e.server.Addr()
}

// Storage returns the underlying storage for direct access
//
// Example:
//
//	value, exists := engine.Storage().Get("mykey")
//	if exists {
//		fmt.Printf("Value: %s\n", value)
//	}
func (e *Engine) Storage() storage.Storage {
	return e.storage
}

// Settings returns the configuration instance answered by CONFIG GET
func (e *Engine) Settings() *server.Settings {
	return e.settings
}

// LoadResult returns the outcome of the snapshot load done by Start
func (e *Engine) LoadResult() LoadResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.load
}

// Stats returns server statistics
func (e *Engine) Stats() map[string]interface{} {
	stats := e.server.Stats()
	stats["keys"] = e.storage.KeyCount()
	stats["role"] = e.settings.Role()
	return stats
}
