// Command redis-lite runs the redis-lite server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	redislite "github.com/raniellyferreira/redis-lite"
	"github.com/raniellyferreira/redis-lite/internal/confloader"
)

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"dir":           "dir",
	"dbfilename":    "dbfilename",
	"bind":          "bind",
	"port":          "port",
	"replicaof":     "replicaof",
	"preserve-case": "protocol.preservecase",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"metrics-addr":  "metrics.addr",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "redis-lite",
		Usage:   "serve a RESP-compatible in-memory key-value store",
		Version: redislite.VersionString(),
		Commands: []*cli.Command{
			pingCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "dir", Usage: "directory holding the snapshot file"},
			&cli.StringFlag{Name: "dbfilename", Usage: "snapshot file name inside --dir"},
			&cli.StringFlag{Name: "bind", Usage: "listen address (default 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port (default 6379)"},
			&cli.StringFlag{Name: "replicaof", Usage: "upstream peer as \"<host> <port>\"; reported as role:slave"},
			&cli.BoolFlag{Name: "preserve-case", Usage: "keep keys and values in the case they were sent"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, os.Stdout)
		},
	}
}

// loadConfig merges defaults, the config file, REDISLITE_* variables and
// the flags set on the command line
func loadConfig(c *cli.Context) (*Config, error) {
	flags := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			flags[key] = c.Value(flag)
		}
	}

	cfg := defaultConfig()
	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg, flags); err != nil {
		return nil, err
	}
	cfg.overrides = loader.Keys()

	if err := cfg.verify(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg
func newLogger(cfg *Config, out io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), nil
}

// run serves until ctx is cancelled
func run(ctx context.Context, cfg *Config, out io.Writer) error {
	slogger, err := newLogger(cfg, out)
	if err != nil {
		return err
	}
	logger := redislite.NewSlogLogger(slogger)
	slogger.Debug("Configuration loaded", "overrides", cfg.overrides)

	opts := []redislite.Option{
		redislite.WithBind(cfg.Bind),
		redislite.WithPort(cfg.Port),
		redislite.WithDir(cfg.Dir),
		redislite.WithDBFilename(cfg.DBFilename),
		redislite.WithReplicaOf(cfg.ReplicaOf),
		redislite.WithPreservedCase(cfg.Protocol.PreserveCase),
		redislite.WithLogger(logger),
	}

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metrics := redislite.NewPrometheusMetrics()
		opts = append(opts, redislite.WithMetrics(metrics))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	engine, err := redislite.New(opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if metricsServer != nil {
		go func() {
			slogger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slogger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	<-engine.Done()
	slogger.Info("shutting down")
	return nil
}
