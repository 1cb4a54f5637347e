package main

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config is the startup configuration of redis-lite
type Config struct {
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`
	Bind       string `koanf:"bind"`
	Port       int    `koanf:"port"`
	ReplicaOf  string `koanf:"replicaof"`

	Protocol struct {
		PreserveCase bool `koanf:"preservecase"`
	} `koanf:"protocol"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`

	// keys set by the file, environment or flags rather than defaults
	overrides []string
}

// defaultConfig returns the configuration used when no source sets a key
func defaultConfig() *Config {
	cfg := &Config{
		Bind: "127.0.0.1",
		Port: 6379,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// verify rejects values no component can run with
func (c *Config) verify() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.ReplicaOf != "" && len(strings.Fields(c.ReplicaOf)) != 2 {
		return fmt.Errorf("replicaof must be \"<host> <port>\", got %q", c.ReplicaOf)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
