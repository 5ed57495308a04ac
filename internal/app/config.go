package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	KindsPath   string   // declarative kind manifests
	Scripts     []string // run in order before the REPL
	JournalPath string   // empty disables the journal

	LogFormat string
	LogLevel  string
	HTTPPort  int
	HTTPAddr  string // interface to listen on; empty means DefaultHTTPAddr
	REPL      bool
}

// DefaultHTTPAddr keeps /shell reachable from this host only.
const DefaultHTTPAddr = "127.0.0.1"

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid http port %d", cfg.HTTPPort)
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}

	if len(cfg.Scripts) == 0 && !cfg.REPL {
		return nil, errors.New("nothing to do: no scripts given and the REPL is disabled")
	}

	cfg.Scripts = append([]string(nil), cfg.Scripts...)
	return &cfg, nil
}
