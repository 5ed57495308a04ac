package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/propshell/internal/ctxlog"
)

// File is the decoded configuration file.
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//	http {
//	  address = "0.0.0.0"
//	  port    = 8080
//	}
//	kinds_path = "./kinds"
//	journal    = "./propshell.db"
//	scripts    = ["boot.psh"]
//	repl       = false
type File struct {
	Log       *Log     `hcl:"log,block"`
	HTTP      *HTTP    `hcl:"http,block"`
	KindsPath *string  `hcl:"kinds_path,optional"`
	Journal   *string  `hcl:"journal,optional"`
	Scripts   []string `hcl:"scripts,optional"`
	REPL      *bool    `hcl:"repl,optional"`
}

// Log configures the logger.
type Log struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// HTTP configures the server for /health, /metrics and /shell.
type HTTP struct {
	Address *string `hcl:"address,optional"`
	Port    *int    `hcl:"port,optional"`
}

// Parse decodes src. filename is only used in diagnostics.
func Parse(filename string, src []byte) (*File, error) {
	parser := hclparse.NewParser()
	hf, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	var f File
	if diags := gohcl.DecodeBody(hf.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	return &f, nil
}

// Load reads and decodes the file at path.
func Load(ctx context.Context, path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Config file loaded.", "path", path)
	return f, nil
}
