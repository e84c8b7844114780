// Package config loads the pactline server configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pactline/internal/alert"
	"github.com/ppiankov/pactline/internal/store"
)

// Server holds listener settings.
type Server struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Store selects the contract persistence backend.
type Store struct {
	Driver string `yaml:"driver"`  // memory | file | sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// Audit locates the hash-chained audit log. Empty path disables it.
type Audit struct {
	Path string `yaml:"path"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`   // debug | info | warn | error
	Format string `yaml:"format"`  // text | json
}

// Identity is this connector's DID, used as the default signatory.
type Identity struct {
	DID string `yaml:"did"`
}

// Config is the complete server configuration.
type Config struct {
	Server    Server         `yaml:"server"`
	Catalog   string         `yaml:"catalog"`
	PolicyDir string         `yaml:"policy_dir"`
	Store     Store          `yaml:"store"`
	Audit     Audit          `yaml:"audit"`
	Log       Log            `yaml:"log"`
	Identity  Identity       `yaml:"identity"`
	Alerts    []alert.Config `yaml:"alerts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			GRPCAddr:        "127.0.0.1:9750",
			HTTPAddr:        "127.0.0.1:9751",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{Driver: store.BackendMemory},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// DefaultPath returns ~/.pactline/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pactline", "config.yaml")
}

// Load reads a YAML configuration. Empty path falls back to DefaultPath.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.BackendMemory, store.BackendFile, store.BackendSQLite, store.BackendPostgres:
	default:
		return fmt.Errorf("store.driver %q: want memory, file, sqlite or postgres", c.Store.Driver)
	}
	if c.Store.Driver != store.BackendMemory && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("alerts[%d].url is required", i)
		}
		switch a.Format {
		case "", alert.FormatGeneric, alert.FormatSlack, alert.FormatPagerDuty:
		default:
			return fmt.Errorf("alerts[%d].format %q: want generic, slack or pagerduty", i, a.Format)
		}
	}
	return nil
}

// NewLogger builds the slog logger described by l, writing to w.
func NewLogger(l Log, w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
	}
}

// DefaultYAML returns a commented configuration for `pactline init`.
func DefaultYAML() string {
	return `# pactline configuration
# Generated by: pactline init

server:
  grpc_addr: 127.0.0.1:9750
  http_addr: 127.0.0.1:9751
  shutdown_timeout: 10s

# Constraint catalog YAML. Empty uses the built-in table.
# Write one with: pactline catalog init > catalog.yaml
catalog: ""

# Directory of published ODRL policies (*.json) for policy-seeded contracts.
policy_dir: ""

# Contract persistence.
#   memory   - process memory, lost on restart
#   file     - one JSON file per contract in dsn (a directory)
#   sqlite   - dsn is a database path
#   postgres - dsn is a connection URL; safe for several replicas
store:
  driver: memory
  dsn: ""

# Hash-chained JSONL audit log. Empty disables it.
audit:
  path: ""

log:
  level: info
  format: text

# This connector's DID, used as the signatory of new contracts.
identity:
  did: ""

# Webhooks for contract events:
#   activated | quota_exhausted | rate_limited | proposal_rejected |
#   terminated | revoked | "*"
alerts: []
#  - url: https://hooks.example.com/pactline
#    format: slack
#    events: [activated, quota_exhausted]
`
}
