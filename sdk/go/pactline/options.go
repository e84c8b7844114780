package pactline

import (
	"log/slog"
	"time"

	"github.com/ppiankov/pactline/internal/alert"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	catalogPath string
	storeDriver string
	storeDSN    string
	policyDir   string
	auditPath   string
	alerts      []alert.Config
	logger      *slog.Logger
	now         func() time.Time
}

func defaultConfig() clientConfig {
	return clientConfig{
		storeDriver: "memory",
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
}

// WithCatalog loads constraint definitions from a YAML file. The built-in
// catalog is used when unset.
func WithCatalog(path string) Option {
	return func(c *clientConfig) {
		c.catalogPath = path
	}
}

// WithStore selects the contract backend: memory, file, sqlite or postgres.
func WithStore(driver, dsn string) Option {
	return func(c *clientConfig) {
		c.storeDriver = driver
		c.storeDSN = dsn
	}
}

// WithPolicyDir loads published policies from a directory of JSON files.
func WithPolicyDir(dir string) Option {
	return func(c *clientConfig) {
		c.policyDir = dir
	}
}

// WithAuditLog appends every contract event to a hash-chained log.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) {
		c.auditPath = path
	}
}

// WithWebhook posts activation and rejection events to url.
func WithWebhook(url, format string, events ...string) Option {
	return func(c *clientConfig) {
		c.alerts = append(c.alerts, alert.Config{URL: url, Format: format, Events: events})
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for history and rate limits.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		if now != nil {
			c.now = now
		}
	}
}
