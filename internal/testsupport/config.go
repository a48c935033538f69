package testsupport

import (
	"path/filepath"
	"testing"

	"liftmail/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Mailbox.Enabled = true
	cfgVal.Mailbox.Username = "uploads@example.com"
	cfgVal.Mailbox.Password = "secret"
	cfgVal.SMTP.Username = "uploads@example.com"
	cfgVal.SMTP.Password = "secret"
	cfgVal.SMTP.From = "uploads@example.com"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackendURL points the upload client at url.
func WithBackendURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.BackendURL = url
	}
}

// WithMailboxAddress sets the mailbox login, which is also its own address.
func WithMailboxAddress(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mailbox.Username = addr
		b.cfg.SMTP.Username = addr
		b.cfg.SMTP.From = addr
	}
}

// WithMailboxDisabled turns the poller off.
func WithMailboxDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mailbox.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
