package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Mailbox contains the inbound IMAP account polled for submissions.
type Mailbox struct {
	Enabled      bool   `toml:"enabled"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	Folder       string `toml:"folder"`
	PollInterval int    `toml:"poll_interval"`
	DialTimeout  int    `toml:"dial_timeout"`
}

// SMTP contains the outbound confirmation mail settings.
type SMTP struct {
	SendConfirmations bool   `toml:"send_confirmations"`
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	From              string `toml:"from"`
	StartTLS          bool   `toml:"starttls"`
	Brand             string `toml:"brand"`
	FrontendURL       string `toml:"frontend_url"`
	Timeout           int    `toml:"timeout"`
}

// Upload contains the attempt-creation collaborator settings.
type Upload struct {
	BackendURL      string `toml:"backend_url"`
	Timeout         int    `toml:"timeout"`
	MaxAttachmentMB int    `toml:"max_attachment_mb"`
}

// Ledger selects and configures the idempotency ledger backend.
type Ledger struct {
	Backend             string `toml:"backend"`
	DedupeWindowSeconds int    `toml:"dedupe_window_seconds"`
	RedisAddr           string `toml:"redis_addr"`
	RedisPassword       string `toml:"redis_password"`
	RedisDB             int    `toml:"redis_db"`
	RedisPrefix         string `toml:"redis_prefix"`
	FirestoreProject    string `toml:"firestore_project"`
	FirestoreCollection string `toml:"firestore_collection"`
}

// Archive configures where raw messages are kept for replay.
type Archive struct {
	Backend        string `toml:"backend"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
	MinioRegion    string `toml:"minio_region"`
}

// Ingest contains message interpretation defaults.
type Ingest struct {
	TagKeyword      string  `toml:"tag_keyword"`
	DefaultLift     string  `toml:"default_lift"`
	DefaultWeightKg float64 `toml:"default_weight_kg"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for liftmail.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and operator API bind address
//   - Mailbox: IMAP account and poll cadence
//   - SMTP: confirmation email transport and copy
//   - Upload: attempt-creation collaborator
//   - Ledger: idempotency ledger backend and dedupe window
//   - Archive: raw message retention
//   - Ingest: tag keyword and fallback values
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Mailbox Mailbox `toml:"mailbox"`
	SMTP    SMTP    `toml:"smtp"`
	Upload  Upload  `toml:"upload"`
	Ledger  Ledger  `toml:"ledger"`
	Archive Archive `toml:"archive"`
	Ingest  Ingest  `toml:"ingest"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("liftmail.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database shared by the ledger and directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "liftmail.db")
}

// MigrationLockPath returns the file used to serialize schema migrations across processes.
func (c *Config) MigrationLockPath() string {
	return filepath.Join(c.Paths.DataDir, "liftmail.migrate.lock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "liftmaild.lock")
}

// PollInterval returns the mailbox poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Mailbox.PollInterval) * time.Second
}

// DedupeWindow returns how long a processing reservation is honoured before reclaim.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.Ledger.DedupeWindowSeconds) * time.Second
}

// UploadTimeout returns the bound on a single upload call.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.Timeout) * time.Second
}

// MaxAttachmentBytes returns the attachment size ceiling.
func (c *Config) MaxAttachmentBytes() int64 {
	return int64(c.Upload.MaxAttachmentMB) * 1024 * 1024
}

// IMAPAddress returns host:port for the inbound mailbox.
func (c *Config) IMAPAddress() string {
	return fmt.Sprintf("%s:%d", c.Mailbox.Host, c.Mailbox.Port)
}

// SMTPAddress returns host:port for the outbound relay.
func (c *Config) SMTPAddress() string {
	return fmt.Sprintf("%s:%d", c.SMTP.Host, c.SMTP.Port)
}

// MailboxAddress is the mailbox's own address, used to recognise self-sent mail.
func (c *Config) MailboxAddress() string {
	return strings.ToLower(strings.TrimSpace(c.Mailbox.Username))
}

// MailboxConfigured reports whether credentials for polling are present.
func (c *Config) MailboxConfigured() bool {
	return strings.TrimSpace(c.Mailbox.Username) != "" && c.Mailbox.Password != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string { return sampleConfig }

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "********"
	}
	c.Paths.APIToken = mask(c.Paths.APIToken)
	c.Mailbox.Password = mask(c.Mailbox.Password)
	c.SMTP.Password = mask(c.SMTP.Password)
	c.Ledger.RedisPassword = mask(c.Ledger.RedisPassword)
	c.Archive.MinioSecretKey = mask(c.Archive.MinioSecretKey)
	return c
}

// Encode renders the config as TOML.
func (c Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
