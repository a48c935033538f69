package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMailbox(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMailbox() error {
	if err := ensurePositive(map[string]int{
		"mailbox.poll_interval": c.Mailbox.PollInterval,
		"mailbox.dial_timeout":  c.Mailbox.DialTimeout,
	}); err != nil {
		return err
	}
	if c.Mailbox.Port <= 0 || c.Mailbox.Port > 65535 {
		return fmt.Errorf("mailbox.port %d out of range", c.Mailbox.Port)
	}
	if !c.Mailbox.Enabled {
		return nil
	}
	if c.Mailbox.Host == "" {
		return errors.New("mailbox.host must be set when mailbox.enabled is true")
	}
	if !c.MailboxConfigured() {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("mailbox.username and mailbox.password are required when mailbox.enabled is true. Set EMAIL_USERNAME/EMAIL_PASSWORD or edit %s (create with 'liftmail config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateSMTP() error {
	if !c.SMTP.SendConfirmations {
		return nil
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port %d out of range", c.SMTP.Port)
	}
	if c.SMTP.Host == "" {
		return errors.New("smtp.host must be set when smtp.send_confirmations is true")
	}
	return nil
}

func (c *Config) validateUpload() error {
	parsed, err := url.Parse(c.Upload.BackendURL)
	if err != nil {
		return fmt.Errorf("upload.backend_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("upload.backend_url must be an http(s) URL, got %q", c.Upload.BackendURL)
	}
	return ensurePositive(map[string]int{
		"upload.timeout":           c.Upload.Timeout,
		"upload.max_attachment_mb": c.Upload.MaxAttachmentMB,
	})
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "sqlite":
	case "redis":
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr must be set when ledger.backend is redis")
		}
	case "firestore":
		if c.Ledger.FirestoreProject == "" {
			return errors.New("ledger.firestore_project must be set when ledger.backend is firestore")
		}
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q (want sqlite, redis, or firestore)", c.Ledger.Backend)
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch c.Archive.Backend {
	case "none":
		return nil
	case "minio":
		if c.Archive.MinioEndpoint == "" {
			return errors.New("archive.minio_endpoint must be set when archive.backend is minio")
		}
		if c.Archive.MinioAccessKey == "" || c.Archive.MinioSecretKey == "" {
			return errors.New("archive.minio_access_key and archive.minio_secret_key must be set when archive.backend is minio")
		}
	case "gcs":
	default:
		return fmt.Errorf("archive.backend: unsupported value %q (want none, minio, or gcs)", c.Archive.Backend)
	}
	if c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive.backend is %s", c.Archive.Backend)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.DefaultWeightKg < 0 {
		return errors.New("ingest.default_weight_kg must be >= 0")
	}
	for _, r := range c.Ingest.TagKeyword {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return fmt.Errorf("ingest.tag_keyword must be alphanumeric, got %q", c.Ingest.TagKeyword)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositive(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
