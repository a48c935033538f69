package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables take precedence over file values so deployments can
// keep credentials out of the TOML file.
func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMailbox()
	c.normalizeSMTP()
	c.normalizeUpload()
	c.normalizeLedger()
	c.normalizeArchive()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() error {
	envString("EMAIL_IMAP_SERVER", &c.Mailbox.Host)
	envString("EMAIL_USERNAME", &c.Mailbox.Username)
	envString("EMAIL_PASSWORD", &c.Mailbox.Password)
	envString("EMAIL_SMTP_SERVER", &c.SMTP.Host)
	envString("EMAIL_SMTP_USERNAME", &c.SMTP.Username)
	envString("EMAIL_SMTP_PASSWORD", &c.SMTP.Password)
	envString("BACKEND_URL", &c.Upload.BackendURL)
	envString("FRONTEND_URL", &c.SMTP.FrontendURL)
	envString("LIFTMAIL_API_TOKEN", &c.Paths.APIToken)
	envString("LIFTMAIL_DATA_DIR", &c.Paths.DataDir)
	envString("LIFTMAIL_LEDGER_BACKEND", &c.Ledger.Backend)
	envString("REDIS_ADDR", &c.Ledger.RedisAddr)
	envString("REDIS_PASSWORD", &c.Ledger.RedisPassword)
	envString("GOOGLE_CLOUD_PROJECT", &c.Ledger.FirestoreProject)
	envString("MINIO_ENDPOINT", &c.Archive.MinioEndpoint)
	envString("MINIO_ACCESS_KEY", &c.Archive.MinioAccessKey)
	envString("MINIO_SECRET_KEY", &c.Archive.MinioSecretKey)

	if err := envBool("EMAIL_UPLOAD_ENABLED", &c.Mailbox.Enabled); err != nil {
		return err
	}
	if err := envBool("EMAIL_SEND_CONFIRMATIONS", &c.SMTP.SendConfirmations); err != nil {
		return err
	}
	if err := envInt("EMAIL_IMAP_PORT", &c.Mailbox.Port); err != nil {
		return err
	}
	if err := envInt("EMAIL_SMTP_PORT", &c.SMTP.Port); err != nil {
		return err
	}
	if err := envInt("EMAIL_POLL_INTERVAL", &c.Mailbox.PollInterval); err != nil {
		return err
	}
	return nil
}

func envString(key string, target *string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func envBool(key string, target *bool) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	*target = parsed
	return nil
}

func envInt(key string, target *int) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*target = parsed
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeMailbox() {
	c.Mailbox.Host = strings.TrimSpace(c.Mailbox.Host)
	// Hosts are sometimes written as host:port; split the port out.
	if host, port, ok := strings.Cut(c.Mailbox.Host, ":"); ok {
		if parsed, err := strconv.Atoi(port); err == nil {
			c.Mailbox.Host = host
			c.Mailbox.Port = parsed
		}
	}
	c.Mailbox.Username = strings.TrimSpace(c.Mailbox.Username)
	c.Mailbox.Folder = strings.TrimSpace(c.Mailbox.Folder)
	if c.Mailbox.Folder == "" {
		c.Mailbox.Folder = defaultMailboxFolder
	}
	if c.Mailbox.DialTimeout <= 0 {
		c.Mailbox.DialTimeout = defaultDialTimeout
	}
}

func (c *Config) normalizeSMTP() {
	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	if host, port, ok := strings.Cut(c.SMTP.Host, ":"); ok {
		if parsed, err := strconv.Atoi(port); err == nil {
			c.SMTP.Host = host
			c.SMTP.Port = parsed
		}
	}
	c.SMTP.Username = strings.TrimSpace(c.SMTP.Username)
	if c.SMTP.Username == "" {
		c.SMTP.Username = c.Mailbox.Username
	}
	if c.SMTP.Password == "" {
		c.SMTP.Password = c.Mailbox.Password
	}
	c.SMTP.From = strings.TrimSpace(c.SMTP.From)
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	c.SMTP.Brand = strings.TrimSpace(c.SMTP.Brand)
	if c.SMTP.Brand == "" {
		c.SMTP.Brand = defaultBrand
	}
	c.SMTP.FrontendURL = strings.TrimRight(strings.TrimSpace(c.SMTP.FrontendURL), "/")
	if c.SMTP.FrontendURL == "" {
		c.SMTP.FrontendURL = defaultFrontendURL
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = defaultSMTPTimeout
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.BackendURL = strings.TrimRight(strings.TrimSpace(c.Upload.BackendURL), "/")
	if c.Upload.BackendURL == "" {
		c.Upload.BackendURL = defaultBackendURL
	}
	if c.Upload.Timeout <= 0 {
		c.Upload.Timeout = defaultUploadTimeout
	}
	if c.Upload.MaxAttachmentMB <= 0 {
		c.Upload.MaxAttachmentMB = defaultMaxAttachmentMB
	}
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
	if c.Ledger.DedupeWindowSeconds <= 0 {
		c.Ledger.DedupeWindowSeconds = defaultDedupeWindowSeconds
	}
	c.Ledger.RedisAddr = strings.TrimSpace(c.Ledger.RedisAddr)
	c.Ledger.RedisPrefix = strings.Trim(strings.TrimSpace(c.Ledger.RedisPrefix), ":")
	if c.Ledger.RedisPrefix == "" {
		c.Ledger.RedisPrefix = defaultRedisPrefix
	}
	c.Ledger.FirestoreProject = strings.TrimSpace(c.Ledger.FirestoreProject)
	c.Ledger.FirestoreCollection = strings.TrimSpace(c.Ledger.FirestoreCollection)
	if c.Ledger.FirestoreCollection == "" {
		c.Ledger.FirestoreCollection = defaultFirestoreCollection
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	if c.Archive.Backend == "" {
		c.Archive.Backend = defaultArchiveBackend
	}
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	c.Archive.MinioEndpoint = strings.TrimSpace(c.Archive.MinioEndpoint)
}

func (c *Config) normalizeIngest() {
	c.Ingest.TagKeyword = strings.ToLower(strings.TrimSpace(c.Ingest.TagKeyword))
	if c.Ingest.TagKeyword == "" {
		c.Ingest.TagKeyword = defaultTagKeyword
	}
	c.Ingest.DefaultLift = strings.TrimSpace(c.Ingest.DefaultLift)
	if c.Ingest.DefaultLift == "" {
		c.Ingest.DefaultLift = defaultLift
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
