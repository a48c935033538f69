package config

const (
	defaultConfigPath          = "~/.config/liftmail/config.toml"
	defaultDataDir             = "~/.local/share/liftmail"
	defaultLogDir              = "~/.local/share/liftmail/logs"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultIMAPHost            = "imap.gmail.com"
	defaultIMAPPort            = 993
	defaultMailboxFolder       = "INBOX"
	defaultPollInterval        = 30
	defaultDialTimeout         = 30
	defaultSMTPHost            = "smtp.gmail.com"
	defaultSMTPPort            = 587
	defaultSMTPTimeout         = 30
	defaultBrand               = "Tom's Gym"
	defaultFrontendURL         = "https://tomsgym.com"
	defaultBackendURL          = "http://localhost:8080"
	defaultUploadTimeout       = 120
	defaultMaxAttachmentMB     = 200
	defaultLedgerBackend       = "sqlite"
	defaultDedupeWindowSeconds = 900
	defaultRedisPrefix         = "liftmail"
	defaultFirestoreCollection = "email_processing"
	defaultArchiveBackend      = "none"
	defaultArchivePrefix       = "raw"
	defaultTagKeyword          = "t30g"
	defaultLift                = "Snatch"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Mailbox: Mailbox{
			Host:         defaultIMAPHost,
			Port:         defaultIMAPPort,
			Folder:       defaultMailboxFolder,
			PollInterval: defaultPollInterval,
			DialTimeout:  defaultDialTimeout,
		},
		SMTP: SMTP{
			SendConfirmations: true,
			Host:              defaultSMTPHost,
			Port:              defaultSMTPPort,
			StartTLS:          true,
			Brand:             defaultBrand,
			FrontendURL:       defaultFrontendURL,
			Timeout:           defaultSMTPTimeout,
		},
		Upload: Upload{
			BackendURL:      defaultBackendURL,
			Timeout:         defaultUploadTimeout,
			MaxAttachmentMB: defaultMaxAttachmentMB,
		},
		Ledger: Ledger{
			Backend:             defaultLedgerBackend,
			DedupeWindowSeconds: defaultDedupeWindowSeconds,
			RedisPrefix:         defaultRedisPrefix,
			FirestoreCollection: defaultFirestoreCollection,
		},
		Archive: Archive{
			Backend: defaultArchiveBackend,
			Prefix:  defaultArchivePrefix,
		},
		Ingest: Ingest{
			TagKeyword:  defaultTagKeyword,
			DefaultLift: defaultLift,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
