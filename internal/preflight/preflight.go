package preflight

import (
	"context"

	"liftmail/internal/config"
	"liftmail/internal/mailbox"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// dialer may be nil, in which case the mailbox login is not attempted.
func RunAll(ctx context.Context, cfg *config.Config, dialer mailbox.Dialer) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.MailboxConfigured() {
		if dialer != nil {
			results = append(results, CheckMailbox(ctx, dialer))
		} else {
			results = append(results, CheckTCP(ctx, "IMAP server", cfg.IMAPAddress()))
		}
	} else {
		results = append(results, Result{Name: "Mailbox", Detail: "credentials missing"})
	}

	if cfg.SMTP.SendConfirmations {
		results = append(results, CheckTCP(ctx, "SMTP relay", cfg.SMTPAddress()))
	}

	results = append(results, CheckBackend(ctx, cfg.Upload.BackendURL))

	if cfg.Ledger.Backend == "redis" {
		results = append(results, CheckTCP(ctx, "Redis ledger", cfg.Ledger.RedisAddr))
	}
	if cfg.Archive.Backend == "minio" {
		results = append(results, CheckTCP(ctx, "MinIO archive", cfg.Archive.MinioEndpoint))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
