package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender hands a composed message to a mail transport.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPOptions configures SMTPSender.
type SMTPOptions struct {
	Address  string
	Username string
	Password string
	StartTLS bool
	Timeout  time.Duration
	// TLSConfig overrides the STARTTLS configuration; ServerName defaults to the host.
	TLSConfig *tls.Config
}

// SMTPSender submits mail to a relay using go-smtp.
type SMTPSender struct {
	opts SMTPOptions
}

// NewSMTPSender returns a sender for the given relay.
func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &SMTPSender{opts: opts}
}

// Send dials the relay, upgrades to TLS when configured, authenticates and
// submits msg. The context bounds the whole exchange.
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	host, _, err := net.SplitHostPort(s.opts.Address)
	if err != nil {
		return fmt.Errorf("parse smtp address %q: %w", s.opts.Address, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if s.opts.StartTLS {
		tlsConfig := s.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.opts.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := client.Auth(sasl.NewPlainClient("", s.opts.Username, s.opts.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := bytes.NewReader(msg).WriteTo(w); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}
