package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liftmail/internal/config"
)

// Details describes the processed submission a confirmation refers to.
type Details struct {
	WeightKg  float64
	LiftType  string
	AttemptID string
	VideoURL  string
}

// Service delivers confirmation emails.
type Service interface {
	NotifySuccess(ctx context.Context, to string, details Details) error
	NotifyFailure(ctx context.Context, to string, details Details, cause string) error
}

// Option customizes the service built by NewService.
type Option func(*mailService)

// WithSender replaces the SMTP transport.
func WithSender(sender Sender) Option {
	return func(s *mailService) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithClock overrides the time source used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(s *mailService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a notification service based on configuration.
// Confirmations that are disabled or lack credentials yield a no-op service.
func NewService(cfg *config.Config, opts ...Option) Service {
	if cfg == nil || !cfg.SMTP.SendConfirmations {
		return noopService{}
	}
	username := strings.TrimSpace(cfg.SMTP.Username)
	if username == "" || cfg.SMTP.Password == "" {
		return noopService{}
	}
	from := strings.TrimSpace(cfg.SMTP.From)
	if from == "" {
		from = username
	}
	svc := &mailService{
		from: from,
		copy: Copy{
			Brand:       cfg.SMTP.Brand,
			FrontendURL: cfg.SMTP.FrontendURL,
			TagKeyword:  cfg.Ingest.TagKeyword,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sender == nil {
		svc.sender = NewSMTPSender(SMTPOptions{
			Address:  cfg.SMTPAddress(),
			Username: username,
			Password: cfg.SMTP.Password,
			StartTLS: cfg.SMTP.StartTLS,
			Timeout:  time.Duration(cfg.SMTP.Timeout) * time.Second,
		})
	}
	return svc
}

type mailService struct {
	from   string
	copy   Copy
	sender Sender
	now    func() time.Time
}

func (s *mailService) NotifySuccess(ctx context.Context, to string, details Details) error {
	subject, body := s.copy.Success(details)
	return s.deliver(ctx, to, subject, body)
}

func (s *mailService) NotifyFailure(ctx context.Context, to string, details Details, cause string) error {
	subject, body := s.copy.Failure(cause)
	return s.deliver(ctx, to, subject, body)
}

func (s *mailService) deliver(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("confirmation recipient is empty")
	}
	raw, err := Compose(Envelope{
		From:    s.from,
		To:      to,
		Subject: subject,
		Body:    body,
		Date:    s.now(),
	})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, s.from, []string{to}, raw); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", to, err)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifySuccess(context.Context, string, Details) error         { return nil }
func (noopService) NotifyFailure(context.Context, string, Details, string) error { return nil }
