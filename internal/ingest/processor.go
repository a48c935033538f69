package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"liftmail/internal/archive"
	"liftmail/internal/config"
	"liftmail/internal/directory"
	"liftmail/internal/guard"
	"liftmail/internal/ledger"
	"liftmail/internal/logging"
	"liftmail/internal/mailparse"
	"liftmail/internal/notifications"
	"liftmail/internal/upload"
)

// Outcome is the terminal state of one message.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Result reports what Process did with a message.
type Result struct {
	Outcome   Outcome
	RecordID  string
	Sender    string
	Reason    string
	AttemptID string
	Err       error
}

// Directory resolves athletes and the competition a submission belongs to.
type Directory interface {
	LookupUserByEmail(ctx context.Context, email string) (string, bool, error)
	ResolveUser(ctx context.Context, email string) (string, bool, error)
	ActiveCompetition(ctx context.Context) (*directory.Competition, error)
	Enroll(ctx context.Context, userID, competitionID string) (string, error)
}

// Uploader hands a video to the attempt-creation backend.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (*upload.Result, error)
}

// Dependencies are the collaborators a Processor drives.
type Dependencies struct {
	Ledger    ledger.Ledger
	Directory Directory
	Uploader  Uploader
	Notifier  notifications.Service
	Archive   archive.Store
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Processor runs one inbound message through the submission state machine.
type Processor struct {
	ledger    ledger.Ledger
	directory Directory
	uploader  Uploader
	notifier  notifications.Service
	archive   archive.Store
	logger    *slog.Logger
	now       func() time.Time

	tags          *mailparse.TagParser
	mailbox       string
	defaultWeight float64
	maxBytes      int64
	archivePrefix string
}

// New builds a Processor from configuration and collaborators.
func New(cfg *config.Config, deps Dependencies) *Processor {
	p := &Processor{
		ledger:        deps.Ledger,
		directory:     deps.Directory,
		uploader:      deps.Uploader,
		notifier:      deps.Notifier,
		archive:       deps.Archive,
		logger:        deps.Logger,
		now:           deps.Clock,
		tags:          mailparse.NewTagParser(cfg.Ingest.TagKeyword, cfg.Ingest.DefaultLift),
		mailbox:       cfg.MailboxAddress(),
		defaultWeight: cfg.Ingest.DefaultWeightKg,
		maxBytes:      cfg.MaxAttachmentBytes(),
		archivePrefix: cfg.Archive.Prefix,
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	p.logger = logging.NewComponentLogger(p.logger, "ingest")
	if p.notifier == nil {
		p.notifier = notifications.NewService(nil)
	}
	if p.archive == nil {
		p.archive = archive.Disabled{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Process handles raw RFC 822 bytes. It never panics and never returns an
// error for a single bad message; failures are reported in Result.
func (p *Processor) Process(ctx context.Context, raw []byte) (res Result) {
	logger := logging.WithContext(ctx, p.logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic before reservation", logging.Any("panic", r), logging.String("stack", string(debug.Stack())))
			res = Result{Outcome: OutcomeFailed, Reason: "internal error", Err: fail(KindInternal, "process", fmt.Errorf("panic: %v", r))}
		}
	}()

	msg, err := mailparse.Parse(raw)
	if err != nil {
		logging.WarnWithContext(logger, "message rejected", "message_malformed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(KindMalformed)),
			logging.String(logging.FieldErrorHint, "inspect the raw message in the mailbox"),
		)
		return Result{Outcome: OutcomeFailed, Reason: "malformed message", Err: fail(KindMalformed, "parse", err)}
	}
	logger = logger.With(
		logging.String(logging.FieldMessageID, msg.MessageID),
		logging.String("sender", msg.Sender),
	)

	if decision := guard.ShouldSkip(msg, msg.Sender, msg.Subject, p.mailbox); decision.Skip {
		logger.Info("message skipped", logging.String("reason", decision.Reason))
		return Result{Outcome: OutcomeSkipped, Sender: msg.Sender, Reason: decision.Reason}
	}

	body := mailparse.ExtractBody(msg)
	fingerprint := ledger.Fingerprint(msg.Sender, msg.Subject, msg.Date, body)
	reservation, err := p.ledger.Reserve(ctx, ledger.Key{
		MessageID:   msg.MessageID,
		Fingerprint: fingerprint,
		Sender:      msg.Sender,
		Subject:     msg.Subject,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "reservation failed", "reserve_failed",
			logging.Error(err),
			logging.String(logging.FieldFingerprint, fingerprint),
			logging.String(logging.FieldErrorKind, string(KindTransient)),
			logging.String(logging.FieldErrorHint, "check ledger backend connectivity"),
		)
		return Result{Outcome: OutcomeFailed, Sender: msg.Sender, Reason: "reservation failed", Err: fail(KindTransient, "reserve", err)}
	}
	if !reservation.ShouldProcess {
		logger.Info("duplicate message skipped",
			logging.String(logging.FieldRecordID, reservation.RecordID),
			logging.String("prior_status", string(reservation.PriorStatus)),
		)
		return Result{Outcome: OutcomeSkipped, RecordID: reservation.RecordID, Sender: msg.Sender, Reason: "duplicate"}
	}

	logger = logger.With(logging.String(logging.FieldRecordID, reservation.RecordID))
	if reservation.Reclaimed {
		logger.Info("reclaimed record for retry", logging.String("prior_status", string(reservation.PriorStatus)))
	}

	sub := submission{msg: msg, body: body, raw: raw, recordID: reservation.RecordID, lease: reservation.Lease()}
	details, err := p.handle(ctx, logger, &sub)
	if err != nil {
		return p.finishFailed(ctx, logger, &sub, details, err)
	}
	return p.finishSucceeded(ctx, logger, &sub, details)
}

type submission struct {
	msg      *mailparse.Message
	body     string
	raw      []byte
	recordID string
	lease    ledger.Lease
}

// finalizeTimeout bounds the ledger write and notification that follow a
// run, which proceed even when the caller's context is already cancelled.
const finalizeTimeout = 30 * time.Second

// handle runs the reserved part of the pipeline. Panics become KindInternal errors.
func (p *Processor) handle(ctx context.Context, logger *slog.Logger, sub *submission) (details notifications.Details, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing message",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			err = fail(KindInternal, "process", fmt.Errorf("panic: %v", r))
		}
	}()

	p.archiveRaw(ctx, logger, sub)

	tag := p.tags.Parse(sub.body)
	if tag == nil {
		tag = p.tags.Parse(sub.msg.Subject)
	}
	if tag != nil {
		details.WeightKg = tag.WeightKg
		details.LiftType = tag.LiftType
	}

	videos := mailparse.ExtractVideoAttachments(sub.msg, p.now())
	if len(videos) == 0 {
		return details, fail(KindNoAttachment, "", ErrNoAttachment)
	}
	video := videos[0]
	if p.maxBytes > 0 && int64(video.Size) > p.maxBytes {
		return details, fail(KindAttachmentTooLarge, "", fmt.Errorf("%w: %s is %d bytes", ErrAttachmentTooLarge, video.Filename, video.Size))
	}

	competition, err := p.directory.ActiveCompetition(ctx)
	if err != nil {
		return details, fail(KindTransient, "active competition", err)
	}
	if competition == nil {
		return details, fail(KindNoActiveCompetition, "", ErrNoActiveCompetition)
	}
	if tag == nil {
		details.WeightKg = p.defaultWeight
		details.LiftType = competition.DefaultLiftType
		logger.Info("no tag found, using defaults",
			logging.Float64("weight_kg", details.WeightKg),
			logging.String("lift", details.LiftType),
		)
	}

	userID, err := p.resolveUser(ctx, logger, sub)
	if err != nil {
		return details, fail(KindTransient, "resolve user", err)
	}
	if _, err := p.directory.Enroll(ctx, userID, competition.ID); err != nil {
		logging.WarnWithContext(logger, "enrollment failed", "enroll_failed",
			logging.Error(err),
			logging.String("user_id", userID),
			logging.String("competition_id", competition.ID),
			logging.String(logging.FieldImpact, "upload continues without a competition link"),
		)
	}

	result, err := p.uploader.Upload(ctx, upload.Request{
		Data:          video.Data,
		Filename:      video.Filename,
		ContentType:   video.ContentType,
		UserID:        userID,
		CompetitionID: competition.ID,
		LiftType:      details.LiftType,
		WeightKg:      details.WeightKg,
	})
	if err != nil {
		return details, fail(KindUploadFailed, "", err)
	}
	details.AttemptID = result.AttemptID
	details.VideoURL = result.URL
	return details, nil
}

// resolveUser prefers the original author of a forwarded message, then the
// forwarder, and creates the original author when neither is known.
func (p *Processor) resolveUser(ctx context.Context, logger *slog.Logger, sub *submission) (string, error) {
	forwarder := sub.msg.Sender
	original := mailparse.ExtractOriginalSender(sub.body, forwarder)

	if original != forwarder {
		id, found, err := p.directory.LookupUserByEmail(ctx, original)
		if err != nil {
			return "", err
		}
		if found {
			return id, nil
		}
	}
	id, found, err := p.directory.LookupUserByEmail(ctx, forwarder)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}

	id, created, err := p.directory.ResolveUser(ctx, original)
	if err != nil {
		return "", err
	}
	if created {
		logger.Info("created user from email", logging.String("user_id", id), logging.String("email", original))
	}
	return id, nil
}

func (p *Processor) archiveRaw(ctx context.Context, logger *slog.Logger, sub *submission) {
	key := archive.Key(p.archivePrefix, p.now(), sub.recordID)
	if err := p.archive.Put(ctx, key, sub.raw); err != nil {
		logging.WarnWithContext(logger, "archive failed", "archive_failed",
			logging.Error(err),
			logging.String("key", key),
			logging.String("backend", p.archive.Name()),
			logging.String(logging.FieldImpact, "message cannot be replayed from the archive"),
		)
	}
}

func (p *Processor) finishSucceeded(ctx context.Context, logger *slog.Logger, sub *submission, details notifications.Details) Result {
	res := Result{
		Outcome:   OutcomeSucceeded,
		RecordID:  sub.recordID,
		Sender:    sub.msg.Sender,
		AttemptID: details.AttemptID,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	owned := p.finalize(ctx, logger, sub, ledger.StatusSucceeded, "")
	logger.Info("submission uploaded",
		logging.String(logging.FieldOutcome, string(OutcomeSucceeded)),
		logging.String("attempt_id", details.AttemptID),
		logging.Float64("weight_kg", details.WeightKg),
		logging.String("lift", details.LiftType),
	)
	if !owned {
		return res
	}
	if err := p.notifier.NotifySuccess(ctx, sub.msg.Sender, details); err != nil {
		logging.WarnWithContext(logger, "confirmation failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "athlete receives no success email"),
		)
	}
	return res
}

func (p *Processor) finishFailed(ctx context.Context, logger *slog.Logger, sub *submission, details notifications.Details, cause error) Result {
	kind := KindOf(cause)
	res := Result{
		Outcome:  OutcomeFailed,
		RecordID: sub.recordID,
		Sender:   sub.msg.Sender,
		Reason:   cause.Error(),
		Err:      cause,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	owned := p.finalize(ctx, logger, sub, ledger.StatusFailed, cause.Error())
	logging.WarnWithContext(logger, "submission failed", "submission_failed",
		logging.Error(cause),
		logging.String(logging.FieldOutcome, string(OutcomeFailed)),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
	if !owned {
		return res
	}
	if err := p.notifier.NotifyFailure(ctx, sub.msg.Sender, details, UserMessage(cause)); err != nil {
		logging.WarnWithContext(logger, "confirmation failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "athlete receives no failure email"),
		)
	}
	return res
}

// finalize writes the terminal status and reports whether this run still owns
// the record. A run whose claim was taken over leaves notification to the
// attempt that holds it.
func (p *Processor) finalize(ctx context.Context, logger *slog.Logger, sub *submission, status ledger.Status, errMsg string) bool {
	err := p.ledger.Finalize(ctx, sub.lease, status, errMsg)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ledger.ErrLeaseLost):
		logging.WarnWithContext(logger, "record claimed by a later attempt", "lease_lost",
			logging.Int("attempt", sub.lease.Attempt),
			logging.String(logging.FieldImpact, "this run's outcome is discarded and no email is sent"),
		)
		return false
	default:
		logging.ErrorWithContext(logger, "finalize failed", "finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "record stays processing until the dedupe window expires"),
		)
		return true
	}
}

func hintFor(kind Kind) string {
	switch kind {
	case KindNoActiveCompetition:
		return "create or start a competition with `liftmail competition add`"
	case KindUploadFailed:
		return "check the upload backend logs"
	case KindTransient:
		return "check database and network connectivity"
	case KindNoAttachment, KindAttachmentTooLarge:
		return "athlete must resend with a video attached"
	default:
		return "inspect the archived message and replay it"
	}
}

// IsSuccessOrSkip reports whether the poller should mark the message seen.
func (r Result) IsSuccessOrSkip() bool {
	return r.Outcome == OutcomeSucceeded || r.Outcome == OutcomeSkipped
}

// Summary renders a short human-readable description of the result.
func (r Result) Summary() string {
	switch r.Outcome {
	case OutcomeSucceeded:
		return "uploaded attempt " + r.AttemptID
	case OutcomeSkipped:
		return "skipped: " + r.Reason
	default:
		if r.Err != nil {
			return "failed: " + r.Err.Error()
		}
		return "failed: " + r.Reason
	}
}
