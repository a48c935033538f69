package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"liftmail/internal/config"
	"liftmail/internal/directory"
	"liftmail/internal/guard"
	"liftmail/internal/ingest"
	"liftmail/internal/ledger"
	"liftmail/internal/testsupport"
	"liftmail/internal/upload"
)

type memoryArchive struct {
	keys []string
	err  error
}

func (m *memoryArchive) Put(_ context.Context, key string, _ []byte) error {
	m.keys = append(m.keys, key)
	return m.err
}

func (m *memoryArchive) Name() string { return "memory" }

type harness struct {
	proc     *ingest.Processor
	ledger   ledger.Ledger
	dir      *directory.Directory
	uploader *testsupport.FakeUploader
	notifier *testsupport.FakeNotifier
	archive  *memoryArchive
	now      time.Time
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.DefaultWeightKg = 60
	for _, fn := range mutate {
		fn(cfg)
	}
	db := testsupport.MustOpenStore(t, cfg)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	h := &harness{
		ledger:   ledger.NewSQLite(db, ledger.WithClock(clock)),
		dir:      directory.New(db, directory.WithClock(clock)),
		uploader: &testsupport.FakeUploader{},
		notifier: &testsupport.FakeNotifier{},
		archive:  &memoryArchive{},
		now:      now,
	}
	h.proc = ingest.New(cfg, ingest.Dependencies{
		Ledger:    h.ledger,
		Directory: h.dir,
		Uploader:  h.uploader,
		Notifier:  h.notifier,
		Archive:   h.archive,
		Clock:     clock,
	})
	return h
}

func (h *harness) startCompetition(t *testing.T, lift string) *directory.Competition {
	t.Helper()
	comp, err := h.dir.CreateCompetition(context.Background(), directory.NewCompetition{
		Name:            "Spring Open",
		Status:          directory.StatusInProgress,
		StartDate:       h.now.Add(-24 * time.Hour),
		DefaultLiftType: lift,
	})
	if err != nil {
		t.Fatalf("CreateCompetition: %v", err)
	}
	return comp
}

func submission(t *testing.T, body string, videos ...testsupport.Video) []byte {
	t.Helper()
	return testsupport.BuildMessage(t, testsupport.Message{
		FromName:  "New Athlete",
		From:      "new.athlete@example.com",
		Subject:   "my lift",
		MessageID: "lift-1@example.com",
		Body:      body,
		Videos:    videos,
	})
}

var clip = testsupport.Video{Filename: "lift.mp4", ContentType: "video/mp4", Data: []byte("fake-video-bytes")}

func TestEndToEndCreatesUserAndUploads(t *testing.T) {
	h := newHarness(t)
	comp := h.startCompetition(t, "")
	ctx := context.Background()

	res := h.proc.Process(ctx, submission(t, "t30g 185kg Squat", clip))
	if res.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.AttemptID == "" || res.RecordID == "" {
		t.Fatalf("expected attempt and record ids, got %+v", res)
	}

	userID, found, err := h.dir.LookupUserByEmail(ctx, "new.athlete@example.com")
	if err != nil || !found {
		t.Fatalf("expected auto-created user, found=%v err=%v", found, err)
	}

	if h.uploader.Calls() != 1 {
		t.Fatalf("expected one upload, got %d", h.uploader.Calls())
	}
	req := h.uploader.Requests[0]
	if req.UserID != userID || req.CompetitionID != comp.ID {
		t.Fatalf("upload linked to wrong user/competition: %+v", req)
	}
	if req.WeightKg != 185 || req.LiftType != "Squat" || req.Filename != "lift.mp4" || !bytes.Equal(req.Data, clip.Data) {
		t.Fatalf("unexpected upload request %+v", req)
	}

	rec, err := h.ledger.Get(ctx, res.RecordID)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if rec.Status != ledger.StatusSucceeded || rec.MessageID != "lift-1@example.com" {
		t.Fatalf("unexpected record %+v", rec)
	}

	notices := h.notifier.Sent()
	if len(notices) != 1 || !notices[0].Success || notices[0].To != "new.athlete@example.com" {
		t.Fatalf("expected one success notice, got %+v", notices)
	}
	if notices[0].Details.AttemptID != res.AttemptID {
		t.Fatalf("notice attempt id %q, want %q", notices[0].Details.AttemptID, res.AttemptID)
	}

	if len(h.archive.keys) != 1 || !strings.HasSuffix(h.archive.keys[0], "/2024/05/01/"+res.RecordID+".eml") {
		t.Fatalf("expected archived message, got %v", h.archive.keys)
	}
}

func TestDuplicateMessageIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	raw := submission(t, "t30g 100kg dl", clip)

	first := h.proc.Process(context.Background(), raw)
	second := h.proc.Process(context.Background(), raw)
	if first.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("first outcome %+v", first)
	}
	if second.Outcome != ingest.OutcomeSkipped || second.Reason != "duplicate" || second.RecordID != first.RecordID {
		t.Fatalf("expected duplicate skip for same record, got %+v", second)
	}
	if h.uploader.Calls() != 1 {
		t.Fatalf("expected exactly one upload, got %d", h.uploader.Calls())
	}
	if len(h.notifier.Sent()) != 1 {
		t.Fatalf("duplicates must not notify, got %+v", h.notifier.Sent())
	}
}

func TestConfirmationLoopIsSkippedWithoutReservation(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	raw := testsupport.BuildMessage(t, testsupport.Message{
		From:    "athlete@example.com",
		Subject: "t30g 100kg squat",
		Body:    "t30g 100kg squat",
		Headers: map[string]string{guard.MarkerHeader: guard.MarkerValue},
		Videos:  []testsupport.Video{clip},
	})

	res := h.proc.Process(context.Background(), raw)
	if res.Outcome != ingest.OutcomeSkipped {
		t.Fatalf("expected skip, got %+v", res)
	}
	records, err := h.ledger.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 || h.uploader.Calls() != 0 || len(h.notifier.Sent()) != 0 {
		t.Fatalf("guarded message had side effects: records=%d uploads=%d notices=%d", len(records), h.uploader.Calls(), len(h.notifier.Sent()))
	}
}

func TestNoAttachmentFailsWithFixedCopy(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	ctx := context.Background()

	res := h.proc.Process(ctx, submission(t, "t30g 100kg squat"))
	if res.Outcome != ingest.OutcomeFailed || !errors.Is(res.Err, ingest.ErrNoAttachment) {
		t.Fatalf("expected no-attachment failure, got %+v", res)
	}
	if ingest.KindOf(res.Err) != ingest.KindNoAttachment {
		t.Fatalf("unexpected kind %q", ingest.KindOf(res.Err))
	}
	rec, err := h.ledger.Get(ctx, res.RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != ledger.StatusFailed || rec.Error == "" {
		t.Fatalf("expected failed record with error, got %+v", rec)
	}
	notices := h.notifier.Sent()
	if len(notices) != 1 || notices[0].Success || !strings.Contains(notices[0].Cause, "No video attachment") {
		t.Fatalf("expected failure notice, got %+v", notices)
	}
	if h.uploader.Calls() != 0 {
		t.Fatal("upload must not run without an attachment")
	}
}

func TestNoActiveCompetitionThenRetrySucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	raw := submission(t, "t30g 90kg snatch", clip)

	first := h.proc.Process(ctx, raw)
	if first.Outcome != ingest.OutcomeFailed || ingest.KindOf(first.Err) != ingest.KindNoActiveCompetition {
		t.Fatalf("expected no-competition failure, got %+v", first)
	}
	if cause := h.notifier.Sent()[0].Cause; !strings.Contains(cause, "no active competition") {
		t.Fatalf("unexpected cause %q", cause)
	}

	h.startCompetition(t, "")
	second := h.proc.Process(ctx, raw)
	if second.Outcome != ingest.OutcomeSucceeded || second.RecordID != first.RecordID {
		t.Fatalf("expected retry on the same record to succeed, got %+v", second)
	}
	rec, err := h.ledger.Get(ctx, second.RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != ledger.StatusSucceeded || rec.Attempts != 2 || rec.Error != "" {
		t.Fatalf("unexpected record after retry %+v", rec)
	}
}

func TestMissingTagUsesDefaults(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "Clean")

	res := h.proc.Process(context.Background(), submission(t, "check out this lift", clip))
	if res.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("missing tag must not fail, got %+v", res)
	}
	req := h.uploader.Requests[0]
	if req.WeightKg != 60 || req.LiftType != "Clean" {
		t.Fatalf("expected configured weight and competition lift, got %+v", req)
	}
}

func TestMissingTagWithoutCompetitionLiftUsesDirectoryFallback(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")

	res := h.proc.Process(context.Background(), submission(t, "check out this lift", clip))
	if res.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("missing tag must not fail, got %+v", res)
	}
	if got := h.uploader.Requests[0].LiftType; got != "Snatch" {
		t.Fatalf("expected directory fallback lift, got %q", got)
	}
}

func TestUploadFailureEchoesDownstreamError(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	h.uploader.Err = fmt.Errorf("%w: %w", upload.ErrUploadFailed, &upload.StatusError{Code: 413, Message: "video exceeds quota"})

	res := h.proc.Process(context.Background(), submission(t, "t30g 100kg squat", clip))
	if res.Outcome != ingest.OutcomeFailed || ingest.KindOf(res.Err) != ingest.KindUploadFailed {
		t.Fatalf("expected upload failure, got %+v", res)
	}
	if !errors.Is(res.Err, ingest.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed in chain, got %v", res.Err)
	}
	notices := h.notifier.Sent()
	if len(notices) != 1 || !strings.Contains(notices[0].Cause, "video exceeds quota") {
		t.Fatalf("expected downstream error in notice, got %+v", notices)
	}
	if notices[0].Details.WeightKg != 100 {
		t.Fatalf("failure notice should carry parsed tag, got %+v", notices[0].Details)
	}
}

func TestPanicIsConvertedToFailure(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	h.uploader.Panic = "boom"
	ctx := context.Background()

	res := h.proc.Process(ctx, submission(t, "t30g 100kg squat", clip))
	if res.Outcome != ingest.OutcomeFailed || ingest.KindOf(res.Err) != ingest.KindInternal {
		t.Fatalf("expected internal failure, got %+v", res)
	}
	rec, err := h.ledger.Get(ctx, res.RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != ledger.StatusFailed {
		t.Fatalf("panic must finalize as failed, got %s", rec.Status)
	}
	if notices := h.notifier.Sent(); len(notices) != 1 || notices[0].Success {
		t.Fatalf("expected failure notice after panic, got %+v", notices)
	}
}

func TestCancelledRunLeavesRecordRetryable(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	raw := submission(t, "t30g 100kg squat", clip)

	ctx, cancel := context.WithCancel(context.Background())
	h.uploader.OnUpload = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	first := h.proc.Process(ctx, raw)
	if first.Outcome != ingest.OutcomeFailed || ingest.KindOf(first.Err) != ingest.KindUploadFailed {
		t.Fatalf("expected upload failure after cancellation, got %+v", first)
	}

	rec, err := h.ledger.Get(context.Background(), first.RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != ledger.StatusFailed {
		t.Fatalf("cancelled run must finalize as failed, got %s", rec.Status)
	}
	notices := h.notifier.Sent()
	if len(notices) != 1 || notices[0].Success || notices[0].ContextErr != nil {
		t.Fatalf("expected failure notice on a live context, got %+v", notices)
	}

	h.uploader.OnUpload = nil
	retry := h.proc.Process(context.Background(), raw)
	if retry.Outcome != ingest.OutcomeSucceeded || retry.RecordID != first.RecordID {
		t.Fatalf("expected retry to reclaim the record, got %+v", retry)
	}
}

func TestForwardedMessageUsesOriginalSender(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	ctx := context.Background()

	originalID, _, err := h.dir.ResolveUser(ctx, "lifter@example.com")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	raw := testsupport.BuildMessage(t, testsupport.Message{
		From:    "coach@example.com",
		Subject: "Fwd: lift",
		Body:    "---------- Forwarded message ---------\nFrom: Lifter <lifter@example.com>\n\nt30g 120kg bench",
		Videos:  []testsupport.Video{clip},
	})

	res := h.proc.Process(ctx, raw)
	if res.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("expected success, got %+v", res)
	}
	if got := h.uploader.Requests[0].UserID; got != originalID {
		t.Fatalf("expected upload for original sender %s, got %s", originalID, got)
	}
	if _, found, _ := h.dir.LookupUserByEmail(ctx, "coach@example.com"); found {
		t.Fatal("forwarder must not be created when the original sender is known")
	}
	if notices := h.notifier.Sent(); notices[0].To != "coach@example.com" {
		t.Fatalf("confirmation goes to the forwarder, got %s", notices[0].To)
	}
}

func TestAttachmentTooLarge(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Upload.MaxAttachmentMB = 1 })
	h.startCompetition(t, "")
	big := testsupport.Video{Filename: "big.mp4", ContentType: "video/mp4", Data: bytes.Repeat([]byte{'x'}, 1024*1024+1)}

	res := h.proc.Process(context.Background(), submission(t, "t30g 100kg squat", big))
	if res.Outcome != ingest.OutcomeFailed || !errors.Is(res.Err, ingest.ErrAttachmentTooLarge) {
		t.Fatalf("expected too-large failure, got %+v", res)
	}
}

func TestMalformedMessageFailsWithoutReservation(t *testing.T) {
	h := newHarness(t)
	res := h.proc.Process(context.Background(), []byte("   "))
	if res.Outcome != ingest.OutcomeFailed || ingest.KindOf(res.Err) != ingest.KindMalformed {
		t.Fatalf("expected malformed failure, got %+v", res)
	}
	if res.RecordID != "" || len(h.notifier.Sent()) != 0 {
		t.Fatalf("malformed message must not reserve or notify: %+v", res)
	}
}

func TestArchiveAndNotifyFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.startCompetition(t, "")
	h.archive.err = errors.New("bucket missing")
	h.notifier.Err = errors.New("smtp down")

	res := h.proc.Process(context.Background(), submission(t, "t30g 100kg squat", clip))
	if res.Outcome != ingest.OutcomeSucceeded {
		t.Fatalf("best-effort failures must not change the outcome, got %+v", res)
	}
}
