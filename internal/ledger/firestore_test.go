package ledger_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"liftmail/internal/ledger"
)

func TestFirestoreReserveAgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "liftmail-test")
	if err != nil {
		t.Fatalf("firestore client: %v", err)
	}
	clock := newClock()
	l := ledger.NewFirestore(client, "ledger-"+uuid.NewString(), ledger.WithClock(clock.Now), ledger.WithDedupeWindow(time.Minute))
	t.Cleanup(func() { _ = l.Close() })

	first, err := l.Reserve(ctx, key("fp-emu"))
	if err != nil || !first.ShouldProcess {
		t.Fatalf("first Reserve = %+v, %v", first, err)
	}
	dup, err := l.Reserve(ctx, key("fp-emu"))
	if err != nil || dup.ShouldProcess {
		t.Fatalf("duplicate Reserve = %+v, %v", dup, err)
	}
	if err := l.Finalize(ctx, first.Lease(), ledger.StatusFailed, "boom"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	retry, err := l.Reserve(ctx, key("fp-emu"))
	if err != nil || !retry.ShouldProcess || !retry.Reclaimed || retry.Attempt != 2 {
		t.Fatalf("reclaim Reserve = %+v, %v", retry, err)
	}
	if err := l.Finalize(ctx, first.Lease(), ledger.StatusSucceeded, ""); !errors.Is(err, ledger.ErrLeaseLost) {
		t.Fatalf("Finalize with superseded lease = %v, want ErrLeaseLost", err)
	}
	if err := l.Finalize(ctx, retry.Lease(), ledger.StatusSucceeded, ""); err != nil {
		t.Fatalf("Finalize current lease: %v", err)
	}

	withID := ledger.Key{Fingerprint: "fp-emu-mid", MessageID: "<abc/1@example.com>", Sender: "athlete@example.com", Subject: "lift"}
	claimed, err := l.Reserve(ctx, withID)
	if err != nil || !claimed.ShouldProcess {
		t.Fatalf("Reserve with message id = %+v, %v", claimed, err)
	}
	withID.Fingerprint = "fp-emu-mid-resent"
	aliased, err := l.Reserve(ctx, withID)
	if err != nil || aliased.ShouldProcess || aliased.RecordID != claimed.RecordID {
		t.Fatalf("Reserve by message id = %+v, %v; want record %s held", aliased, err, claimed.RecordID)
	}
}
