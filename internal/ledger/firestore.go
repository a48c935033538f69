package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is a ledger whose documents are keyed by fingerprint. Message-IDs
// map to fingerprints through a sibling "<collection>_message_ids" collection.
// Claims run in a transaction, so concurrent callers observe a single winner.
type Firestore struct {
	client     *firestore.Client
	collection string
	opts       options
}

type firestoreRecord struct {
	ID          string    `firestore:"id"`
	Fingerprint string    `firestore:"fingerprint"`
	MessageID   string    `firestore:"message_id"`
	Sender      string    `firestore:"sender"`
	Subject     string    `firestore:"subject"`
	Status      string    `firestore:"status"`
	Attempts    int64     `firestore:"attempts"`
	Error       string    `firestore:"error"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type firestoreAlias struct {
	Fingerprint string `firestore:"fingerprint"`
}

func (f firestoreRecord) toRecord() Record {
	return Record{
		ID:          f.ID,
		MessageID:   f.MessageID,
		Fingerprint: f.Fingerprint,
		Sender:      f.Sender,
		Subject:     f.Subject,
		Status:      Status(f.Status),
		Attempts:    int(f.Attempts),
		Error:       f.Error,
		CreatedAt:   f.CreatedAt.UTC(),
		UpdatedAt:   f.UpdatedAt.UTC(),
	}
}

// NewFirestore returns a ledger storing records in collection.
func NewFirestore(client *firestore.Client, collection string, opts ...Option) *Firestore {
	if collection == "" {
		collection = "email_processing"
	}
	return &Firestore{client: client, collection: collection, opts: applyOptions(opts)}
}

func (f *Firestore) aliasDoc(messageID string) *firestore.DocumentRef {
	sum := sha256.Sum256([]byte(messageID))
	return f.client.Collection(f.collection + "_message_ids").Doc(hex.EncodeToString(sum[:]))
}

func (f *Firestore) Reserve(ctx context.Context, key Key) (Reservation, error) {
	if err := validateKey(key); err != nil {
		return Reservation{}, err
	}
	now := f.opts.now().UTC()
	records := f.client.Collection(f.collection)
	id := uuid.NewString()

	var out Reservation
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = Reservation{}
		doc := records.Doc(key.Fingerprint)
		snap, err := getOptional(tx, doc)
		if err != nil {
			return err
		}
		var alias *firestore.DocumentRef
		if key.MessageID != "" {
			alias = f.aliasDoc(key.MessageID)
			aliasSnap, err := getOptional(tx, alias)
			if err != nil {
				return err
			}
			if snap == nil && aliasSnap != nil {
				var target firestoreAlias
				if err := aliasSnap.DataTo(&target); err != nil {
					return err
				}
				doc = records.Doc(target.Fingerprint)
				if snap, err = getOptional(tx, doc); err != nil {
					return err
				}
			}
			if aliasSnap != nil {
				alias = nil
			}
		}

		if snap == nil {
			if err := tx.Create(doc, firestoreRecord{
				ID:          id,
				Fingerprint: key.Fingerprint,
				MessageID:   key.MessageID,
				Sender:      key.Sender,
				Subject:     key.Subject,
				Status:      string(StatusProcessing),
				Attempts:    1,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			if alias != nil {
				if err := tx.Set(alias, firestoreAlias{Fingerprint: key.Fingerprint}); err != nil {
					return err
				}
			}
			out = Reservation{ShouldProcess: true, RecordID: id, Attempt: 1}
			return nil
		}

		var existing firestoreRecord
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		out.RecordID = existing.ID
		out.PriorStatus = Status(existing.Status)
		if !decide(Status(existing.Status), existing.UpdatedAt, now, f.opts.window) {
			return nil
		}
		attempt := existing.Attempts + 1
		out.ShouldProcess = true
		out.Reclaimed = true
		out.Attempt = int(attempt)
		return tx.Update(doc, []firestore.Update{
			{Path: "status", Value: string(StatusProcessing)},
			{Path: "error", Value: ""},
			{Path: "updated_at", Value: now},
			{Path: "attempts", Value: attempt},
		})
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("firestore reserve: %w", err)
	}
	return out, nil
}

// getOptional reads doc inside tx and returns nil when it does not exist.
func getOptional(tx *firestore.Transaction, doc *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	snap, err := tx.Get(doc)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (f *Firestore) findByID(ctx context.Context, recordID string) (*firestore.DocumentSnapshot, error) {
	iter := f.client.Collection(f.collection).Where("id", "==", recordID).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore lookup: %w", err)
	}
	return snap, nil
}

func (f *Firestore) Finalize(ctx context.Context, lease Lease, st Status, errMsg string) error {
	if err := validateFinal(st); err != nil {
		return err
	}
	found, err := f.findByID(ctx, lease.RecordID)
	if err != nil {
		return err
	}
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(found.Ref)
		if err != nil {
			return err
		}
		var current firestoreRecord
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if Status(current.Status) != StatusProcessing || int(current.Attempts) != lease.Attempt {
			return ErrLeaseLost
		}
		return tx.Update(found.Ref, []firestore.Update{
			{Path: "status", Value: string(st)},
			{Path: "error", Value: errMsg},
			{Path: "updated_at", Value: f.opts.now().UTC()},
		})
	})
	if errors.Is(err, ErrLeaseLost) {
		return ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("firestore finalize: %w", err)
	}
	return nil
}

func (f *Firestore) Get(ctx context.Context, recordID string) (*Record, error) {
	snap, err := f.findByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	var stored firestoreRecord
	if err := snap.DataTo(&stored); err != nil {
		return nil, fmt.Errorf("firestore decode: %w", err)
	}
	rec := stored.toRecord()
	return &rec, nil
}

func (f *Firestore) List(ctx context.Context, limit int, statuses ...Status) ([]Record, error) {
	wanted := filterStatuses(statuses)
	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()
	var records []Record
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list: %w", err)
		}
		var stored firestoreRecord
		if err := snap.DataTo(&stored); err != nil {
			return nil, fmt.Errorf("firestore decode: %w", err)
		}
		if wanted != nil && !wanted[Status(stored.Status)] {
			continue
		}
		records = append(records, stored.toRecord())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
