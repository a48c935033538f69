package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"liftmail/internal/mailbox"
)

// FakeMailbox is an in-memory mailbox.Dialer for poller and API tests.
type FakeMailbox struct {
	mu        sync.Mutex
	nextUID   uint32
	messages  map[uint32][]byte
	seen      map[uint32]bool
	fetchErrs map[uint32]error
	DialErr   error
	SearchErr error
	Dials     int
	Closed    int
}

// NewFakeMailbox returns an empty mailbox.
func NewFakeMailbox() *FakeMailbox {
	return &FakeMailbox{
		nextUID:   1,
		messages:  make(map[uint32][]byte),
		seen:      make(map[uint32]bool),
		fetchErrs: make(map[uint32]error),
	}
}

// Deliver adds an unseen message and returns its UID.
func (f *FakeMailbox) Deliver(raw []byte) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := f.nextUID
	f.nextUID++
	f.messages[uid] = append([]byte(nil), raw...)
	return uid
}

// FailFetch makes fetching uid return err.
func (f *FakeMailbox) FailFetch(uid uint32, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErrs[uid] = err
}

// Seen reports whether uid carries the \Seen flag.
func (f *FakeMailbox) Seen(uid uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[uid]
}

// Dial implements mailbox.Dialer.
func (f *FakeMailbox) Dial(ctx context.Context) (mailbox.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dials++
	if f.DialErr != nil {
		return nil, f.DialErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fakeSession{box: f}, nil
}

type fakeSession struct {
	box    *FakeMailbox
	closed bool
}

func (s *fakeSession) Unseen(context.Context) ([]uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if s.box.SearchErr != nil {
		return nil, s.box.SearchErr
	}
	var uids []uint32
	for uid := range s.box.messages {
		if !s.box.seen[uid] {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *fakeSession) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if err := s.box.fetchErrs[uid]; err != nil {
		return nil, err
	}
	raw, ok := s.box.messages[uid]
	if !ok {
		return nil, fmt.Errorf("uid %d: %w", uid, mailbox.ErrNotFound)
	}
	return append([]byte(nil), raw...), nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if _, ok := s.box.messages[uid]; !ok {
		return errors.New("no such message")
	}
	s.box.seen[uid] = true
	return nil
}

func (s *fakeSession) Close() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.box.Closed++
	}
	return nil
}
