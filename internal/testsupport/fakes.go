package testsupport

import (
	"context"
	"fmt"
	"sync"

	"liftmail/internal/notifications"
	"liftmail/internal/upload"
)

// FakeUploader records upload requests and returns sequential attempt ids.
type FakeUploader struct {
	mu       sync.Mutex
	Requests []upload.Request
	Err      error
	Panic    any
	// OnUpload runs after the request is recorded; a non-nil error fails the upload.
	OnUpload func(ctx context.Context) error
}

// Upload implements the orchestrator's uploader.
func (f *FakeUploader) Upload(ctx context.Context, req upload.Request) (*upload.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Panic != nil {
		panic(f.Panic)
	}
	f.Requests = append(f.Requests, req)
	if f.OnUpload != nil {
		if err := f.OnUpload(ctx); err != nil {
			return nil, err
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	id := fmt.Sprintf("attempt-%d", len(f.Requests))
	return &upload.Result{AttemptID: id, URL: "https://videos.example.com/" + id + ".mp4"}, nil
}

// Calls returns the number of upload requests received.
func (f *FakeUploader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Notice is one confirmation captured by FakeNotifier.
type Notice struct {
	To      string
	Success bool
	Details notifications.Details
	Cause   string
	// ContextErr is the context's error when the notice was sent.
	ContextErr error
}

// FakeNotifier records confirmations instead of sending them.
type FakeNotifier struct {
	mu      sync.Mutex
	Notices []Notice
	Err     error
}

// NotifySuccess implements notifications.Service.
func (f *FakeNotifier) NotifySuccess(ctx context.Context, to string, details notifications.Details) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, Notice{To: to, Success: true, Details: details, ContextErr: ctx.Err()})
	return f.Err
}

// NotifyFailure implements notifications.Service.
func (f *FakeNotifier) NotifyFailure(ctx context.Context, to string, details notifications.Details, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, Notice{To: to, Details: details, Cause: cause, ContextErr: ctx.Err()})
	return f.Err
}

// Sent returns a copy of the captured notices.
func (f *FakeNotifier) Sent() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.Notices...)
}
