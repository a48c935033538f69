package ingest

import (
	"errors"
	"fmt"

	"liftmail/internal/upload"
)

// Kind classifies why a message failed.
type Kind string

const (
	KindMalformed           Kind = "malformed"
	KindNoAttachment        Kind = "no_attachment"
	KindAttachmentTooLarge  Kind = "attachment_too_large"
	KindNoActiveCompetition Kind = "no_active_competition"
	KindUploadFailed        Kind = "upload_failed"
	KindTransient           Kind = "transient"
	KindInternal            Kind = "internal"
)

var (
	ErrNoAttachment        = errors.New("no video attachment found")
	ErrAttachmentTooLarge  = errors.New("attachment too large")
	ErrNoActiveCompetition = errors.New("no active competition")
	ErrUploadFailed        = upload.ErrUploadFailed
)

// ErrorClassifier is implemented by errors that declare their Kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// Error is a fatal per-message failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements ErrorClassifier.
func (e *Error) ErrorKind() string { return string(e.Kind) }

func fail(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return Kind(classifier.ErrorKind())
	}
	return KindInternal
}

// UserMessage is the cause shown to the athlete in a failure confirmation.
// Upload failures echo the downstream error; everything else uses fixed copy.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNoAttachment:
		return "No video attachment found. Attach the video file directly to your email."
	case KindAttachmentTooLarge:
		return "The attached video is too large to upload. Trim it or send a shorter clip."
	case KindNoActiveCompetition:
		return "There is no active competition accepting lifts right now."
	case KindUploadFailed:
		var e *Error
		if errors.As(err, &e) {
			return e.Err.Error()
		}
		return err.Error()
	default:
		return "Something went wrong on our side while processing your video. Please try again later."
	}
}
