// Package apperr defines the domain error carried in failure envelopes and
// rendered as error toasts.
package apperr

import (
	"errors"
	"fmt"
)

// Kind names a class of domain error. It is serialized as the error "name".
type Kind string

const (
	KindInvalidMessageFormat Kind = "InvalidMessageFormat"
	KindOriginNotAllowed     Kind = "OriginNotAllowed"
	KindCollaboratorTimeout  Kind = "CollaboratorTimeout"
	KindRecorder             Kind = "RecorderError"
	KindClipboard            Kind = "ClipboardError"
	KindSound                Kind = "SoundError"
	KindTranscription        Kind = "TranscriptionError"
	KindInternal             Kind = "InternalError"
)

// Error is a user-presentable failure.
type Error struct {
	Kind        Kind   `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Details     any    `json:"details,omitempty"`
	Err         error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Title)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an Error without an underlying cause.
func New(kind Kind, title, description string) *Error {
	return &Error{Kind: kind, Title: title, Description: description}
}

// Wrap returns an Error caused by err.
func Wrap(kind Kind, title, description string, err error) *Error {
	return &Error{Kind: kind, Title: title, Description: description, Err: err}
}

// From returns err as an *Error. Existing domain errors pass through
// unchanged; anything else becomes an InternalError.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, "Unexpected error", err.Error(), err)
}

// KindOf reports the kind of err, or "" when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}
