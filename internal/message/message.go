// Package message defines the external message union accepted from pages
// outside the extension's origin, and its wire schema.
package message

import (
	"context"
	"encoding/json"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
)

// Kind is the value of the "message" discriminant.
type Kind string

const (
	KindSetRecorderState Kind = "setRecorderState"
	KindSetClipboardText Kind = "setClipboardText"
	KindToast            Kind = "toast"
	KindPlaySound        Kind = "playSound"
)

// Kinds lists every accepted discriminant in wire order.
var Kinds = []Kind{KindSetRecorderState, KindSetClipboardText, KindToast, KindPlaySound}

// RecorderState is the recorder lifecycle state reported by callers.
type RecorderState string

const (
	RecorderIdle      RecorderState = "IDLE"
	RecorderRecording RecorderState = "RECORDING"
	RecorderLoading   RecorderState = "LOADING"
)

// Valid reports whether s is one of the known recorder states.
func (s RecorderState) Valid() bool {
	switch s {
	case RecorderIdle, RecorderRecording, RecorderLoading:
		return true
	}
	return false
}

// Sound identifies a notification sound.
type Sound string

const (
	SoundStart  Sound = "start"
	SoundStop   Sound = "stop"
	SoundCancel Sound = "cancel"
	SoundDing   Sound = "ding"
)

// Sounds lists every known sound.
var Sounds = []Sound{SoundStart, SoundStop, SoundCancel, SoundDing}

// ToastVariant selects the toast styling.
type ToastVariant string

const (
	ToastSuccess ToastVariant = "success"
	ToastInfo    ToastVariant = "info"
	ToastLoading ToastVariant = "loading"
	ToastError   ToastVariant = "error"
	ToastWarning ToastVariant = "warning"
)

// ToastAction is an optional link rendered with a toast.
type ToastAction struct {
	Label string `json:"label"`
	Goto  string `json:"goto"`
}

// ToastOptions are the display options of a toast notification.
type ToastOptions struct {
	Variant          ToastVariant `json:"variant"`
	ID               string       `json:"id,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	DescriptionClass string       `json:"descriptionClass,omitempty"`
	Action           *ToastAction `json:"action,omitempty"`
}

// ErrorToast renders a domain error as an error toast.
func ErrorToast(e *apperr.Error) ToastOptions {
	return ToastOptions{
		Variant:     ToastError,
		Title:       e.Title,
		Description: e.Description,
	}
}

// Handler receives exactly one call per dispatched message. Adding a
// variant adds a method here, so every dispatcher must handle it.
type Handler interface {
	SetRecorderState(ctx context.Context, m SetRecorderState) (any, error)
	SetClipboardText(ctx context.Context, m SetClipboardText) (any, error)
	Toast(ctx context.Context, m Toast) (any, error)
	PlaySound(ctx context.Context, m PlaySound) (any, error)
}

// Message is a validated external message. The set of implementations is
// closed to this package.
type Message interface {
	Kind() Kind
	Dispatch(ctx context.Context, h Handler) (any, error)
	isExternalMessage()
}

type SetRecorderState struct {
	RecorderState RecorderState
}

type SetClipboardText struct {
	TranscribedText string
}

type Toast struct {
	ToastOptions ToastOptions
}

type PlaySound struct {
	Sound Sound
}

func (SetRecorderState) Kind() Kind { return KindSetRecorderState }
func (SetClipboardText) Kind() Kind { return KindSetClipboardText }
func (Toast) Kind() Kind            { return KindToast }
func (PlaySound) Kind() Kind        { return KindPlaySound }

func (m SetRecorderState) Dispatch(ctx context.Context, h Handler) (any, error) {
	return h.SetRecorderState(ctx, m)
}

func (m SetClipboardText) Dispatch(ctx context.Context, h Handler) (any, error) {
	return h.SetClipboardText(ctx, m)
}

func (m Toast) Dispatch(ctx context.Context, h Handler) (any, error) {
	return h.Toast(ctx, m)
}

func (m PlaySound) Dispatch(ctx context.Context, h Handler) (any, error) {
	return h.PlaySound(ctx, m)
}

func (SetRecorderState) isExternalMessage() {}
func (SetClipboardText) isExternalMessage() {}
func (Toast) isExternalMessage()            {}
func (PlaySound) isExternalMessage()        {}

// MarshalJSON encodes the message in its wire form.
func (m SetRecorderState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message       Kind          `json:"message"`
		RecorderState RecorderState `json:"recorderState"`
	}{m.Kind(), m.RecorderState})
}

func (m SetClipboardText) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message         Kind   `json:"message"`
		TranscribedText string `json:"transcribedText"`
	}{m.Kind(), m.TranscribedText})
}

func (m Toast) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message      Kind         `json:"message"`
		ToastOptions ToastOptions `json:"toastOptions"`
	}{m.Kind(), m.ToastOptions})
}

func (m PlaySound) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message Kind  `json:"message"`
		Sound   Sound `json:"sound"`
	}{m.Kind(), m.Sound})
}
