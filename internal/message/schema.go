package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
)

// Issue is one schema diagnostic.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Issue codes.
const (
	CodeInvalidJSON          = "invalid_json"
	CodeInvalidType          = "invalid_type"
	CodeInvalidDiscriminator = "invalid_union_discriminator"
	CodeInvalidEnumValue     = "invalid_enum_value"
	CodeRequired             = "required"
	CodeTooSmall             = "too_small"
	CodeInvalid              = "invalid"
)

// Issues is the list of diagnostics attached to an InvalidMessageFormat error.
type Issues []Issue

func (is Issues) Error() string {
	parts := make([]string, 0, len(is))
	for _, i := range is {
		if i.Path == "" {
			parts = append(parts, i.Message)
			continue
		}
		parts = append(parts, i.Path+": "+i.Message)
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Wire forms use pointers so that absent fields are distinguishable from
// empty strings.

type setRecorderStateWire struct {
	RecorderState *RecorderState `json:"recorderState" validate:"required,oneof=IDLE RECORDING LOADING"`
}

type setClipboardTextWire struct {
	TranscribedText *string `json:"transcribedText" validate:"required"`
}

type toastActionWire struct {
	Label *string `json:"label" validate:"required"`
	Goto  *string `json:"goto" validate:"required"`
}

type toastOptionsWire struct {
	Variant          *ToastVariant    `json:"variant" validate:"required,oneof=success info loading error warning"`
	ID               string           `json:"id"`
	Title            *string          `json:"title" validate:"required,min=1"`
	Description      *string          `json:"description" validate:"required"`
	DescriptionClass string           `json:"descriptionClass"`
	Action           *toastActionWire `json:"action" validate:"omitempty"`
}

type toastWire struct {
	ToastOptions *toastOptionsWire `json:"toastOptions" validate:"required"`
}

type playSoundWire struct {
	Sound *Sound `json:"sound" validate:"required,oneof=start stop cancel ding"`
}

// Parse validates raw against the external message schema. Every failure
// is an *apperr.Error of kind InvalidMessageFormat whose Details hold the
// Issues.
func Parse(raw []byte) (Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalid(Issue{Code: CodeInvalidType, Message: "Expected object, received " + describe(trimmed)})
	}

	var probe struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, invalid(jsonIssues(err)...)
	}
	if probe.Message == nil || string(probe.Message) == "null" {
		return nil, invalid(Issue{Path: "message", Code: CodeRequired, Message: "Required"})
	}
	var kind Kind
	if err := json.Unmarshal(probe.Message, &kind); err != nil {
		return nil, invalid(Issue{Path: "message", Code: CodeInvalidType, Message: "Expected string, received " + describe(probe.Message)})
	}

	switch kind {
	case KindSetRecorderState:
		var w setRecorderStateWire
		if is := decode(trimmed, &w); is != nil {
			return nil, invalid(is...)
		}
		return SetRecorderState{RecorderState: *w.RecorderState}, nil
	case KindSetClipboardText:
		var w setClipboardTextWire
		if is := decode(trimmed, &w); is != nil {
			return nil, invalid(is...)
		}
		return SetClipboardText{TranscribedText: *w.TranscribedText}, nil
	case KindToast:
		var w toastWire
		if is := decode(trimmed, &w); is != nil {
			return nil, invalid(is...)
		}
		return Toast{ToastOptions: w.ToastOptions.options()}, nil
	case KindPlaySound:
		var w playSoundWire
		if is := decode(trimmed, &w); is != nil {
			return nil, invalid(is...)
		}
		return PlaySound{Sound: *w.Sound}, nil
	}

	return nil, invalid(Issue{
		Path:    "message",
		Code:    CodeInvalidDiscriminator,
		Message: fmt.Sprintf("Invalid discriminator value. Expected %s", quoteKinds()),
	})
}

func (w *toastOptionsWire) options() ToastOptions {
	opts := ToastOptions{
		Variant:          *w.Variant,
		ID:               w.ID,
		Title:            *w.Title,
		Description:      *w.Description,
		DescriptionClass: w.DescriptionClass,
	}
	if w.Action != nil {
		opts.Action = &ToastAction{Label: *w.Action.Label, Goto: *w.Action.Goto}
	}
	return opts
}

func decode(raw []byte, v any) Issues {
	if err := json.Unmarshal(raw, v); err != nil {
		return jsonIssues(err)
	}
	if err := validate.Struct(v); err != nil {
		return validationIssues(err)
	}
	return nil
}

func invalid(issues ...Issue) *apperr.Error {
	return &apperr.Error{
		Kind:        apperr.KindInvalidMessageFormat,
		Title:       "Failed to parse external message",
		Description: "The external message was not in the expected format.",
		Details:     Issues(issues),
		Err:         Issues(issues),
	}
}

func jsonIssues(err error) Issues {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Issues{{
			Path:    typeErr.Field,
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("Expected %s, received %s", jsonKind(typeErr.Type), typeErr.Value),
		}}
	}
	return Issues{{Code: CodeInvalidJSON, Message: err.Error()}}
}

func validationIssues(err error) Issues {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Issues{{Code: CodeInvalid, Message: err.Error()}}
	}
	out := make(Issues, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		switch fe.Tag() {
		case "required":
			out = append(out, Issue{Path: path, Code: CodeRequired, Message: "Required"})
		case "min":
			out = append(out, Issue{
				Path:    path,
				Code:    CodeTooSmall,
				Message: fmt.Sprintf("String must contain at least %s character(s)", fe.Param()),
			})
		case "oneof":
			opts := strings.Fields(fe.Param())
			for i := range opts {
				opts[i] = "'" + opts[i] + "'"
			}
			out = append(out, Issue{
				Path:    path,
				Code:    CodeInvalidEnumValue,
				Message: fmt.Sprintf("Invalid enum value. Expected %s, received '%v'", strings.Join(opts, " | "), fe.Value()),
			})
		default:
			out = append(out, Issue{Path: path, Code: CodeInvalid, Message: fe.Error()})
		}
	}
	return out
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Bool:
		return "boolean"
	default:
		return "number"
	}
}

func describe(raw []byte) string {
	if len(raw) == 0 {
		return "undefined"
	}
	switch raw[0] {
	case '"':
		return "string"
	case '[':
		return "array"
	case '{':
		return "object"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func quoteKinds() string {
	quoted := make([]string, len(Kinds))
	for i, k := range Kinds {
		quoted[i] = "'" + string(k) + "'"
	}
	return strings.Join(quoted, " | ")
}
