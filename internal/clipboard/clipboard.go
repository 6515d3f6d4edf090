// Package clipboard writes transcripts to the system clipboard and, where
// supported, pastes them at the cursor.
package clipboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/log"
)

type backend interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

var errUnsupported = errors.New("no clipboard utility is available on this system")

type system struct{}

func (system) ReadAll() (string, error) { return clipboard.ReadAll() }

func (system) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errUnsupported
	}
	return clipboard.WriteAll(text)
}

// Writer serializes clipboard access across concurrent requests.
type Writer struct {
	mu        sync.Mutex
	paste     bool
	settle    time.Duration
	backend   backend
	sendPaste func() error
	logger    zerolog.Logger
}

// New creates a Writer. With paste set, text is pasted at the cursor and
// the previous clipboard content is restored afterwards.
func New(paste bool) *Writer {
	return &Writer{
		paste:     paste,
		settle:    80 * time.Millisecond,
		backend:   system{},
		sendPaste: sendPasteKeys,
		logger:    log.Component("clipboard"),
	}
}

// SetClipboardText writes text to the clipboard.
func (w *Writer) SetClipboardText(ctx context.Context, text string) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindClipboard, "Unable to write to clipboard", "the request was cancelled", err)
	}
	if !w.paste {
		if err := w.backend.WriteAll(text); err != nil {
			return nil, apperr.Wrap(apperr.KindClipboard, "Unable to write to clipboard", err.Error(), err)
		}
		w.logger.Debug().Int("chars", len(text)).Msg("clipboard written")
		return nil, nil
	}

	if err := w.pasteAtCursor(text); err != nil {
		return nil, apperr.Wrap(apperr.KindClipboard, "Unable to paste transcribed text", err.Error(), err)
	}
	w.logger.Debug().Int("chars", len(text)).Msg("text pasted at cursor")
	return nil, nil
}

func (w *Writer) pasteAtCursor(text string) error {
	orig, _ := w.backend.ReadAll()
	if err := w.backend.WriteAll(text); err != nil {
		return err
	}
	time.Sleep(w.settle)

	if err := w.sendPaste(); err != nil {
		// leave the transcript on the clipboard so it can be pasted by hand
		return err
	}
	time.Sleep(w.settle + w.settle/2)
	return w.backend.WriteAll(orig)
}
