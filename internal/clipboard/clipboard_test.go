package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
)

type memBackend struct {
	content  string
	writes   []string
	writeErr error
}

func (m *memBackend) ReadAll() (string, error) { return m.content, nil }

func (m *memBackend) WriteAll(text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.content = text
	m.writes = append(m.writes, text)
	return nil
}

func newTestWriter(paste bool, b *memBackend, pasteErr error) (*Writer, *int) {
	w := New(paste)
	w.settle = 0
	w.backend = b
	presses := 0
	w.sendPaste = func() error {
		presses++
		return pasteErr
	}
	return w, &presses
}

func TestSetClipboardText(t *testing.T) {
	b := &memBackend{content: "old"}
	w, presses := newTestWriter(false, b, nil)

	if _, err := w.SetClipboardText(context.Background(), "hello world"); err != nil {
		t.Fatalf("SetClipboardText failed: %v", err)
	}
	if b.content != "hello world" {
		t.Fatalf("clipboard = %q", b.content)
	}
	if *presses != 0 {
		t.Fatalf("paste keys pressed without paste mode")
	}
}

func TestPasteRestoresPreviousContent(t *testing.T) {
	b := &memBackend{content: "old"}
	w, presses := newTestWriter(true, b, nil)

	if _, err := w.SetClipboardText(context.Background(), "dictated"); err != nil {
		t.Fatalf("SetClipboardText failed: %v", err)
	}
	if *presses != 1 {
		t.Fatalf("expected one paste, got %d", *presses)
	}
	if len(b.writes) != 2 || b.writes[0] != "dictated" || b.content != "old" {
		t.Fatalf("unexpected writes %v (content %q)", b.writes, b.content)
	}
}

func TestPasteFailureKeepsTranscript(t *testing.T) {
	b := &memBackend{content: "old"}
	w, _ := newTestWriter(true, b, errors.New("uinput denied"))

	_, err := w.SetClipboardText(context.Background(), "dictated")
	if !errors.Is(err, &apperr.Error{Kind: apperr.KindClipboard}) {
		t.Fatalf("expected ClipboardError, got %v", err)
	}
	if b.content != "dictated" {
		t.Fatalf("transcript should stay on clipboard, got %q", b.content)
	}
}

func TestWriteErrorAndCancelledContext(t *testing.T) {
	b := &memBackend{writeErr: errors.New("xclip missing")}
	w, _ := newTestWriter(false, b, nil)
	if _, err := w.SetClipboardText(context.Background(), "x"); apperr.KindOf(err) != apperr.KindClipboard {
		t.Fatalf("expected ClipboardError, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w, _ = newTestWriter(false, &memBackend{}, nil)
	if _, err := w.SetClipboardText(ctx, "x"); apperr.KindOf(err) != apperr.KindClipboard {
		t.Fatalf("expected ClipboardError for cancelled context, got %v", err)
	}
}
