// Package gateway validates untrusted external messages, dispatches each to
// exactly one collaborator and folds every outcome into an Envelope.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
	"github.com/Pr4c0w1ty/whispering/internal/metrics"
)

// RecorderStateSetter records the recorder state reported by a caller.
type RecorderStateSetter interface {
	SetRecorderState(ctx context.Context, state message.RecorderState) (any, error)
}

// ClipboardWriter writes transcribed text to the clipboard.
type ClipboardWriter interface {
	SetClipboardText(ctx context.Context, text string) (any, error)
}

// Toaster shows a toast. It cannot fail; it returns the toast id.
type Toaster interface {
	Toast(ctx context.Context, opts message.ToastOptions) any
}

// SoundPlayer plays a notification sound.
type SoundPlayer interface {
	PlaySound(ctx context.Context, sound message.Sound) (any, error)
}

// Sender describes the caller as reported by the transport.
type Sender struct {
	Origin      string `json:"origin,omitempty"`
	URL         string `json:"url,omitempty"`
	TabID       int    `json:"tabId,omitempty"`
	ExtensionID string `json:"id,omitempty"`
	Transport   string `json:"-"`
}

// Handler handles one external request.
type Handler interface {
	Handle(ctx context.Context, raw []byte, sender Sender) Envelope
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw []byte, sender Sender) Envelope

func (f HandlerFunc) Handle(ctx context.Context, raw []byte, sender Sender) Envelope {
	return f(ctx, raw, sender)
}

// Collaborators are the effects the gateway routes to.
type Collaborators struct {
	Recorder  RecorderStateSetter
	Clipboard ClipboardWriter
	Toaster   Toaster
	Sound     SoundPlayer
}

// Gateway is safe for concurrent use; it keeps no per-request state.
type Gateway struct {
	c       Collaborators
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a gateway. A timeout of zero lets collaborator calls block
// for as long as they take.
func New(c Collaborators, timeout time.Duration) *Gateway {
	g := &Gateway{c: c, timeout: timeout, logger: log.Component("gateway")}
	if g.c.Toaster == nil {
		g.c.Toaster = logToaster{logger: g.logger}
	}
	return g
}

// Handle validates raw, dispatches it and returns the envelope. Failures
// are also shown as an error toast.
func (g *Gateway) Handle(ctx context.Context, raw []byte, sender Sender) Envelope {
	l := g.logger.With().
		Str("transport", sender.Transport).
		Str("origin", sender.Origin).
		Logger()
	l.Info().Int("bytes", len(raw)).Msg("received message from external website")

	start := time.Now()
	kind, data, err := g.run(ctx, raw, l)
	label := string(kind)
	if label == "" {
		label = "invalid"
	}
	if err != nil {
		ae := apperr.From(err)
		g.c.Toaster.Toast(context.WithoutCancel(ctx), message.ErrorToast(ae))
		metrics.ExternalMessages.WithLabelValues(label, string(ae.Kind)).Inc()
		l.Warn().
			Str("kind", label).
			Str("error_kind", string(ae.Kind)).
			Err(ae.Err).
			Dur("latency", time.Since(start)).
			Msg(ae.Title)
		return Failure(ae)
	}

	metrics.ExternalMessages.WithLabelValues(label, "success").Inc()
	l.Debug().Str("kind", label).Dur("latency", time.Since(start)).Msg("external message handled")
	return Success(data)
}

func (g *Gateway) run(ctx context.Context, raw []byte, l zerolog.Logger) (message.Kind, any, error) {
	msg, err := message.Parse(raw)
	if err != nil {
		l.Error().Err(err).Msg("failed to parse external message")
		return "", nil, err
	}

	start := time.Now()
	data, err := g.dispatch(ctx, msg)
	metrics.DispatchDuration.WithLabelValues(string(msg.Kind())).Observe(time.Since(start).Seconds())
	return msg.Kind(), data, err
}

func (g *Gateway) dispatch(ctx context.Context, msg message.Message) (any, error) {
	// toasts never fail, so they are not subject to the timeout
	if _, isToast := msg.(message.Toast); isToast || g.timeout <= 0 {
		return safeDispatch(ctx, msg, dispatcher{g})
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		data any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := safeDispatch(ctx, msg, dispatcher{g})
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, apperr.Wrap(
			apperr.KindCollaboratorTimeout,
			"Request timed out",
			fmt.Sprintf("%s did not complete within %s", msg.Kind(), g.timeout),
			ctx.Err(),
		)
	}
}

func safeDispatch(ctx context.Context, msg message.Message, h message.Handler) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = panicError(msg.Kind(), r)
		}
	}()
	return msg.Dispatch(ctx, h)
}

func panicError(kind message.Kind, r any) *apperr.Error {
	return apperr.New(apperr.KindInternal, "Unexpected error", fmt.Sprintf("%s handler panicked: %v", kind, r))
}

// dispatcher routes each message variant to its collaborator.
type dispatcher struct {
	g *Gateway
}

func (d dispatcher) SetRecorderState(ctx context.Context, m message.SetRecorderState) (any, error) {
	if d.g.c.Recorder == nil {
		return nil, unsupported(m.Kind())
	}
	return d.g.c.Recorder.SetRecorderState(ctx, m.RecorderState)
}

func (d dispatcher) SetClipboardText(ctx context.Context, m message.SetClipboardText) (any, error) {
	if d.g.c.Clipboard == nil {
		return nil, unsupported(m.Kind())
	}
	return d.g.c.Clipboard.SetClipboardText(ctx, m.TranscribedText)
}

func (d dispatcher) Toast(ctx context.Context, m message.Toast) (any, error) {
	return d.g.c.Toaster.Toast(ctx, m.ToastOptions), nil
}

func (d dispatcher) PlaySound(ctx context.Context, m message.PlaySound) (any, error) {
	if d.g.c.Sound == nil {
		return nil, unsupported(m.Kind())
	}
	return d.g.c.Sound.PlaySound(ctx, m.Sound)
}

func unsupported(kind message.Kind) *apperr.Error {
	return apperr.New(apperr.KindInternal, "Unsupported message", fmt.Sprintf("no collaborator configured for %s", kind))
}

type logToaster struct {
	logger zerolog.Logger
}

func (t logToaster) Toast(_ context.Context, opts message.ToastOptions) any {
	t.logger.Info().Str("variant", string(opts.Variant)).Str("title", opts.Title).Msg(opts.Description)
	return opts.ID
}

// Serve handles one request on its own goroutine and calls respond exactly
// once, whatever happens inside h.
func Serve(ctx context.Context, h Handler, raw []byte, sender Sender, respond func(Envelope)) {
	go func() {
		var env Envelope
		defer func() {
			if r := recover(); r != nil {
				env = Failure(apperr.New(apperr.KindInternal, "Unexpected error", fmt.Sprint(r)))
			}
			respond(env)
		}()
		env = h.Handle(ctx, raw, sender)
	}()
}
