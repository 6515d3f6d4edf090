package nativemsg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/gateway"
	"github.com/Pr4c0w1ty/whispering/internal/log"
)

// Request is one message from the extension's background script.
type Request struct {
	RequestID json.RawMessage `json:"requestId"`
	Sender    gateway.Sender  `json:"sender"`
	Message   json.RawMessage `json:"message"`
}

// Response answers the Request with the same requestId.
type Response struct {
	RequestID json.RawMessage
	Envelope  gateway.Envelope
}

// MarshalJSON flattens the envelope next to requestId.
func (r Response) MarshalJSON() ([]byte, error) {
	env, err := json.Marshal(r.Envelope)
	if err != nil {
		return nil, err
	}
	id := r.RequestID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"requestId":`)
	buf.Write(id)
	buf.WriteByte(',')
	buf.Write(env[1:])
	return buf.Bytes(), nil
}

// Host serves framed requests from in and writes framed responses to out.
type Host struct {
	handler gateway.Handler
	in      io.Reader
	out     io.Writer
	// origin is used for senders that do not report one; Chrome passes the
	// calling extension's origin as the host's first argument.
	origin string
	logger zerolog.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewHost creates a host. callerOrigin may be empty.
func NewHost(h gateway.Handler, in io.Reader, out io.Writer, callerOrigin string) *Host {
	return &Host{handler: h, in: in, out: out, origin: callerOrigin, logger: log.Component("nativemsg")}
}

// Run reads requests until the extension closes stdin or ctx is done.
// Requests are served concurrently; Run returns once every in-flight
// request has been answered. A clean EOF returns nil.
func (h *Host) Run(ctx context.Context) error {
	h.logger.Info().Str("origin", h.origin).Msg("native messaging host started")
	defer h.wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := Read(h.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.logger.Info().Msg("extension closed connection (EOF)")
				return nil
			}
			return fmt.Errorf("read native message: %w", err)
		}
		h.logger.Debug().Int("bytes", len(raw)).Msg("received message")

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			h.reply(Response{Envelope: gateway.Failure(apperr.Wrap(
				apperr.KindInvalidMessageFormat,
				"Malformed native message",
				err.Error(),
				err,
			))})
			continue
		}
		if len(req.Message) == 0 {
			req.Message = json.RawMessage("null")
		}
		sender := req.Sender
		sender.Transport = "native"
		if sender.Origin == "" {
			sender.Origin = h.origin
		}

		h.wg.Add(1)
		id := req.RequestID
		gateway.Serve(ctx, h.handler, req.Message, sender, func(env gateway.Envelope) {
			defer h.wg.Done()
			h.reply(Response{RequestID: id, Envelope: env})
		})
	}
}

func (h *Host) reply(r Response) {
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode response")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := writeFrame(h.out, data); err != nil {
		h.logger.Error().Err(err).Str("requestId", string(r.RequestID)).Msg("write response")
	}
}
