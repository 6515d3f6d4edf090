package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/gateway"
)

// Headers an extension can set to describe the calling tab.
const (
	HeaderExtensionID = "X-Extension-Id"
	HeaderTabID       = "X-Tab-Id"
)

type handler struct {
	d      Deps
	logger zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func senderFrom(r *http.Request) gateway.Sender {
	s := gateway.Sender{
		Origin:      r.Header.Get("Origin"),
		URL:         r.Referer(),
		ExtensionID: r.Header.Get(HeaderExtensionID),
		Transport:   "http",
	}
	if id, err := strconv.Atoi(r.Header.Get(HeaderTabID)); err == nil {
		s.TabID = id
	}
	return s
}

// External handles POST /v1/external. Every well-formed request gets 200
// with an envelope; only an unreadable body is a transport error.
func (h *handler) External(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, gateway.Failure(apperr.Wrap(apperr.KindInvalidMessageFormat,
			"Failed to read external message", err.Error(), err)))
		return
	}

	done := make(chan gateway.Envelope, 1)
	gateway.Serve(r.Context(), h.d.Gateway, body, senderFrom(r), func(env gateway.Envelope) { done <- env })
	writeJSON(w, http.StatusOK, <-done)
}

// Toggle handles POST /v1/recording/toggle.
func (h *handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h.d.Dictation == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "local recording is disabled"})
		return
	}
	st, err := h.d.Dictation.Toggle(r.Context())
	h.writeResult(w, st, err)
}

// Cancel handles POST /v1/recording/cancel.
func (h *handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.d.Dictation == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "local recording is disabled"})
		return
	}
	st, err := h.d.Dictation.Cancel(r.Context())
	h.writeResult(w, st, err)
}

func (h *handler) writeResult(w http.ResponseWriter, data any, err error) {
	if err != nil {
		writeJSON(w, http.StatusOK, gateway.Failure(apperr.From(err)))
		return
	}
	writeJSON(w, http.StatusOK, gateway.Success(data))
}

// RecorderState handles GET /v1/recorder-state.
func (h *handler) RecorderState(w http.ResponseWriter, r *http.Request) {
	if h.d.States == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "recorder state unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorderState": h.d.States.State()})
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	RecorderState string `json:"recorderState,omitempty"`
	Subscribers   int    `json:"subscribers"`
	Dictation     bool   `json:"dictation"`
}

// Health handles GET /health.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.d.Version, Dictation: h.d.Dictation != nil}
	if h.d.States != nil {
		resp.RecorderState = string(h.d.States.State())
	}
	if h.d.Hub != nil {
		resp.Subscribers = h.d.Hub.Subscribers()
	}
	writeJSON(w, http.StatusOK, resp)
}
