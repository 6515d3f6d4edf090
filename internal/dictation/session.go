// Package dictation runs local push-to-talk sessions: capture, convert,
// transcribe, then hand the text to the clipboard.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/asr"
	"github.com/Pr4c0w1ty/whispering/internal/hub"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
	"github.com/Pr4c0w1ty/whispering/internal/metrics"
	"github.com/Pr4c0w1ty/whispering/internal/record"
)

// Recorder captures audio into a WAV file.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (record.Result, error)
	Cancel() (record.Result, error)
	State() record.State
}

// Converter re-encodes the captured WAV for upload.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, []byte, error)
}

type ClipboardWriter interface {
	SetClipboardText(ctx context.Context, text string) (any, error)
}

type Toaster interface {
	Toast(ctx context.Context, opts message.ToastOptions) any
}

type SoundPlayer interface {
	PlaySound(ctx context.Context, s message.Sound) (any, error)
}

// Deps are the session's collaborators. Events may be nil.
type Deps struct {
	Recorder    Recorder
	Converter   Converter
	Transcriber Transcriber
	States      *StateStore
	Clipboard   ClipboardWriter
	Toaster     Toaster
	Sound       SoundPlayer
	Events      *hub.Hub
}

// Options configures a Session.
type Options struct {
	// APIKey must be non-empty before recording can start.
	APIKey string
	// Container is the upload file extension, e.g. "ogg".
	Container string
}

// Session serializes toggle/cancel requests from every trigger (HTTP,
// hotkeys). Transcription runs in the background while the state is
// LOADING.
type Session struct {
	mu      sync.Mutex
	d       Deps
	opts    Options
	loading bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func NewSession(d Deps, opts Options) *Session {
	if opts.Container == "" {
		opts.Container = "ogg"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{d: d, opts: opts, ctx: ctx, cancel: cancel, logger: log.Component("dictation")}
}

var (
	errNoAPIKey = apperr.New(apperr.KindTranscription, "API key required",
		"Please set your API key in the settings before recording.")
	errBusy = apperr.New(apperr.KindRecorder, "Still transcribing",
		"Wait for the current transcription to finish before recording again.")
)

// Toggle starts recording when idle and stops it when recording. It
// returns the resulting recorder state.
func (s *Session) Toggle(ctx context.Context) (message.RecorderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.APIKey == "" {
		s.fail(ctx, errNoAPIKey)
		return s.d.States.State(), errNoAPIKey
	}
	if s.loading {
		return message.RecorderLoading, errBusy
	}
	if s.d.Recorder.State() == record.StateIdle {
		return s.start(ctx)
	}
	return s.stop(ctx)
}

// Cancel discards an in-progress recording. It is a no-op when nothing is
// being recorded.
func (s *Session) Cancel(ctx context.Context) (message.RecorderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.d.Recorder.State() != record.StateRecording {
		return s.d.States.State(), nil
	}
	if _, err := s.d.Recorder.Cancel(); err != nil && !errors.Is(err, record.ErrNotRunning) {
		e := apperr.Wrap(apperr.KindRecorder, "Unable to cancel recording", err.Error(), err)
		s.fail(ctx, e)
		return s.d.States.State(), e
	}
	s.d.States.set(message.RecorderIdle)
	s.play(ctx, message.SoundCancel)
	s.d.Toaster.Toast(ctx, message.ToastOptions{
		Variant:     message.ToastInfo,
		Title:       "Recording cancelled",
		Description: "The recording was discarded.",
	})
	metrics.Transcriptions.WithLabelValues("cancelled").Inc()
	return message.RecorderIdle, nil
}

// Close stops background transcriptions and waits for them.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until background transcriptions finished.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) start(ctx context.Context) (message.RecorderState, error) {
	if err := s.d.Recorder.Start(ctx); err != nil {
		e := apperr.Wrap(apperr.KindRecorder, "Unable to start recording", err.Error(), err)
		s.fail(ctx, e)
		return s.d.States.State(), e
	}
	s.d.States.set(message.RecorderRecording)
	s.play(ctx, message.SoundStart)
	s.logger.Info().Msg("recording started")
	return message.RecorderRecording, nil
}

func (s *Session) stop(ctx context.Context) (message.RecorderState, error) {
	res, err := s.d.Recorder.Stop()
	if err != nil {
		e := apperr.Wrap(apperr.KindRecorder, "Unable to stop recording", err.Error(), err)
		s.d.States.set(message.RecorderIdle)
		s.fail(ctx, e)
		return message.RecorderIdle, e
	}
	s.d.States.set(message.RecorderLoading)
	s.play(ctx, message.SoundStop)
	toastID := s.d.Toaster.Toast(ctx, message.ToastOptions{
		Variant:     message.ToastLoading,
		Title:       "Transcribing...",
		Description: "Your recording is being transcribed.",
	})
	s.logger.Info().Int("frames", res.Frames).Msg("recording stopped; transcribing")

	s.loading = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		id, _ := toastID.(string)
		outcome := s.transcribe(s.ctx, res.WavPath, id)
		metrics.Transcriptions.WithLabelValues(outcome).Inc()

		s.mu.Lock()
		s.d.States.set(message.RecorderIdle)
		s.loading = false
		s.mu.Unlock()
	}()
	return message.RecorderLoading, nil
}

// transcribe runs convert, upload and clipboard for one recording and
// reports the outcome label. Temp files are always removed.
func (s *Session) transcribe(ctx context.Context, wavPath, toastID string) string {
	outPath := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + "." + s.opts.Container
	defer removeTemp(s.logger, wavPath, outPath)

	if err := s.d.Converter.Convert(ctx, wavPath, outPath); err != nil {
		s.failToast(ctx, toastID, apperr.Wrap(apperr.KindTranscription, "Unable to convert recording", err.Error(), err))
		return "convert_failed"
	}

	text, _, err := s.d.Transcriber.Transcribe(ctx, outPath)
	if err != nil {
		desc := err.Error()
		var re *asr.RetryExhaustedError
		if errors.As(err, &re) {
			desc = fmt.Sprintf("The transcription service failed %d times: %v", re.Attempts, re.Last)
		}
		s.failToast(ctx, toastID, apperr.Wrap(apperr.KindTranscription, "Unable to transcribe recording", desc, err))
		return "upload_failed"
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.d.Toaster.Toast(ctx, message.ToastOptions{
			Variant:     message.ToastWarning,
			ID:          toastID,
			Title:       "Nothing transcribed",
			Description: "The transcription came back empty.",
		})
		return "empty"
	}
	if s.d.Events != nil {
		s.d.Events.Publish(hub.EventTranscript, text)
	}

	if _, err := s.d.Clipboard.SetClipboardText(ctx, text); err != nil {
		s.failToast(ctx, toastID, apperr.From(err))
		return "clipboard_failed"
	}
	s.play(ctx, message.SoundDing)
	s.d.Toaster.Toast(ctx, message.ToastOptions{
		Variant:     message.ToastSuccess,
		ID:          toastID,
		Title:       "Transcription complete",
		Description: text,
	})
	s.logger.Info().Int("chars", len(text)).Msg("transcription copied")
	return "success"
}

func (s *Session) play(ctx context.Context, snd message.Sound) {
	if s.d.Sound == nil {
		return
	}
	if _, err := s.d.Sound.PlaySound(ctx, snd); err != nil {
		s.logger.Warn().Err(err).Str("sound", string(snd)).Msg("sound failed")
	}
}

func (s *Session) fail(ctx context.Context, e *apperr.Error) {
	s.logger.Warn().Err(e).Msg("dictation failed")
	s.d.Toaster.Toast(context.WithoutCancel(ctx), message.ErrorToast(e))
}

func (s *Session) failToast(ctx context.Context, toastID string, e *apperr.Error) {
	s.logger.Warn().Err(e).Msg("transcription failed")
	opts := message.ErrorToast(e)
	opts.ID = toastID
	s.d.Toaster.Toast(context.WithoutCancel(ctx), opts)
}

func removeTemp(l zerolog.Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.Warn().Err(err).Str("path", p).Msg("failed to remove temp file")
		}
	}
}
