// Package app wires configuration into the running bridge: the HTTP
// server, the native messaging host and the one-shot file mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/asr"
	"github.com/Pr4c0w1ty/whispering/internal/audio/ffmpeg"
	"github.com/Pr4c0w1ty/whispering/internal/clipboard"
	"github.com/Pr4c0w1ty/whispering/internal/config"
	"github.com/Pr4c0w1ty/whispering/internal/dictation"
	"github.com/Pr4c0w1ty/whispering/internal/gateway"
	"github.com/Pr4c0w1ty/whispering/internal/hotkey"
	"github.com/Pr4c0w1ty/whispering/internal/httpapi"
	"github.com/Pr4c0w1ty/whispering/internal/hub"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/nativemsg"
	"github.com/Pr4c0w1ty/whispering/internal/notify"
	"github.com/Pr4c0w1ty/whispering/internal/origin"
	"github.com/Pr4c0w1ty/whispering/internal/record"
	"github.com/Pr4c0w1ty/whispering/internal/sound"
)

// Desktop bundles the collaborators every mode shares.
type Desktop struct {
	Hub       *hub.Hub
	Notifier  *notify.Notifier
	Clipboard *clipboard.Writer
	Sound     *sound.Player
	States    *dictation.StateStore
	Policy    *origin.Policy
	Gateway   gateway.Handler
}

// NewDesktop builds the collaborators and the origin-guarded gateway.
func NewDesktop(cfg config.Config) (*Desktop, error) {
	l := log.Component("app")

	policy, err := origin.NewPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	if policy.AllowsAll() {
		l.Warn().Msg("ALLOWED_ORIGINS is open; any origin may send messages")
	}

	h := hub.New(cfg.EventBuffer)
	d := &Desktop{
		Hub:       h,
		Notifier:  notify.New(h, cfg.Notification, cfg.AppName, ""),
		Clipboard: clipboard.New(cfg.Paste),
		Sound:     newPlayer(cfg, l),
		States:    dictation.NewStateStore(h),
		Policy:    policy,
	}
	gw := gateway.New(gateway.Collaborators{
		Recorder:  d.States,
		Clipboard: d.Clipboard,
		Toaster:   d.Notifier,
		Sound:     d.Sound,
	}, cfg.DispatchTimeoutDuration())
	d.Gateway = origin.NewGuard(policy, gw)
	return d, nil
}

func newPlayer(cfg config.Config, l zerolog.Logger) *sound.Player {
	bank := sound.DefaultBank()
	if cfg.SoundDir != "" {
		custom, loaded, err := sound.LoadBank(cfg.SoundDir)
		if err != nil {
			l.Warn().Err(err).Str("dir", cfg.SoundDir).Msg("failed to load sounds, using built-in tones")
		} else {
			bank = custom
			l.Debug().Int("count", len(loaded)).Str("dir", cfg.SoundDir).Msg("custom sounds loaded")
		}
	}
	out := sound.Fallback{Primary: sound.PortAudio{}, Secondary: sound.Beep{}}
	return sound.NewPlayer(out, bank, cfg.Sounds, cfg.SoundVolume)
}

// NewDictation prepares the temp directory and builds the local
// recording session.
func NewDictation(cfg config.Config, d *Desktop) (*dictation.Session, error) {
	tempDir, err := config.InitTempDir(&cfg)
	if err != nil {
		return nil, err
	}
	if n, err := record.CleanupTemp(tempDir); err != nil {
		log.Warn().Err(err).Str("dir", tempDir).Msg("temp cleanup failed")
	} else if n > 0 {
		log.Info().Int("removed", n).Str("dir", tempDir).Msg("removed leftover temp files")
	}

	asrClient, err := asr.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return dictation.NewSession(dictation.Deps{
		Recorder: record.New(record.Options{
			Channels:   cfg.Channels,
			SampleRate: cfg.SamplingRate,
			TempDir:    tempDir,
		}),
		Converter:   ffmpeg.Converter{Options: convertOptions(cfg)},
		Transcriber: asrClient,
		States:      d.States,
		Clipboard:   d.Clipboard,
		Toaster:     d.Notifier,
		Sound:       d.Sound,
		Events:      d.Hub,
	}, dictation.Options{
		APIKey:    cfg.Token,
		Container: config.ContainerExt(cfg.Container),
	}), nil
}

func convertOptions(cfg config.Config) ffmpeg.Options {
	return ffmpeg.Options{
		Codec:      cfg.Codec,
		Channels:   cfg.Channels,
		SampleRate: cfg.SamplingRate,
		Depth:      cfg.SampleDepth,
		BitRate:    cfg.BitRate,
	}
}

// RunServer serves the HTTP API and, when enabled, global hotkeys until
// ctx is done.
func RunServer(ctx context.Context, cfg config.Config, version string) error {
	l := log.Component("app")

	d, err := NewDesktop(cfg)
	if err != nil {
		return err
	}
	sess, err := NewDictation(cfg, d)
	if err != nil {
		return err
	}
	defer sess.Close()

	if cfg.SoundDir != "" {
		if err := d.Sound.Watch(ctx, cfg.SoundDir); err != nil {
			l.Warn().Err(err).Msg("custom sounds will not be reloaded")
		}
	}
	if cfg.Hotkeys {
		startHotkeys(ctx, cfg, sess, l)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Gateway:   d.Gateway,
		Policy:    d.Policy,
		Dictation: sess,
		States:    d.States,
		Hub:       d.Hub,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Version:   version,
		Logger:    log.Component("http"),
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.StdErrorLogger(),
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().
			Str("addr", cfg.ListenAddr).
			Str("version", version).
			Strs("origins", cfg.AllowedOrigins).
			Msg("starting whispering bridge")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	l.Info().Msg("server stopped")
	return nil
}

func startHotkeys(ctx context.Context, cfg config.Config, sess *dictation.Session, l zerolog.Logger) {
	bindings := []hotkey.Binding{
		{Action: hotkey.ActionToggle, Spec: cfg.ToggleKey},
		{Action: hotkey.ActionCancel, Spec: cfg.CancelKey},
	}
	err := hotkey.Register(ctx, bindings, func(a hotkey.Action) {
		var err error
		switch a {
		case hotkey.ActionToggle:
			_, err = sess.Toggle(ctx)
		case hotkey.ActionCancel:
			_, err = sess.Cancel(ctx)
		}
		if err != nil {
			l.Debug().Err(err).Stringer("action", a).Msg("hotkey action failed")
		}
	})
	switch {
	case errors.Is(err, hotkey.ErrUnsupported):
		l.Info().Msg("global hotkeys are not supported on this platform; use the HTTP endpoints")
	case err != nil:
		l.Warn().Err(err).Msg("failed to register global hotkeys")
	default:
		l.Info().Str("toggle", cfg.ToggleKey).Str("cancel", cfg.CancelKey).Msg("hotkeys registered")
	}
}

// RunNative serves native messages from in to out until the browser
// closes the pipe. Local recording is left to the HTTP bridge.
func RunNative(ctx context.Context, cfg config.Config, callerOrigin string, in io.Reader, out io.Writer) error {
	d, err := NewDesktop(cfg)
	if err != nil {
		return err
	}
	return nativemsg.NewHost(d.Gateway, in, out, callerOrigin).Run(ctx)
}

// RunFileMode converts and transcribes an existing audio file, writes the
// text to outputPath (default ./<input base>.txt) and copies it to the
// clipboard. It returns the text.
func RunFileMode(ctx context.Context, cfg config.Config, inputPath, outputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}
	tempDir, err := config.InitTempDir(&cfg)
	if err != nil {
		return "", err
	}
	asrClient, err := asr.New(cfg, nil)
	if err != nil {
		return "", err
	}

	tempOut := record.TempPath(tempDir, config.ContainerExt(cfg.Container))
	defer os.Remove(tempOut)
	if err := ffmpeg.Convert(ctx, convertOptions(cfg), inputPath, tempOut); err != nil {
		return "", err
	}

	text, _, err := asrClient.Transcribe(ctx, tempOut)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath = filepath.Join(".", base+".txt")
	}
	if err := os.WriteFile(outputPath, []byte(text), 0o644); err != nil {
		return text, err
	}
	if text != "" {
		if _, err := clipboard.New(false).SetClipboardText(ctx, text); err != nil {
			log.Warn().Err(err).Msg("clipboard write failed")
		}
	}
	return text, nil
}
