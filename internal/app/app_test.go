package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/config"
	"github.com/Pr4c0w1ty/whispering/internal/message"
	"github.com/Pr4c0w1ty/whispering/internal/nativemsg"
)

func quietConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Sounds = false
	cfg.Notification = false
	cfg.AllowedOrigins = []string{"chrome-extension://good"}
	return cfg
}

func TestNewDesktopRejectsBadOrigins(t *testing.T) {
	cfg := quietConfig()
	cfg.AllowedOrigins = []string{"https://[broken"}
	if _, err := NewDesktop(cfg); err == nil {
		t.Fatalf("expected invalid origin pattern error")
	}
}

func TestRunNative(t *testing.T) {
	var in bytes.Buffer
	reqs := []any{
		map[string]any{
			"requestId": "state",
			"message":   map[string]string{"message": "setRecorderState", "recorderState": "RECORDING"},
		},
		map[string]any{
			"requestId": "evil",
			"sender":    map[string]string{"origin": "https://evil.example"},
			"message":   map[string]string{"message": "playSound", "sound": "ding"},
		},
		map[string]any{
			"requestId": "sound",
			"message":   map[string]string{"message": "playSound", "sound": "ding"},
		},
	}
	for _, r := range reqs {
		if err := nativemsg.Write(&in, r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var out bytes.Buffer
	if err := RunNative(context.Background(), quietConfig(), "chrome-extension://good/", &in, &out); err != nil {
		t.Fatalf("RunNative: %v", err)
	}

	type reply struct {
		RequestID string        `json:"requestId"`
		IsSuccess bool          `json:"isSuccess"`
		Data      any           `json:"data"`
		Error     *apperr.Error `json:"error"`
	}
	got := map[string]reply{}
	for out.Len() > 0 {
		raw, err := nativemsg.Read(&out)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var r reply
		if err := json.Unmarshal(raw, &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got[r.RequestID] = r
	}

	if r := got["state"]; !r.IsSuccess || r.Data != string(message.RecorderRecording) {
		t.Fatalf("unexpected setRecorderState reply: %#v", r)
	}
	if r := got["evil"]; r.IsSuccess || r.Error == nil || r.Error.Kind != apperr.KindOriginNotAllowed {
		t.Fatalf("expected OriginNotAllowed, got %#v", r)
	}
	if r := got["sound"]; !r.IsSuccess {
		t.Fatalf("expected silent success for disabled sounds, got %#v", r)
	}
}

func TestRunFileModeMissingInput(t *testing.T) {
	cfg := quietConfig()
	cfg.TempDir = t.TempDir()
	if _, err := RunFileMode(context.Background(), cfg, filepath.Join(t.TempDir(), "nope.wav"), ""); err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func TestConvertOptionsFollowConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Codec, cfg.BitRate, cfg.SampleDepth = "flac", 96, 24
	o := convertOptions(cfg)
	if o.Codec != "flac" || o.BitRate != 96 || o.Depth != 24 || o.SampleRate != cfg.SamplingRate || o.Channels != cfg.Channels {
		t.Fatalf("unexpected options %#v", o)
	}
}
