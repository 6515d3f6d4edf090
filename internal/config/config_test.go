package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.DispatchTimeoutDuration(); got != 15*time.Second {
		t.Fatalf("expected 15s dispatch timeout, got %s", got)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"LISTEN_ADDR":"127.0.0.1:9999","ALLOWED_ORIGINS":["https://a.example"]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.MaxRetry != DefaultConfig().MaxRetry || cfg.Codec != "opus" {
		t.Fatalf("defaults not kept: %#v", cfg)
	}
}

func TestSaveDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SaveDefault(path); err != nil {
		t.Fatalf("SaveDefault failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", cfg, DefaultConfig())
	}
}

func TestApplyFlagsOnlyTouchesSetFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fv := BindFlags(fs)
	if fv.AnySet() {
		t.Fatalf("no flags parsed yet")
	}
	err := fs.Parse([]string{
		"-listen", "0.0.0.0:1",
		"-allowed-origins", "https://a.example, chrome-extension://x ,",
		"-dispatch-timeout", "2.5",
		"-paste", "yes",
		"-max-retry", "7",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Model = "from-file"
	ApplyFlags(&cfg, fv)

	if !fv.AnySet() || !fv.IsSet("paste") || fv.IsSet("model") {
		t.Fatalf("unexpected set tracking")
	}
	if cfg.ListenAddr != "0.0.0.0:1" || !cfg.Paste || cfg.MaxRetry != 7 {
		t.Fatalf("flags not applied: %#v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example", "chrome-extension://x"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.DispatchTimeoutDuration() != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout %s", cfg.DispatchTimeoutDuration())
	}
	if cfg.Model != "from-file" || cfg.SamplingRate != 16000 {
		t.Fatalf("unset flags must not override: %#v", cfg)
	}
}

func TestBoolFlagRejectsGarbage(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	BindFlags(fs)
	if err := fs.Parse([]string{"-sounds", "maybe"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvToken, "sk-env")
	t.Setenv(EnvAllowedOrigins, "https://x.example,https://y.example")
	t.Setenv(EnvListenAddr, "")

	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	if cfg.Token != "sk-env" {
		t.Fatalf("token not applied")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins not applied: %v", cfg.AllowedOrigins)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Fatalf("empty listen addr must be ignored")
	}
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored: %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("WHISPERING_TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvToken, "from-env")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvToken); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.ListenAddr = " " }},
		{"negative timeout", func(c *Config) { c.DispatchTimeout = -1 }},
		{"burst without limit", func(c *Config) { c.RateBurst = 0 }},
		{"volume", func(c *Config) { c.SoundVolume = 1.5 }},
		{"retries", func(c *Config) { c.MaxRetry = 0 }},
		{"extra config", func(c *Config) { c.ExtraConfig = "{nope" }},
		{"channels", func(c *Config) { c.Channels = 9 }},
		{"depth", func(c *Config) { c.SampleDepth = 12 }},
		{"codec", func(c *Config) { c.Codec = "speex" }},
		{"container", func(c *Config) { c.Container = "avi" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := Validate(&cfg); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	cfg := DefaultConfig()
	cfg.Codec, cfg.Container = "FLAC", "FLAC"
	cfg.RateLimit, cfg.RateBurst = 0, 0
	if err := Validate(&cfg); err != nil {
		t.Fatalf("uppercase codec and disabled rate limit should be valid: %v", err)
	}
}

func TestInitTempDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempDir = filepath.Join(t.TempDir(), "nested", "tmp")
	dir, err := InitTempDir(&cfg)
	if err != nil {
		t.Fatalf("InitTempDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("temp dir not created: %v", err)
	}
	if cfg.TempDir != dir || !filepath.IsAbs(dir) {
		t.Fatalf("expected absolute temp dir in config, got %q", cfg.TempDir)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg.TempDir = file
	if _, err := InitTempDir(&cfg); err == nil {
		t.Fatalf("expected error for regular file")
	}
}

func TestContainerExt(t *testing.T) {
	if ContainerExt("OGG") != "ogg" || ContainerExt("") != "ogg" || ContainerExt(" m4a ") != "m4a" {
		t.Fatalf("unexpected container extensions")
	}
}
