package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds configurable parameters.
type Config struct {
	// bridge
	ListenAddr      string   `json:"LISTEN_ADDR"`
	AllowedOrigins  []string `json:"ALLOWED_ORIGINS"`
	DispatchTimeout float64  `json:"DISPATCH_TIMEOUT"`
	RateLimit       float64  `json:"RATE_LIMIT"`
	RateBurst       int      `json:"RATE_BURST"`
	EventBuffer     int      `json:"EVENT_BUFFER"`

	// collaborators
	Notification bool    `json:"NOTIFICATION"`
	AppName      string  `json:"APP_NAME"`
	Sounds       bool    `json:"SOUNDS"`
	SoundDir     string  `json:"SOUND_DIR"`
	SoundVolume  float64 `json:"SOUND_VOLUME"`
	Paste        bool    `json:"PASTE"`

	// transcription
	APIEndpoint    string  `json:"API_ENDPOINT"`
	Token          string  `json:"TOKEN"`
	Model          string  `json:"MODEL"`
	Language       string  `json:"LANGUAGE"`
	Prompt         string  `json:"PROMPT"`
	TextPath       string  `json:"TEXT_PATH"`
	ExtraConfig    string  `json:"EXTRA_CONFIG"`
	RequestTimeout int     `json:"REQUEST_TIMEOUT"`
	MaxRetry       int     `json:"MAX_RETRY"`
	RetryBaseDelay float64 `json:"RETRY_BASE_DELAY"`
	EnableHTTP2    bool    `json:"ENABLE_HTTP2"`
	VerifySSL      bool    `json:"VERIFY_SSL"`

	// audio
	Channels     int    `json:"CHANNELS"`
	SamplingRate int    `json:"SAMPLING_RATE"`
	SampleDepth  int    `json:"SAMPLING_RATE_DEPTH"`
	BitRate      int    `json:"BIT_RATE"`
	Codec        string `json:"CODECS"`
	Container    string `json:"CONTAINER"`
	TempDir      string `json:"TEMP_DIR"`

	Hotkeys   bool   `json:"HOTKEYS"`
	ToggleKey string `json:"TOGGLE_KEY"`
	CancelKey string `json:"CANCEL_KEY"`

	LogLevel  string `json:"LOG_LEVEL"`
	LogPretty bool   `json:"LOG_PRETTY"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:4749",
		AllowedOrigins:  []string{"chrome-extension://*", "moz-extension://*", "https://whispering.app", "http://localhost:*"},
		DispatchTimeout: 15,
		RateLimit:       20,
		RateBurst:       40,
		EventBuffer:     32,

		Notification: true,
		AppName:      "Whispering",
		Sounds:       true,
		SoundDir:     "",
		SoundVolume:  0.8,
		Paste:        false,

		APIEndpoint:    "https://api.openai.com/v1/audio/transcriptions",
		Token:          "",
		Model:          "whisper-1",
		Language:       "",
		Prompt:         "",
		TextPath:       "text",
		ExtraConfig:    "",
		RequestTimeout: 30,
		MaxRetry:       3,
		RetryBaseDelay: 0.5,
		EnableHTTP2:    true,
		VerifySSL:      true,

		Channels:     1,
		SamplingRate: 16000,
		SampleDepth:  16,
		BitRate:      64,
		Codec:        "opus",
		Container:    "ogg",
		TempDir:      "",

		Hotkeys:   true,
		ToggleKey: "alt+q",
		CancelKey: "alt+x",

		LogLevel:  "info",
		LogPretty: true,
	}
}

// Load loads config from JSON file if provided. Missing keys keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveDefault writes a default config JSON to the provided path.
func SaveDefault(path string) error {
	b, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Environment variables read by ApplyEnv.
const (
	EnvToken          = "WHISPERING_TOKEN"
	EnvListenAddr     = "WHISPERING_LISTEN_ADDR"
	EnvAllowedOrigins = "WHISPERING_ALLOWED_ORIGINS"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding existing ones. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with values present in the environment.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvToken); ok {
		cfg.Token = v
	}
	if v, ok := os.LookupEnv(EnvListenAddr); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv(EnvAllowedOrigins); ok {
		cfg.AllowedOrigins = SplitList(v)
	}
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var codecs = map[string]bool{
	"opus": true, "libopus": true, "wavpack": true, "aac": true, "ac3": true,
	"eac3": true, "mp3": true, "mp2": true, "mp1": true, "flac": true,
	"alac": true, "pcm": true, "vorbis": true, "libvorbis": true, "vorb": true,
	"adpcm": true, "amr": true,
	"pcm_f32be": true, "pcm_f32le": true, "pcm_f64be": true, "pcm_f64le": true,
	"pcm_s16be": true, "pcm_s16le": true, "pcm_s24be": true, "pcm_s24le": true,
	"pcm_s32be": true, "pcm_s32le": true, "pcm_s64be": true, "pcm_s64le": true,
	"pcm_s8": true,
}

var containers = map[string]bool{
	"wav": true, "ac3": true, "ac4": true, "ogg": true, "oga": true,
	"mp3": true, "flac": true, "eac3": true, "aac": true, "m4a": true,
	"mp4": true, "opus": true, "webm": true,
	"s8": true, "s16be": true, "s16le": true, "s24be": true, "s24le": true,
	"s32be": true, "s32le": true, "f32be": true, "f32le": true, "f64be": true, "f64le": true,
}

func allowedList(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("invalid LISTEN_ADDR: must not be empty")
	}
	if cfg.DispatchTimeout < 0 {
		return fmt.Errorf("invalid DISPATCH_TIMEOUT: %v (must be >= 0)", cfg.DispatchTimeout)
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return fmt.Errorf("invalid RATE_LIMIT/RATE_BURST: %v/%d (must be >= 0)", cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.RateLimit > 0 && cfg.RateBurst == 0 {
		return fmt.Errorf("invalid RATE_BURST: 0 with RATE_LIMIT %v", cfg.RateLimit)
	}
	if cfg.SoundVolume < 0 || cfg.SoundVolume > 1 {
		return fmt.Errorf("invalid SOUND_VOLUME: %v (allowed 0..1)", cfg.SoundVolume)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %d (must be > 0)", cfg.RequestTimeout)
	}
	if cfg.MaxRetry < 1 {
		return fmt.Errorf("invalid MAX_RETRY: %d (must be >= 1)", cfg.MaxRetry)
	}
	if cfg.RetryBaseDelay < 0 {
		return fmt.Errorf("invalid RETRY_BASE_DELAY: %v (must be >= 0)", cfg.RetryBaseDelay)
	}
	if cfg.ExtraConfig != "" && !json.Valid([]byte(cfg.ExtraConfig)) {
		return fmt.Errorf("invalid EXTRA_CONFIG: not valid JSON")
	}
	if cfg.Channels < 1 || cfg.Channels > 8 {
		return fmt.Errorf("invalid CHANNELS: %d (allowed 1..8)", cfg.Channels)
	}
	if cfg.SamplingRate <= 0 {
		return fmt.Errorf("invalid SAMPLING_RATE: %d (must be > 0)", cfg.SamplingRate)
	}
	switch cfg.SampleDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("invalid SAMPLING_RATE_DEPTH: %d (allowed: 8,16,24,32)", cfg.SampleDepth)
	}
	if cfg.BitRate <= 0 {
		return fmt.Errorf("invalid BIT_RATE: %d (must be > 0)", cfg.BitRate)
	}
	if !codecs[strings.ToLower(cfg.Codec)] {
		return fmt.Errorf("invalid CODECS: %s (allowed: %s)", cfg.Codec, allowedList(codecs))
	}
	if !containers[strings.ToLower(cfg.Container)] {
		return fmt.Errorf("invalid CONTAINER: %s (allowed: %s)", cfg.Container, allowedList(containers))
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.LogLevel)
		}
	}
	return nil
}

// DispatchTimeoutDuration converts DISPATCH_TIMEOUT seconds to a duration.
func (c Config) DispatchTimeoutDuration() time.Duration {
	return time.Duration(c.DispatchTimeout * float64(time.Second))
}

// InitTempDir resolves and creates the directory for temporary recordings.
// An empty TEMP_DIR resolves to <os temp>/whispering.
func InitTempDir(cfg *Config) (string, error) {
	dir := cfg.TempDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "whispering")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("temp dir %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("temp dir %q exists but is not a directory", abs)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(abs, 0o700); err != nil {
			return "", fmt.Errorf("create temp dir %q: %w", abs, err)
		}
	case err != nil:
		return "", fmt.Errorf("access temp dir %q: %w", abs, err)
	}
	cfg.TempDir = abs
	return abs, nil
}

// ContainerExt maps a container name to its file extension.
func ContainerExt(container string) string {
	c := strings.ToLower(strings.TrimSpace(container))
	if c == "" {
		return "ogg"
	}
	return c
}
