package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// FlagValues holds parsed flags with explicit set tracking. Only flags the
// user actually passed are copied onto a Config by ApplyFlags.
type FlagValues struct {
	vals     Config
	bindings map[string]binding
}

type binding struct {
	set  *bool
	copy func(dst, src *Config)
}

type stringFlag struct {
	target *string
	set    *bool
}

func (s *stringFlag) String() string {
	if s == nil || s.target == nil {
		return ""
	}
	return *s.target
}

func (s *stringFlag) Set(v string) error {
	*s.target = v
	*s.set = true
	return nil
}

type listFlag struct {
	target *[]string
	set    *bool
}

func (l *listFlag) String() string {
	if l == nil || l.target == nil {
		return ""
	}
	return strings.Join(*l.target, ",")
}

func (l *listFlag) Set(v string) error {
	*l.target = SplitList(v)
	*l.set = true
	return nil
}

type intFlag struct {
	target *int
	set    *bool
}

func (i *intFlag) String() string {
	if i == nil || i.target == nil {
		return ""
	}
	return strconv.Itoa(*i.target)
}

func (i *intFlag) Set(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*i.target = n
	*i.set = true
	return nil
}

type floatFlag struct {
	target *float64
	set    *bool
}

func (f *floatFlag) String() string {
	if f == nil || f.target == nil {
		return ""
	}
	return strconv.FormatFloat(*f.target, 'g', -1, 64)
}

func (f *floatFlag) Set(v string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return err
	}
	*f.target = n
	*f.set = true
	return nil
}

type boolFlag struct {
	target *bool
	set    *bool
}

func (b *boolFlag) String() string {
	if b == nil || b.target == nil {
		return ""
	}
	return strconv.FormatBool(*b.target)
}

func parseBoolExt(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

func (b *boolFlag) Set(v string) error {
	n, err := parseBoolExt(v)
	if err != nil {
		return err
	}
	*b.target = n
	*b.set = true
	return nil
}

func (fv *FlagValues) tracker(name string, copyField func(dst, src *Config)) *bool {
	set := new(bool)
	fv.bindings[name] = binding{set: set, copy: copyField}
	return set
}

func (fv *FlagValues) str(fs *flag.FlagSet, name, usage string, field func(*Config) *string) {
	set := fv.tracker(name, func(dst, src *Config) { *field(dst) = *field(src) })
	fs.Var(&stringFlag{field(&fv.vals), set}, name, usage)
}

func (fv *FlagValues) list(fs *flag.FlagSet, name, usage string, field func(*Config) *[]string) {
	set := fv.tracker(name, func(dst, src *Config) { *field(dst) = append([]string(nil), *field(src)...) })
	fs.Var(&listFlag{field(&fv.vals), set}, name, usage)
}

func (fv *FlagValues) integer(fs *flag.FlagSet, name, usage string, field func(*Config) *int) {
	set := fv.tracker(name, func(dst, src *Config) { *field(dst) = *field(src) })
	fs.Var(&intFlag{field(&fv.vals), set}, name, usage)
}

func (fv *FlagValues) float(fs *flag.FlagSet, name, usage string, field func(*Config) *float64) {
	set := fv.tracker(name, func(dst, src *Config) { *field(dst) = *field(src) })
	fs.Var(&floatFlag{field(&fv.vals), set}, name, usage)
}

func (fv *FlagValues) boolean(fs *flag.FlagSet, name, usage string, field func(*Config) *bool) {
	set := fv.tracker(name, func(dst, src *Config) { *field(dst) = *field(src) })
	fs.Var(&boolFlag{field(&fv.vals), set}, name, usage)
}

// BindFlags registers a flag for every Config field and returns the
// populated FlagValues.
func BindFlags(fs *flag.FlagSet) *FlagValues {
	fv := &FlagValues{bindings: make(map[string]binding)}

	fv.str(fs, "listen", "HTTP listen address", func(c *Config) *string { return &c.ListenAddr })
	fv.list(fs, "allowed-origins", "comma separated origin globs allowed to send messages (* for any)", func(c *Config) *[]string { return &c.AllowedOrigins })
	fv.float(fs, "dispatch-timeout", "seconds a collaborator may take per message (0 disables)", func(c *Config) *float64 { return &c.DispatchTimeout })
	fv.float(fs, "rate-limit", "requests per second per origin (0 disables)", func(c *Config) *float64 { return &c.RateLimit })
	fv.integer(fs, "rate-burst", "request burst per origin", func(c *Config) *int { return &c.RateBurst })
	fv.integer(fs, "event-buffer", "events buffered per websocket subscriber", func(c *Config) *int { return &c.EventBuffer })

	fv.boolean(fs, "notification", "show desktop notifications for toasts (true/false)", func(c *Config) *bool { return &c.Notification })
	fv.str(fs, "app-name", "title prefix for desktop notifications", func(c *Config) *string { return &c.AppName })
	fv.boolean(fs, "sounds", "play notification sounds (true/false)", func(c *Config) *bool { return &c.Sounds })
	fv.str(fs, "sound-dir", "directory with <sound>.wav overrides", func(c *Config) *string { return &c.SoundDir })
	fv.float(fs, "sound-volume", "sound volume 0..1", func(c *Config) *float64 { return &c.SoundVolume })
	fv.boolean(fs, "paste", "paste clipboard text at the cursor (true/false)", func(c *Config) *bool { return &c.Paste })

	fv.str(fs, "api-endpoint", "transcription API endpoint URL", func(c *Config) *string { return &c.APIEndpoint })
	fv.str(fs, "token", "authorization token", func(c *Config) *string { return &c.Token })
	fv.str(fs, "model", "model", func(c *Config) *string { return &c.Model })
	fv.str(fs, "language", "language", func(c *Config) *string { return &c.Language })
	fv.str(fs, "prompt", "prompt", func(c *Config) *string { return &c.Prompt })
	fv.str(fs, "text-path", "JSON path to extract text", func(c *Config) *string { return &c.TextPath })
	fv.str(fs, "extra-config", "extra JSON config to merge into request payload", func(c *Config) *string { return &c.ExtraConfig })
	fv.integer(fs, "request-timeout", "request timeout seconds", func(c *Config) *int { return &c.RequestTimeout })
	fv.integer(fs, "max-retry", "max upload attempts", func(c *Config) *int { return &c.MaxRetry })
	fv.float(fs, "retry-base-delay", "retry base delay seconds (float)", func(c *Config) *float64 { return &c.RetryBaseDelay })
	fv.boolean(fs, "enable-http2", "enable HTTP/2 (true/false)", func(c *Config) *bool { return &c.EnableHTTP2 })
	fv.boolean(fs, "verify-ssl", "verify TLS certificates (true/false)", func(c *Config) *bool { return &c.VerifySSL })

	fv.integer(fs, "channels", "channels (int)", func(c *Config) *int { return &c.Channels })
	fv.integer(fs, "sampling-rate", "sampling rate (Hz)", func(c *Config) *int { return &c.SamplingRate })
	fv.integer(fs, "sampling-rate-depth", "sampling depth (bits)", func(c *Config) *int { return &c.SampleDepth })
	fv.integer(fs, "bit-rate", "bit rate (kbps)", func(c *Config) *int { return &c.BitRate })
	fv.str(fs, "codecs", "audio codec (e.g. OPUS, AAC, MP3, FLAC)", func(c *Config) *string { return &c.Codec })
	fv.str(fs, "container", "audio container (e.g. OGG, MP3, FLAC, M4A)", func(c *Config) *string { return &c.Container })
	fv.str(fs, "temp-dir", "directory for temporary recordings", func(c *Config) *string { return &c.TempDir })

	fv.boolean(fs, "hotkeys", "register global hotkeys (true/false)", func(c *Config) *bool { return &c.Hotkeys })
	fv.str(fs, "toggle-key", "start/stop recording hotkey", func(c *Config) *string { return &c.ToggleKey })
	fv.str(fs, "cancel-key", "cancel recording hotkey", func(c *Config) *string { return &c.CancelKey })

	fv.str(fs, "log-level", "log level (debug, info, warn, error)", func(c *Config) *string { return &c.LogLevel })
	fv.boolean(fs, "log-pretty", "human readable console logs (true/false)", func(c *Config) *bool { return &c.LogPretty })

	return fv
}

// ApplyFlags applies present flags to the config.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	for _, b := range fv.bindings {
		if *b.set {
			b.copy(cfg, &fv.vals)
		}
	}
}

// AnySet reports whether any flag was explicitly set by the user.
func (fv *FlagValues) AnySet() bool {
	for _, b := range fv.bindings {
		if *b.set {
			return true
		}
	}
	return false
}

// IsSet reports whether the named flag was passed.
func (fv *FlagValues) IsSet(name string) bool {
	b, ok := fv.bindings[name]
	return ok && *b.set
}
