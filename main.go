package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Pr4c0w1ty/whispering/internal/app"
	"github.com/Pr4c0w1ty/whispering/internal/config"
	"github.com/Pr4c0w1ty/whispering/internal/log"
)

const defaultConfigPath = "config.json"

var version = "dev"

// errDefaultCreated means a default config file was written and the user
// should edit it before running again.
var errDefaultCreated = errors.New("default config created")

func usage() {
	programName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `Usage: %s [options]

Local bridge between the Whispering extension and the desktop: clipboard,
notifications, sounds and push-to-talk dictation.

Modes:
  (default)
        serve the HTTP API on LISTEN_ADDR and register global hotkeys (Windows)
  -native
        run as a Chrome/Firefox native messaging host on stdin/stdout.
        Implied when browsers launch the host: Chrome passes the caller
        origin (chrome-extension://<id>/), Firefox passes the manifest path
        followed by the add-on id.
  -file <string>
        convert and transcribe an existing audio file, print the text, write
        it to -output (default ./<name>.txt) and copy it to the clipboard.

[Config file]
  -config <string>
        config file (JSON). Defaults to ./config.json; when it does not exist
        and no flags are given, a default file is written and the program exits.

[Bridge]
  -listen <string>             HTTP listen address (default 127.0.0.1:4749)
  -allowed-origins <list>      comma separated origin globs, * allows any
  -dispatch-timeout <float>    seconds per collaborator call, 0 disables (default 15)
  -rate-limit <float>          requests per second per origin, 0 disables (default 20)
  -rate-burst <int>            burst per origin (default 40)
  -event-buffer <int>          events buffered per websocket subscriber (default 32)

[Desktop]
  -notification <true|false>   desktop notifications for toasts (default true)
  -app-name <string>           notification title prefix
  -sounds <true|false>         notification sounds (default true)
  -sound-dir <string>          directory with start.wav, stop.wav, cancel.wav, ding.wav
  -sound-volume <float>        0..1 (default 0.8)
  -paste <true|false>          paste transcripts at the cursor (default false)

[Transcription API]
  -api-endpoint <string>       ASR endpoint URL (e.g. https://api.example/v1/audio/transcriptions)
  -token <string>              bearer token; also WHISPERING_TOKEN
  -model, -language, -prompt <string>
  -text-path <string>          JSON path to the text in the response, dot and [index] syntax
                               examples: "text", "results[0].alternatives[0].transcript"
  -extra-config <string>       escaped JSON object merged into the request form,
                               e.g. "{\"language_hints\":[\"zh\",\"en\"]}"
  -request-timeout <int>       seconds (default 30)
  -max-retry <int>             upload attempts (default 3)
  -retry-base-delay <float>    seconds, doubled per retry (default 0.5)
  -enable-http2 <true|false>   (default true)
  -verify-ssl <true|false>     (default true)

[ffmpeg]
  -codecs <string>             OPUS, AAC, MP3, FLAC, VORBIS, PCM_S16LE, ... (default OPUS)
  -container <string>          OGG, MP3, FLAC, M4A, WEBM, WAV, ... (default OGG)
  -channels <int>              (default 1)
  -sampling-rate <int>         Hz (default 16000)
  -sampling-rate-depth <int>   8, 16, 24 or 32 (default 16)
  -bit-rate <int>              kbps (default 64)
  -temp-dir <string>           directory for RecordTemp_* files

[Hotkeys]
  -hotkeys <true|false>        register global hotkeys (default true, Windows only)
  -toggle-key <string>         start/stop recording (default "alt+q")
  -cancel-key <string>         cancel recording (default "alt+x")
        modifiers: ctrl, alt, shift, win; keys: a..z, 0..9, f1..f24,
        numpad0..numpad9, esc, enter, space, tab, home, end, left, up, ...

[Logging]
  -log-level <string>          trace, debug, info, warn, error (default info)
  -log-pretty <true|false>     console output instead of JSON (default true)

  -version                     print version and exit
  -h, -help                    show this help

Examples:
  %s -config config.json
  %s -token sk-xxx -allowed-origins "chrome-extension://abcdef*"
  %s -file meeting.wav -text-path results[0].text

Notes:
- Precedence: flags > environment (.env) > config file > defaults
- RecordTemp_* files left in the temp directory are removed at startup
`, programName, programName, programName, programName)
}

func main() {
	fs := flag.CommandLine
	fs.Usage = usage
	configPath := fs.String("config", "", "path to config JSON")
	nativeMode := fs.Bool("native", false, "run as native messaging host")
	filePath := fs.String("file", "", "transcribe an existing audio file and exit")
	outputPath := fs.String("output", "", "text output path for -file")
	showVersion := fs.Bool("version", false, "print version")
	fv := config.BindFlags(fs)
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	callerOrigin, launched := nativeCaller(flag.Args())
	if launched {
		*nativeMode = true
	}

	// stdout carries native messages, so nothing else may print there
	out := os.Stdout
	if *nativeMode {
		out = os.Stderr
	}

	cfg, err := loadConfig(*configPath, fv, !*nativeMode)
	if errors.Is(err, errDefaultCreated) {
		fmt.Fprintf(out, "default config created at %s. Please edit it and re-run.\n", defaultConfigPath)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(out, cfg.LogLevel, cfg.LogPretty && !*nativeMode)
	logger := log.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *filePath != "":
		var text string
		text, err = app.RunFileMode(ctx, cfg, *filePath, *outputPath)
		if err == nil {
			fmt.Fprintln(out, text)
		}
	case *nativeMode:
		err = app.RunNative(ctx, cfg, callerOrigin, os.Stdin, os.Stdout)
	default:
		err = app.RunServer(ctx, cfg, version)
	}
	if err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

// nativeCaller reports whether args look like a browser launching a native
// messaging host, and the caller origin when the browser passes one.
// Chrome: <origin> [--parent-window=<n>]. Firefox: <manifest path> <add-on id>.
func nativeCaller(args []string) (callerOrigin string, native bool) {
	if len(args) == 0 {
		return "", false
	}
	if strings.Contains(args[0], "-extension://") {
		return args[0], true
	}
	if len(args) >= 2 && strings.EqualFold(filepath.Ext(args[0]), ".json") {
		// Firefox only names the add-on, not its moz-extension origin
		return "", true
	}
	return "", false
}

// loadConfig resolves the configuration:
//   - -config given: load it.
//   - ./config.json exists: load it.
//   - neither, and no flags: write a default config.json (when allowed) and
//     return errDefaultCreated.
//   - otherwise defaults.
//
// .env and environment variables are applied next, flags last.
func loadConfig(path string, fv *config.FlagValues, allowCreate bool) (config.Config, error) {
	var cfg config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.Load(path)
	default:
		_, statErr := os.Stat(defaultConfigPath)
		switch {
		case statErr == nil:
			cfg, err = config.Load(defaultConfigPath)
		case !errors.Is(statErr, os.ErrNotExist):
			return cfg, fmt.Errorf("stat %s: %w", defaultConfigPath, statErr)
		case allowCreate && !fv.AnySet():
			if err := config.SaveDefault(defaultConfigPath); err != nil {
				return cfg, fmt.Errorf("write default config: %w", err)
			}
			return cfg, errDefaultCreated
		default:
			cfg = config.DefaultConfig()
		}
	}
	if err != nil {
		return cfg, err
	}

	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg)
	config.ApplyFlags(&cfg, fv)

	if err := config.Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
