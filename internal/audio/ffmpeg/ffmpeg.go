// Package ffmpeg converts captured WAV audio into the upload format by
// shelling out to the ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Pr4c0w1ty/whispering/internal/log"
)

// Options describes the target encoding.
type Options struct {
	Codec      string
	Channels   int
	SampleRate int
	Depth      int
	BitRate    int // kbps
}

// codec name -> ffmpeg encoder, and whether -b:a applies.
var encoders = map[string]struct {
	name    string
	bitrate bool
}{
	"opus":      {"libopus", true},
	"libopus":   {"libopus", true},
	"wavpack":   {"wavpack", false},
	"aac":       {"aac", true},
	"ac3":       {"ac3", true},
	"eac3":      {"eac3", true},
	"mp3":       {"libmp3lame", true},
	"mp2":       {"mp2", true},
	"mp1":       {"mp1", true},
	"flac":      {"flac", false},
	"alac":      {"alac", false},
	"pcm":       {"pcm_s16le", false},
	"vorbis":    {"libvorbis", true},
	"libvorbis": {"libvorbis", true},
	"vorb":      {"libvorbis", true},
	"adpcm":     {"adpcm_ms", false},
	"amr":       {"libopencore_amrnb", true},
}

var sampleFormats = map[int]string{8: "u8", 16: "s16", 24: "s24", 32: "s32"}

// Encoder maps a configured codec to the ffmpeg encoder name.
func Encoder(codec string) (name string, bitrate bool, ok bool) {
	k := strings.ToLower(strings.TrimSpace(codec))
	if strings.HasPrefix(k, "pcm_") {
		return k, false, true
	}
	e, ok := encoders[k]
	return e.name, e.bitrate, ok
}

// Args builds the ffmpeg argument list for converting in to out.
func Args(opts Options, in, out string) ([]string, error) {
	enc, hasBitrate, ok := Encoder(opts.Codec)
	if !ok {
		return nil, fmt.Errorf("unsupported codec: %s", opts.Codec)
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	bitrate := opts.BitRate
	if bitrate <= 0 {
		bitrate = 128
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in,
		"-ac", strconv.Itoa(channels), "-ar", strconv.Itoa(rate), "-c:a", enc}
	if !strings.HasPrefix(enc, "pcm_") {
		if hasBitrate {
			args = append(args, "-b:a", strconv.Itoa(bitrate)+"k")
		}
		if f, ok := sampleFormats[opts.Depth]; ok && enc != "libopus" && enc != "libmp3lame" {
			args = append(args, "-sample_fmt", f)
		}
	}
	return append(args, out), nil
}

// Binary is the ffmpeg executable, looked up in PATH.
var Binary = "ffmpeg"

// Convert runs ffmpeg and returns its stderr in the error on failure.
func Convert(ctx context.Context, opts Options, in, out string) error {
	args, err := Args(opts, in, out)
	if err != nil {
		return err
	}
	l := log.Component("ffmpeg")
	l.Debug().Strs("args", args).Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Converter binds Options for repeated conversions.
type Converter struct {
	Options Options
}

func (c Converter) Convert(ctx context.Context, in, out string) error {
	return Convert(ctx, c.Options, in, out)
}
