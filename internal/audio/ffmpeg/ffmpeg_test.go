package ffmpeg

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "opus keeps bitrate and skips sample format",
			opts: Options{Codec: "OPUS", Channels: 1, SampleRate: 16000, Depth: 16, BitRate: 64},
			want: []string{"-ac", "1", "-ar", "16000", "-c:a", "libopus", "-b:a", "64k", "out.ogg"},
		},
		{
			name: "flac has no bitrate",
			opts: Options{Codec: "flac", Channels: 2, SampleRate: 44100, Depth: 24},
			want: []string{"-ac", "2", "-ar", "44100", "-c:a", "flac", "-sample_fmt", "s24", "out.ogg"},
		},
		{
			name: "raw pcm passes through",
			opts: Options{Codec: "pcm_s16le", Depth: 16},
			want: []string{"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "out.ogg"},
		},
	}
	for _, tt := range tests {
		args, err := Args(tt.opts, "in.wav", "out.ogg")
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		// strip the common prefix up to and including the input
		i := indexOf(args, "in.wav")
		if i < 0 || args[i-1] != "-i" {
			t.Fatalf("%s: input missing in %v", tt.name, args)
		}
		if got := args[i+1:]; !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s:\n got %v\nwant %v", tt.name, got, tt.want)
		}
	}
}

func TestArgsUnsupportedCodec(t *testing.T) {
	if _, err := Args(Options{Codec: "speex"}, "a", "b"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConvertReportsMissingBinary(t *testing.T) {
	old := Binary
	Binary = "whispering-no-such-ffmpeg"
	defer func() { Binary = old }()

	err := Convert(context.Background(), Options{Codec: "opus"}, "in.wav", "out.ogg")
	if err == nil || !strings.Contains(err.Error(), "ffmpeg failed") {
		t.Fatalf("expected ffmpeg failure, got %v", err)
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
