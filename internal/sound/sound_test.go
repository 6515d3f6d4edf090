package sound

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

type fakeOutput struct {
	played []Clip
	err    error
}

func (f *fakeOutput) Play(ctx context.Context, clip Clip) error {
	f.played = append(f.played, clip)
	return f.err
}

func TestDefaultBankCoversEverySound(t *testing.T) {
	bank := DefaultBank()
	for _, s := range message.Sounds {
		clip, ok := bank[s]
		if !ok {
			t.Fatalf("missing clip for %s", s)
		}
		if len(clip.Samples) == 0 || clip.SampleRate != toneRate || clip.Pitch <= 0 {
			t.Fatalf("bad clip for %s: %d samples, rate %d, pitch %v", s, len(clip.Samples), clip.SampleRate, clip.Pitch)
		}
		for _, v := range clip.Samples {
			if v > 1 || v < -1 {
				t.Fatalf("%s: sample out of range: %v", s, v)
			}
		}
	}
}

func TestPlaySound(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, DefaultBank(), true, 0.5)

	if _, err := p.PlaySound(context.Background(), message.SoundDing); err != nil {
		t.Fatalf("PlaySound failed: %v", err)
	}
	if len(out.played) != 1 {
		t.Fatalf("expected one clip, got %d", len(out.played))
	}
	orig := DefaultBank()[message.SoundDing].Samples
	got := out.played[0].Samples
	for i := range orig {
		if math.Abs(float64(got[i]-orig[i]*0.5)) > 1e-6 {
			t.Fatalf("sample %d not scaled: %v vs %v", i, got[i], orig[i])
		}
	}
}

func TestPlaySoundErrors(t *testing.T) {
	out := &fakeOutput{err: errors.New("no device")}
	p := NewPlayer(out, DefaultBank(), true, 1)

	_, err := p.PlaySound(context.Background(), message.SoundStart)
	if apperr.KindOf(err) != apperr.KindSound {
		t.Fatalf("expected SoundError, got %v", err)
	}
	_, err = p.PlaySound(context.Background(), message.Sound("boom"))
	if apperr.KindOf(err) != apperr.KindSound {
		t.Fatalf("expected SoundError for unknown sound, got %v", err)
	}
}

func TestDisabledPlayerIsSilent(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, DefaultBank(), false, 1)
	if _, err := p.PlaySound(context.Background(), message.SoundStop); err != nil {
		t.Fatalf("PlaySound failed: %v", err)
	}
	if len(out.played) != 0 {
		t.Fatalf("disabled player produced audio")
	}
}

func TestFallback(t *testing.T) {
	primary := &fakeOutput{err: errors.New("portaudio unavailable")}
	secondary := &fakeOutput{}
	f := Fallback{Primary: primary, Secondary: secondary}

	if err := f.Play(context.Background(), DefaultBank()[message.SoundCancel]); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(primary.played) != 1 || len(secondary.played) != 1 {
		t.Fatalf("expected both outputs tried, got %d/%d", len(primary.played), len(secondary.played))
	}
}

func writeTestWAV(t *testing.T, path string, rate int, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestLoadDirOverridesBank(t *testing.T) {
	dir := t.TempDir()
	// stereo frames: (16384, 0) and (-16384, -16384)
	writeTestWAV(t, filepath.Join(dir, "ding.wav"), 8000, 2, []int{16384, 0, -16384, -16384})

	bank := DefaultBank()
	loaded, err := LoadDir(bank, dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != message.SoundDing {
		t.Fatalf("unexpected overrides: %v", loaded)
	}
	clip := bank[message.SoundDing]
	if clip.SampleRate != 8000 || len(clip.Samples) != 2 {
		t.Fatalf("unexpected clip: rate %d, %d samples", clip.SampleRate, len(clip.Samples))
	}
	if math.Abs(float64(clip.Samples[0]-0.25)) > 1e-6 || math.Abs(float64(clip.Samples[1]+0.5)) > 1e-6 {
		t.Fatalf("unexpected samples: %v", clip.Samples)
	}
	if clip.Pitch == 0 {
		t.Fatalf("pitch should be kept from the default clip")
	}
	if bank[message.SoundStart].SampleRate != toneRate {
		t.Fatalf("non-overridden sounds must keep defaults")
	}
}

func TestLoadDirRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stop.wav"), []byte("not a wav"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDir(DefaultBank(), dir); err == nil {
		t.Fatalf("expected decode error")
	}
}
