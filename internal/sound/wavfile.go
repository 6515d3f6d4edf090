package sound

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Pr4c0w1ty/whispering/internal/message"
)

// LoadDir replaces entries of bank with <dir>/<sound>.wav where such a
// file exists. It returns the sounds that were overridden.
func LoadDir(bank map[message.Sound]Clip, dir string) ([]message.Sound, error) {
	if dir == "" {
		return nil, nil
	}
	var loaded []message.Sound
	for _, s := range message.Sounds {
		path := filepath.Join(dir, string(s)+".wav")
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, err
		}
		clip, err := DecodeWAV(f)
		f.Close()
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}
		clip.Pitch = bank[s].Pitch
		bank[s] = clip
		loaded = append(loaded, s)
	}
	return loaded, nil
}

// DecodeWAV reads a PCM WAV stream and downmixes it to a mono clip.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("wav file has no usable format")
	}
	return Clip{Samples: downmix(buf, int(d.BitDepth)), SampleRate: buf.Format.SampleRate}, nil
}

func downmix(buf *audio.IntBuffer, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := float32(int64(1) << (bitDepth - 1))
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			v := buf.Data[i*ch+c]
			if bitDepth == 8 {
				// 8-bit wav is unsigned
				v -= 128
			}
			sum += float32(v) / full
		}
		out[i] = sum / float32(ch)
	}
	return out
}
