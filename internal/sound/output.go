package sound

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/gordonklaus/portaudio"
)

// PortAudio plays clips on the default output device.
type PortAudio struct {
	FramesPerBuffer int
}

func (p PortAudio) Play(ctx context.Context, clip Clip) error {
	frames := p.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	out := make([]float32, frames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(clip.SampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("open output stream failed: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream failed: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(clip.Samples); pos += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, clip.Samples[pos:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream failed: %w", err)
		}
	}
	return nil
}

// Beep plays a clip as a plain system beep at its pitch.
type Beep struct{}

func (Beep) Play(_ context.Context, clip Clip) error {
	ms := 0
	if clip.SampleRate > 0 {
		ms = len(clip.Samples) * 1000 / clip.SampleRate
	}
	freq := clip.Pitch
	if freq <= 0 {
		freq = beeep.DefaultFreq
	}
	return beeep.Beep(freq, ms)
}
