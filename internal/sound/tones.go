package sound

import (
	"math"

	"github.com/Pr4c0w1ty/whispering/internal/message"
)

const toneRate = 44100

type note struct {
	freq float64
	ms   int
}

// DefaultBank synthesizes a clip for every known sound.
func DefaultBank() map[message.Sound]Clip {
	return map[message.Sound]Clip{
		message.SoundStart:  chime(note{660, 90}, note{880, 140}),
		message.SoundStop:   chime(note{880, 90}, note{660, 140}),
		message.SoundCancel: chime(note{440, 80}, note{0, 40}, note{330, 160}),
		message.SoundDing:   bell(1320, 450),
	}
}

// chime concatenates short enveloped sine notes. A zero frequency is a rest.
func chime(notes ...note) Clip {
	var samples []float32
	pitch := 0.0
	for _, n := range notes {
		samples = append(samples, sine(n.freq, n.ms, 0.4, 0)...)
		if n.freq > pitch {
			pitch = n.freq
		}
	}
	return Clip{Samples: samples, SampleRate: toneRate, Pitch: pitch}
}

// bell is a single tone with an exponential decay.
func bell(freq float64, ms int) Clip {
	return Clip{Samples: sine(freq, ms, 0.5, 6), SampleRate: toneRate, Pitch: freq}
}

func sine(freq float64, ms int, amp float64, decay float64) []float32 {
	n := toneRate * ms / 1000
	out := make([]float32, n)
	if freq == 0 {
		return out
	}
	fade := toneRate / 200 // 5ms ramps avoid clicks
	for i := range out {
		t := float64(i) / toneRate
		v := amp * math.Sin(2*math.Pi*freq*t)
		if decay > 0 {
			v *= math.Exp(-decay * t)
		}
		switch {
		case i < fade:
			v *= float64(i) / float64(fade)
		case i > n-fade:
			v *= float64(n-i) / float64(fade)
		}
		out[i] = float32(v)
	}
	return out
}
