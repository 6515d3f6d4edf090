// Package sound plays the short notification sounds that accompany
// recorder transitions.
package sound

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

// Clip is mono PCM audio in the range [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
	// Pitch is the dominant frequency, used by outputs that can only beep.
	Pitch float64
}

// Output renders a clip. Play blocks until the clip finished or ctx ends.
type Output interface {
	Play(ctx context.Context, clip Clip) error
}

// Player serializes playback; only one sound is audible at a time.
type Player struct {
	mu      sync.Mutex
	enabled bool
	volume  float32
	out     Output
	logger  zerolog.Logger

	bankMu sync.RWMutex
	bank   map[message.Sound]Clip
}

// NewPlayer creates a player over bank. A disabled player accepts every
// known sound without playing it.
func NewPlayer(out Output, bank map[message.Sound]Clip, enabled bool, volume float64) *Player {
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	return &Player{
		enabled: enabled,
		volume:  float32(volume),
		bank:    bank,
		out:     out,
		logger:  log.Component("sound"),
	}
}

// PlaySound plays s and returns once playback finished.
func (p *Player) PlaySound(ctx context.Context, s message.Sound) (any, error) {
	p.bankMu.RLock()
	clip, ok := p.bank[s]
	p.bankMu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.KindSound, "Unable to play sound", fmt.Sprintf("unknown sound %q", s))
	}
	if !p.enabled {
		p.logger.Debug().Str("sound", string(s)).Msg("sounds disabled; skipping")
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.out.Play(ctx, scale(clip, p.volume)); err != nil {
		return nil, apperr.Wrap(apperr.KindSound, "Unable to play sound", err.Error(), err)
	}
	p.logger.Debug().Str("sound", string(s)).Msg("sound played")
	return nil, nil
}

// SetBank swaps the sound bank used by later PlaySound calls.
func (p *Player) SetBank(bank map[message.Sound]Clip) {
	p.bankMu.Lock()
	p.bank = bank
	p.bankMu.Unlock()
}

func scale(c Clip, v float32) Clip {
	if v == 1 {
		return c
	}
	out := c
	out.Samples = make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out.Samples[i] = s * v
	}
	return out
}

// Fallback plays through Primary and switches to Secondary when Primary
// fails.
type Fallback struct {
	Primary   Output
	Secondary Output
}

func (f Fallback) Play(ctx context.Context, clip Clip) error {
	err := f.Primary.Play(ctx, clip)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return err
	}
	l := log.Component("sound")
	l.Warn().Err(err).Msg("primary audio output failed; falling back")
	return f.Secondary.Play(ctx, clip)
}
