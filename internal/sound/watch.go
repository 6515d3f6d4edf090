package sound

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

// ReloadDelay coalesces bursts of file events into one reload.
var ReloadDelay = 300 * time.Millisecond

// LoadBank returns the built-in tones overridden by the WAV files in dir.
func LoadBank(dir string) (map[message.Sound]Clip, []message.Sound, error) {
	bank := DefaultBank()
	loaded, err := LoadDir(bank, dir)
	return bank, loaded, err
}

// Watch reloads p's bank from dir whenever a .wav file in it is created,
// written, removed or renamed, until ctx is done. A failed reload keeps
// the previous bank.
func (p *Player) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l := log.Component("sound")
	l.Debug().Str("dir", dir).Msg("watching sound directory")

	go func() {
		defer w.Close()
		timer := time.NewTimer(ReloadDelay)
		if !timer.Stop() {
			<-timer.C
		}
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(ev.Name), ".wav") {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				timer.Reset(ReloadDelay)
			case <-timer.C:
				bank, loaded, err := LoadBank(dir)
				if err != nil {
					l.Warn().Err(err).Str("dir", dir).Msg("sound reload failed; keeping previous sounds")
					continue
				}
				p.SetBank(bank)
				l.Info().Int("custom", len(loaded)).Str("dir", dir).Msg("sounds reloaded")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Warn().Err(err).Msg("sound watcher error")
			}
		}
	}()
	return nil
}
