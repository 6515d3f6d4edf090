//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/Pr4c0w1ty/whispering/internal/log"
)

const (
	modNoRepeat = 0x4000
	wmHotkey    = 0x0312
	wmQuit      = 0x0012
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procPostThreadMsgW   = user32.NewProc("PostThreadMessageW")
	procGetCurrentThread = kernel32.NewProc("GetCurrentThreadId")
)

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// Register installs global hotkeys on a dedicated OS thread and calls
// handler for every press until ctx is done. It returns once registration
// succeeded or failed.
func Register(ctx context.Context, bindings []Binding, handler func(Action)) error {
	chords := make([]Chord, len(bindings))
	for i, b := range bindings {
		c, err := Parse(b.Spec)
		if err != nil {
			return err
		}
		chords[i] = c
	}

	l := log.Component("hotkey")
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		registered := 0
		defer func() {
			for i := 0; i < registered; i++ {
				procUnregisterHotKey.Call(0, uintptr(i+1))
			}
		}()
		for i, c := range chords {
			r, _, callErr := procRegisterHotKey.Call(0, uintptr(i+1), uintptr(c.Mod|modNoRepeat), uintptr(c.VK))
			if r == 0 {
				errCh <- fmt.Errorf("RegisterHotKey failed for %q: %v", bindings[i].Spec, callErr)
				return
			}
			registered++
			l.Debug().Str("spec", bindings[i].Spec).Stringer("action", bindings[i].Action).
				Uint32("mod", c.Mod).Uint32("vk", c.VK).Msg("hotkey registered")
		}

		tid, _, _ := procGetCurrentThread.Call()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				procPostThreadMsgW.Call(tid, wmQuit, 0, 0)
			case <-stop:
			}
		}()
		errCh <- nil

		var msg winMsg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			switch int32(ret) {
			case -1:
				l.Error().Msg("GetMessageW failed; hotkeys disabled")
				return
			case 0:
				l.Debug().Msg("hotkey loop stopped")
				return
			}
			if msg.Message != wmHotkey {
				continue
			}
			idx := int(msg.WParam) - 1
			if idx < 0 || idx >= len(bindings) {
				continue
			}
			a := bindings[idx].Action
			l.Debug().Stringer("action", a).Msg("hotkey pressed")
			// keep the message loop responsive while the action runs
			go handler(a)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("timeout registering hotkeys")
	}
}
