//go:build windows

package clipboard

import (
	"time"

	"github.com/micmonay/keybd_event"
)

// sendPasteKeys presses Ctrl+V in the focused window.
func sendPasteKeys() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return err
	}
	time.Sleep(40 * time.Millisecond)
	return nil
}
