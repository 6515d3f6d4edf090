//go:build !windows

package clipboard

import (
	"runtime"

	"github.com/micmonay/keybd_event"
)

// sendPasteKeys presses Ctrl+V (Cmd+V on macOS). On Linux this needs access
// to /dev/uinput.
func sendPasteKeys() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
