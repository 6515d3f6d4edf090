// Package hotkey binds global keyboard shortcuts to dictation actions.
package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is what a hotkey triggers.
type Action int

const (
	ActionToggle Action = iota + 1
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionCancel:
		return "cancel"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Binding maps a key spec such as "alt+q" or "ctrl+shift+F1" to an action.
type Binding struct {
	Action Action
	Spec   string
}

// ErrUnsupported is returned by Register on platforms without global
// hotkeys.
var ErrUnsupported = errors.New("global hotkeys not supported on this platform")

// Modifier masks, matching the Win32 MOD_* values.
const (
	ModAlt   uint32 = 0x0001
	ModCtrl  uint32 = 0x0002
	ModShift uint32 = 0x0004
	ModWin   uint32 = 0x0008
)

// Chord is a parsed key spec: a modifier mask plus a virtual-key code.
type Chord struct {
	Mod uint32
	VK  uint32
}

var modifiers = map[string]uint32{
	"alt": ModAlt, "menu": ModAlt,
	"ctrl": ModCtrl, "control": ModCtrl,
	"shift": ModShift,
	"win": ModWin, "meta": ModWin, "super": ModWin, "cmd": ModWin,
}

var namedKeys = map[string]uint32{
	"esc": 0x1B, "escape": 0x1B,
	"space": 0x20,
	"enter": 0x0D, "return": 0x0D,
	"tab":       0x09,
	"backspace": 0x08,
	"insert":    0x2D,
	"delete":    0x2E,
	"home":      0x24,
	"end":       0x23,
	"pageup":    0x21,
	"pagedown":  0x22,
	"left":      0x25,
	"up":        0x26,
	"right":     0x27,
	"down":      0x28,
	"add":       0x6B, "plus": 0x6B, "kpadd": 0x6B,
	"subtract": 0x6D, "minus": 0x6D, "kpsubtract": 0x6D,
	";": 0xBA, "=": 0xBB, ",": 0xBC, "-": 0xBD, ".": 0xBE, "/": 0xBF,
	"`": 0xC0, "[": 0xDB, "\\": 0xDC, "]": 0xDD, "'": 0xDE,
}

// Parse accepts strings like "alt+q", "ctrl+shift+F1", "esc" or
// "numpad5". Modifiers are case-insensitive and may repeat.
func Parse(spec string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return Chord{}, fmt.Errorf("empty key in %q", spec)
	}
	var c Chord
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifiers[strings.TrimSpace(p)]
		if !ok {
			return Chord{}, fmt.Errorf("unknown modifier %q in %q", p, spec)
		}
		c.Mod |= m
	}

	switch {
	case len(key) == 1 && key[0] >= 'a' && key[0] <= 'z':
		c.VK = uint32(key[0]-'a') + 'A'
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		c.VK = uint32(key[0])
	case strings.HasPrefix(key, "f") && len(key) > 1:
		n, err := strconv.Atoi(key[1:])
		if err != nil || n < 1 || n > 24 {
			return Chord{}, fmt.Errorf("unsupported key %q in %q", key, spec)
		}
		c.VK = 0x70 + uint32(n-1)
	default:
		if n, ok := numpad(key); ok {
			c.VK = 0x60 + n
			break
		}
		vk, ok := namedKeys[key]
		if !ok {
			return Chord{}, fmt.Errorf("unsupported key %q in %q", key, spec)
		}
		c.VK = vk
	}
	return c, nil
}

func numpad(key string) (uint32, bool) {
	for _, prefix := range []string{"numpad", "num", "kp"} {
		if rest, ok := strings.CutPrefix(key, prefix); ok && len(rest) == 1 && rest[0] >= '0' && rest[0] <= '9' {
			return uint32(rest[0] - '0'), true
		}
	}
	return 0, false
}
