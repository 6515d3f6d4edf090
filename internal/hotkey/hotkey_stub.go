//go:build !windows

package hotkey

import "context"

// Register is not supported on non-Windows builds.
func Register(ctx context.Context, bindings []Binding, handler func(Action)) error {
	for _, b := range bindings {
		if _, err := Parse(b.Spec); err != nil {
			return err
		}
	}
	return ErrUnsupported
}
