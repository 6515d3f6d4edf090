// Package notify implements the toast service: UI events on the hub plus
// optional desktop notifications.
package notify

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/hub"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

// Notifier shows toasts. It never fails.
type Notifier struct {
	hub     *hub.Hub
	desktop bool
	appName string
	icon    string
	send    func(title, body, icon string) error
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// New creates a notifier publishing to h. Desktop notifications are sent
// only when desktop is true.
func New(h *hub.Hub, desktop bool, appName, icon string) *Notifier {
	return &Notifier{
		hub:     h,
		desktop: desktop,
		appName: appName,
		icon:    icon,
		send:    beeep.Notify,
		logger:  log.Component("notify"),
	}
}

// Toast publishes opts and returns its id, generating one when empty.
func (n *Notifier) Toast(_ context.Context, opts message.ToastOptions) any {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if n.hub != nil {
		n.hub.Publish(hub.EventToast, opts)
	}
	// loading toasts are transient UI state, not worth a desktop popup
	if n.desktop && opts.Variant != message.ToastLoading {
		n.deliver(opts.Title, opts.Description)
	}
	n.logger.Debug().
		Str("id", opts.ID).
		Str("variant", string(opts.Variant)).
		Str("title", opts.Title).
		Msg("toast")
	return opts.ID
}

// Notify shows an informational toast with the application name as title.
func (n *Notifier) Notify(body string) {
	n.Toast(context.Background(), message.ToastOptions{
		Variant:     message.ToastInfo,
		Title:       n.appName,
		Description: body,
	})
}

func (n *Notifier) deliver(title, body string) {
	if n.appName != "" && title != n.appName {
		title = n.appName + ": " + title
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(title, body, n.icon); err != nil {
			n.logger.Warn().Err(err).Msg("desktop notification failed")
		}
	}()
}

// Wait blocks until pending desktop notifications have been sent.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
