// Package origin authorizes external senders before their messages reach
// the gateway.
package origin

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/gateway"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/metrics"
)

// Policy is an allow-list of origin glob patterns such as
// "https://*.whispering.app" or "chrome-extension://abcdef". An empty
// policy, or one containing "*", allows every origin.
type Policy struct {
	patterns []string
	any      bool
}

// NewPolicy validates and compiles patterns.
func NewPolicy(patterns []string) (*Policy, error) {
	p := &Policy{}
	for _, raw := range patterns {
		pat := strings.TrimRight(strings.TrimSpace(raw), "/")
		if pat == "" {
			continue
		}
		if pat == "*" {
			p.any = true
			continue
		}
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid origin pattern %q", raw)
		}
		p.patterns = append(p.patterns, strings.ToLower(pat))
	}
	if len(p.patterns) == 0 {
		p.any = true
	}
	return p, nil
}

// AllowsAll reports whether every origin is accepted.
func (p *Policy) AllowsAll() bool { return p.any }

// Allowed reports whether origin matches the policy. Empty origins are
// only allowed by an open policy.
func (p *Policy) Allowed(origin string) bool {
	if p.any {
		return true
	}
	o := strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if o == "" {
		return false
	}
	for _, pat := range p.patterns {
		if ok, _ := doublestar.Match(pat, o); ok {
			return true
		}
	}
	return false
}

// Guard wraps a gateway handler and rejects senders the policy does not
// allow. Rejections never reach collaborators and are not toasted.
type Guard struct {
	policy *Policy
	next   gateway.Handler
	logger zerolog.Logger
}

func NewGuard(policy *Policy, next gateway.Handler) *Guard {
	return &Guard{policy: policy, next: next, logger: log.Component("origin")}
}

func (g *Guard) Handle(ctx context.Context, raw []byte, sender gateway.Sender) gateway.Envelope {
	if g.policy.Allowed(sender.Origin) {
		return g.next.Handle(ctx, raw, sender)
	}
	metrics.BlockedRequests.WithLabelValues("origin").Inc()
	g.logger.Warn().
		Str("origin", sender.Origin).
		Str("transport", sender.Transport).
		Msg("rejected message from origin outside allow-list")
	return gateway.Failure(apperr.New(
		apperr.KindOriginNotAllowed,
		"Origin not allowed",
		fmt.Sprintf("%q is not permitted to send messages", sender.Origin),
	))
}
