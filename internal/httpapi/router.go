// Package httpapi exposes the gateway and the dictation controls over a
// local HTTP server.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/gateway"
	"github.com/Pr4c0w1ty/whispering/internal/hub"
	"github.com/Pr4c0w1ty/whispering/internal/message"
	"github.com/Pr4c0w1ty/whispering/internal/origin"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 64 * 1024

// Dictation is the local recording control surface.
type Dictation interface {
	Toggle(ctx context.Context) (message.RecorderState, error)
	Cancel(ctx context.Context) (message.RecorderState, error)
}

// StateReader reports the current recorder state.
type StateReader interface {
	State() message.RecorderState
}

// Deps wires the router. Dictation and Hub may be nil; their routes then
// answer 503.
type Deps struct {
	Gateway   gateway.Handler
	Policy    *origin.Policy
	Dictation Dictation
	States    StateReader
	Hub       *hub.Hub
	RateLimit float64 // requests per second per origin, 0 disables
	RateBurst int
	Version   string
	Logger    zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(MaxBodySize(MaxBodyBytes))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, o string) bool { return d.Policy.Allowed(o) },
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:  []string{"Accept", "Content-Type", HeaderExtensionID, HeaderTabID},
		ExposedHeaders:  []string{"Retry-After"},
		MaxAge:          300,
	}))

	h := &handler{d: d, logger: d.Logger}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if d.RateLimit > 0 {
			r.Use(NewRateLimiter(d.RateLimit, d.RateBurst, 10*time.Minute, d.Logger).Middleware)
		}
		r.Post("/external", h.External)
		r.Get("/recorder-state", h.RecorderState)
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(RequireOrigin(d.Policy, d.Logger))
			r.Post("/recording/toggle", h.Toggle)
			r.Post("/recording/cancel", h.Cancel)
		})
	})

	return r
}
