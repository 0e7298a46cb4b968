package http

import (
	"net/http"

	"agentforge/internal/config"
	apierrors "agentforge/internal/errors"
	"agentforge/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// RouterConfig collects what the route table dispatches to
type RouterConfig struct {
	Pipeline  *middleware.Pipeline
	Errors    *apierrors.ErrorHandler
	Health    *HealthHandler
	WebSocket http.Handler
}

// NewRouter builds the route table behind the request pipeline
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	cfg.Pipeline.Apply(r)

	r.NotFound(cfg.Errors.NotFound)
	r.MethodNotAllowed(cfg.Errors.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/", cfg.Health.Root)
		r.Get("/health", cfg.Health.Health)
		r.Get("/health/live", cfg.Health.Live)
		r.Get("/health/ready", cfg.Errors.Wrap(cfg.Health.Ready))
	})

	r.Route(config.APIPrefix, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		NewStubHandler(cfg.Errors).RegisterRoutes(r)
		if cfg.WebSocket != nil {
			r.Handle("/websocket", cfg.WebSocket)
			r.Handle("/websocket/", cfg.WebSocket)
		}
	})

	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket)
	}

	return r
}
