package http

import (
	"net/http"

	apierrors "agentforge/internal/errors"

	"github.com/go-chi/chi/v5"
)

const defaultStubDetail = "Not Implemented"

type stubRoute struct {
	method  string
	pattern string
	detail  string
}

type stubGroup struct {
	prefix string
	routes []stubRoute
}

// stubGroups lists the API surface that is reserved but not built yet
var stubGroups = []stubGroup{
	{prefix: "/auth", routes: []stubRoute{
		{http.MethodPost, "/register", "Registration endpoint not yet implemented"},
		{http.MethodPost, "/login", "Login endpoint not yet implemented"},
		{http.MethodPost, "/refresh", "Token refresh endpoint not yet implemented"},
		{http.MethodPost, "/logout", "Logout endpoint not yet implemented"},
		{http.MethodGet, "/me", "Current user endpoint not yet implemented"},
		{http.MethodPut, "/me", "User profile update endpoint not yet implemented"},
	}},
	{prefix: "/content", routes: []stubRoute{
		{http.MethodGet, "/", "Content listing endpoint not yet implemented"},
		{http.MethodPost, "/", "Content creation endpoint not yet implemented"},
		{http.MethodGet, "/{content_id}", "Content retrieval endpoint not yet implemented"},
		{http.MethodPut, "/{content_id}", "Content update endpoint not yet implemented"},
		{http.MethodDelete, "/{content_id}", "Content deletion endpoint not yet implemented"},
		{http.MethodPost, "/{content_id}/publish", "Content publishing endpoint not yet implemented"},
		{http.MethodPost, "/{content_id}/archive", "Content archiving endpoint not yet implemented"},
	}},
	{prefix: "/agents", routes: []stubRoute{
		{http.MethodPost, "/generate", defaultStubDetail},
		{http.MethodGet, "/status/{job_id}", defaultStubDetail},
		{http.MethodGet, "/history", defaultStubDetail},
	}},
	{prefix: "/marketing", routes: []stubRoute{
		{http.MethodPost, "/campaigns", defaultStubDetail},
		{http.MethodGet, "/campaigns", defaultStubDetail},
		{http.MethodPost, "/distribute", defaultStubDetail},
	}},
	{prefix: "/analytics", routes: []stubRoute{
		{http.MethodGet, "/overview", defaultStubDetail},
		{http.MethodGet, "/content/{content_id}", defaultStubDetail},
	}},
}

// StubHandler answers every reserved endpoint with 501
type StubHandler struct {
	errors *apierrors.ErrorHandler
}

// NewStubHandler creates a new stub handler
func NewStubHandler(errorHandler *apierrors.ErrorHandler) *StubHandler {
	return &StubHandler{errors: errorHandler}
}

// RegisterRoutes registers the stub groups. Paths under a group prefix that
// no route names still answer 501.
func (h *StubHandler) RegisterRoutes(r chi.Router) {
	for _, group := range stubGroups {
		r.Route(group.prefix, func(r chi.Router) {
			for _, route := range group.routes {
				r.Method(route.method, route.pattern, h.notImplemented(route.detail))
			}
			r.Handle("/*", h.notImplemented(defaultStubDetail))
		})
	}
}

func (h *StubHandler) notImplemented(detail string) http.HandlerFunc {
	err := apierrors.NotImplemented(detail)
	return h.errors.Wrap(func(http.ResponseWriter, *http.Request) error {
		return err
	})
}
