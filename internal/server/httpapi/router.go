// Package httpapi exposes the authentication service over HTTP with chi.
// Every response uses the {success, response, error} envelope.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the route tree. The gate runs on every route; the
// authorization middlewares guard the private ones.
func NewRouter(svc AuthService, g Authenticator, logger logging.Logger) http.Handler {
	logger = logger.With("module", "http")
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Authenticate(g, logger))

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Post("/register", h.Register)
	r.Post("/check", h.CheckEmail)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuthenticated)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Get("/session", h.Session)
		r.With(RequireRole(common.RoleAdmin)).Delete("/admin/sessions/{id}", h.ForceLogout)
	})

	return r
}
