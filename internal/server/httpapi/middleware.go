package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/gate"
	"github.com/go-chi/chi/v5/middleware"
)

// Authenticator is the per-request gate.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization, refreshToken string) (gate.Result, error)
}

// Authenticate runs the gate before routing. It attaches the principal to
// the request context and echoes reissued tokens in the response headers.
// Only a store outage stops the request here.
func Authenticate(g Authenticator, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			res, err := g.Authenticate(ctx,
				r.Header.Get(common.AuthorizationHeaderName),
				r.Header.Get(common.RefreshTokenHeaderName),
			)
			if err != nil {
				logger.Error(ctx, "authentication gate failed", "error", err)
				status, msg := statusFor(err)
				writeError(w, status, msg)
				return
			}

			if res.Reissued != nil {
				setTokenHeaders(w, res.Reissued.AccessToken, res.Reissued.RefreshToken)
			}
			if res.Principal != nil {
				ctx = auth.WithPrincipal(ctx, res.Principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects principals lacking role with 403 and anonymous
// requests with 401.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !p.HasRole(role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func setTokenHeaders(w http.ResponseWriter, accessToken, refreshToken string) {
	w.Header().Set(common.AuthorizationHeaderName, accessToken)
	if refreshToken != "" {
		w.Header().Set(common.RefreshTokenHeaderName, refreshToken)
	}
}
