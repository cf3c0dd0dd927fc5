// Package recovery provides the panic-intercepting HTTP middleware.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/internal/api/respond"
)

// Middleware intercepts panics from downstream handlers, logs the stack,
// and returns HTTP 500. A handler panic must never take down the service;
// it surfaces as a logged error and a JSON error body.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				respond.WriteInternalError(w, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
