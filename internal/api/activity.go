package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/pipeline"
)

// excludedPaths lists prefixes whose traffic never becomes activity events.
var excludedPaths = []string{
	"/api/v1/health",
	"/api/v1/events",
	"/metrics",
	"/favicon.ico",
	"/static/",
	"/assets/",
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ActivityMiddleware turns inbound traffic into events on the pipeline. The
// event is submitted after the response is written, so request latency never
// depends on the event log; submission failures are logged and swallowed.
func ActivityMiddleware(pl *pipeline.Pipeline, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shouldLog(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			actor := actorFromRequest(r)
			p := model.HTTPPayload{
				Method:         r.Method,
				Path:           r.URL.Path,
				StatusCode:     rec.status,
				ResponseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
				QueryParams:    flattenQuery(r),
				UserAgent:      r.UserAgent(),
				IPAddress:      r.RemoteAddr,
			}
			if actor != "anonymous" {
				p.UserID = actor
			}

			entityID := fmt.Sprintf("%s:%s:%d", r.Method, r.URL.Path, start.Unix())
			ev, err := model.NewHTTPEvent(eventTypeFor(r), entityID, actor, p)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("activity event rejected")
				return
			}
			if _, err := pl.Submit(r.Context(), ev); err != nil {
				log.Error().Err(err).Str("path", r.URL.Path).Msg("activity event not recorded")
			}
		})
	}
}

func shouldLog(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return false
	}
	for _, p := range excludedPaths {
		if strings.HasPrefix(r.URL.Path, p) {
			return false
		}
	}
	return true
}

// eventTypeFor classifies traffic by path so domain-aware rules can match
// meeting and chat activity without parsing URLs.
func eventTypeFor(r *http.Request) string {
	method := strings.ToLower(r.Method)
	switch {
	case strings.Contains(r.URL.Path, "meeting"):
		return "meeting." + method
	case strings.Contains(r.URL.Path, "chat"):
		return "chat." + method
	default:
		return "api." + method
	}
}

// actorFromRequest maps a bearer token with a trailing numeric segment to
// "user_<n>". Anything else is anonymous traffic.
func actorFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "anonymous"
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if i := strings.LastIndex(token, "_"); i >= 0 {
		if suffix := token[i+1:]; suffix != "" && isDigits(suffix) {
			return "user_" + suffix
		}
	}
	return "anonymous"
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func flattenQuery(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
