package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gigguin/bookflow/internal/tenant"
)

type ctxKey string

const (
	ctxKeyRequestID      ctxKey = "request_id"
	ctxKeyOrganizationID ctxKey = "organization_id"
)

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// OrganizationFromContext extracts the resolved organization ID from
// context if present.
func OrganizationFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyOrganizationID).(string)
	return v
}

// requestID assigns a request ID (from X-Request-ID or generated) and
// stores it in the context and the response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// recoverer converts panics into 500 responses instead of killing the
// connection goroutine.
func recoverer(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("handler_panic")
					writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request with method, path, status
// and latency.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("host", r.Host).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Str("request_id", RequestIDFromContext(r.Context())).
				Msg("http_request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// resolveTenant maps the request hostname to an organization before
// any pipeline data is touched. Unknown hosts get 404.
func resolveTenant(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, err := resolver.ResolveOrganization(r.Context(), r.Host)
			if err != nil {
				writeError(w, http.StatusNotFound, "unknown_tenant", "no organization for host "+r.Host, nil)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyOrganizationID, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actorFrom returns the opaque actor identity supplied by the upstream
// auth layer, or "anonymous" when absent.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-ID"); actor != "" {
		return actor
	}
	return "anonymous"
}
