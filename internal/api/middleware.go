package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hospital-scheduling/internal/scheduling"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		requestID := GetRequestID(r.Context())

		log.Printf(
			"method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration,
			requestID,
		)
	})
}

// ActorMiddleware extracts the authenticated actor placed in the
// X-Actor-ID and X-Actor-Role headers by the identity provider in front of
// this service. The scheduling core trusts these values and performs
// ownership checks only.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-ID header must be a valid UUID")
			return
		}

		role := scheduling.Role(r.Header.Get("X-Actor-Role"))
		switch role {
		case scheduling.RolePatient, scheduling.RoleDoctor, scheduling.RoleAdmin, scheduling.RoleReceptionist:
		default:
			writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-Role must be patient, doctor, admin or receptionist")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, scheduling.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ActorFrom retrieves the authenticated actor from context.
func ActorFrom(ctx context.Context) (scheduling.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(scheduling.Actor)
	return actor, ok
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
