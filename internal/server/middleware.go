// Package server provides the HTTP router and its middleware.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/config"
	"github.com/Sardor8866/festery/internal/handler"
)

// UserIDHeader carries the caller's id as supplied by the host platform.
const UserIDHeader = "X-User-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logEvent := log.Debug()
			if userID, ok := handler.UserID(r.Context()); ok {
				logEvent = logEvent.Int64("user_id", userID)
			}
			logEvent.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("Handled request")
		})
	}
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("Recovered from panic in handler")
					writeError(w, http.StatusInternalServerError, "internal", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDMiddleware reads the caller's id from UserIDHeader into the request
// context. Requests without the header pass through anonymously; a malformed
// id is rejected.
func UserIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserIDHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid user id")
				return
			}
			next.ServeHTTP(w, r.WithContext(handler.WithUserID(r.Context(), userID)))
		})
	}
}

// AdminMiddleware rejects callers that are not configured admins.
func AdminMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := handler.UserID(r.Context())
			if !ok || !cfg.IsAdmin(userID) {
				log.Warn().
					Int64("user_id", userID).
					Str("path", r.URL.Path).
					Msg("Non-admin attempted admin command")
				writeError(w, http.StatusForbidden, "forbidden", "admin permission required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(handler.ErrorBody{Error: code, Message: message})
}
