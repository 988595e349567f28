package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sagarc03/stowfront"
)

const requestIDHeader = "X-Request-Id"

// PathValidationMiddleware rejects malformed paths with an obfuscated 400
// before any credential or backend work happens.
func (h *Handler) PathValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !stowfront.IsValidRequestPath(r.URL.Path) {
			h.writeUncached(w, r, obfuscatedError(http.StatusBadRequest, h.now()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestLogger tags each request with an ID (reusing X-Request-Id when the
// client sent one) and logs it once the response is written.
func RequestLogger(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.observeRequest(r.Method, status)

			slog.Info("request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
