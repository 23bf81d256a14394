// v1
// internal/api/middleware.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/etkk55/enduro-backend/internal/metrics"
)

// WithLogging decorates the handler chain to record structured access logs
// with latency, method, path, and status, and feeds the same figures to the
// Prometheus instruments.
func WithLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		logger.Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.String("duration", duration.String()),
		)
		metrics.ObserveRequest(rw.status, duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader stores the status code so the middleware can log it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
