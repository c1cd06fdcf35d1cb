package middleware

import (
	"net/http"
	"time"

	"wizardAPI/internal/logger"
)

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			kv := []interface{}{
				"method", r.Method,
				"route", routeLabel(r),
				"status", ww.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if ww.statusCode >= http.StatusInternalServerError {
				log.Error("request failed", kv...)
				return
			}
			log.Info("request", kv...)
		})
	}
}
