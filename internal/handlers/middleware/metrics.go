package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/gophauth/internal/metrics"
)

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// MetricsMiddleware records request duration by method and status
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			mw := &metricsWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(mw, r)

			metrics.RequestDuration.
				WithLabelValues(r.Method, strconv.Itoa(mw.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}
