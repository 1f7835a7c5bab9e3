package middleware

import (
	"net/http"
	"time"

	"github.com/devanshjainms/exitengine/pkg/applog"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// response size Logging needs after the handler has already written them.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging records one structured log entry per request: method, path,
// status, latency, remote address and response size.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		applog.L().Info("http request",
			applog.String("method", r.Method),
			applog.String("path", r.URL.Path),
			applog.Int("status", wrapped.statusCode),
			applog.Latency(float64(time.Since(start).Microseconds())/1000),
			applog.String("remote_addr", r.RemoteAddr),
			applog.Int64("response_bytes", wrapped.written),
		)
	})
}
