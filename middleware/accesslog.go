package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder captures the status code written by the wrapped handler so
// the exit log line can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog is the second filter in the chain: it records one line on
// entry and one on exit with method, path, correlation id, status, and
// elapsed milliseconds.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := CorrelationIDFromContext(r.Context())
			start := time.Now()

			logger.Info("request received",
				"method", r.Method, "path", r.URL.Path, "correlationId", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("request completed",
				"method", r.Method, "path", r.URL.Path, "correlationId", id,
				"status", rec.status, "elapsedMs", time.Since(start).Milliseconds())
		})
	}
}

var nonLoggableContentTypes = []string{
	"multipart/form-data",
	"application/octet-stream",
	"application/pdf",
}

var nonLoggableContentTypePrefixes = []string{"image/", "video/", "audio/"}

// ShouldLogBody reports whether a request/response body with the given
// Content-Type is safe to include in logs. Binary and large-media types are
// excluded regardless of size.
func ShouldLogBody(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, excluded := range nonLoggableContentTypes {
		if strings.HasPrefix(ct, excluded) {
			return false
		}
	}
	for _, prefix := range nonLoggableContentTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return false
		}
	}
	return true
}
