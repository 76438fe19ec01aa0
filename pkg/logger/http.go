package logger

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// EnsureHTTPCorrelationID ensures an HTTP request carries a valid correlation
// ID header and context value, generating one if needed.
func EnsureHTTPCorrelationID(r *http.Request) (*http.Request, string) {
	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = uuid.New().String()
		r.Header.Set("X-Correlation-ID", correlationID)
	} else if _, err := uuid.Parse(correlationID); err != nil {
		correlationID = uuid.New().String()
		r.Header.Set("X-Correlation-ID", correlationID)
	}

	ctx := WithCorrelationIDContext(r.Context(), correlationID)
	return r.WithContext(ctx), correlationID
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMiddleware returns chi-compatible HTTP middleware that logs requests
// and responses with correlation IDs.
func HTTPMiddleware(l Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			r, correlationID := EnsureHTTPCorrelationID(r)

			requestLogger := l.WithFields(
				ClientIPField(r.RemoteAddr),
				HTTPMethodField(r.Method),
				HTTPPathField(r.URL.Path),
				CorrelationIDField(correlationID),
			)

			requestLogger.Debug("HTTP request received")

			wrappedWriter := newResponseWriter(w)
			next.ServeHTTP(wrappedWriter, r)

			requestLogger.WithFields(
				HTTPStatusField(wrappedWriter.statusCode),
				IntField("response_bytes", wrappedWriter.bytesWritten),
				DurationField("duration", time.Since(start)),
			).Info("HTTP response sent")
		})
	}
}
