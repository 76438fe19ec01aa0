// Package httpmiddleware provides the middleware stack for the admin HTTP
// surface: correlation IDs, security headers, CORS and request logging.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

// CORSConfig holds CORS configuration for the admin router.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// DefaultCORSConfig returns a restrictive default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID"},
		MaxAge:         300,
	}
}

// CorrelationID ensures every request has a server-generated correlation ID.
// Client-provided correlation headers are ignored so we control our own IDs.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := uuid.New().String()
			r.Header.Set("X-Correlation-ID", correlationID)

			ctx := logger.WithCorrelationIDContext(r.Context(), correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Security adds security headers via the secure package.
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	if opts == nil {
		opts = &secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			ReferrerPolicy:     "no-referrer",
		}
	}
	return secure.New(*opts).Handler
}

// CORS returns CORS middleware for the given configuration.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		MaxAge:         cfg.MaxAge,
	})
}

// Apply wires the standard middleware stack onto a chi router in execution
// order: correlation ID, security headers, real IP, logging, recovery, CORS,
// timeout.
func Apply(router chi.Router, log logger.Logger, corsCfg CORSConfig, timeout time.Duration) {
	router.Use(CorrelationID())
	router.Use(Security(nil))
	router.Use(chimiddleware.RealIP)
	if log != nil {
		router.Use(logger.HTTPMiddleware(log))
	}
	router.Use(chimiddleware.Recoverer)
	router.Use(CORS(corsCfg))
	if timeout > 0 {
		router.Use(chimiddleware.Timeout(timeout))
	}
}
