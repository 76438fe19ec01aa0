// Package monitoring exposes the liveness and readiness endpoints for the
// service, backed by probes against the session database and the identity
// provider.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/skilltreehq/mentor-platform/pkg/health"
	"github.com/skilltreehq/mentor-platform/pkg/health/checkers"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

// Config holds the health monitor dependencies.
type Config struct {
	Logger logger.Logger

	// Store is the session store; its Ping backs the readiness probe.
	Store checkers.Pinger

	// IdentityURL, when set, is probed for reachability of the identity
	// provider's token endpoint host.
	IdentityURL string

	Version          string
	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor aggregates probes and serves them over HTTP.
type HealthMonitor struct {
	checker   *health.Checker
	log       logger.Logger
	version   string
	startTime time.Time
}

// NewHealthMonitor creates a monitor with liveness and readiness checks
// wired for the configured dependencies.
func NewHealthMonitor(cfg Config) *HealthMonitor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(timeout),
		health.WithFailureThreshold(threshold),
	)

	checker.AddLivenessCheck(health.NewCheck("process", func(ctx context.Context) error {
		return nil
	}))

	if cfg.Store != nil {
		checker.AddReadinessCheck(checkers.NewPostgresChecker(cfg.Store, "sessions_db"))
	}
	if cfg.IdentityURL != "" {
		checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.IdentityURL, "identity_provider"))
	}

	return &HealthMonitor{
		checker:   checker,
		log:       cfg.Logger,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// LivenessHandler serves GET /health/live for restart decisions.
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checker.CheckLiveness(r.Context())

		response := map[string]any{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"checks":    status.Checks,
		}

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			response["status"] = statusUnhealthy
			response["error"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.log.Error("liveness check failed", logger.ErrorField(err))
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// ReadinessHandler serves GET /health/ready for traffic decisions.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checker.CheckReadiness(r.Context())

		response := map[string]any{
			"status":    statusReady,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    status.Checks,
		}

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			response["status"] = statusNotReady
			response["error"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.log.Error("readiness check failed", logger.ErrorField(err))
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// HealthHandler serves GET /health with the combined picture.
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checker.CheckReadiness(ctx)

		liveness := map[string]any{"status": statusHealthy, "checks": livenessStatus.Checks}
		readiness := map[string]any{"status": statusReady, "checks": readinessStatus.Checks}

		response := map[string]any{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness":  liveness,
			"readiness": readiness,
		}

		healthy := true
		if livenessErr != nil {
			liveness["status"] = statusUnhealthy
			liveness["error"] = livenessErr.Error()
			healthy = false
		}
		if readinessErr != nil {
			readiness["status"] = statusNotReady
			readiness["error"] = readinessErr.Error()
			healthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			response["status"] = statusUnhealthy
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}
