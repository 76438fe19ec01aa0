// Package metrics provides Prometheus metrics for the delegated-session and
// file-delivery core.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

const subsystem = "mentor_platform"

// Token exchange outcomes
const (
	ExchangeOK     = "ok"
	ExchangeReauth = "reauth_required"
	ExchangeError  = "error"
)

// Upload outcomes
const (
	UploadOK     = "ok"
	UploadFailed = "failed"
)

// Metrics holds the Prometheus collectors for the core. A nil *Metrics is
// valid; all record methods become no-ops.
type Metrics struct {
	reg *prometheus.Registry

	tokenExchanges  *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploads         *prometheus.CounterVec
	uploadDuration  prometheus.Histogram
	linkTiers       *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	sessionsRevoked prometheus.Counter

	log logger.Logger
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics(l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	m.tokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "token_exchanges_total",
		Help:      "Delegated token exchanges by outcome",
	}, []string{"outcome"})

	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "token_cache_hits_total",
		Help:      "Access-token cache hits",
	})

	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "token_cache_misses_total",
		Help:      "Access-token cache misses",
	})

	m.uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "uploads_total",
		Help:      "File uploads by strategy and outcome",
	}, []string{"strategy", "outcome"})

	m.uploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "upload_duration_seconds",
		Help:      "File upload duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 10.0, 30.0, 60.0},
	})

	m.linkTiers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "share_link_tiers_total",
		Help:      "Shareable-link resolutions by winning tier",
	}, []string{"tier"})

	m.messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "chat_messages_total",
		Help:      "Chat message sends by outcome",
	}, []string{"outcome"})

	m.sessionsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "sessions_revoked_total",
		Help:      "Durable sessions deactivated after a reauth signal",
	})

	m.reg.MustRegister(
		m.tokenExchanges,
		m.cacheHits,
		m.cacheMisses,
		m.uploads,
		m.uploadDuration,
		m.linkTiers,
		m.messagesSent,
		m.sessionsRevoked,
	)

	return m
}

// RecordTokenExchange records a credential exchange outcome.
func (m *Metrics) RecordTokenExchange(outcome string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records an access-token cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss records an access-token cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordUpload records an upload attempt by strategy ("simple" or "chunked").
func (m *Metrics) RecordUpload(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(strategy, outcome).Inc()
	m.uploadDuration.Observe(duration.Seconds())
}

// RecordLinkTier records which sharing tier produced the final link.
func (m *Metrics) RecordLinkTier(tier string) {
	if m == nil {
		return
	}
	m.linkTiers.WithLabelValues(tier).Inc()
}

// RecordMessageSent records a chat message send outcome.
func (m *Metrics) RecordMessageSent(outcome string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(outcome).Inc()
}

// RecordSessionsRevoked records n sessions deactivated on reauth.
func (m *Metrics) RecordSessionsRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsRevoked.Add(float64(n))
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen serves the metrics endpoint on the given port until ctx is done.
func (m *Metrics) Listen(ctx context.Context, port int) error {
	if m == nil {
		return nil
	}
	m.log.Info("Starting metrics listener", logger.IntField("port", port))

	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		m.log.Info("Stopping metrics listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
