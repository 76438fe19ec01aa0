package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

func newTestMetrics() *Metrics {
	return NewMetrics(logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Format: "text"}))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	// None of these should panic
	m.RecordTokenExchange(ExchangeOK)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordUpload("simple", UploadOK, time.Second)
	m.RecordLinkTier("organization")
	m.RecordMessageSent("ok")
	m.RecordSessionsRevoked(3)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := newTestMetrics()
	m.RecordTokenExchange(ExchangeReauth)
	m.RecordCacheHit()
	m.RecordUpload("chunked", UploadOK, 2*time.Second)
	m.RecordLinkTier("anonymous")
	m.RecordSessionsRevoked(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `mentor_platform_token_exchanges_total{outcome="reauth_required"} 1`)
	assert.Contains(t, string(body), `mentor_platform_token_cache_hits_total 1`)
	assert.Contains(t, string(body), `mentor_platform_uploads_total{outcome="ok",strategy="chunked"} 1`)
	assert.Contains(t, string(body), `mentor_platform_sessions_revoked_total 2`)
}
