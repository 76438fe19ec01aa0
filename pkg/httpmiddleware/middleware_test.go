package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

func TestCorrelationID_GeneratesServerSideID(t *testing.T) {
	var seen string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Correlation-ID")
		assert.Equal(t, seen, logger.GetCorrelationIDFromContext(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "client-supplied-value")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotEmpty(t, seen)
	// Client-provided IDs are replaced with a server-generated UUID
	assert.NotEqual(t, "client-supplied-value", seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestApply_FullStack(t *testing.T) {
	router := chi.NewRouter()
	log := logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Format: "text"})
	Apply(router, log, DefaultCORSConfig(), 5*time.Second)
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
