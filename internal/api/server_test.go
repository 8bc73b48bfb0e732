package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glsync/glsync/internal/api"
	"github.com/glsync/glsync/internal/api/control/mocks"
	"github.com/glsync/glsync/internal/jobs"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// Health checks never reach the controller.
	server := api.NewServer(mocks.NewMockController(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestServer_MountsJobRoutes(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockCtrl := mocks.NewMockController(ctrl)
	mockCtrl.EXPECT().StatusAll(gomock.Any()).Return([]*jobs.Status{}, nil)

	var called bool
	server := api.NewServer(mockCtrl,
		api.WithLogger(slog.New(slog.DiscardHandler)),
		api.WithMiddlewares(middleware.RequestID, func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				next.ServeHTTP(w, r)
			})
		}),
	)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"jobs":[]}`, rr.Body.String())
	assert.True(t, called)
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	server := api.NewServer(mocks.NewMockController(ctrl))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/queues", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_MetricsHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	withoutMetrics := api.NewServer(mocks.NewMockController(ctrl))
	rr := httptest.NewRecorder()
	withoutMetrics.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	withMetrics := api.NewServer(mocks.NewMockController(ctrl),
		api.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("glsync_queue_job_events_total 1\n"))
		})),
	)
	rr = httptest.NewRecorder()
	withMetrics.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "glsync_queue_job_events_total")
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := api.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/issues/trigger", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "HTTP request", rec["msg"])
	assert.Equal(t, "/jobs/issues/trigger", rec["path"])
	assert.EqualValues(t, http.StatusTeapot, rec["status"])
}
