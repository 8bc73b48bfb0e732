package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withURLParam(name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	req := httptest.NewRequest(http.MethodGet, "/jobs/x", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr string
	}{
		{raw: "issues", want: "issues"},
		{raw: "merge%52equests", want: "mergeRequests"},
		{raw: "", wantErr: "entityType cannot be empty"},
		{raw: "%20%20", wantErr: "entityType cannot be empty"},
		{raw: "merge%20requests", wantErr: "cannot contain whitespace"},
		{raw: "%zz", wantErr: "invalid URL encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := URLParam(withURLParam("entityType", tt.raw), "entityType")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/jobs/issues/trigger?batchSize=25&fullSync=true&bad=x", nil)

	n, err := QueryInt(req, "batchSize", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = QueryInt(req, "missing", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = QueryInt(req, "bad", 0)
	require.EqualError(t, err, "bad must be an integer")

	full, err := QueryBool(req, "fullSync")
	require.NoError(t, err)
	assert.True(t, full)

	full, err = QueryBool(req, "missing")
	require.NoError(t, err)
	assert.False(t, full)

	_, err = QueryBool(req, "bad")
	require.EqualError(t, err, "bad must be a boolean")
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "job manager is not initialized", http.StatusServiceUnavailable)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"job manager is not initialized"}`, rr.Body.String())
}
