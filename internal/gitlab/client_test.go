package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsync/glsync/internal/entity"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func TestNewClient_SendsBearerTokenAndDecodes(t *testing.T) {
	t.Parallel()

	var got graphqlRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"users":{
			"nodes":[
				{"id":"gid://gitlab/User/7","username":"ada"},
				{"id":"not-an-id","username":"broken"}
			],
			"pageInfo":{"endCursor":"c1","hasNextPage":false}}}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "s3cret", WithLogger(slog.New(slog.DiscardHandler)))
	targets, err := c.Users().List(context.Background(), ListOptions{PageSize: 50})
	require.NoError(t, err)

	assert.Equal(t, "Bearer s3cret", auth)
	assert.Contains(t, got.Query, "users(first: $first, after: $after)")
	assert.Contains(t, got.Query, "$first:Int!")
	assert.EqualValues(t, 50, got.Variables["first"])
	assert.Equal(t, []entity.Target{{SourceID: 7, GlobalID: "gid://gitlab/User/7"}}, targets)
}

func TestNewClient_ErrorStatusIsTyped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token revoked", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "expired", WithLogger(slog.New(slog.DiscardHandler)))
	_, err := c.Namespaces().List(context.Background(), ListOptions{})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *HTTPError in %v", err)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "token revoked", httpErr.Message)
}

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()

	err := &HTTPError{StatusCode: 502, URL: "https://gitlab.example.com/api/graphql", Message: "Bad Gateway"}
	assert.Equal(t, "HTTP 502 for URL https://gitlab.example.com/api/graphql: Bad Gateway", err.Error())
}
