// Package gitlab implements the upstream GitLab GraphQL client: paginated
// candidate discovery and per-category detail fetches that are fanned out
// concurrently and merged into composite entity records.
package gitlab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shurcooL/graphql"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/glsync/glsync/internal/otel"
)

const (
	// TracerName is the name used for the upstream client tracer.
	TracerName = "github.com/glsync/glsync/gitlab"

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxConcurrentCategories bounds the category fan-out of one fetch.
	DefaultMaxConcurrentCategories = 8

	// DefaultPageSize is the discovery page size used when none is given.
	DefaultPageSize = 100

	maxErrorBody = 4096
)

// ID is the upstream ID scalar. It is a named type so that GraphQL variable
// declarations are rendered as ID!.
type ID string

//go:generate mockgen -destination=mocks/mock_querier.go -package=mocks -source=client.go Querier

// Querier executes a GraphQL query described by the struct q.
type Querier interface {
	Query(ctx context.Context, q any, variables map[string]any) error
}

// Client is the GitLab GraphQL client.
type Client struct {
	querier       Querier
	logger        *slog.Logger
	tracer        trace.Tracer
	maxConcurrent int
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout       time.Duration
	maxConcurrent int
	logger        *slog.Logger
	tracer        trace.Tracer
	transport     http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxConcurrentCategories bounds how many categories are fetched at once.
func WithMaxConcurrentCategories(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithTracer enables tracing of upstream queries.
func WithTracer(t trace.Tracer) Option {
	return func(c *clientConfig) {
		c.tracer = t
	}
}

// WithTransport overrides the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.transport = rt
	}
}

func newClientConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		timeout:       DefaultTimeout,
		maxConcurrent: DefaultMaxConcurrentCategories,
		logger:        slog.Default(),
		transport:     http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewClient returns a client for the GraphQL endpoint authenticated with a
// bearer token.
func NewClient(endpoint, token string, opts ...Option) *Client {
	cfg := newClientConfig(opts)

	httpClient := &http.Client{
		Timeout: cfg.timeout,
		Transport: &statusTransport{
			base: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   cfg.transport,
			},
		},
	}

	return newClient(graphql.NewClient(endpoint, httpClient), cfg)
}

// NewClientWithQuerier returns a client issuing queries through q.
func NewClientWithQuerier(q Querier, opts ...Option) *Client {
	return newClient(q, newClientConfig(opts))
}

func newClient(q Querier, cfg *clientConfig) *Client {
	return &Client{
		querier:       q,
		logger:        cfg.logger,
		tracer:        cfg.tracer,
		maxConcurrent: cfg.maxConcurrent,
	}
}

// query runs one named query inside its own span.
func (c *Client) query(ctx context.Context, name string, q any, vars map[string]any) error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "gitlab."+name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := c.querier.Query(ctx, q, vars); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("%s query failed: %w", name, err)
	}
	return nil
}

// HTTPError is returned when the upstream answers with a non-success status.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// statusTransport turns error status codes into *HTTPError so callers can
// inspect them with errors.As.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		URL:        req.URL.String(),
	}
}
