// Package hubspot provides rate-limited, retrying REST access to the HubSpot
// CRM object, property, pipeline, search and association APIs.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealsync/internal/resilience"
)

const (
	defaultBaseURL = "https://api.hubapi.com"

	// HubSpot private apps get 100 requests per rolling 10 seconds.
	defaultWindowRequests = 100
	defaultWindow         = 10 * time.Second

	maxBatchSize = 100
)

// Object types the engine reads and writes.
const (
	ObjectCompanies = "companies"
	ObjectContacts  = "contacts"
	ObjectDeals     = "deals"
	ObjectTasks     = "tasks"
)

// Client defines the HubSpot API operations used by the sync engine.
type Client interface {
	GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error)
	CreateObject(ctx context.Context, objectType string, in CreateInput) (*Object, error)
	UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) (*Object, error)
	DeleteObject(ctx context.Context, objectType, id string) error
	BatchReadObjects(ctx context.Context, objectType string, ids, properties []string) ([]Object, error)
	SearchObjects(ctx context.Context, objectType string, req SearchRequest) (*SearchResponse, error)
	ListAssociations(ctx context.Context, fromType, fromID, toType string) ([]string, error)
	Associate(ctx context.Context, fromType, fromID, toType, toID string, typeID int) error
	GetProperties(ctx context.Context, objectType string) ([]Property, error)
	GetPipelines(ctx context.Context, objectType string) ([]Pipeline, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit allows at most n requests in any rolling window.
func WithRateLimit(n int, window time.Duration) Option {
	return func(c *httpClient) {
		if n > 0 && window > 0 {
			c.limiter = newWindowLimiter(n, window)
		}
	}
}

// newWindowLimiter sizes a token bucket so that burst plus refill over one
// window never exceeds n: half of n is available as burst and the rest
// refills evenly across the window.
func newWindowLimiter(n int, window time.Duration) *rate.Limiter {
	burst := (n + 1) / 2
	refill := n - burst
	if refill == 0 {
		refill = 1
	}
	return rate.NewLimiter(rate.Limit(float64(refill)/window.Seconds()), burst)
}

// WithRetry overrides the retry policy applied to rate-limit and server errors.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	tokens  oauth2.TokenSource
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a HubSpot client that authenticates every request with a
// bearer token from ts. Token acquisition and refresh belong to ts.
func NewClient(ts oauth2.TokenSource, opts ...Option) Client {
	c := &httpClient{
		tokens:  ts,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: newWindowLimiter(defaultWindowRequests, defaultWindow),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewStaticClient creates a client for a fixed access token.
func NewStaticClient(token string, opts ...Option) Client {
	return NewClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), opts...)
}

// do sends one logical request, retrying rate-limit and server failures.
// out may be nil when the response body is not needed.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "hubspot: marshal request")
		}
	}

	cfg := c.retry
	hook := retryHookFrom(ctx)
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("hubspot: retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if hook != nil {
			hook(attempt, err)
		}
	}
	cfg.ShouldRetry = shouldRetry

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return c.attempt(ctx, method, path, query, payload, out)
	})
}

func (c *httpClient) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	if err := c.reserve(); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return eris.Wrap(err, "hubspot: create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return &APIError{Kind: KindAuth, Message: "token source: " + err.Error()}
	}
	tok.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "hubspot: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "hubspot: read response")
	}

	if resp.StatusCode >= 300 {
		return parseAPIError(resp, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return decodeJSON(bytes.NewReader(respBody), out)
}

// reserve takes one slot from the client-side window. When no slot is free it
// fails fast with a rate_limit error carrying the wait as its retry hint; the
// retry loop sleeps for that hint before trying again.
func (c *httpClient) reserve() error {
	if c.limiter == nil {
		return nil
	}
	r := c.limiter.Reserve()
	if !r.OK() {
		return &APIError{Kind: KindRateLimit, Message: "client-side rate limit exceeded"}
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return &APIError{
			Kind:       KindRateLimit,
			StatusCode: http.StatusTooManyRequests,
			Message:    "client-side rate limit exceeded",
			After:      d,
		}
	}
	return nil
}

func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return resilience.IsTransient(err)
}
