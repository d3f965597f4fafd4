// Package algorand fetches account, transaction and network data from an
// Algorand node (algod) and indexer over their REST APIs.
//
// Every call is throttled by a shared rate limiter, retried with backoff on
// transient failures, and guarded by a per-upstream circuit breaker.
package algorand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TADebugs/ALGOLEND-AI/internal/circuitbreaker"
	"github.com/TADebugs/ALGOLEND-AI/internal/metrics"
	"github.com/TADebugs/ALGOLEND-AI/internal/retry"
	"github.com/TADebugs/ALGOLEND-AI/internal/traces"
)

// Upstream names, used as breaker keys and metric labels.
const (
	UpstreamAlgod   = "algod"
	UpstreamIndexer = "indexer"
)

// ErrAccountNotFound is returned when the node has no record of an address.
var ErrAccountNotFound = errors.New("algorand: account not found")

// StatusError is a non-2xx response from an upstream.
type StatusError struct {
	Upstream   string
	Endpoint   string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Upstream, e.Endpoint, e.Code)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Options configures a Client.
type Options struct {
	AlgodURL   string
	IndexerURL string
	AlgodToken string
	RPS        int
}

// Client talks to algod and the indexer.
type Client struct {
	algodURL   string
	indexerURL string
	token      string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	policy     retry.Policy
	now        func() time.Time
}

// New creates a client. RPS bounds requests per second across both
// upstreams; zero or less disables throttling.
func New(opts Options) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		burst = opts.RPS
	}
	return &Client{
		algodURL:   strings.TrimRight(opts.AlgodURL, "/"),
		indexerURL: strings.TrimRight(opts.IndexerURL, "/"),
		token:      opts.AlgodToken,
		http:       &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    circuitbreaker.New(5, 30*time.Second),
		policy:     retry.DefaultPolicy,
		now:        time.Now,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithBreaker replaces the circuit breaker.
func (c *Client) WithBreaker(b *circuitbreaker.Breaker) *Client {
	c.breaker = b
	return c
}

// WithRetryPolicy replaces the retry policy.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// WithClock overrides the clock used to date network snapshots.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Breaker exposes the circuit breaker so callers can observe its state.
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// countable keeps 4xx answers, which say nothing about upstream health, from
// tripping the breaker.
func countable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// get issues a GET against upstream and decodes the JSON body into out.
// endpoint is the templated route used for metrics and spans.
func (c *Client) get(ctx context.Context, upstream, endpoint, path string, query url.Values, out any) error {
	ctx, span := traces.StartSpan(ctx, "algorand."+upstream,
		traces.Upstream(upstream),
		traces.Endpoint(endpoint),
	)
	defer span.End()

	err := retry.Do(ctx, c.policy, func(int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		err := c.breaker.Execute(upstream, func() error {
			return c.do(ctx, upstream, endpoint, path, query, out)
		}, countable)

		var se *StatusError
		switch {
		case err == nil:
			return nil
		case errors.Is(err, circuitbreaker.ErrOpen), ctx.Err() != nil:
			return retry.Permanent(err)
		case errors.As(err, &se) && !se.Retryable():
			return retry.Permanent(err)
		case se != nil && se.RetryAfter > 0:
			return retry.After(err, se.RetryAfter)
		}
		return err
	})
	if err != nil {
		traces.Fail(span, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, upstream, endpoint, path string, query url.Values, out any) error {
	base := c.algodURL
	if upstream == UpstreamIndexer {
		base = c.indexerURL
	}
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "algolend/"+traces.Version)
	if c.token != "" && upstream == UpstreamAlgod {
		req.Header.Set("X-Algo-API-Token", c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstream, endpoint, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", upstream, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(upstream, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{
			Upstream:   upstream,
			Endpoint:   endpoint,
			Code:       resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode %s %s response: %w", upstream, endpoint, err))
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
