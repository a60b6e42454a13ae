package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	// DefaultDataTimeout applies to data endpoints.
	DefaultDataTimeout = 10 * time.Second
	// DefaultAuthTimeout applies to auth endpoints.
	DefaultAuthTimeout = 15 * time.Second

	maxResponseBytes = 4 << 20 // 4 MB
)

// ProxySource supplies proxies for failover attempts. Implemented by the
// proxy pool.
type ProxySource interface {
	Next() *domain.ProxyEntry
	MarkUsed(id uuid.UUID)
	MarkDown(id uuid.UUID)
}

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Cookie  string // Sent as the Cookie header when non-empty
}

// Options tune one Call.
type Options struct {
	// Family selects the circuit breaker (platform, viotp, ...).
	Family string
	// Proxy routes the call through a pool entry when non-nil.
	Proxy *domain.ProxyEntry
	// Timeout overrides DefaultDataTimeout.
	Timeout time.Duration
	// DetectCookieExpiry enables the platform semantic-error check: a
	// non-zero top-level error field or HTTP 401/403 raises CookieExpired.
	DetectCookieExpiry bool
}

// Result is a structured upstream response.
type Result struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// SetCookies returns all Set-Cookie header values, preserving multiplicity.
func (r *Result) SetCookies() []string {
	return r.Headers.Values("Set-Cookie")
}

// Client performs one-shot upstream requests with SSRF gating and a circuit
// breaker per upstream family.
type Client struct {
	log zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	// Injectable for tests.
	validateHost func(string) error
	transportFor func(proxy *domain.ProxyEntry) http.RoundTripper
}

// NewClient creates a Client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log:          log,
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
		validateHost: ValidateHost,
		transportFor: defaultTransport,
	}
}

// WithHostValidator overrides the SSRF validator. Tests use it to reach
// loopback servers.
func (c *Client) WithHostValidator(fn func(string) error) *Client {
	c.validateHost = fn
	return c
}

func defaultTransport(proxy *domain.ProxyEntry) http.RoundTripper {
	t := &http.Transport{
		MaxIdleConns:        16,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxy != nil {
		if u, err := url.Parse(proxy.URL()); err == nil {
			t.Proxy = http.ProxyURL(u)
		}
	}
	return t
}

func (c *Client) breaker(family string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[family]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     family,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("family", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream circuit breaker state change")
		},
	})
	c.breakers[family] = cb
	return cb
}

// Call performs one upstream request. Cookie-expiry is surfaced as
// apperror.ErrCookieExpired and does not count as a breaker failure: it is
// a semantic outcome, not an upstream fault.
func (c *Client) Call(ctx context.Context, req Request, opts Options) (*Result, error) {
	if opts.Family == "" {
		opts.Family = "default"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDataTimeout
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("URL không hợp lệ: %v", err))
	}
	if err := c.validateHost(parsed.Host); err != nil {
		return nil, apperror.ErrBlockedHost(parsed.Host)
	}
	if opts.Proxy != nil {
		if err := c.validateHost(opts.Proxy.Address); err != nil {
			return nil, apperror.ErrBlockedHost(opts.Proxy.Address)
		}
	}

	out, err := c.breaker(opts.Family).Execute(func() (interface{}, error) {
		res, err := c.doOnce(ctx, req, opts)
		if err != nil {
			return nil, err
		}
		if opts.DetectCookieExpiry {
			if expired := cookieExpired(res); expired != nil {
				// Wrap so the breaker sees success (semantic, not transport).
				return &cookieExpiredResult{res}, nil
			}
		}
		return res, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperror.ErrUpstreamUnavailable(err)
		}
		return nil, err
	}

	if _, ok := out.(*cookieExpiredResult); ok {
		return nil, apperror.ErrCookieExpired()
	}
	return out.(*Result), nil
}

// cookieExpiredResult flows through the breaker as a success so that dead
// cookies do not trip it.
type cookieExpiredResult struct{ res *Result }

func (c *Client) doOnce(ctx context.Context, req Request, opts Options) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("building request: %w", err))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}

	httpClient := &http.Client{
		Transport: c.transportFor(opts.Proxy),
		Timeout:   opts.Timeout,
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, apperror.ErrUpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// cookieExpired checks the platform semantics: HTTP 401/403, or a JSON body
// whose top-level error field is non-zero.
func cookieExpired(res *Result) error {
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return apperror.ErrCookieExpired()
	}
	var probe struct {
		Error *int `json:"error"`
	}
	if err := json.Unmarshal(res.Body, &probe); err == nil && probe.Error != nil && *probe.Error != 0 {
		return apperror.ErrCookieExpired()
	}
	return nil
}

// CheckProxy issues a minimal GET to target through the proxy. It bypasses
// the circuit breakers: one proxy being dead says nothing about the upstream
// family, and a sweep over a bad batch must not trip calls for live proxies.
func (c *Client) CheckProxy(ctx context.Context, target string, proxy *domain.ProxyEntry) error {
	parsed, err := url.Parse(target)
	if err != nil {
		return apperror.Validation(fmt.Sprintf("URL không hợp lệ: %v", err))
	}
	if err := c.validateHost(parsed.Host); err != nil {
		return apperror.ErrBlockedHost(parsed.Host)
	}
	if proxy != nil {
		if err := c.validateHost(proxy.Address); err != nil {
			return apperror.ErrBlockedHost(proxy.Address)
		}
	}

	_, err = c.doOnce(ctx, Request{Method: http.MethodGet, URL: target}, Options{
		Proxy:   proxy,
		Timeout: DefaultDataTimeout,
	})
	return err
}

// CallWithFailover runs Call up to attempts times. The first attempt goes
// direct; later attempts draw from the proxy source round-robin. A
// CookieExpired outcome stops the loop immediately; switching proxies
// cannot fix a dead cookie.
func (c *Client) CallWithFailover(ctx context.Context, req Request, opts Options, proxies ProxySource, attempts int) (*Result, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		attemptOpts := opts
		var proxy *domain.ProxyEntry
		if i > 0 && proxies != nil {
			proxy = proxies.Next()
			attemptOpts.Proxy = proxy
		}

		res, err := c.Call(ctx, req, attemptOpts)
		if err == nil {
			if proxy != nil {
				proxies.MarkUsed(proxy.ID)
			}
			return res, nil
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "UP_002" {
			return nil, err // semantic, never retried
		}

		if proxy != nil {
			proxies.MarkDown(proxy.ID)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
