// Package client provides the retrying, rate-limited HTTP client shared by
// the log store and the agent runtime.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tareqmamari/loglens/internal/config"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// maxRetryAfter caps a server-supplied Retry-After delay.
const maxRetryAfter = time.Hour

// Authenticator is the interface for adding authentication to requests
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// Options configures a Client. Use OptionsFromConfig for the usual values.
type Options struct {
	BaseURL         string
	UserAgent       string
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	EnableRateLimit bool
	RateLimit       int
	RateLimitBurst  int
	TLSVerify       bool
}

// OptionsFromConfig returns the transport settings from cfg for a client
// talking to baseURL.
func OptionsFromConfig(cfg *config.Config, baseURL, version string) Options {
	if version == "" {
		version = "dev"
	}
	return Options{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		UserAgent:       "loglens/" + version,
		Timeout:         cfg.Timeout,
		MaxRetries:      cfg.MaxRetries,
		RetryWaitMin:    cfg.RetryWaitMin,
		RetryWaitMax:    cfg.RetryWaitMax,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
		EnableRateLimit: cfg.EnableRateLimit,
		RateLimit:       cfg.RateLimit,
		RateLimitBurst:  cfg.RateLimitBurst,
		TLSVerify:       cfg.TLSVerify,
	}
}

// Client is an HTTP client for JSON APIs
type Client struct {
	httpClient    *http.Client
	opts          Options
	logger        *zap.Logger
	metrics       *metrics.Metrics
	rateLimiter   *rate.Limiter
	authenticator Authenticator
}

// New creates a new API client. m may be nil.
func New(opts Options, authenticator Authenticator, logger *zap.Logger, m *metrics.Metrics) *Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// Verification is on unless explicitly disabled for test environments.
	if !opts.TLSVerify {
		tlsConfig.InsecureSkipVerify = true // #nosec G402 -- opt-in for test environments
		logger.Warn("TLS certificate verification is DISABLED - this is insecure and should only be used for testing",
			zap.String("base_url", opts.BaseURL),
		)
	}

	transport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		IdleConnTimeout:     opts.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	var rateLimiter *rate.Limiter
	if opts.EnableRateLimit && opts.RateLimit > 0 {
		rateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimitBurst)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "loglens/dev"
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts:          opts,
		logger:        logger,
		metrics:       m,
		rateLimiter:   rateLimiter,
		authenticator: authenticator,
	}
}

// Request represents an HTTP request
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    interface{}
	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes an HTTP request with retry logic. Non-retryable HTTP errors are
// returned as a Response; callers check OK.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracing.HTTPSpan(ctx, req.Method, req.Path)
	defer span.End()

	var lastErr error
	var lastResp *Response

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			waitTime := c.calculateRetryWait(attempt, lastResp)
			if c.metrics != nil {
				c.metrics.RecordRetry()
			}

			c.logger.Debug("Retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", waitTime),
			)

			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			lastResp = nil
			if isRetryable(err) {
				continue
			}
			tracing.RecordError(span, err)
			return nil, err
		}

		if shouldRetry(resp.StatusCode) {
			if resp.StatusCode == http.StatusTooManyRequests && c.metrics != nil {
				c.metrics.RecordRateLimitHit()
			}
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(resp.Body))
			lastResp = resp
			continue
		}

		return resp, nil
	}

	err := fmt.Errorf("max retries exceeded: %w", lastErr)
	tracing.RecordError(span, err)
	return nil, err
}

// DoJSON executes req and decodes a 2xx body into out. Other statuses are
// returned as an error carrying the status and body.
func (c *Client) DoJSON(ctx context.Context, req *Request, out interface{}) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

// StatusError is returned by DoJSON for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (c *Client) doRequest(ctx context.Context, req *Request) (*Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	requestURL := c.opts.BaseURL + req.Path
	if len(req.Query) > 0 {
		params := url.Values{}
		for k, v := range req.Query {
			params.Add(k, v)
		}
		requestURL = fmt.Sprintf("%s?%s", requestURL, params.Encode())
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)

	if c.authenticator != nil {
		if err := c.authenticator.Authenticate(httpReq); err != nil {
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("Executing HTTP request",
		zap.String("method", req.Method),
		zap.String("url", requestURL),
	)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(false, duration, 0)
		}
		c.logger.Error("HTTP request failed",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("url", requestURL),
			zap.Duration("duration", duration),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(httpResp.StatusCode < 400, duration, httpResp.StatusCode)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("url", requestURL),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.Int("response_size", len(body)),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// calculateRetryWait returns the delay before the given attempt. A 429 with
// Retry-After is honoured up to RetryWaitMax; everything else uses exponential
// backoff. Up to 25% jitter is added in both cases.
func (c *Client) calculateRetryWait(attempt int, lastResp *Response) time.Duration {
	var base time.Duration
	if lastResp != nil && lastResp.StatusCode == http.StatusTooManyRequests {
		base = c.parseRetryAfter(lastResp.Headers)
	}
	if base == 0 {
		// Cap the shift so the multiplication cannot overflow.
		shift := min(attempt-1, 30)
		base = c.opts.RetryWaitMin * time.Duration(1<<shift)
	}
	if base > c.opts.RetryWaitMax {
		base = c.opts.RetryWaitMax
	}
	if base <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(base)/4 + 1)) // #nosec G404 -- jitter only
	return base + jitter
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Invalid or non-positive values yield zero.
func (c *Client) parseRetryAfter(headers http.Header) time.Duration {
	value := strings.TrimSpace(headers.Get("Retry-After"))
	if value == "" {
		return 0
	}

	var d time.Duration
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if at, err := http.ParseTime(value); err == nil {
		d = time.Until(at)
	}

	if d <= 0 {
		return 0
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

// isRetryable determines if an error is retryable (transient network errors)
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(opErr.Err, syscall.ETIMEDOUT) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset",
		"connection refused",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
		"eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	// Unknown errors are treated as permanent.
	return false
}

// shouldRetry determines if an HTTP status code should trigger a retry
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Close closes the client and releases resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
