package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// DefaultUserAgent is sent when HTTPClientConfig.UserAgent is empty.
const DefaultUserAgent = "Helixir-PaperFeed/1.0"

// maxBodyBytes caps how much of an upstream response is read into memory.
const maxBodyBytes = 10 << 20

// HTTPClientConfig configures an HTTPClient. Zero fields take the defaults
// applied by NewHTTPClient.
type HTTPClientConfig struct {
	SourceName string        // metric label and error source; default "http"
	Timeout    time.Duration // per attempt; default 15s
	RateLimit  float64       // requests per second; default 5, negative is unlimited
	BurstSize  int           // default 5
	MaxRetries int           // retries after the first attempt; default 2
	RetryDelay time.Duration // base backoff when Retry-After is absent; default 500ms
	UserAgent  string        // used when the request sets none
	Recorder   Recorder      // nil discards measurements
}

// HTTPClient is the client every alphaXiv strategy and the PDF downloader go
// through. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	recorder    Recorder
	config      HTTPClientConfig
}

// NewHTTPClient fills in defaults for zero fields.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.SourceName == "" {
		cfg.SourceName = "http"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.SourceName, cfg.RateLimit, cfg.BurstSize),
		recorder:    recorder,
		config:      cfg,
	}
}

// Do sends req, waiting on the limiter before every attempt and retrying 429
// and 5xx responses. Retry-After is honoured on 429. The outcome is recorded
// under the operation set by WithOperation.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	op := OperationFromContext(req.Context())
	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		c.recorder.RecordSourceRequestFailed(c.config.SourceName, op, ErrorType(err))
		return nil, err
	}
	c.recorder.RecordSourceRequest(c.config.SourceName, op, time.Since(start).Seconds())
	return resp, nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				c.recorder.RecordSourceRateLimited(c.config.SourceName)
			}
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		if c.shouldRetry(resp.StatusCode) {
			if resp.StatusCode == http.StatusTooManyRequests {
				c.recorder.RecordSourceRateLimited(c.config.SourceName)
			}
			retryDelay := c.getRetryDelay(resp)

			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			// A Retry-After longer than one attempt's timeout is not waited out.
			tooLong := retryDelay > c.config.Timeout
			if attempt < c.config.MaxRetries && !tooLong {
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, domain.NewRateLimitError(c.config.SourceName, retryDelay)
			}
			if tooLong {
				return nil, domain.NewExternalAPIError(c.config.SourceName, resp.StatusCode,
					fmt.Sprintf("retry after %s exceeds request timeout %s", retryDelay, c.config.Timeout), nil)
			}
			return nil, domain.NewExternalAPIError(c.config.SourceName, resp.StatusCode,
				fmt.Sprintf("max retries exhausted after %d attempts", attempt+1), nil)
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// GetBody performs a GET of rawURL and returns the response body.
// Non-2xx responses become *domain.ExternalAPIError carrying the status code.
func (c *HTTPClient) GetBody(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewExternalAPIError(c.config.SourceName, resp.StatusCode, snippet(body), nil)
	}
	return body, nil
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay determines how long to wait before retrying.
// It respects the Retry-After header if present, otherwise uses the configured retry delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

const maxSnippetRunes = 200

// snippet is the start of an error body, cut on a rune boundary.
func snippet(body []byte) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(body), "\uFFFD"))
	if r := []rune(s); len(r) > maxSnippetRunes {
		s = string(r[:maxSnippetRunes])
	}
	if s == "" {
		return "empty response"
	}
	return s
}
