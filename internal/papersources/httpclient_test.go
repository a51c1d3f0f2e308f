package papersources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// fakeRecorder captures measurements for assertions.
type fakeRecorder struct {
	mu          sync.Mutex
	requests    []string
	failures    []string
	rateLimited int
	degraded    []string
}

func (f *fakeRecorder) RecordSourceRequest(source, operation string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, source+"/"+operation)
}

func (f *fakeRecorder) RecordSourceRequestFailed(source, operation, errorType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, source+"/"+operation+"/"+errorType)
}

func (f *fakeRecorder) RecordSourceRateLimited(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimited++
}

func (f *fakeRecorder) RecordDegradedResult(source, operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, source+"/"+operation)
}

func newFastClient(rec Recorder) *HTTPClient {
	return NewHTTPClient(HTTPClientConfig{
		SourceName: "test",
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		Recorder:   rec,
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("creates client with custom config", func(t *testing.T) {
		cfg := HTTPClientConfig{
			SourceName: "alphaxiv",
			Timeout:    5 * time.Second,
			RateLimit:  3,
			BurstSize:  2,
			MaxRetries: 1,
			RetryDelay: 200 * time.Millisecond,
			UserAgent:  "TestAgent/1.0",
		}

		client := NewHTTPClient(cfg)

		require.NotNil(t, client)
		require.NotNil(t, client.rateLimiter)
		assert.Equal(t, 5*time.Second, client.client.Timeout)
		assert.Equal(t, "alphaxiv", client.config.SourceName)
		assert.Equal(t, "TestAgent/1.0", client.config.UserAgent)
		assert.Equal(t, 1, client.config.MaxRetries)
	})

	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		require.NotNil(t, client)
		assert.Equal(t, 15*time.Second, client.client.Timeout)
		assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
		assert.Equal(t, "http", client.config.SourceName)
		assert.Equal(t, 2, client.config.MaxRetries)
		assert.Equal(t, 500*time.Millisecond, client.config.RetryDelay)
		assert.Equal(t, float64(5), client.config.RateLimit)
		assert.Equal(t, 5, client.config.BurstSize)
		assert.IsType(t, NopRecorder{}, client.recorder)
	})
}

func TestHTTPClient_Do(t *testing.T) {
	t.Run("sets User-Agent and records the operation", func(t *testing.T) {
		var receivedUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedUserAgent = r.Header.Get("User-Agent")
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		rec := &fakeRecorder{}
		client := newFastClient(rec)

		ctx := WithOperation(context.Background(), OperationFeed)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"status":"ok"}`, string(body))
		assert.Equal(t, DefaultUserAgent, receivedUserAgent)
		assert.Equal(t, []string{"test/feed"}, rec.requests)
		assert.Empty(t, rec.failures)
	})

	t.Run("preserves existing User-Agent header", func(t *testing.T) {
		var receivedUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedUserAgent = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		client := newFastClient(nil)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "Custom/3.0")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Custom/3.0", receivedUserAgent)
	})
}

func TestHTTPClient_DoRetry(t *testing.T) {
	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestCount.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		rec := &fakeRecorder{}
		client := newFastClient(rec)

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, int32(2), requestCount.Load())
		assert.Equal(t, 1, rec.rateLimited)
	})

	t.Run("persistent 429 becomes a rate limit error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		rec := &fakeRecorder{}
		client := newFastClient(rec)

		ctx := WithOperation(context.Background(), OperationSearch)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Equal(t, 3, rec.rateLimited)
		assert.Equal(t, []string{"test/search/rate_limited"}, rec.failures)
	})

	t.Run("retries on 503 and fails after max retries", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newFastClient(nil)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exhausted")
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
		assert.Equal(t, int32(3), requestCount.Load())
	})

	t.Run("does not retry on 404", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newFastClient(nil)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, int32(1), requestCount.Load())
	})
}

func TestHTTPClient_DoContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	client := newFastClient(rec)

	ctx, cancel := context.WithCancel(WithOperation(context.Background(), OperationDetails))
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"test/details/cancelled"}, rec.failures)
}

func TestHTTPClient_GetBody(t *testing.T) {
	t.Run("returns body and sends accept header", func(t *testing.T) {
		var accept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept = r.Header.Get("Accept")
			w.Write([]byte("<html></html>"))
		}))
		defer server.Close()

		body, err := newFastClient(nil).GetBody(context.Background(), server.URL, "text/html")
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(body))
		assert.Equal(t, "text/html", accept)
	})

	t.Run("non-2xx status becomes external API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no such paper"))
		}))
		defer server.Close()

		_, err := newFastClient(nil).GetBody(context.Background(), server.URL, "")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "no such paper", apiErr.Message)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHTTPClient_getRetryDelay(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{
		RetryDelay: 500 * time.Millisecond,
	})

	tests := []struct {
		name       string
		retryAfter string
		expected   time.Duration
	}{
		{"empty header", "", 500 * time.Millisecond},
		{"seconds", "5", 5 * time.Second},
		{"invalid", "invalid", 500 * time.Millisecond},
		{"zero seconds", "0", 500 * time.Millisecond},
		{"negative seconds", "-5", 500 * time.Millisecond},
		{"past date", time.Now().Add(-10 * time.Second).UTC().Format(http.TimeFormat), 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			assert.Equal(t, tt.expected, client.getRetryDelay(resp))
		})
	}

	t.Run("future date", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Set("Retry-After", time.Now().Add(10*time.Second).UTC().Format(http.TimeFormat))
		delay := client.getRetryDelay(resp)
		assert.Greater(t, delay, 8*time.Second)
		assert.Less(t, delay, 11*time.Second)
	})
}

func TestHTTPClient_shouldRetry(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{})

	testCases := []struct {
		statusCode  int
		shouldRetry bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{599, true},
	}

	for _, tc := range testCases {
		t.Run(http.StatusText(tc.statusCode), func(t *testing.T) {
			assert.Equal(t, tc.shouldRetry, client.shouldRetry(tc.statusCode), "status %d", tc.statusCode)
		})
	}
}

func TestHTTPClient_LimiterRefusal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	client := NewHTTPClient(HTTPClientConfig{SourceName: "scraper", RateLimit: 0.5, BurstSize: 1, Recorder: rec})

	first, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(first)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(second)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, rec.rateLimited)
}

func TestHTTPClient_LongRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "429 returns the advertised delay",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rlErr *domain.RateLimitError
				require.ErrorAs(t, err, &rlErr)
				assert.Equal(t, 24*time.Hour, rlErr.RetryAfter)
			},
		},
		{
			name:   "503 fails without waiting",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
				assert.Contains(t, err.Error(), "exceeds request timeout")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				requestCount.Add(1)
				w.Header().Set("Retry-After", "86400")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewHTTPClient(HTTPClientConfig{Timeout: time.Second, RateLimit: 100, BurstSize: 10})
			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)

			start := time.Now()
			_, err = client.Do(req)
			require.Error(t, err)
			assert.Less(t, time.Since(start), time.Second)
			assert.Equal(t, int32(1), requestCount.Load())
			tt.check(t, err)
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "empty response", snippet([]byte("  \n")))
	assert.Equal(t, "no such paper", snippet([]byte(" no such paper ")))

	long := strings.Repeat("é", 150) + strings.Repeat("論", 100)
	got := snippet([]byte(long))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 200, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, strings.Repeat("論", 50)))

	assert.True(t, utf8.ValidString(snippet([]byte{'o', 'k', 0xff, 0xfe})))
}
