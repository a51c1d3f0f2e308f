package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/database"
	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/observability"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockPaperService implements PaperService for HTTP handler tests.
type mockPaperService struct {
	feedFn    func(ctx context.Context, sort domain.FeedSort) []domain.Paper
	detailsFn func(ctx context.Context, id string) domain.Paper
	searchFn  func(ctx context.Context, query string) []domain.Paper
	blogFn    func(ctx context.Context, id, lang string) string
	toggleErr error
	langErr   error

	mu        sync.Mutex
	bookmarks map[string]bool
	language  string
}

func newMockPaperService() *mockPaperService {
	return &mockPaperService{
		bookmarks: make(map[string]bool),
		language:  domain.DefaultLanguage,
	}
}

func (m *mockPaperService) SourceName() string { return "mock" }

func (m *mockPaperService) GetFeed(ctx context.Context, sort domain.FeedSort) []domain.Paper {
	if m.feedFn != nil {
		return m.feedFn(ctx, sort)
	}
	return []domain.Paper{}
}

func (m *mockPaperService) GetPaperDetails(ctx context.Context, id string) domain.Paper {
	if m.detailsFn != nil {
		return m.detailsFn(ctx, id)
	}
	return testPaper(id)
}

func (m *mockPaperService) SearchPapers(ctx context.Context, query string) []domain.Paper {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return []domain.Paper{}
}

func (m *mockPaperService) GetBlog(ctx context.Context, id, lang string) string {
	if m.blogFn != nil {
		return m.blogFn(ctx, id, lang)
	}
	return "# " + id
}

func (m *mockPaperService) GetBookmarks(_ context.Context) []domain.Paper {
	m.mu.Lock()
	defer m.mu.Unlock()
	papers := []domain.Paper{}
	for id := range m.bookmarks {
		papers = append(papers, testPaper(id))
	}
	return papers
}

func (m *mockPaperService) IsBookmarked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookmarks[id]
}

func (m *mockPaperService) ToggleBookmark(_ context.Context, id string) (bool, error) {
	if m.toggleErr != nil {
		return false, m.toggleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bookmarks[id] {
		delete(m.bookmarks, id)
		return false, nil
	}
	m.bookmarks[id] = true
	return true, nil
}

func (m *mockPaperService) OverviewLanguage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.language
}

func (m *mockPaperService) SetOverviewLanguage(_ context.Context, lang string) error {
	if m.langErr != nil {
		return m.langErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.language = domain.NormalizeLanguage(lang)
	return nil
}

// mockHealth implements HealthChecker.
type mockHealth struct {
	status database.HealthStatus
}

func (m *mockHealth) Health(_ context.Context) database.HealthStatus {
	return m.status
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testPaper(id string) domain.Paper {
	p, _ := domain.NewPaper(domain.Paper{ID: id, Title: "Paper " + id})
	return p
}

// newTestHTTPServer creates a Server configured for testing with mocked dependencies.
func newTestHTTPServer(papers PaperService, health HealthChecker) *Server {
	return NewServer(Config{}, papers, health, nil, zerolog.Nop())
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, r)
	return rr
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Tests: health
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	srv := newTestHTTPServer(newMockPaperService(), nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["source"] != "mock" {
		t.Errorf("expected source mock, got %q", resp["source"])
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name           string
		health         HealthChecker
		expectedStatus int
		expectedDB     string
	}{
		{"no database", nil, http.StatusOK, "disabled"},
		{"healthy database", &mockHealth{status: database.HealthStatus{Status: "healthy"}}, http.StatusOK, "healthy"},
		{"unhealthy database", &mockHealth{status: database.HealthStatus{Status: "unhealthy", Error: "ping failed"}}, http.StatusServiceUnavailable, "unhealthy"},
		{"schema not migrated", &mockHealth{status: database.HealthStatus{Status: database.StatusUnmigrated, Error: "no migrations applied"}}, http.StatusServiceUnavailable, "unmigrated"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestHTTPServer(newMockPaperService(), tc.health)

			rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.expectedStatus {
				t.Fatalf("expected %d, got %d", tc.expectedStatus, rr.Code)
			}

			var resp map[string]string
			decodeJSON(t, rr, &resp)
			if resp["database"] != tc.expectedDB {
				t.Errorf("expected database %q, got %q", tc.expectedDB, resp["database"])
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Tests: feed and search
// ---------------------------------------------------------------------------

func TestGetFeed(t *testing.T) {
	t.Run("normalizes sort and annotates bookmarks", func(t *testing.T) {
		svc := newMockPaperService()
		svc.bookmarks["b"] = true

		var gotSort domain.FeedSort
		svc.feedFn = func(_ context.Context, sort domain.FeedSort) []domain.Paper {
			gotSort = sort
			return []domain.Paper{testPaper("a"), testPaper("b")}
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/feed?sort=comments", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotSort != domain.FeedSortComments {
			t.Errorf("expected sort %q, got %q", domain.FeedSortComments, gotSort)
		}

		var resp listPapersResponse
		decodeJSON(t, rr, &resp)
		if resp.TotalCount != 2 || len(resp.Papers) != 2 {
			t.Fatalf("expected 2 papers, got %d", len(resp.Papers))
		}
		if resp.Sort != "Comments" {
			t.Errorf("expected sort Comments, got %q", resp.Sort)
		}
		if resp.Papers[0].Bookmarked {
			t.Error("expected paper a not to be bookmarked")
		}
		if !resp.Papers[1].Bookmarked {
			t.Error("expected paper b to be bookmarked")
		}
	})

	t.Run("missing sort defaults to hot", func(t *testing.T) {
		svc := newMockPaperService()
		var gotSort domain.FeedSort
		svc.feedFn = func(_ context.Context, sort domain.FeedSort) []domain.Paper {
			gotSort = sort
			return []domain.Paper{}
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotSort != domain.FeedSortHot {
			t.Errorf("expected sort Hot, got %q", gotSort)
		}

		var resp listPapersResponse
		decodeJSON(t, rr, &resp)
		if resp.Papers == nil {
			t.Error("expected papers to encode as an empty array")
		}
	})

	t.Run("unknown sort is rejected", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/feed?sort=Newest", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}

		var resp map[string]string
		decodeJSON(t, rr, &resp)
		if !strings.Contains(resp["error"], "sort") {
			t.Errorf("expected error to name the sort field, got %q", resp["error"])
		}
	})
}

func TestSearchPapers(t *testing.T) {
	t.Run("passes query through", func(t *testing.T) {
		svc := newMockPaperService()
		var gotQuery string
		svc.searchFn = func(_ context.Context, query string) []domain.Paper {
			gotQuery = query
			return []domain.Paper{testPaper("2601.20802")}
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=mean+flows", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotQuery != "mean flows" {
			t.Errorf("expected query %q, got %q", "mean flows", gotQuery)
		}

		var resp listPapersResponse
		decodeJSON(t, rr, &resp)
		if resp.Query != "mean flows" || resp.TotalCount != 1 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("blank query returns empty list", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp listPapersResponse
		decodeJSON(t, rr, &resp)
		if resp.TotalCount != 0 {
			t.Errorf("expected no papers, got %d", resp.TotalCount)
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: papers
// ---------------------------------------------------------------------------

func TestGetPaper(t *testing.T) {
	t.Run("returns paper", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/2601.20802", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp paperResponse
		decodeJSON(t, rr, &resp)
		if resp.ID != "2601.20802" {
			t.Errorf("expected id 2601.20802, got %q", resp.ID)
		}
		if resp.Degraded {
			t.Error("expected paper not to be degraded")
		}
	})

	t.Run("placeholder is marked degraded", func(t *testing.T) {
		svc := newMockPaperService()
		svc.detailsFn = func(_ context.Context, id string) domain.Paper {
			return domain.NewErrorPaper(id, errors.New("upstream down"))
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/x", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp paperResponse
		decodeJSON(t, rr, &resp)
		if !resp.Degraded {
			t.Error("expected degraded flag")
		}
		if resp.Title != domain.ErrorLoadingTitle {
			t.Errorf("expected placeholder title, got %q", resp.Title)
		}
	})

	t.Run("overlong id is rejected", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		id := strings.Repeat("9", maxPaperIDLength+1)
		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+id, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}

func TestGetOverview(t *testing.T) {
	t.Run("uses stored language without lang", func(t *testing.T) {
		svc := newMockPaperService()
		svc.language = "de"
		var gotLang string
		svc.blogFn = func(_ context.Context, id, lang string) string {
			gotLang = lang
			return "# Overview"
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/x/overview", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if gotLang != "de" {
			t.Errorf("expected lang de, got %q", gotLang)
		}

		var resp overviewResponse
		decodeJSON(t, rr, &resp)
		if resp.Markdown != "# Overview" || resp.Language != "de" || resp.PaperID != "x" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("explicit lang is normalized", func(t *testing.T) {
		svc := newMockPaperService()
		var gotLang string
		svc.blogFn = func(_ context.Context, _, lang string) string {
			gotLang = lang
			return "# Überblick"
		}
		srv := newTestHTTPServer(svc, nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/x/overview?lang=PT-BR", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if gotLang != "pt-br" {
			t.Errorf("expected lang pt-br, got %q", gotLang)
		}
	})

	t.Run("malformed lang is rejected", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/x/overview?lang=not_a_lang!", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: bookmarks
// ---------------------------------------------------------------------------

func TestToggleBookmark(t *testing.T) {
	svc := newMockPaperService()
	srv := newTestHTTPServer(svc, nil)

	toggle := func(t *testing.T) bookmarkResponse {
		t.Helper()
		rr := serveHTTP(srv, httptest.NewRequest(http.MethodPost, "/api/v1/bookmarks/2601.20802/toggle", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp bookmarkResponse
		decodeJSON(t, rr, &resp)
		return resp
	}

	if resp := toggle(t); !resp.Bookmarked || resp.PaperID != "2601.20802" {
		t.Errorf("expected first toggle to add, got %+v", resp)
	}

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks/2601.20802", nil))
	var state bookmarkResponse
	decodeJSON(t, rr, &state)
	if !state.Bookmarked {
		t.Error("expected bookmark state to be true")
	}

	rr = serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks", nil))
	var list listPapersResponse
	decodeJSON(t, rr, &list)
	if list.TotalCount != 1 || !list.Papers[0].Bookmarked {
		t.Errorf("expected one bookmarked paper, got %+v", list)
	}

	if resp := toggle(t); resp.Bookmarked {
		t.Errorf("expected second toggle to remove, got %+v", resp)
	}
}

func TestToggleBookmark_GetNotAllowed(t *testing.T) {
	srv := newTestHTTPServer(newMockPaperService(), nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks/x/toggle", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestToggleBookmark_StoreError(t *testing.T) {
	svc := newMockPaperService()
	svc.toggleErr = errors.New("adding bookmark x: connection reset")
	srv := newTestHTTPServer(svc, nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodPost, "/api/v1/bookmarks/x/toggle", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Errorf("response leaks internal error: %s", rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests: preferences
// ---------------------------------------------------------------------------

func TestLanguagePreference(t *testing.T) {
	t.Run("get returns stored language", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/preferences/language", nil))
		var resp languageResponse
		decodeJSON(t, rr, &resp)
		if resp.Language != "en" {
			t.Errorf("expected en, got %q", resp.Language)
		}
	})

	t.Run("put stores language", func(t *testing.T) {
		svc := newMockPaperService()
		srv := newTestHTTPServer(svc, nil)

		req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/language", bytes.NewBufferString(`{"language":" FR "}`))
		rr := serveHTTP(srv, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp languageResponse
		decodeJSON(t, rr, &resp)
		if resp.Language != "fr" {
			t.Errorf("expected fr, got %q", resp.Language)
		}
		if svc.OverviewLanguage() != "fr" {
			t.Errorf("expected service language fr, got %q", svc.OverviewLanguage())
		}
	})

	t.Run("put rejects invalid bodies", func(t *testing.T) {
		srv := newTestHTTPServer(newMockPaperService(), nil)

		for _, body := range []string{`not json`, `{}`, `{"language":"???"}`} {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/language", bytes.NewBufferString(body))
			rr := serveHTTP(srv, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, rr.Code)
			}
		}
	})

	t.Run("put store failure", func(t *testing.T) {
		svc := newMockPaperService()
		svc.langErr = errors.New("saving overview language: timeout")
		srv := newTestHTTPServer(svc, nil)

		req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/language", bytes.NewBufferString(`{"language":"de"}`))
		rr := serveHTTP(srv, req)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: helper functions
// ---------------------------------------------------------------------------

func TestWriteDomainError_Mappings(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not found wrapped", domain.NewNotFoundError("paper", "123"), http.StatusNotFound},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"validation error", domain.NewValidationError("q", "too long"), http.StatusBadRequest},
		{"rate limited", domain.NewRateLimitError("alphaxiv", 0), http.StatusTooManyRequests},
		{"service unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"upstream status", domain.NewExternalAPIError("alphaxiv", 502, "bad gateway", nil), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("feed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tc.err)
			if rr.Code != tc.expectedStatus {
				t.Errorf("expected status %d, got %d", tc.expectedStatus, rr.Code)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestHTTPServer(newMockPaperService(), nil)

	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v2/feed", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestRequestsAreRecorded(t *testing.T) {
	metrics := observability.NewMetrics("test_http_server")
	srv := NewServer(Config{}, newMockPaperService(), nil, metrics, zerolog.Nop())

	serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/a", nil))
	serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/v1/papers/b", nil))

	got := testutilCounter(t, metrics, http.MethodGet, "/api/v1/papers/{paperID}", "200")
	if got != 2 {
		t.Errorf("expected 2 requests recorded under the route pattern, got %v", got)
	}
}
