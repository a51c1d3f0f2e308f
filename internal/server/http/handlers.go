package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/paper-feed-service/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// getFeed handles GET /feed?sort=.
func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	req := feedRequest{Sort: r.URL.Query().Get("sort")}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	sort := domain.NormalizeSort(req.Sort)
	papers := s.papers.GetFeed(r.Context(), sort)

	writeJSON(w, http.StatusOK, listPapersResponse{
		Source:     s.papers.SourceName(),
		Sort:       string(sort),
		Papers:     s.toPaperResponses(papers),
		TotalCount: len(papers),
	})
}

// searchPapers handles GET /search?q=. A blank query yields an empty list.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Query: r.URL.Query().Get("q")}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	papers := s.papers.SearchPapers(r.Context(), req.Query)

	writeJSON(w, http.StatusOK, listPapersResponse{
		Source:     s.papers.SourceName(),
		Query:      strings.TrimSpace(req.Query),
		Papers:     s.toPaperResponses(papers),
		TotalCount: len(papers),
	})
}

// getPaper handles GET /papers/{paperID}. A paper that failed to load is
// returned as a degraded placeholder rather than an error.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	req := paperRequest{PaperID: chi.URLParam(r, "paperID")}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	p := s.papers.GetPaperDetails(r.Context(), req.PaperID)
	writeJSON(w, http.StatusOK, s.toPaperResponse(p))
}

// getOverview handles GET /papers/{paperID}/overview?lang=. Without lang the
// stored overview language is used.
func (s *Server) getOverview(w http.ResponseWriter, r *http.Request) {
	req := overviewRequest{
		PaperID:  chi.URLParam(r, "paperID"),
		Language: strings.TrimSpace(r.URL.Query().Get("lang")),
	}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	lang := s.papers.OverviewLanguage()
	if req.Language != "" {
		lang = domain.NormalizeLanguage(req.Language)
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		PaperID:  req.PaperID,
		Language: lang,
		Markdown: s.papers.GetBlog(r.Context(), req.PaperID, lang),
	})
}

// listBookmarks handles GET /bookmarks.
func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	papers := s.papers.GetBookmarks(r.Context())

	writeJSON(w, http.StatusOK, listPapersResponse{
		Source:     s.papers.SourceName(),
		Papers:     s.toPaperResponses(papers),
		TotalCount: len(papers),
	})
}

// getBookmark handles GET /bookmarks/{paperID}.
func (s *Server) getBookmark(w http.ResponseWriter, r *http.Request) {
	req := paperRequest{PaperID: chi.URLParam(r, "paperID")}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookmarkResponse{
		PaperID:    req.PaperID,
		Bookmarked: s.papers.IsBookmarked(req.PaperID),
	})
}

// toggleBookmark handles POST /bookmarks/{paperID}/toggle.
func (s *Server) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	req := paperRequest{PaperID: chi.URLParam(r, "paperID")}
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	bookmarked, err := s.papers.ToggleBookmark(r.Context(), req.PaperID)
	if err != nil {
		s.logger.Error().Err(err).Str("paper_id", req.PaperID).Msg("failed to toggle bookmark")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookmarkResponse{
		PaperID:    req.PaperID,
		Bookmarked: bookmarked,
	})
}

// getLanguage handles GET /preferences/language.
func (s *Server) getLanguage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, languageResponse{Language: s.papers.OverviewLanguage()})
}

// setLanguage handles PUT /preferences/language.
func (s *Server) setLanguage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req languageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	req.Language = strings.TrimSpace(req.Language)
	if err := s.validateRequest(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.papers.SetOverviewLanguage(r.Context(), req.Language); err != nil {
		s.logger.Error().Err(err).Str("language", req.Language).Msg("failed to set overview language")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, languageResponse{Language: s.papers.OverviewLanguage()})
}

// writeDomainError maps a domain error to an HTTP status. Only validation
// errors echo their message; everything else gets a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
