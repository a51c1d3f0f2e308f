package httpserver

import (
	"github.com/helixir/paper-feed-service/internal/domain"
)

// paperResponse is a paper annotated with its bookmark state. Degraded marks
// an error placeholder returned in place of a paper that failed to load.
type paperResponse struct {
	domain.Paper
	Bookmarked bool `json:"bookmarked"`
	Degraded   bool `json:"degraded,omitempty"`
}

type listPapersResponse struct {
	Source     string          `json:"source"`
	Sort       string          `json:"sort,omitempty"`
	Query      string          `json:"query,omitempty"`
	Papers     []paperResponse `json:"papers"`
	TotalCount int             `json:"total_count"`
}

type overviewResponse struct {
	PaperID  string `json:"paper_id"`
	Language string `json:"language"`
	Markdown string `json:"markdown"`
}

type bookmarkResponse struct {
	PaperID    string `json:"paper_id"`
	Bookmarked bool   `json:"bookmarked"`
}

type languageResponse struct {
	Language string `json:"language"`
}

// Converter functions

func (s *Server) toPaperResponse(p domain.Paper) paperResponse {
	return paperResponse{
		Paper:      p,
		Bookmarked: s.papers.IsBookmarked(p.ID),
		Degraded:   p.IsErrorPlaceholder(),
	}
}

func (s *Server) toPaperResponses(papers []domain.Paper) []paperResponse {
	out := make([]paperResponse, len(papers))
	for i, p := range papers {
		out[i] = s.toPaperResponse(p)
	}
	return out
}
