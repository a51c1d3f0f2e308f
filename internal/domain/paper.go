// Package domain provides the domain model shared by every paper source and the repository.
package domain

import (
	"strings"
)

// Placeholder values substituted when a source cannot supply a field.
const (
	// DefaultTitle is used when no title could be extracted.
	DefaultTitle = "No Title"

	// ErrorLoadingTitle marks a paper produced in place of a failed lookup.
	ErrorLoadingTitle = "Error loading"
)

// Paper is the normalized representation of a research paper.
//
// Papers are value objects built fresh on every fetch. Use NewPaper to obtain one
// that satisfies the invariants: non-empty ID and Title, non-nil slices and
// non-negative counts.
type Paper struct {
	// ID re-queries the paper at its source (arXiv-style id or a surrogate).
	ID string `json:"id"`

	// Title is the display name.
	Title string `json:"title"`

	// Authors is ordered as published. Never nil.
	Authors []string `json:"authors"`

	// Summary is the abstract text, possibly empty.
	Summary string `json:"summary"`

	// PublishedDate is free-form display text and is not parsed.
	PublishedDate string `json:"published_date"`

	// ThumbnailURL is an absolute URL or nil.
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`

	// Categories holds tag strings. Never nil.
	Categories []string `json:"categories"`

	UpvoteCount  int `json:"upvote_count"`
	CommentCount int `json:"comment_count"`
}

// NewPaper normalizes a candidate record. The second return value is false when
// the record has no usable ID and must be dropped.
func NewPaper(p Paper) (Paper, bool) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return Paper{}, false
	}

	p.Title = collapseSpace(p.Title)
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	p.Summary = strings.TrimSpace(p.Summary)
	p.PublishedDate = strings.TrimSpace(p.PublishedDate)
	p.Authors = cleanList(p.Authors)
	p.Categories = cleanList(p.Categories)

	if p.ThumbnailURL != nil {
		u := strings.TrimSpace(*p.ThumbnailURL)
		if u == "" {
			p.ThumbnailURL = nil
		} else {
			p.ThumbnailURL = &u
		}
	}

	if p.UpvoteCount < 0 {
		p.UpvoteCount = 0
	}
	if p.CommentCount < 0 {
		p.CommentCount = 0
	}

	return p, true
}

// NewErrorPaper builds the degraded placeholder returned in place of a paper that
// could not be loaded. The failure message becomes the summary.
func NewErrorPaper(id string, err error) Paper {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Paper{
		ID:         strings.TrimSpace(id),
		Title:      ErrorLoadingTitle,
		Authors:    []string{},
		Summary:    msg,
		Categories: []string{},
	}
}

// IsErrorPlaceholder reports whether p was produced by NewErrorPaper.
func (p Paper) IsErrorPlaceholder() bool {
	return p.Title == ErrorLoadingTitle
}

// DedupeByID drops papers whose ID has already been seen, keeping the first
// occurrence and the original order. The result is never nil.
func DedupeByID(papers []Paper) []Paper {
	out := make([]Paper, 0, len(papers))
	seen := make(map[string]struct{}, len(papers))
	for _, p := range papers {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NormalizePapers runs NewPaper over every candidate, drops the ones without an
// ID and removes duplicates.
func NormalizePapers(candidates []Paper) []Paper {
	out := make([]Paper, 0, len(candidates))
	for _, c := range candidates {
		if p, ok := NewPaper(c); ok {
			out = append(out, p)
		}
	}
	return DedupeByID(out)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = collapseSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// collapseSpace trims s and folds internal whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
