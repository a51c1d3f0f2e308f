// Package papersources provides the interchangeable strategies that acquire paper data.
//
// Every strategy (mock, structured API, HTML scraper) implements Source and
// normalizes its upstream material into domain.Paper values. Strategies absorb
// failures at their boundary: feed and search degrade to empty lists, details
// degrade to an error placeholder paper and overviews degrade to a Markdown block
// linking to the canonical page. Callers never have to handle a strategy error.
//
// Example usage:
//
//	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{SourceName: "alphaxiv"})
//	source := alphaxiv.NewClient(alphaxiv.Config{}, httpClient, logger)
//	papers := source.FetchFeed(ctx, domain.FeedSortHot)
package papersources

import (
	"context"
	"fmt"
	"strings"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// Kind identifies a source strategy. Exactly one kind is active per process.
type Kind string

const (
	// KindMock serves fixed sample data.
	KindMock Kind = "mock"
	// KindAPI calls the structured JSON API.
	KindAPI Kind = "api"
	// KindScraper parses the public website's HTML.
	KindScraper Kind = "scraper"
)

// ParseKind validates a configured strategy name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMock, KindAPI, KindScraper:
		return k, nil
	default:
		return "", domain.NewValidationError("paper_sources.active", fmt.Sprintf("unsupported source %q", s))
	}
}

// Source is the capability every paper acquisition strategy implements.
//
// All methods honour ctx: cancelling it aborts in-flight requests, which lets a
// caller supersede a stale feed or search. None of the methods return errors.
type Source interface {
	// Name returns a short identifier used in logs and metrics.
	Name() string

	// FetchFeed returns papers ordered by sort, best effort. Unknown sorts are
	// treated as domain.FeedSortHot. Returns an empty list on failure.
	FetchFeed(ctx context.Context, sort domain.FeedSort) []domain.Paper

	// FetchDetails returns a single paper. On failure it returns
	// domain.NewErrorPaper(id, err).
	FetchDetails(ctx context.Context, id string) domain.Paper

	// Search returns papers matching query. A blank query returns an empty list
	// without touching the network.
	Search(ctx context.Context, query string) []domain.Paper

	// FetchOverview returns long-form Markdown content for a paper in lang.
	// It never returns an empty string.
	FetchOverview(ctx context.Context, id, lang string) string
}

// IsBlankQuery reports whether query has no searchable content.
func IsBlankQuery(query string) bool {
	return strings.TrimSpace(query) == ""
}
