// Package mock provides a paper source backed by fixed sample data.
package mock

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

const sourceName = "mock"

// Config contains configuration options for the mock source.
type Config struct {
	// Delay is artificial latency added to every call. Zero disables it.
	Delay time.Duration
}

// Client serves the sample papers. It never touches the network.
type Client struct {
	config   Config
	boundary papersources.Boundary
}

var _ papersources.Source = (*Client)(nil)

// NewClient creates a mock source.
func NewClient(cfg Config, logger zerolog.Logger, recorder papersources.Recorder) *Client {
	return &Client{
		config:   cfg,
		boundary: papersources.NewBoundary(sourceName, logger, recorder),
	}
}

// Name returns the source identifier.
func (c *Client) Name() string {
	return sourceName
}

// Feed returns the sample papers regardless of sort.
func (c *Client) Feed(ctx context.Context, _ domain.FeedSort) ([]domain.Paper, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return samplePapers(), nil
}

// Paper returns the sample paper with id, or a NotFoundError.
func (c *Client) Paper(ctx context.Context, id string) (domain.Paper, error) {
	if err := c.wait(ctx); err != nil {
		return domain.Paper{}, err
	}
	id = strings.TrimSpace(id)
	for _, p := range samplePapers() {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Paper{}, domain.NewNotFoundError("paper", id)
}

// SearchPapers filters sample titles case-insensitively.
func (c *Client) SearchPapers(ctx context.Context, query string) ([]domain.Paper, error) {
	if papersources.IsBlankQuery(query) {
		return []domain.Paper{}, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Paper{}
	for _, p := range samplePapers() {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Overview returns the sample article. id and lang are ignored.
func (c *Client) Overview(ctx context.Context, _, _ string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return sampleOverview, nil
}

// FetchFeed implements papersources.Source.
func (c *Client) FetchFeed(ctx context.Context, sort domain.FeedSort) []domain.Paper {
	papers, err := c.Feed(ctx, sort)
	return c.boundary.List(ctx, papersources.OperationFeed, papers, err)
}

// FetchDetails implements papersources.Source.
func (c *Client) FetchDetails(ctx context.Context, id string) domain.Paper {
	p, err := c.Paper(ctx, id)
	return c.boundary.Paper(ctx, id, p, err)
}

// Search implements papersources.Source.
func (c *Client) Search(ctx context.Context, query string) []domain.Paper {
	papers, err := c.SearchPapers(ctx, query)
	return c.boundary.List(ctx, papersources.OperationSearch, papers, err)
}

// FetchOverview implements papersources.Source.
func (c *Client) FetchOverview(ctx context.Context, id, lang string) string {
	md, err := c.Overview(ctx, id, lang)
	if err != nil {
		c.boundary.Failed(ctx, papersources.OperationOverview, err, "paper_id", id)
		return papersources.FallbackOverview(domain.Paper{ID: id}, papersources.CanonicalPaperURL(siteURL, id), err.Error())
	}
	return md
}

// siteURL is only used to build links in degraded overviews.
const siteURL = "https://www.alphaxiv.org"

func (c *Client) wait(ctx context.Context) error {
	if c.config.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.config.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
