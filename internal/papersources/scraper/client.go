// Package scraper provides a paper source that parses the public alphaXiv
// website with goquery.
//
// The markup targeted by the selector table is not a stable interface. All
// selectors live in selectors.yaml (embedded) and can be overridden from a file
// without a rebuild.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

const (
	// DefaultSiteURL is the website root.
	DefaultSiteURL = "https://www.alphaxiv.org"

	// DefaultAssetBaseURL hosts the default paper thumbnails.
	DefaultAssetBaseURL = "https://paper-assets.alphaxiv.org/"

	// DefaultRateLimit is the default requests per second.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 20 * time.Second

	sourceName = "scraper"
)

// Config contains configuration options for the scraper.
type Config struct {
	// SiteURL is the website root. Defaults to DefaultSiteURL.
	SiteURL string

	// AssetBaseURL hosts default thumbnails. Defaults to DefaultAssetBaseURL.
	AssetBaseURL string

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize is the maximum burst of requests. Defaults to DefaultBurstSize.
	BurstSize int

	// UserAgent overrides the HTTP client's default.
	UserAgent string

	// Selectors is the selector table. A zero value uses DefaultSelectors.
	Selectors *Selectors
}

// Client implements papersources.Source by scraping HTML pages.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
	selectors  Selectors
	boundary   papersources.Boundary
}

var _ papersources.Source = (*Client)(nil)

// NewClient creates a new scraper. If httpClient is nil, one is created from cfg.
func NewClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, recorder papersources.Recorder) *Client {
	if cfg.SiteURL == "" {
		cfg.SiteURL = DefaultSiteURL
	}
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")
	if cfg.AssetBaseURL == "" {
		cfg.AssetBaseURL = DefaultAssetBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	selectors := DefaultSelectors()
	if cfg.Selectors != nil {
		selectors = *cfg.Selectors
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			SourceName: sourceName,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  cfg.BurstSize,
			UserAgent:  cfg.UserAgent,
			Recorder:   recorder,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		selectors:  selectors,
		boundary:   papersources.NewBoundary(sourceName, logger, recorder),
	}
}

// Name returns the source identifier.
func (c *Client) Name() string {
	return sourceName
}

// Feed scrapes the listing page. A blank sort requests the site root.
func (c *Client) Feed(ctx context.Context, sort domain.FeedSort) ([]domain.Paper, error) {
	ctx = papersources.WithOperation(ctx, papersources.OperationFeed)

	pageURL := c.config.SiteURL + "/"
	if strings.TrimSpace(string(sort)) != "" {
		pageURL += "?sort=" + url.QueryEscape(string(domain.NormalizeSort(string(sort))))
	}

	doc, _, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	return parseCards(doc, c.selectors, c.config.SiteURL), nil
}

// SearchPapers scrapes the search results page. A blank query returns an empty
// list without a request.
func (c *Client) SearchPapers(ctx context.Context, query string) ([]domain.Paper, error) {
	if papersources.IsBlankQuery(query) {
		return []domain.Paper{}, nil
	}
	ctx = papersources.WithOperation(ctx, papersources.OperationSearch)

	pageURL := c.config.SiteURL + "/?search=" + url.QueryEscape(strings.TrimSpace(query))
	doc, _, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch search results: %w", err)
	}
	return parseCards(doc, c.selectors, c.config.SiteURL), nil
}

// Paper scrapes the abstract page for id.
func (c *Client) Paper(ctx context.Context, id string) (domain.Paper, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Paper{}, domain.NewValidationError("id", "cannot be empty")
	}
	ctx = papersources.WithOperation(ctx, papersources.OperationDetails)

	doc, _, err := c.fetchDocument(ctx, papersources.CanonicalPaperURL(c.config.SiteURL, id))
	if err != nil {
		return domain.Paper{}, fmt.Errorf("fetch abstract page: %w", err)
	}
	return parseDetail(doc, id, c.selectors.Detail, c.config.SiteURL, c.config.AssetBaseURL)
}

// Overview scrapes the overview page for id. The site serves one language, so
// lang is ignored. When neither a content container nor readability yields
// enough text, the page description is used under the page title.
func (c *Client) Overview(ctx context.Context, id, _ string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.NewValidationError("id", "cannot be empty")
	}
	ctx = papersources.WithOperation(ctx, papersources.OperationOverview)

	pageURL := c.config.SiteURL + "/overview/" + url.PathEscape(id)
	doc, raw, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch overview page: %w", err)
	}

	parsedURL, _ := url.Parse(pageURL)
	if text := parseOverview(doc, raw, parsedURL, c.selectors.Overview); text != "" {
		return text, nil
	}

	if desc := metaDescription(doc, c.selectors.Overview); desc != "" {
		title := firstValue(doc.Selection, c.selectors.Detail.Title, placeholderMatcher(c.selectors.Detail.Placeholders))
		if title == "" {
			title = domain.DefaultTitle
		}
		return "# " + title + "\n\n" + desc, nil
	}

	return "", fmt.Errorf("no overview content on page for %s: %w", id, domain.ErrParse)
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

// FetchOverview implements papersources.Source. When the overview page yields
// nothing usable, the abstract page is fetched and a pseudo-abstract with a
// link to the paper is returned instead.
func (c *Client) FetchOverview(ctx context.Context, id, lang string) string {
	md, err := c.Overview(ctx, id, lang)
	if err == nil {
		return md
	}
	c.boundary.Failed(ctx, papersources.OperationOverview, err, "paper_id", id)

	reason := ""
	if !errors.Is(err, domain.ErrParse) {
		reason = err.Error()
	}

	p, detailErr := c.Paper(ctx, id)
	if detailErr != nil {
		p = domain.Paper{ID: id}
	}
	return papersources.FallbackOverview(p, papersources.CanonicalPaperURL(c.config.SiteURL, id), reason)
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, []byte, error) {
	body, err := c.httpClient.GetBody(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil, domain.NewNotFoundError("page", pageURL)
		}
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w: %w", domain.ErrParse, err)
	}
	return doc, body, nil
}
