package alphaxiv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

const (
	// DefaultBaseURL is the JSON API root.
	DefaultBaseURL = "https://api.alphaxiv.org/"

	// DefaultAssetBaseURL prefixes relative image paths.
	DefaultAssetBaseURL = "https://paper-assets.alphaxiv.org/"

	// DefaultSiteURL is the public website used for canonical links.
	DefaultSiteURL = "https://www.alphaxiv.org"

	// DefaultPageSize is the number of feed entries requested.
	DefaultPageSize = 20

	// DefaultInterval is the feed time window.
	DefaultInterval = "All time"

	// DefaultRateLimit is the default requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 15 * time.Second

	// NoOverviewContent replaces an absent overview body.
	NoOverviewContent = "No blog content available."

	sourceName = "alphaxiv"
)

// Config contains configuration options for the alphaXiv API client.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// AssetBaseURL prefixes relative thumbnails. Defaults to DefaultAssetBaseURL.
	AssetBaseURL string

	// SiteURL is used for canonical links in degraded overviews.
	SiteURL string

	// PageSize is the feed page size. Defaults to DefaultPageSize.
	PageSize int

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize is the maximum burst of requests. Defaults to DefaultBurstSize.
	BurstSize int

	// UserAgent overrides the HTTP client's default.
	UserAgent string
}

// Client implements papersources.Source against the alphaXiv JSON API.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
	boundary   papersources.Boundary
}

var _ papersources.Source = (*Client)(nil)

// NewClient creates a new alphaXiv API client.
// If httpClient is nil, one is created from cfg.
func NewClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, recorder papersources.Recorder) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.AssetBaseURL == "" {
		cfg.AssetBaseURL = DefaultAssetBaseURL
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = DefaultSiteURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
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
		boundary:   papersources.NewBoundary(sourceName, logger, recorder),
	}
}

// Name returns the source identifier.
func (c *Client) Name() string {
	return sourceName
}

// Feed fetches the first feed page ordered by sort.
func (c *Client) Feed(ctx context.Context, sort domain.FeedSort) ([]domain.Paper, error) {
	ctx = papersources.WithOperation(ctx, papersources.OperationFeed)

	q := url.Values{}
	q.Set("pageNum", "1")
	q.Set("pageSize", strconv.Itoa(c.config.PageSize))
	q.Set("interval", DefaultInterval)
	q.Set("sort", string(domain.NormalizeSort(string(sort))))

	var resp FeedResponse
	if err := c.getJSON(ctx, "papers/v3/feed", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return c.convertToPapers(resp.Papers), nil
}

// SearchPapers runs a full-text search. A blank query returns an empty list
// without a request.
func (c *Client) SearchPapers(ctx context.Context, query string) ([]domain.Paper, error) {
	if papersources.IsBlankQuery(query) {
		return []domain.Paper{}, nil
	}
	ctx = papersources.WithOperation(ctx, papersources.OperationSearch)

	q := url.Values{}
	q.Set("q", strings.TrimSpace(query))

	var records []PaperRecord
	if err := c.getJSON(ctx, "v1/search/paper", q, &records); err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	return c.convertToPapers(records), nil
}

// Paper fetches the preview record for id.
func (c *Client) Paper(ctx context.Context, id string) (domain.Paper, error) {
	record, err := c.preview(papersources.WithOperation(ctx, papersources.OperationDetails), id)
	if err != nil {
		return domain.Paper{}, err
	}
	p, ok := c.convertToPaper(record)
	if !ok {
		return domain.Paper{}, fmt.Errorf("preview for %s has no id: %w", id, domain.ErrParse)
	}
	return p, nil
}

// Overview fetches the generated overview for id in lang, headed by the
// paper title.
func (c *Client) Overview(ctx context.Context, id, lang string) (string, error) {
	ctx = papersources.WithOperation(ctx, papersources.OperationOverview)

	record, err := c.preview(ctx, id)
	if err != nil {
		return "", err
	}

	versionID := firstNonBlank(deref(record.VersionID), record.ID)
	if versionID == "" {
		return "", fmt.Errorf("preview for %s has no version id: %w", id, domain.ErrParse)
	}

	var overview OverviewResponse
	path := "papers/v3/" + url.PathEscape(versionID) + "/overview/" + url.PathEscape(domain.NormalizeLanguage(lang))
	if err := c.getJSON(ctx, path, nil, &overview); err != nil {
		return "", fmt.Errorf("fetch overview: %w", err)
	}

	heading := firstNonBlank(record.Title, deref(overview.Title), domain.DefaultTitle)
	content := deref(overview.Overview)
	if content == "" {
		content = NoOverviewContent
	}
	return "# " + heading + "\n\n" + content, nil
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

// FetchOverview implements papersources.Source. Failures produce an error
// line followed by a link to the paper's page.
func (c *Client) FetchOverview(ctx context.Context, id, lang string) string {
	md, err := c.Overview(ctx, id, lang)
	if err != nil {
		c.boundary.Failed(ctx, papersources.OperationOverview, err, "paper_id", id)
		return "Error loading blog: " + err.Error() + "\n\n" +
			papersources.OverviewLinkBlock(papersources.CanonicalPaperURL(c.config.SiteURL, id), "")
	}
	return md
}

func (c *Client) preview(ctx context.Context, id string) (PaperRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PaperRecord{}, domain.NewValidationError("id", "cannot be empty")
	}

	var record PaperRecord
	if err := c.getJSON(ctx, "papers/v3/"+url.PathEscape(id)+"/preview", nil, &record); err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return PaperRecord{}, domain.NewNotFoundError("paper", id)
		}
		return PaperRecord{}, fmt.Errorf("fetch preview: %w", err)
	}
	return record, nil
}

// getJSON issues a GET for path relative to the base URL and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, err := c.httpClient.GetBody(ctx, u, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w: %w", domain.ErrParse, err)
	}
	return nil
}

// convertToPapers maps records, dropping those without an id and duplicates.
func (c *Client) convertToPapers(records []PaperRecord) []domain.Paper {
	papers := make([]domain.Paper, 0, len(records))
	for _, r := range records {
		if p, ok := c.convertToPaper(r); ok {
			papers = append(papers, p)
		}
	}
	return domain.DedupeByID(papers)
}

// convertToPaper maps a single API record onto a domain paper.
func (c *Client) convertToPaper(r PaperRecord) (domain.Paper, bool) {
	summary := ""
	if r.PaperSummary != nil {
		summary = deref(r.PaperSummary.Summary)
	}
	if summary == "" {
		summary = deref(r.Abstract)
	}

	upvotes := 0
	if r.Metrics != nil && r.Metrics.PublicTotalVotes != nil {
		upvotes = *r.Metrics.PublicTotalVotes
	}

	return domain.NewPaper(domain.Paper{
		ID:            firstNonBlank(deref(r.UniversalPaperID), r.ID),
		Title:         r.Title,
		Authors:       r.Authors,
		Summary:       summary,
		PublishedDate: firstNonBlank(string(r.PublicationDate), string(r.FirstPublicationDate)),
		ThumbnailURL:  papersources.PrefixAssetURL(c.config.AssetBaseURL, deref(r.ImageURL)),
		Categories:    []string{},
		UpvoteCount:   upvotes,
		CommentCount:  0,
	})
}
