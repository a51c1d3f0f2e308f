// Package pdf downloads the full-text PDF of a paper from the alphaXiv site.
package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

const sourceName = "pdf"

var (
	// ErrNotPDF is returned when the response Content-Type is not application/pdf.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
)

// Result describes a completed download.
type Result struct {
	PaperID     string
	URL         string
	SizeBytes   int64
	SHA256      string
	ContentType string
}

// Config holds downloader configuration.
type Config struct {
	// SiteURL is the website serving /pdf/{id}.pdf.
	SiteURL string
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// Recorder receives request measurements. Nil discards them.
	Recorder papersources.Recorder
}

// Downloader streams paper PDFs to a writer.
type Downloader struct {
	http    *papersources.HTTPClient
	siteURL string
	maxSize int64
	logger  zerolog.Logger
}

// NewDownloader creates a new Downloader with the given configuration.
func NewDownloader(cfg Config, logger zerolog.Logger) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 << 20
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://www.alphaxiv.org"
	}

	return &Downloader{
		http: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			SourceName: sourceName,
			Timeout:    cfg.Timeout,
			RateLimit:  1,
			BurstSize:  1,
			UserAgent:  cfg.UserAgent,
			Recorder:   cfg.Recorder,
		}),
		siteURL: strings.TrimSuffix(cfg.SiteURL, "/"),
		maxSize: cfg.MaxSize,
		logger:  logger.With().Str("component", "pdf_downloader").Logger(),
	}
}

// URL returns the PDF location for a paper id.
func (d *Downloader) URL(id string) string {
	return d.siteURL + "/pdf/" + url.PathEscape(strings.TrimSpace(id)) + ".pdf"
}

// Download fetches the PDF of paper id and copies it to w.
// On ErrTooLarge, w has already received MaxSize bytes; callers writing to a
// file should discard it.
func (d *Downloader) Download(ctx context.Context, id string, w io.Writer) (*Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("paper_id", "paper id is required")
	}
	target := d.URL(id)

	req, err := http.NewRequestWithContext(papersources.WithOperation(ctx, papersources.OperationPDF), http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewNotFoundError("paper", id)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, http.StatusText(resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, contentType)
	}

	hash := sha256.New()
	// One extra byte detects oversize bodies.
	n, err := io.Copy(io.MultiWriter(w, hash), io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if n > d.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
	}

	d.logger.Debug().
		Str("paper_id", id).
		Int64("size_bytes", n).
		Msg("pdf downloaded")

	return &Result{
		PaperID:     id,
		URL:         target,
		SizeBytes:   n,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		ContentType: contentType,
	}, nil
}
