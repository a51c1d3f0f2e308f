package scraper

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

var countPattern = regexp.MustCompile(`^(\d+(?:,\d{3})*(?:\.\d+)?)\s*([kKmM])?$`)

// parseCount reads a displayed counter such as "148", "1,234" or "1.2k".
// Anything else yields 0.
func parseCount(text string) int {
	m := countPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}
	return int(n + 0.5)
}

// selectionValue returns the text or attribute value of s, whitespace-collapsed.
func selectionValue(s *goquery.Selection, sel Selector) string {
	if sel.Attr != "" {
		v, _ := s.Attr(sel.Attr)
		return strings.Join(strings.Fields(v), " ")
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

// firstValue returns the first non-blank value over candidates in order. Values
// for which skip returns true are passed over.
func firstValue(root *goquery.Selection, candidates []Selector, skip func(string) bool) string {
	for _, sel := range candidates {
		var found string
		root.Find(sel.CSS).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v := selectionValue(s, sel)
			if v == "" || (skip != nil && skip(v)) {
				return true
			}
			found = v
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// firstValues returns the non-blank values of the first candidate that yields
// any. Later candidates are not consulted, so overlapping selectors such as
// ".authors a" and ".authors span" never contribute twice.
func firstValues(root *goquery.Selection, candidates []Selector) []string {
	for _, sel := range candidates {
		var out []string
		root.Find(sel.CSS).Each(func(_ int, s *goquery.Selection) {
			if v := selectionValue(s, sel); v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return []string{}
}

func splitAuthors(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// paperIDFromHref extracts the id following "/abs/" up to any query or fragment.
func paperIDFromHref(href string) string {
	i := strings.Index(href, "/abs/")
	if i < 0 {
		return ""
	}
	id := href[i+len("/abs/"):]
	if j := strings.IndexAny(id, "?#"); j >= 0 {
		id = id[:j]
	}
	id = strings.Trim(id, "/ ")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return id
}

type cardBlock struct {
	id  string
	sel *goquery.Selection
}

// parseCards extracts papers from a listing or search page. Every element
// matching the block selector that contains a heading and a paper link is a
// candidate. A candidate enclosing another candidate is a wrapper, not a card,
// and is skipped whatever its own first link points at.
func parseCards(doc *goquery.Document, s Selectors, siteBase string) []domain.Paper {
	var blocks []cardBlock
	doc.Find(s.Card.Block).Each(func(_ int, b *goquery.Selection) {
		if b.Find(s.Card.Heading).Length() == 0 {
			return
		}
		href, _ := b.Find(s.Card.Link).First().Attr("href")
		if id := paperIDFromHref(href); id != "" {
			blocks = append(blocks, cardBlock{id: id, sel: b})
		}
	})

	papers := make([]domain.Paper, 0, len(blocks))
	for i, b := range blocks {
		if enclosesBlock(blocks, i) {
			continue
		}
		papers = append(papers, parseCard(b.sel, b.id, s.Card, siteBase))
	}
	return domain.NormalizePapers(papers)
}

func enclosesBlock(blocks []cardBlock, i int) bool {
	for j, other := range blocks {
		if j != i && blocks[i].sel.Contains(other.sel.Get(0)) {
			return true
		}
	}
	return false
}

func parseCard(block *goquery.Selection, id string, s CardSelectors, siteBase string) domain.Paper {
	return domain.Paper{
		ID:            id,
		Title:         firstValue(block, s.Title, nil),
		Authors:       splitAuthors(firstValue(block, s.Authors, nil)),
		Summary:       firstValue(block, s.Summary, nil),
		PublishedDate: firstValue(block, s.Date, nil),
		ThumbnailURL:  papersources.ResolveURL(siteBase, firstValue(block, s.Thumbnail, nil)),
		Categories:    firstValues(block, s.Categories),
		UpvoteCount:   parseCount(firstValue(block, s.Upvotes, nil)),
		CommentCount:  parseCount(firstValue(block, s.Comments, nil)),
	}
}

// parseDetail extracts a paper from its abstract page, falling back to page
// metadata when the rendered content is blank or still a loading placeholder.
func parseDetail(doc *goquery.Document, id string, s DetailSelectors, siteBase, assetBase string) (domain.Paper, error) {
	root := doc.Selection
	isPlaceholder := placeholderMatcher(s.Placeholders)

	title := firstValue(root, s.Title, isPlaceholder)
	summary := firstValue(root, s.Summary, isPlaceholder)
	thumbnail := firstValue(root, s.Thumbnail, nil)

	authors := firstValues(root, s.Authors)
	if len(authors) == 0 {
		authors = authorsFromImageURL(thumbnail, s.AuthorParam)
	}

	if title == "" && summary == "" {
		return domain.Paper{}, fmt.Errorf("no paper content on page for %s: %w", id, domain.ErrParse)
	}

	thumb := papersources.ResolveURL(siteBase, thumbnail)
	if thumb == nil {
		thumb = defaultThumbnail(assetBase, id)
	}

	p, ok := domain.NewPaper(domain.Paper{
		ID:           id,
		Title:        title,
		Authors:      authors,
		Summary:      summary,
		ThumbnailURL: thumb,
		Categories:   []string{},
	})
	if !ok {
		return domain.Paper{}, domain.NewValidationError("id", "cannot be empty")
	}
	return p, nil
}

// placeholderMatcher reports values that are known "still loading" texts.
func placeholderMatcher(placeholders []string) func(string) bool {
	return func(v string) bool {
		for _, p := range placeholders {
			if strings.EqualFold(strings.TrimSpace(v), p) {
				return true
			}
		}
		return false
	}
}

// authorsFromImageURL decodes the author list some pages embed in the query of
// their social preview image URL.
func authorsFromImageURL(imageURL, param string) []string {
	if imageURL == "" || param == "" {
		return []string{}
	}
	u, err := url.Parse(imageURL)
	if err != nil {
		return []string{}
	}
	return splitAuthors(u.Query().Get(param))
}

func defaultThumbnail(assetBase, id string) *string {
	return papersources.PrefixAssetURL(assetBase, "image/"+id+"v1.png")
}

var descriptionPolicy = bluemonday.StrictPolicy()

// parseOverview extracts long-form text from an overview page. It returns ""
// when nothing reaches the minimum length; the caller then falls back further.
func parseOverview(doc *goquery.Document, raw []byte, pageURL *url.URL, s OverviewSelectors) string {
	best := ""
	for _, sel := range s.Containers {
		doc.Find(sel.CSS).Each(func(_ int, c *goquery.Selection) {
			if text := containerText(c); len(text) > len(best) {
				best = text
			}
		})
	}
	if len(best) >= s.MinLength && best != "" {
		return best
	}

	article, err := readability.FromReader(strings.NewReader(string(raw)), pageURL)
	if err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			if text := strings.TrimSpace(buf.String()); len(text) >= s.MinLength && text != "" {
				return text
			}
		}
	}
	return ""
}

const textBlocks = "h1, h2, h3, h4, h5, h6, p, li, pre"

// containerText renders block children as paragraphs separated by blank lines.
func containerText(c *goquery.Selection) string {
	c = c.Clone()
	c.Find("script, style, noscript, nav, button").Remove()

	var paragraphs []string
	c.Find(textBlocks).Each(func(_ int, s *goquery.Selection) {
		// Only outermost blocks: an <li><p> or a nested list is part of its
		// enclosing block's text.
		if s.ParentsFiltered(textBlocks).Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			text = "# " + text
		case "h2":
			text = "## " + text
		case "h3", "h4", "h5", "h6":
			text = "### " + text
		case "li":
			text = "* " + text
		case "pre":
			text = "```\n" + text + "\n```"
		}
		paragraphs = append(paragraphs, text)
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(c.Text()), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

// metaDescription returns the sanitised page description, if any.
func metaDescription(doc *goquery.Document, s OverviewSelectors) string {
	desc := firstValue(doc.Selection, s.Description, nil)
	return strings.TrimSpace(html.UnescapeString(descriptionPolicy.Sanitize(desc)))
}
