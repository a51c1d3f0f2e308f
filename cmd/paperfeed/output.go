package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helixir/paper-feed-service/internal/domain"
)

const summaryWidth = 240

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.stdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printPapers(papers []domain.Paper) error {
	if c.jsonOutput {
		return c.printJSON(papers)
	}

	w := c.stdout()
	if len(papers) == 0 {
		_, err := fmt.Fprintln(w, "no papers")
		return err
	}

	repo := c.services.Repository
	for i, p := range papers {
		mark := " "
		if repo.IsBookmarked(p.ID) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %3d. [%s] %s\n", mark, i+1, p.ID, p.Title)
		if line := metaLine(p); line != "" {
			fmt.Fprintf(w, "        %s\n", line)
		}
	}
	return nil
}

func (c *cli) printPaper(p domain.Paper) error {
	if c.jsonOutput {
		return c.printJSON(p)
	}

	w := c.stdout()
	fmt.Fprintf(w, "%s\n%s\n", p.Title, strings.Repeat("=", len([]rune(p.Title))))
	fmt.Fprintf(w, "id:         %s\n", p.ID)
	if len(p.Authors) > 0 {
		fmt.Fprintf(w, "authors:    %s\n", strings.Join(p.Authors, ", "))
	}
	if p.PublishedDate != "" {
		fmt.Fprintf(w, "published:  %s\n", p.PublishedDate)
	}
	if len(p.Categories) > 0 {
		fmt.Fprintf(w, "categories: %s\n", strings.Join(p.Categories, ", "))
	}
	fmt.Fprintf(w, "upvotes:    %d\ncomments:   %d\n", p.UpvoteCount, p.CommentCount)
	if c.services.Repository.IsBookmarked(p.ID) {
		fmt.Fprintln(w, "bookmarked: yes")
	}
	if p.Summary != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", p.Summary)
		return err
	}
	return nil
}

// metaLine renders the secondary line of a list entry.
func metaLine(p domain.Paper) string {
	var parts []string
	if len(p.Authors) > 0 {
		authors := p.Authors
		suffix := ""
		if len(authors) > 3 {
			authors, suffix = authors[:3], " et al."
		}
		parts = append(parts, strings.Join(authors, ", ")+suffix)
	}
	if p.PublishedDate != "" {
		parts = append(parts, p.PublishedDate)
	}
	if p.UpvoteCount > 0 || p.CommentCount > 0 {
		parts = append(parts, fmt.Sprintf("%d upvotes, %d comments", p.UpvoteCount, p.CommentCount))
	}
	if p.IsErrorPlaceholder() {
		parts = append(parts, truncate(p.Summary, summaryWidth))
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
