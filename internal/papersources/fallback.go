package papersources

import (
	"fmt"
	"strings"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// FallbackOverview synthesizes Markdown for a paper whose overview could not be
// obtained: its title, authors and summary, a note carrying reason and a link to
// canonicalURL.
func FallbackOverview(p domain.Paper, canonicalURL, reason string) string {
	var b strings.Builder

	title := strings.TrimSpace(p.Title)
	if title == "" || p.IsErrorPlaceholder() {
		title = strings.TrimSpace(p.ID)
	}
	if title == "" {
		title = domain.DefaultTitle
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(p.Authors, ", "))
	}

	if s := strings.TrimSpace(p.Summary); s != "" && !p.IsErrorPlaceholder() {
		fmt.Fprintf(&b, "## Abstract\n\n%s\n\n", s)
	}

	b.WriteString(OverviewLinkBlock(canonicalURL, reason))
	return b.String()
}

// OverviewLinkBlock is the trailing note appended to degraded overviews.
func OverviewLinkBlock(canonicalURL, reason string) string {
	var b strings.Builder
	b.WriteString("> The full overview is not available right now.")
	if r := strings.TrimSpace(reason); r != "" {
		fmt.Fprintf(&b, " (%s)", r)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "[View on alphaXiv](%s)\n", canonicalURL)
	return b.String()
}
