package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-feed-service/internal/domain"
)

func (c *cli) newFeedCmd() *cobra.Command {
	var sort string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List the paper feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			papers := c.services.Repository.GetFeed(ctx, domain.NormalizeSort(sort))
			return c.printPapers(papers)
		},
	}

	names := make([]string, len(domain.FeedSorts))
	for i, fs := range domain.FeedSorts {
		names[i] = string(fs)
	}
	cmd.Flags().StringVar(&sort, "sort", string(domain.FeedSortHot), "sort order ("+strings.Join(names, ", ")+")")
	return cmd
}

func (c *cli) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>...",
		Short: "Search papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			papers := c.services.Repository.SearchPapers(ctx, strings.Join(args, " "))
			return c.printPapers(papers)
		},
	}
}

func (c *cli) newDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <paper-id>",
		Short: "Show a single paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			p := c.services.Repository.GetPaperDetails(ctx, args[0])
			return c.printPaper(p)
		},
	}
}

func (c *cli) newOverviewCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "overview <paper-id>",
		Short: "Print the Markdown overview of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			repo := c.services.Repository
			if strings.TrimSpace(lang) == "" {
				lang = repo.OverviewLanguage()
			}
			lang = domain.NormalizeLanguage(lang)
			markdown := repo.GetBlog(ctx, args[0], lang)

			if c.jsonOutput {
				return c.printJSON(map[string]string{
					"paper_id": args[0],
					"language": lang,
					"markdown": markdown,
				})
			}
			_, err := fmt.Fprintln(c.stdout(), markdown)
			return err
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "overview language (default: stored preference)")
	return cmd
}

func (c *cli) newBookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookmarks",
		Aliases: []string{"bm"},
		Short:   "Manage bookmarked papers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bookmarked papers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			return c.printPapers(c.services.Repository.GetBookmarks(ctx))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <paper-id>",
		Short: "Add or remove a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			id := strings.TrimSpace(args[0])
			bookmarked, err := c.services.Repository.ToggleBookmark(ctx, id)
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return c.printJSON(map[string]interface{}{
					"paper_id":   id,
					"bookmarked": bookmarked,
				})
			}
			if bookmarked {
				_, err = fmt.Fprintf(c.stdout(), "bookmarked %s\n", id)
			} else {
				_, err = fmt.Fprintf(c.stdout(), "removed bookmark %s\n", id)
			}
			return err
		},
	})

	return cmd
}

func (c *cli) newLanguageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "language [code]",
		Short: "Show or set the preferred overview language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			repo := c.services.Repository
			if len(args) == 1 {
				if err := repo.SetOverviewLanguage(ctx, args[0]); err != nil {
					return err
				}
			}

			if c.jsonOutput {
				return c.printJSON(map[string]string{"language": repo.OverviewLanguage()})
			}
			_, err := fmt.Fprintln(c.stdout(), repo.OverviewLanguage())
			return err
		},
	}
}

func (c *cli) newPDFCmd() *cobra.Command {
	var (
		output  string
		urlOnly bool
	)

	cmd := &cobra.Command{
		Use:   "pdf <paper-id>",
		Short: "Download the full-text PDF of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			downloader := c.services.PDF
			if urlOnly {
				_, err := fmt.Fprintln(c.stdout(), downloader.URL(id))
				return err
			}

			if output == "" {
				output = strings.ReplaceAll(id, "/", "_") + ".pdf"
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			// Written beside the destination, renamed only on success.
			tmp, err := os.CreateTemp(filepath.Dir(output), ".paperfeed-*.pdf")
			if err != nil {
				return fmt.Errorf("create temp file: %w", err)
			}
			defer os.Remove(tmp.Name())

			result, err := downloader.Download(ctx, id, tmp)
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), output); err != nil {
				return fmt.Errorf("save %s: %w", output, err)
			}

			if c.jsonOutput {
				return c.printJSON(map[string]interface{}{
					"paper_id":   result.PaperID,
					"url":        result.URL,
					"path":       output,
					"size_bytes": result.SizeBytes,
					"sha256":     result.SHA256,
				})
			}
			_, err = fmt.Fprintf(c.stdout(), "saved %s (%d bytes)\n", output, result.SizeBytes)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default: <paper-id>.pdf)")
	cmd.Flags().BoolVar(&urlOnly, "url", false, "print the PDF URL without downloading")
	return cmd
}
