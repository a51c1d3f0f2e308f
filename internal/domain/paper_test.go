package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewPaper(t *testing.T) {
	t.Run("drops record without id", func(t *testing.T) {
		_, ok := NewPaper(Paper{ID: "   ", Title: "Orphan"})
		assert.False(t, ok)
	})

	t.Run("applies typed defaults", func(t *testing.T) {
		p, ok := NewPaper(Paper{ID: " 2601.20802 "})
		require.True(t, ok)

		assert.Equal(t, "2601.20802", p.ID)
		assert.Equal(t, DefaultTitle, p.Title)
		assert.NotNil(t, p.Authors)
		assert.Empty(t, p.Authors)
		assert.NotNil(t, p.Categories)
		assert.Empty(t, p.Categories)
		assert.Nil(t, p.ThumbnailURL)
		assert.Zero(t, p.UpvoteCount)
		assert.Zero(t, p.CommentCount)
	})

	t.Run("clamps negative counts", func(t *testing.T) {
		p, ok := NewPaper(Paper{ID: "x", UpvoteCount: -3, CommentCount: -1})
		require.True(t, ok)
		assert.Equal(t, 0, p.UpvoteCount)
		assert.Equal(t, 0, p.CommentCount)
	})

	t.Run("cleans list entries and whitespace", func(t *testing.T) {
		p, ok := NewPaper(Paper{
			ID:         "x",
			Title:      "  Pixel   Mean\nFlows ",
			Authors:    []string{" Yiyang Lu ", "", "  ", "Qiao  Sun"},
			Categories: []string{"generative-models", " "},
		})
		require.True(t, ok)
		assert.Equal(t, "Pixel Mean Flows", p.Title)
		assert.Equal(t, []string{"Yiyang Lu", "Qiao Sun"}, p.Authors)
		assert.Equal(t, []string{"generative-models"}, p.Categories)
	})

	t.Run("blank thumbnail becomes nil", func(t *testing.T) {
		p, ok := NewPaper(Paper{ID: "x", ThumbnailURL: strPtr("  ")})
		require.True(t, ok)
		assert.Nil(t, p.ThumbnailURL)
	})

	t.Run("keeps absolute thumbnail", func(t *testing.T) {
		p, ok := NewPaper(Paper{ID: "x", ThumbnailURL: strPtr("https://host/image/x.png")})
		require.True(t, ok)
		require.NotNil(t, p.ThumbnailURL)
		assert.Equal(t, "https://host/image/x.png", *p.ThumbnailURL)
	})
}

func TestNewErrorPaper(t *testing.T) {
	p := NewErrorPaper("b", errors.New("connection refused"))

	assert.Equal(t, "b", p.ID)
	assert.Equal(t, ErrorLoadingTitle, p.Title)
	assert.Equal(t, "connection refused", p.Summary)
	assert.NotNil(t, p.Authors)
	assert.NotNil(t, p.Categories)
	assert.True(t, p.IsErrorPlaceholder())

	loaded, _ := NewPaper(Paper{ID: "a", Title: "Real"})
	assert.False(t, loaded.IsErrorPlaceholder())
}

func TestDedupeByID(t *testing.T) {
	papers := []Paper{
		{ID: "a", Title: "first"},
		{ID: "b"},
		{ID: "a", Title: "second"},
		{ID: "c"},
		{ID: "b"},
	}

	got := DedupeByID(papers)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)

	assert.NotNil(t, DedupeByID(nil))
}

func TestNormalizePapers(t *testing.T) {
	got := NormalizePapers([]Paper{
		{ID: "a"},
		{ID: ""},
		{ID: " a "},
		{ID: "b", UpvoteCount: -1},
	})

	require.Len(t, got, 2)
	seen := map[string]bool{}
	for _, p := range got {
		assert.NotEmpty(t, p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.GreaterOrEqual(t, p.UpvoteCount, 0)
		assert.GreaterOrEqual(t, p.CommentCount, 0)
		assert.NotNil(t, p.Authors)
		assert.NotNil(t, p.Categories)
	}
}

func TestNormalizeSort(t *testing.T) {
	tests := []struct {
		input    string
		expected FeedSort
	}{
		{"Hot", FeedSortHot},
		{"comments", FeedSortComments},
		{"Views", FeedSortViews},
		{"LIKES", FeedSortLikes},
		{"GitHub", FeedSortGitHub},
		{"Twitter (X)", FeedSortTwitter},
		{"Recommended", FeedSortRecommended},
		{"", FeedSortHot},
		{"Newest", FeedSortHot},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSort(tt.input))
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en", NormalizeLanguage(""))
	assert.Equal(t, "en", NormalizeLanguage("   "))
	assert.Equal(t, "de", NormalizeLanguage(" DE "))
}
