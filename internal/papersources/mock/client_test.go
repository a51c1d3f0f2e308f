package mock

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/papersources"
)

var _ papersources.Source = (*Client)(nil)

func newTestClient(delay time.Duration) *Client {
	return NewClient(Config{Delay: delay}, zerolog.Nop(), nil)
}

func TestClient_FetchFeed(t *testing.T) {
	c := newTestClient(0)

	for _, sort := range domain.FeedSorts {
		t.Run(string(sort), func(t *testing.T) {
			papers := c.FetchFeed(context.Background(), sort)
			require.Len(t, papers, 2)
			assert.Equal(t, "2601.20802", papers[0].ID)
			assert.Equal(t, "2601.22158", papers[1].ID)
		})
	}

	t.Run("sample papers satisfy invariants", func(t *testing.T) {
		papers := c.FetchFeed(context.Background(), domain.FeedSortHot)
		assert.Equal(t, domain.NormalizePapers(papers), papers)
		assert.Equal(t, 148, papers[0].UpvoteCount)
		assert.Equal(t, 8, papers[0].CommentCount)
		require.NotNil(t, papers[1].ThumbnailURL)
		assert.Equal(t, "https://paper-assets.alphaxiv.org/image/2601.22158v1.png", *papers[1].ThumbnailURL)
	})
}

func TestClient_FetchDetails(t *testing.T) {
	c := newTestClient(0)

	t.Run("known id", func(t *testing.T) {
		p := c.FetchDetails(context.Background(), "2601.22158")
		assert.Equal(t, "One-step Latent-free Image Generation with Pixel Mean Flows", p.Title)
		assert.False(t, p.IsErrorPlaceholder())
	})

	t.Run("unknown id yields placeholder", func(t *testing.T) {
		p := c.FetchDetails(context.Background(), "nope")
		assert.Equal(t, "nope", p.ID)
		assert.True(t, p.IsErrorPlaceholder())
		assert.Contains(t, p.Summary, "not found")

		_, err := c.Paper(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(0)

	tests := []struct {
		query string
		ids   []string
	}{
		{"self-distillation", []string{"2601.20802"}},
		{"PIXEL", []string{"2601.22158"}},
		{"o", []string{"2601.20802", "2601.22158"}},
		{"quantum", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			papers := c.Search(context.Background(), tt.query)
			require.NotNil(t, papers)
			ids := make([]string, 0, len(papers))
			for _, p := range papers {
				ids = append(ids, p.ID)
			}
			if tt.ids == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestClient_FetchOverview(t *testing.T) {
	c := newTestClient(0)

	md := c.FetchOverview(context.Background(), "anything", "fr")
	assert.Equal(t, sampleOverview, md)
	assert.Contains(t, md, "# Reinforcement Learning via Self-Distillation")
	assert.Contains(t, md, "def sdpo_update(policy, feedback):")
}

func TestClient_Delay(t *testing.T) {
	t.Run("waits before answering", func(t *testing.T) {
		c := newTestClient(30 * time.Millisecond)
		start := time.Now()
		c.FetchFeed(context.Background(), domain.FeedSortHot)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("cancellation degrades to empty and placeholder", func(t *testing.T) {
		c := newTestClient(time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Empty(t, c.FetchFeed(ctx, domain.FeedSortHot))
		assert.True(t, c.FetchDetails(ctx, "2601.20802").IsErrorPlaceholder())
		assert.Contains(t, c.FetchOverview(ctx, "2601.20802", "en"), "[View on alphaXiv](https://www.alphaxiv.org/abs/2601.20802)")
	})
}
