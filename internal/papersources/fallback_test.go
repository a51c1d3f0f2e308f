package papersources

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/paper-feed-service/internal/domain"
)

func TestFallbackOverview(t *testing.T) {
	const link = "https://www.alphaxiv.org/abs/2601.20802"

	t.Run("includes paper metadata and link", func(t *testing.T) {
		p := domain.Paper{
			ID:      "2601.20802",
			Title:   "Reinforcement Learning via Self-Distillation",
			Authors: []string{"Jonas Hübotter", "Frederike Lübeck"},
			Summary: "SDPO leverages tokenized feedback.",
		}

		md := FallbackOverview(p, link, "status 503")

		assert.Contains(t, md, "# Reinforcement Learning via Self-Distillation\n\n")
		assert.Contains(t, md, "*Jonas Hübotter, Frederike Lübeck*")
		assert.Contains(t, md, "SDPO leverages tokenized feedback.")
		assert.Contains(t, md, "(status 503)")
		assert.Contains(t, md, "[View on alphaXiv]("+link+")")
	})

	t.Run("error placeholder falls back to id heading", func(t *testing.T) {
		p := domain.NewErrorPaper("2601.20802", errors.New("connection refused"))

		md := FallbackOverview(p, link, "")

		assert.Contains(t, md, "# 2601.20802\n\n")
		assert.NotContains(t, md, "connection refused")
		assert.NotContains(t, md, "()")
		assert.Contains(t, md, "[View on alphaXiv]("+link+")")
	})
}

func TestBoundary(t *testing.T) {
	rec := &fakeRecorder{}
	b := NewBoundary("test", zerolog.Nop(), rec)
	ctx := t.Context()

	t.Run("list passes through and never returns nil", func(t *testing.T) {
		assert.NotNil(t, b.List(ctx, OperationFeed, nil, nil))
		got := b.List(ctx, OperationFeed, []domain.Paper{{ID: "a"}}, nil)
		assert.Len(t, got, 1)
	})

	t.Run("list failure degrades to empty", func(t *testing.T) {
		got := b.List(ctx, OperationSearch, []domain.Paper{{ID: "a"}}, errors.New("boom"))
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("paper failure degrades to placeholder", func(t *testing.T) {
		got := b.Paper(ctx, "x", domain.Paper{}, domain.NewExternalAPIError("test", 500, "down", nil))
		assert.True(t, got.IsErrorPlaceholder())
		assert.Equal(t, "x", got.ID)
		assert.Contains(t, got.Summary, "down")
	})

	assert.Equal(t, []string{"test/search", "test/details"}, rec.degraded)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "", ErrorType(nil))
	assert.Equal(t, "rate_limited", ErrorType(domain.NewRateLimitError("s", 0)))
	assert.Equal(t, "not_found", ErrorType(domain.NewExternalAPIError("s", 404, "", nil)))
	assert.Equal(t, "unavailable", ErrorType(domain.NewExternalAPIError("s", 503, "", nil)))
	assert.Equal(t, "parse", ErrorType(domain.ErrParse))
	assert.Equal(t, "other", ErrorType(errors.New("x")))
}
