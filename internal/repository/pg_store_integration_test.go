//go:build integration

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/paper-feed-service/internal/config"
	"github.com/helixir/paper-feed-service/internal/database"
	"github.com/helixir/paper-feed-service/internal/domain"
)

// startPostgres runs a throwaway PostgreSQL container with the service schema
// migrated in.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("paper_feed"),
		tcpostgres.WithUsername("paperfeed"),
		tcpostgres.WithPassword("paperfeed"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	parsed, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:              parsed.Host,
		Port:              int(parsed.Port),
		User:              parsed.User,
		Password:          parsed.Password,
		Name:              parsed.Database,
		SSLMode:           config.SSLModeDisable,
		MaxConns:          4,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}

	logger := zerolog.Nop()
	db, err := database.New(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, database.MigrateUp(ctx, db, migrations, logger))

	return db
}

func TestPgStore_Integration(t *testing.T) {
	db := startPostgres(t)
	store := NewPgStore(db)
	ctx := context.Background()

	t.Run("bookmarks round trip", func(t *testing.T) {
		require.NoError(t, store.AddBookmark(ctx, "2601.00001"))
		require.NoError(t, store.AddBookmark(ctx, "2601.00002"))
		require.NoError(t, store.AddBookmark(ctx, "2601.00001"))

		ids, err := store.ListBookmarks(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"2601.00001", "2601.00002"}, ids)

		require.NoError(t, store.RemoveBookmark(ctx, "2601.00001"))
		require.NoError(t, store.RemoveBookmark(ctx, "missing"))

		ids, err = store.ListBookmarks(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2601.00002"}, ids)
	})

	t.Run("preferences upsert", func(t *testing.T) {
		_, err := store.GetPreference(ctx, domain.PreferenceOverviewLanguage)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, store.SetPreference(ctx, domain.PreferenceOverviewLanguage, "de"))
		require.NoError(t, store.SetPreference(ctx, domain.PreferenceOverviewLanguage, "fr"))

		got, err := store.GetPreference(ctx, domain.PreferenceOverviewLanguage)
		require.NoError(t, err)
		assert.Equal(t, "fr", got)
	})

	t.Run("repository reloads persisted state", func(t *testing.T) {
		repo := NewPaperRepository(&mockSource{}, store, zerolog.Nop())
		require.NoError(t, repo.Load(ctx))

		assert.Equal(t, []string{"2601.00002"}, repo.BookmarkIDs())
		assert.Equal(t, "fr", repo.OverviewLanguage())
	})
}
