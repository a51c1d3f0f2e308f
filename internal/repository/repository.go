// Package repository provides the paper repository façade and the bookmark
// stores behind it.
//
// # Overview
//
// PaperRepository is the single entry point used by the HTTP server and the CLI.
// It forwards paper reads to the active papersources.Source, owns the bookmark
// set and the overview-language preference, and fans bookmark resolution out
// over the source with bounded concurrency.
//
// # Stores
//
// Bookmarks and preferences are persisted through a BookmarkStore:
//
//   - MemoryStore: process lifetime only (default)
//   - PgStore: PostgreSQL via pgx
//
// # Thread Safety
//
// All types in this package are safe for concurrent use by multiple goroutines.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, cfg, logger)
//	repo := repository.NewPaperRepository(source, repository.NewPgStore(db), logger,
//	    repository.WithMetrics(metrics),
//	    repository.WithPublisher(publisher),
//	)
//	if err := repo.Load(ctx); err != nil { ... }
package repository

import (
	"context"

	"github.com/helixir/paper-feed-service/internal/database"
)

// DBTX is satisfied by *database.DB and pgx.Tx, so a PgStore can be built
// over a transaction begun elsewhere.
type DBTX = database.DBTX

// BookmarkStore persists the bookmark set and user preferences.
type BookmarkStore interface {
	// ListBookmarks returns every bookmarked paper id.
	ListBookmarks(ctx context.Context) ([]string, error)

	// AddBookmark marks id as bookmarked. Adding an existing id is not an error.
	AddBookmark(ctx context.Context, id string) error

	// RemoveBookmark unmarks id. Removing a missing id is not an error.
	RemoveBookmark(ctx context.Context, id string) error

	// GetPreference returns the stored value for key, or a
	// domain.NotFoundError when none is stored.
	GetPreference(ctx context.Context, key string) (string, error)

	// SetPreference stores value under key, replacing any previous value.
	SetPreference(ctx context.Context, key, value string) error
}
