package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// Compile-time interface verification.
var _ BookmarkStore = (*PgStore)(nil)

// PgStore is a PostgreSQL implementation of BookmarkStore.
type PgStore struct {
	db DBTX
}

// NewPgStore creates a new PostgreSQL bookmark store.
func NewPgStore(db DBTX) *PgStore {
	return &PgStore{db: db}
}

// ListBookmarks returns every bookmarked paper id, oldest first.
func (s *PgStore) ListBookmarks(ctx context.Context) ([]string, error) {
	query := `
		SELECT paper_id
		FROM bookmarks
		ORDER BY created_at, paper_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}

	return ids, nil
}

// AddBookmark inserts id, leaving an existing row untouched.
func (s *PgStore) AddBookmark(ctx context.Context, id string) error {
	query := `
		INSERT INTO bookmarks (paper_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (paper_id) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark deletes id if present.
func (s *PgStore) RemoveBookmark(ctx context.Context, id string) error {
	query := `DELETE FROM bookmarks WHERE paper_id = $1`

	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

// GetPreference returns the value stored under key.
func (s *PgStore) GetPreference(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM preferences WHERE key = $1`

	var value string
	if err := s.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewNotFoundError("preference", key)
		}
		return "", fmt.Errorf("failed to get preference: %w", err)
	}
	return value, nil
}

// SetPreference upserts key.
func (s *PgStore) SetPreference(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}
