package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joshdurbin/newsfeed/internal/store"
)

// MediaStore keeps downloaded image bytes in the cached_media table
type MediaStore struct {
	db  *sql.DB
	now func() time.Time
}

// LoadMedia returns the stored data for mediaURL
func (m *MediaStore) LoadMedia(ctx context.Context, mediaURL string) (*store.MediaRecord, error) {
	rec := store.MediaRecord{URL: mediaURL}
	var storedAt int64
	err := m.db.QueryRowContext(ctx,
		"SELECT data, stored_at FROM cached_media WHERE url = ?", mediaURL).Scan(&rec.Data, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load media %s: %w", mediaURL, err)
	}
	rec.StoredAt = fromUnix(storedAt)
	return &rec, nil
}

// SaveMedia stores data for mediaURL
func (m *MediaStore) SaveMedia(ctx context.Context, mediaURL string, data []byte) error {
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO cached_media (url, data, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at`,
		mediaURL, data, m.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save media %s: %w", mediaURL, err)
	}
	return nil
}

// DeleteMedia removes mediaURL
func (m *MediaStore) DeleteMedia(ctx context.Context, mediaURL string) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM cached_media WHERE url = ?", mediaURL); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", mediaURL, err)
	}
	return nil
}

// PurgeExpired deletes media older than ttl
func (m *MediaStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := execCount(ctx, m.db, "DELETE FROM cached_media WHERE stored_at < ?", m.now().Add(-ttl).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge media: %w", err)
	}
	return n, nil
}

// Clear removes all media
func (m *MediaStore) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM cached_media"); err != nil {
		return fmt.Errorf("failed to clear media: %w", err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database
func (m *MediaStore) Close() error { return nil }
