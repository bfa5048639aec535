package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshdurbin/newsfeed/internal/store"
)

// MediaStore keeps downloaded image bytes under <prefix>:media:<url>
type MediaStore struct {
	s *Store
}

// LoadMedia returns the stored data for mediaURL
func (m *MediaStore) LoadMedia(ctx context.Context, mediaURL string) (*store.MediaRecord, error) {
	vals, err := m.s.rdb.HMGet(ctx, m.s.key(spaceMedia, mediaURL), fieldPayload, fieldStoredAt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load media %s: %w", mediaURL, err)
	}
	data, storedAt, ok := hashRecord(vals)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.MediaRecord{URL: mediaURL, Data: data, StoredAt: storedAt}, nil
}

// SaveMedia stores data for mediaURL
func (m *MediaStore) SaveMedia(ctx context.Context, mediaURL string, data []byte) error {
	if err := m.s.rdb.HSet(ctx, m.s.key(spaceMedia, mediaURL),
		fieldPayload, data, fieldStoredAt, m.s.now().UnixNano()).Err(); err != nil {
		return fmt.Errorf("failed to save media %s: %w", mediaURL, err)
	}
	return nil
}

// DeleteMedia removes mediaURL
func (m *MediaStore) DeleteMedia(ctx context.Context, mediaURL string) error {
	if err := m.s.rdb.Del(ctx, m.s.key(spaceMedia, mediaURL)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete media %s: %w", mediaURL, err)
	}
	return nil
}

// PurgeExpired deletes media older than ttl
func (m *MediaStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	return m.s.purgeSpace(ctx, spaceMedia, ttl)
}

// Clear removes all media
func (m *MediaStore) Clear(ctx context.Context) error {
	return m.s.deleteMatching(ctx, m.s.pattern(spaceMedia))
}

// Close is a no-op; the owning Store closes the connection
func (m *MediaStore) Close() error { return nil }
