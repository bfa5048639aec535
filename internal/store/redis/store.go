// Package redis implements store.LocalStore and store.MediaStore on Redis.
// Every record is a hash with a JSON payload and its storedAt stamp; the
// feed order is kept in a sorted set scored by post creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

var (
	_ store.LocalStore = (*Store)(nil)
	_ store.MediaStore = (*MediaStore)(nil)
)

const (
	// DefaultPrefix namespaces every key the store writes
	DefaultPrefix = "newsfeed"

	fieldPayload  = "payload"
	fieldStoredAt = "stored_at"

	spaceFeed         = "feed"
	spacePost         = "post"
	spaceInteraction  = "interaction"
	spaceInteractions = "interactions"
	spaceDraft        = "draft"
	spaceMedia        = "media"

	maxTxRetries = 10
	scanCount    = 100
)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for storedAt stamps and expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPrefix changes the key namespace
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store is the Redis backed LocalStore
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// New connects to the Redis server at addr
func New(addr, password string, db int, opts ...Option) *Store {
	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient wraps an existing client. The Store takes ownership of it.
func NewFromClient(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Media returns a MediaStore sharing this connection. Closing the Store
// closes it too.
func (s *Store) Media() *MediaStore {
	return &MediaStore{s: s}
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) key(space, id string) string {
	return s.prefix + ":" + space + ":" + id
}

func (s *Store) feedIndex() string {
	return s.prefix + ":feedindex"
}

func (s *Store) pattern(space string) string {
	return s.prefix + ":" + space + ":*"
}

// LoadAll returns every stored preview, newest post first
func (s *Store) LoadAll(ctx context.Context) ([]store.FeedRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.feedIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load feed index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	if _, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.key(spaceFeed, id), fieldPayload, fieldStoredAt)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	records := make([]store.FeedRecord, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		payload, storedAt, ok := hashRecord(cmd.Val())
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var preview domain.PostPreview
		if err := json.Unmarshal(payload, &preview); err != nil {
			return nil, fmt.Errorf("failed to decode feed post %s: %w", ids[i], err)
		}
		records = append(records, store.FeedRecord{Preview: preview, StoredAt: storedAt})
	}

	if len(stale) > 0 {
		s.rdb.ZRem(ctx, s.feedIndex(), stale...)
	}
	return records, nil
}

// LoadOne returns the stored detail for id
func (s *Store) LoadOne(ctx context.Context, id string) (*store.DetailRecord, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(spacePost, id), fieldPayload, fieldStoredAt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", id, err)
	}
	payload, storedAt, ok := hashRecord(vals)
	if !ok {
		return nil, store.ErrNotFound
	}

	var detail domain.PostDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", id, err)
	}
	return &store.DetailRecord{Detail: detail, StoredAt: storedAt}, nil
}

// SaveAll upserts previews atomically
func (s *Store) SaveAll(ctx context.Context, previews []domain.PostPreview) error {
	if len(previews) == 0 {
		return nil
	}

	storedAt := s.now().UnixNano()
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range previews {
			payload, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode post %s: %w", p.PostID, err)
			}
			pipe.HSet(ctx, s.key(spaceFeed, p.PostID), fieldPayload, payload, fieldStoredAt, storedAt)
			pipe.ZAdd(ctx, s.feedIndex(), redis.Z{Score: float64(p.CreatedAt.UnixMilli()), Member: p.PostID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save feed: %w", err)
	}
	return nil
}

// Upsert stores a detail
func (s *Store) Upsert(ctx context.Context, detail domain.PostDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode post %s: %w", detail.ID, err)
	}
	if err := s.rdb.HSet(ctx, s.key(spacePost, detail.ID),
		fieldPayload, payload, fieldStoredAt, s.now().UnixNano()).Err(); err != nil {
		return fmt.Errorf("failed to save post %s: %w", detail.ID, err)
	}
	return nil
}

// Delete removes the detail and preview for id
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(spacePost, id), s.key(spaceFeed, id))
		pipe.ZRem(ctx, s.feedIndex(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return nil
}

// RecordInteraction stores a pending interaction, appends its ID to the
// post's interaction list and applies the action to the stored preview and
// detail under WATCH, retrying when a concurrent writer touches either key
func (s *Store) RecordInteraction(ctx context.Context, req domain.InteractionRequest) (string, error) {
	if err := req.Action.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	id := uuid.NewString()
	entry, err := json.Marshal(domain.UserInteraction{
		ID:        id,
		PostID:    req.PostID,
		UserID:    store.LocalUserID,
		Action:    req.Action,
		Status:    domain.InteractionPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode interaction: %w", err)
	}

	postKey := s.key(spacePost, req.PostID)
	feedKey := s.key(spaceFeed, req.PostID)

	txf := func(tx *redis.Tx) error {
		detail, err := loadPayload[domain.PostDetail](ctx, tx, postKey)
		if err != nil {
			return err
		}
		preview, err := loadPayload[domain.PostPreview](ctx, tx, feedKey)
		if err != nil {
			return err
		}

		var detailPayload, previewPayload []byte
		if detail != nil {
			if detailPayload, err = json.Marshal(req.Action.Apply(*detail)); err != nil {
				return err
			}
		}
		if preview != nil {
			if previewPayload, err = json.Marshal(req.Action.ApplyPreview(*preview)); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(spaceInteraction, id), entry, 0)
			pipe.RPush(ctx, s.key(spaceInteractions, req.PostID), id)
			if detailPayload != nil {
				pipe.HSet(ctx, postKey, fieldPayload, detailPayload)
			}
			if previewPayload != nil {
				pipe.HSet(ctx, feedKey, fieldPayload, previewPayload)
			}
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, postKey, feedKey); err != nil {
		return "", fmt.Errorf("failed to record interaction for post %s: %w", req.PostID, err)
	}
	return id, nil
}

// UpdateInteractionStatus moves the logged interaction id to status,
// counting the failure when status is failed
func (s *Store) UpdateInteractionStatus(ctx context.Context, id string, status domain.InteractionStatus) error {
	key := s.key(spaceInteraction, id)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		var ui domain.UserInteraction
		if err := json.Unmarshal(raw, &ui); err != nil {
			return fmt.Errorf("failed to decode interaction: %w", err)
		}

		ui.Status = status
		ui.UpdatedAt = s.now()
		if status == domain.InteractionFailed {
			ui.FailureCount++
		}
		if raw, err = json.Marshal(ui); err != nil {
			return fmt.Errorf("failed to encode interaction: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update interaction %s: %w", id, err)
	}
	return nil
}

// RestorePost stores detail and resets the liked state and like count of
// the stored preview to match it. The preview keeps its storedAt.
func (s *Store) RestorePost(ctx context.Context, detail domain.PostDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode post %s: %w", detail.ID, err)
	}
	postKey := s.key(spacePost, detail.ID)
	feedKey := s.key(spaceFeed, detail.ID)

	txf := func(tx *redis.Tx) error {
		preview, err := loadPayload[domain.PostPreview](ctx, tx, feedKey)
		if err != nil {
			return err
		}

		var previewPayload []byte
		if preview != nil {
			preview.Liked = detail.Liked
			preview.LikeCount = detail.LikesCount
			if previewPayload, err = json.Marshal(preview); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, postKey, fieldPayload, payload, fieldStoredAt, s.now().UnixNano())
			if previewPayload != nil {
				pipe.HSet(ctx, feedKey, fieldPayload, previewPayload)
			}
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, postKey, feedKey); err != nil {
		return fmt.Errorf("failed to restore post %s: %w", detail.ID, err)
	}
	return nil
}

// watch runs txf under WATCH on keys, retrying optimistic lock failures
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

// Interactions returns the logged interactions for postID, oldest first
func (s *Store) Interactions(ctx context.Context, postID string) ([]domain.UserInteraction, error) {
	ids, err := s.rdb.LRange(ctx, s.key(spaceInteractions, postID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	if len(ids) == 0 {
		return []domain.UserInteraction{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(spaceInteraction, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	out := make([]domain.UserInteraction, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ui domain.UserInteraction
		if err := json.Unmarshal([]byte(raw), &ui); err != nil {
			return nil, fmt.Errorf("failed to decode interaction: %w", err)
		}
		out = append(out, ui)
	}
	return out, nil
}

// SaveDraft stores a post the user created
func (s *Store) SaveDraft(ctx context.Context, req domain.NewPostRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode draft %s: %w", req.ID, err)
	}
	if err := s.rdb.HSet(ctx, s.key(spaceDraft, req.ID),
		fieldPayload, payload, fieldStoredAt, s.now().UnixNano()).Err(); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", req.ID, err)
	}
	return nil
}

// PurgeExpired deletes previews and details older than ttl
func (s *Store) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	total := 0
	for _, space := range []string{spaceFeed, spacePost} {
		n, err := s.purgeSpace(ctx, space, ttl)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Store) purgeSpace(ctx context.Context, space string, ttl time.Duration) (int, error) {
	now := s.now()
	purged := 0

	iter := s.rdb.Scan(ctx, 0, s.pattern(space), scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		nanos, err := s.rdb.HGet(ctx, key, fieldStoredAt).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return purged, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !store.Expired(time.Unix(0, nanos), now, ttl) {
			continue
		}

		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return purged, fmt.Errorf("failed to purge %s: %w", key, err)
		}
		if space == spaceFeed {
			s.rdb.ZRem(ctx, s.feedIndex(), key[len(s.key(spaceFeed, "")):])
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("failed to scan %s: %w", space, err)
	}
	return purged, nil
}

// Clear removes all posts, interactions and drafts
func (s *Store) Clear(ctx context.Context) error {
	for _, space := range []string{spaceFeed, spacePost, spaceInteraction, spaceInteractions, spaceDraft} {
		if err := s.deleteMatching(ctx, s.pattern(space)); err != nil {
			return err
		}
	}
	if err := s.rdb.Del(ctx, s.feedIndex()).Err(); err != nil {
		return fmt.Errorf("failed to clear feed index: %w", err)
	}
	return nil
}

func (s *Store) deleteMatching(ctx context.Context, pattern string) error {
	iter := s.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete %s: %w", pattern, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", pattern, err)
		}
	}
	return nil
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// loadPayload decodes the payload field of key, returning nil when the key
// does not exist
func loadPayload[T any](ctx context.Context, c hashGetter, key string) (*T, error) {
	raw, err := c.HGet(ctx, key, fieldPayload).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &v, nil
}

// hashRecord unpacks an HMGET of payload and stored_at
func hashRecord(vals []any) ([]byte, time.Time, bool) {
	if len(vals) != 2 {
		return nil, time.Time{}, false
	}
	payload, ok := vals[0].(string)
	if !ok {
		return nil, time.Time{}, false
	}
	storedAt, _ := vals[1].(string)
	nanos, err := strconv.ParseInt(storedAt, 10, 64)
	if err != nil {
		return nil, time.Time{}, false
	}
	return []byte(payload), time.Unix(0, nanos), true
}
