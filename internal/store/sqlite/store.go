// Package sqlite implements store.LocalStore and store.MediaStore on a
// single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

var (
	_ store.LocalStore = (*Store)(nil)
	_ store.MediaStore = (*MediaStore)(nil)
)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for storedAt stamps and expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBusyTimeout sets how long a writer waits on a locked database
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) { s.busyTimeout = d }
}

// Store is the SQLite backed LocalStore
type Store struct {
	db          *sql.DB
	now         func() time.Time
	busyTimeout time.Duration
}

// New opens (creating if needed) the database at databasePath and applies
// pending migrations
func New(databasePath string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(s.busyTimeout.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite3", "file:"+databasePath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Media returns a MediaStore sharing this database. Closing the Store
// closes it too.
func (s *Store) Media() *MediaStore {
	return &MediaStore{db: s.db, now: s.now}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll returns every stored preview, newest post first
func (s *Store) LoadAll(ctx context.Context) ([]store.FeedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload, stored_at FROM feed_posts ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	defer rows.Close()

	var records []store.FeedRecord
	for rows.Next() {
		var (
			payload  []byte
			storedAt int64
		)
		if err := rows.Scan(&payload, &storedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		var preview domain.PostPreview
		if err := json.Unmarshal(payload, &preview); err != nil {
			return nil, fmt.Errorf("failed to decode feed row: %w", err)
		}
		records = append(records, store.FeedRecord{Preview: preview, StoredAt: fromUnix(storedAt)})
	}
	return records, rows.Err()
}

// LoadOne returns the stored detail for id
func (s *Store) LoadOne(ctx context.Context, id string) (*store.DetailRecord, error) {
	var (
		payload  []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, stored_at FROM post_details WHERE id = ?", id).Scan(&payload, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load post %s: %w", id, err)
	}

	var detail domain.PostDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", id, err)
	}
	return &store.DetailRecord{Detail: detail, StoredAt: fromUnix(storedAt)}, nil
}

// SaveAll upserts previews in one transaction
func (s *Store) SaveAll(ctx context.Context, previews []domain.PostPreview) error {
	if len(previews) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPreviewSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	storedAt := s.now().UnixNano()
	for _, p := range previews {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode post %s: %w", p.PostID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.PostID, p.CreatedAt.UnixNano(), payload, storedAt); err != nil {
			return fmt.Errorf("failed to save post %s: %w", p.PostID, err)
		}
	}
	return tx.Commit()
}

// Upsert stores a detail
func (s *Store) Upsert(ctx context.Context, detail domain.PostDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode post %s: %w", detail.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertDetailSQL, detail.ID, payload, s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save post %s: %w", detail.ID, err)
	}
	return nil
}

// Delete removes the detail and preview for id
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM post_details WHERE id = ?",
		"DELETE FROM feed_posts WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete post %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// RecordInteraction logs the interaction as pending and applies it to the
// stored preview and detail of the post, if any, in one transaction. The
// stored records keep their original storedAt.
func (s *Store) RecordInteraction(ctx context.Context, req domain.InteractionRequest) (string, error) {
	if err := req.Action.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.recordInteraction(ctx, id, req); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) recordInteraction(ctx context.Context, id string, req domain.InteractionRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_interactions (id, post_id, user_id, action, status, created_at, updated_at, failure_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		id, req.PostID, store.LocalUserID, string(req.Action),
		string(domain.InteractionPending), now, now); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}

	var payload []byte
	err = tx.QueryRowContext(ctx, "SELECT payload FROM post_details WHERE id = ?", req.PostID).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to load post %s: %w", req.PostID, err)
	default:
		var detail domain.PostDetail
		if err := json.Unmarshal(payload, &detail); err != nil {
			return fmt.Errorf("failed to decode post %s: %w", req.PostID, err)
		}
		if payload, err = json.Marshal(req.Action.Apply(detail)); err != nil {
			return fmt.Errorf("failed to encode post %s: %w", req.PostID, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE post_details SET payload = ? WHERE id = ?", payload, req.PostID); err != nil {
			return fmt.Errorf("failed to update post %s: %w", req.PostID, err)
		}
	}

	err = tx.QueryRowContext(ctx, "SELECT payload FROM feed_posts WHERE id = ?", req.PostID).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to load preview %s: %w", req.PostID, err)
	default:
		var preview domain.PostPreview
		if err := json.Unmarshal(payload, &preview); err != nil {
			return fmt.Errorf("failed to decode preview %s: %w", req.PostID, err)
		}
		if payload, err = json.Marshal(req.Action.ApplyPreview(preview)); err != nil {
			return fmt.Errorf("failed to encode preview %s: %w", req.PostID, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE feed_posts SET payload = ? WHERE id = ?", payload, req.PostID); err != nil {
			return fmt.Errorf("failed to update preview %s: %w", req.PostID, err)
		}
	}

	return tx.Commit()
}

// UpdateInteractionStatus moves the logged interaction id to status,
// counting the failure when status is failed
func (s *Store) UpdateInteractionStatus(ctx context.Context, id string, status domain.InteractionStatus) error {
	failed := 0
	if status == domain.InteractionFailed {
		failed = 1
	}
	n, err := execCount(ctx, s.db, `
		UPDATE user_interactions
		SET status = ?, updated_at = ?, failure_count = failure_count + ?
		WHERE id = ?`,
		string(status), s.now().UnixNano(), failed, id)
	if err != nil {
		return fmt.Errorf("failed to update interaction %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertDetailSQL, detail.ID, payload, s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save post %s: %w", detail.ID, err)
	}

	var raw []byte
	err = tx.QueryRowContext(ctx, "SELECT payload FROM feed_posts WHERE id = ?", detail.ID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to load preview %s: %w", detail.ID, err)
	default:
		var preview domain.PostPreview
		if err := json.Unmarshal(raw, &preview); err != nil {
			return fmt.Errorf("failed to decode preview %s: %w", detail.ID, err)
		}
		preview.Liked = detail.Liked
		preview.LikeCount = detail.LikesCount
		if raw, err = json.Marshal(preview); err != nil {
			return fmt.Errorf("failed to encode preview %s: %w", detail.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE feed_posts SET payload = ? WHERE id = ?", raw, detail.ID); err != nil {
			return fmt.Errorf("failed to update preview %s: %w", detail.ID, err)
		}
	}

	return tx.Commit()
}

// Interactions returns the logged interactions for postID, oldest first
func (s *Store) Interactions(ctx context.Context, postID string) ([]domain.UserInteraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, action, status, created_at, updated_at, failure_count
		FROM user_interactions WHERE post_id = ? ORDER BY created_at, rowid`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.UserInteraction
	for rows.Next() {
		var (
			ui                   domain.UserInteraction
			action, status       string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&ui.ID, &ui.PostID, &ui.UserID, &action, &status,
			&createdAt, &updatedAt, &ui.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		ui.Action = domain.Action(action)
		ui.Status = domain.InteractionStatus(status)
		ui.CreatedAt = fromUnix(createdAt)
		ui.UpdatedAt = fromUnix(updatedAt)
		out = append(out, ui)
	}
	return out, rows.Err()
}

// SaveDraft stores a post the user created
func (s *Store) SaveDraft(ctx context.Context, req domain.NewPostRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode draft %s: %w", req.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO post_drafts (id, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		req.ID, payload, s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", req.ID, err)
	}
	return nil
}

// PurgeExpired deletes previews and details older than ttl. The
// interaction log and drafts are kept.
func (s *Store) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-ttl).UnixNano()

	total := 0
	for _, table := range []string{"feed_posts", "post_details"} {
		n, err := execCount(ctx, s.db, "DELETE FROM "+table+" WHERE stored_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// Clear removes all posts, interactions and drafts
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"feed_posts", "post_details", "user_interactions", "post_drafts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

const (
	upsertPreviewSQL = `
		INSERT INTO feed_posts (id, created_at, payload, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			payload = excluded.payload,
			stored_at = excluded.stored_at`

	upsertDetailSQL = `
		INSERT INTO post_details (id, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execCount(ctx context.Context, db execer, query string, args ...any) (int, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func fromUnix(nanos int64) time.Time {
	return time.Unix(0, nanos)
}
