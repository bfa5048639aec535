// Package store defines the durable local tier: feed previews, post
// details, the interaction log, drafts and downloaded media, each stored
// with the time it was written. Expiry is decided by the caller.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/joshdurbin/newsfeed/internal/domain"
)

// ErrNotFound is returned by single-record loads on a miss
var ErrNotFound = errors.New("record not found")

// DefaultTTL is how long a stored record stays fresh
const DefaultTTL = 7 * 24 * time.Hour

// Expired reports whether a record written at storedAt is older than ttl.
// A non-positive ttl never expires.
func Expired(storedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(storedAt) > ttl
}

// FeedRecord is a stored feed preview
type FeedRecord struct {
	Preview  domain.PostPreview
	StoredAt time.Time
}

// Expired reports whether the record is older than ttl
func (r FeedRecord) Expired(now time.Time, ttl time.Duration) bool {
	return Expired(r.StoredAt, now, ttl)
}

// DetailRecord is a stored post detail
type DetailRecord struct {
	Detail   domain.PostDetail
	StoredAt time.Time
}

// Expired reports whether the record is older than ttl
func (r DetailRecord) Expired(now time.Time, ttl time.Duration) bool {
	return Expired(r.StoredAt, now, ttl)
}

// MediaRecord is stored image data
type MediaRecord struct {
	URL      string
	Data     []byte
	StoredAt time.Time
}

// Expired reports whether the record is older than ttl
func (r MediaRecord) Expired(now time.Time, ttl time.Duration) bool {
	return Expired(r.StoredAt, now, ttl)
}

// Sweeper deletes records older than ttl and returns how many it removed
type Sweeper interface {
	PurgeExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// LocalStore persists posts and interactions. Implementations must be safe
// for concurrent use.
type LocalStore interface {
	Sweeper

	// LoadAll returns every stored preview, newest post first
	LoadAll(ctx context.Context) ([]FeedRecord, error)

	// LoadOne returns the stored detail for id or ErrNotFound
	LoadOne(ctx context.Context, id string) (*DetailRecord, error)

	// SaveAll upserts previews, stamping them with the current time
	SaveAll(ctx context.Context, previews []domain.PostPreview) error

	// Upsert stores a detail, stamping it with the current time
	Upsert(ctx context.Context, detail domain.PostDetail) error

	// Delete removes the detail and preview for id
	Delete(ctx context.Context, id string) error

	// RecordInteraction appends a pending entry to the interaction log,
	// applies the action to any stored preview and detail of the post and
	// returns the entry ID
	RecordInteraction(ctx context.Context, req domain.InteractionRequest) (string, error)

	// UpdateInteractionStatus moves a logged interaction to status. Moving
	// to failed increments its failure count.
	UpdateInteractionStatus(ctx context.Context, id string, status domain.InteractionStatus) error

	// RestorePost stores detail and resets the liked state and like count
	// of the stored preview, if any, to match it
	RestorePost(ctx context.Context, detail domain.PostDetail) error

	// Interactions returns the logged interactions for a post, oldest first
	Interactions(ctx context.Context, postID string) ([]domain.UserInteraction, error)

	// SaveDraft stores a post the user created
	SaveDraft(ctx context.Context, req domain.NewPostRequest) error

	// Clear removes everything
	Clear(ctx context.Context) error

	Close() error
}

// MediaStore persists downloaded media by URL
type MediaStore interface {
	Sweeper

	// LoadMedia returns the stored media for url or ErrNotFound
	LoadMedia(ctx context.Context, url string) (*MediaRecord, error)

	// SaveMedia stores data for url, stamping it with the current time
	SaveMedia(ctx context.Context, url string, data []byte) error

	// DeleteMedia removes url
	DeleteMedia(ctx context.Context, url string) error

	// Clear removes all media
	Clear(ctx context.Context) error

	Close() error
}

// LocalUserID is recorded as the actor of locally logged interactions
const LocalUserID = "local"
