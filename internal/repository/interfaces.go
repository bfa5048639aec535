// Package repository composes the entry caches, the local store and the
// remote data source into the read path and the optimistic interaction
// protocol used by the application.
package repository

import (
	"context"
	"errors"

	"github.com/joshdurbin/newsfeed/internal/domain"
)

var (
	// ErrInteractionFailed is returned when the remote side rejected an
	// interaction; the cached post has been rolled back
	ErrInteractionFailed = errors.New("interaction failed")

	// ErrLocalPersistence is the soft error of an interaction the remote
	// accepted but the local store did not record; the cached post keeps
	// the new state
	ErrLocalPersistence = errors.New("saved remotely, local store not updated")

	// ErrEmptyPost is returned by Create for a post without content
	ErrEmptyPost = errors.New("post content is empty")
)

// PostRepository is the application facing surface for posts
type PostRepository interface {
	// FetchList returns the feed, from the local store while it is fresh
	FetchList(ctx context.Context) ([]domain.PostPreview, error)

	// FetchPage returns one page of the remote feed, coalescing concurrent
	// requests for the same page
	FetchPage(ctx context.Context, pageToken string) (*domain.FeedPage, error)

	// FetchDetail returns a post from memory, then disk, then the network
	FetchDetail(ctx context.Context, id string) (*domain.PostDetail, error)

	// SavePost writes a detail to memory and disk
	SavePost(ctx context.Context, detail domain.PostDetail) error

	// Interact applies action optimistically and persists it remotely and
	// locally. The returned error is ErrLocalPersistence (soft, result holds
	// the new state), ErrInteractionFailed (result holds the old state) or a
	// cancellation.
	Interact(ctx context.Context, id string, action domain.Action) (domain.InteractionResult, error)

	// Create publishes a new post and stores it as a draft
	Create(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error)

	// Subscribe receives an InteractionChanged for every interaction
	Subscribe(buffer int) (<-chan domain.InteractionChanged, func())

	// Invalidate drops the cached detail for id, cancelling any load
	Invalidate(id string)

	// Clear drops every cached and stored post
	Clear(ctx context.Context) error
}

// MediaRepository serves the image gallery
type MediaRepository interface {
	// LoadAllMedia lists the gallery, not yet downloaded
	LoadAllMedia(ctx context.Context) (domain.MediaGroups, error)

	// FetchImage returns media with its bytes loaded
	FetchImage(ctx context.Context, media domain.Media) (domain.Media, error)
}

// URLProvider supplies the image URLs shown in the gallery
type URLProvider interface {
	MediaURLs(ctx context.Context) ([]string, error)
}
