package service

import (
	"context"
	"errors"

	"github.com/joshdurbin/newsfeed/internal/domain"
)

var (
	// ErrInvalidPost is returned for a create request without content
	ErrInvalidPost = errors.New("post content is required")

	// ErrDuplicatePost is returned when a created post reuses an existing id
	ErrDuplicatePost = errors.New("post already exists")

	// ErrInvalidToken is returned for a page token the server did not issue
	ErrInvalidToken = errors.New("invalid page token")

	// ErrUnknownMedia is returned for a media name the server cannot render
	ErrUnknownMedia = errors.New("unknown media")
)

// FeedService defines the feed API served by the fixture server
type FeedService interface {
	// Feed returns the page starting at pageToken; multiply repeats the
	// post set that many times when greater than one
	Feed(ctx context.Context, pageToken string, multiply int) (*domain.FeedPage, error)

	// Post returns the full post or domain.ErrPostNotFound
	Post(ctx context.Context, id string) (*domain.PostDetail, error)

	// CreatePost publishes a post at the head of the feed
	CreatePost(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error)

	// Interact applies an interaction to a post
	Interact(ctx context.Context, req domain.InteractionRequest) (domain.InteractionResult, error)

	// Image renders the PNG served at /media/{name}
	Image(ctx context.Context, name string) ([]byte, error)
}
