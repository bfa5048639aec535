package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/retry"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// PostRemote is the remote side of the post repository
type PostRemote interface {
	FetchFeed(ctx context.Context, pageToken string) (*domain.FeedPage, error)
	FetchPostDetail(ctx context.Context, id string) (*domain.PostDetail, error)
	CreatePost(ctx context.Context, req domain.NewPostRequest) error
	Interact(ctx context.Context, req domain.InteractionRequest) error
}

// PostDataSource implements PostRemote over the HTTP transport
type PostDataSource struct {
	sender Sender
	opts   options
}

// NewPostDataSource creates a PostDataSource
func NewPostDataSource(sender Sender, opts ...Option) *PostDataSource {
	return &PostDataSource{sender: sender, opts: newOptions(opts)}
}

// FetchFeed fetches one page of the feed; an empty token is the first page
func (d *PostDataSource) FetchFeed(ctx context.Context, pageToken string) (*domain.FeedPage, error) {
	ep := client.Get("/feed")
	if pageToken != "" {
		ep.Query = []client.QueryItem{{Name: "pageToken", Value: pageToken}}
	}

	page, err := retry.Do(ctx, d.opts.retry, func(ctx context.Context) (*domain.FeedPage, error) {
		var page domain.FeedPage
		if err := d.sender.Do(ctx, ep, nil, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}, d.opts.retryOptions("fetch feed")...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return page, nil
}

// FetchPostDetail fetches the full post. A 404 maps to domain.ErrPostNotFound.
func (d *PostDataSource) FetchPostDetail(ctx context.Context, id string) (*domain.PostDetail, error) {
	ep := client.Get("/posts/" + url.PathEscape(id))

	detail, err := retry.Do(ctx, d.opts.retry, func(ctx context.Context) (*domain.PostDetail, error) {
		var detail domain.PostDetail
		if err := d.sender.Do(ctx, ep, nil, &detail); err != nil {
			return nil, err
		}
		return &detail, nil
	}, d.opts.retryOptions("fetch post "+id)...)
	if err != nil {
		if status, ok := client.StatusCode(err); ok && status == http.StatusNotFound {
			return nil, fmt.Errorf("failed to fetch post: %w: %w", domain.PostNotFoundError(id), err)
		}
		return nil, fmt.Errorf("failed to fetch post %s: %w", id, err)
	}
	return detail, nil
}

// CreatePost publishes a new post
func (d *PostDataSource) CreatePost(ctx context.Context, req domain.NewPostRequest) error {
	_, err := retry.Do(ctx, d.opts.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.sender.Do(ctx, client.Post("/posts"), req, nil)
	}, d.opts.retryOptions("create post")...)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// Interact records an interaction with a post
func (d *PostDataSource) Interact(ctx context.Context, req domain.InteractionRequest) error {
	ep := client.Post("/posts/" + url.PathEscape(req.PostID) + "/interact")

	_, err := retry.Do(ctx, d.opts.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.sender.Do(ctx, ep, req, nil)
	}, d.opts.retryOptions("interact "+req.PostID)...)
	if err != nil {
		return fmt.Errorf("failed to %s post %s: %w", req.Action, req.PostID, err)
	}
	return nil
}

var _ PostRemote = (*PostDataSource)(nil)
