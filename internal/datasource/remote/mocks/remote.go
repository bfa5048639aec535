package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/newsfeed/internal/datasource/remote"
	"github.com/joshdurbin/newsfeed/internal/domain"
)

// PostRemote is a mock implementation of remote.PostRemote
type PostRemote struct {
	mock.Mock
}

// FetchFeed fetches one page of the feed
func (m *PostRemote) FetchFeed(ctx context.Context, pageToken string) (*domain.FeedPage, error) {
	args := m.Called(ctx, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedPage), args.Error(1)
}

// FetchPostDetail fetches a full post
func (m *PostRemote) FetchPostDetail(ctx context.Context, id string) (*domain.PostDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostDetail), args.Error(1)
}

// CreatePost publishes a new post
func (m *PostRemote) CreatePost(ctx context.Context, req domain.NewPostRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// Interact records an interaction
func (m *PostRemote) Interact(ctx context.Context, req domain.InteractionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MediaRemote is a mock implementation of remote.MediaRemote
type MediaRemote struct {
	mock.Mock
}

// Download fetches image bytes
func (m *MediaRemote) Download(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var (
	_ remote.PostRemote  = (*PostRemote)(nil)
	_ remote.MediaRemote = (*MediaRemote)(nil)
)
