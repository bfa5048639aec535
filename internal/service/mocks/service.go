package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/service"
)

// FeedService is a mock implementation of service.FeedService
type FeedService struct {
	mock.Mock
}

// Feed returns one page of the feed
func (m *FeedService) Feed(ctx context.Context, pageToken string, multiply int) (*domain.FeedPage, error) {
	args := m.Called(ctx, pageToken, multiply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedPage), args.Error(1)
}

// Post returns a single post
func (m *FeedService) Post(ctx context.Context, id string) (*domain.PostDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostDetail), args.Error(1)
}

// CreatePost publishes a post
func (m *FeedService) CreatePost(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostDetail), args.Error(1)
}

// Interact applies an interaction
func (m *FeedService) Interact(ctx context.Context, req domain.InteractionRequest) (domain.InteractionResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.InteractionResult), args.Error(1)
}

// Image renders a media tile
func (m *FeedService) Image(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var _ service.FeedService = (*FeedService)(nil)
