package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/repository"
)

// PostRepository is a mock implementation of repository.PostRepository
type PostRepository struct {
	mock.Mock
}

// FetchList returns the feed
func (m *PostRepository) FetchList(ctx context.Context) ([]domain.PostPreview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PostPreview), args.Error(1)
}

// FetchPage returns one feed page
func (m *PostRepository) FetchPage(ctx context.Context, pageToken string) (*domain.FeedPage, error) {
	args := m.Called(ctx, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedPage), args.Error(1)
}

// FetchDetail returns a post
func (m *PostRepository) FetchDetail(ctx context.Context, id string) (*domain.PostDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostDetail), args.Error(1)
}

// SavePost stores a post
func (m *PostRepository) SavePost(ctx context.Context, detail domain.PostDetail) error {
	args := m.Called(ctx, detail)
	return args.Error(0)
}

// Interact applies an interaction
func (m *PostRepository) Interact(ctx context.Context, id string, action domain.Action) (domain.InteractionResult, error) {
	args := m.Called(ctx, id, action)
	return args.Get(0).(domain.InteractionResult), args.Error(1)
}

// Create publishes a post
func (m *PostRepository) Create(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostDetail), args.Error(1)
}

// Subscribe returns a change channel
func (m *PostRepository) Subscribe(buffer int) (<-chan domain.InteractionChanged, func()) {
	args := m.Called(buffer)
	return args.Get(0).(<-chan domain.InteractionChanged), args.Get(1).(func())
}

// Invalidate drops a cached post
func (m *PostRepository) Invalidate(id string) {
	m.Called(id)
}

// Clear drops everything
func (m *PostRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MediaRepository is a mock implementation of repository.MediaRepository
type MediaRepository struct {
	mock.Mock
}

// LoadAllMedia lists the gallery
func (m *MediaRepository) LoadAllMedia(ctx context.Context) (domain.MediaGroups, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.MediaGroups), args.Error(1)
}

// FetchImage loads image bytes
func (m *MediaRepository) FetchImage(ctx context.Context, media domain.Media) (domain.Media, error) {
	args := m.Called(ctx, media)
	return args.Get(0).(domain.Media), args.Error(1)
}

var (
	_ repository.PostRepository  = (*PostRepository)(nil)
	_ repository.MediaRepository = (*MediaRepository)(nil)
)
