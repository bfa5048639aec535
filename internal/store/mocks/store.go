package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

// LocalStore is a mock implementation of store.LocalStore
type LocalStore struct {
	mock.Mock
}

// LoadAll returns stored previews
func (m *LocalStore) LoadAll(ctx context.Context) ([]store.FeedRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.FeedRecord), args.Error(1)
}

// LoadOne returns a stored detail
func (m *LocalStore) LoadOne(ctx context.Context, id string) (*store.DetailRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.DetailRecord), args.Error(1)
}

// SaveAll upserts previews
func (m *LocalStore) SaveAll(ctx context.Context, previews []domain.PostPreview) error {
	args := m.Called(ctx, previews)
	return args.Error(0)
}

// Upsert stores a detail
func (m *LocalStore) Upsert(ctx context.Context, detail domain.PostDetail) error {
	args := m.Called(ctx, detail)
	return args.Error(0)
}

// Delete removes a post
func (m *LocalStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// RecordInteraction logs an interaction
func (m *LocalStore) RecordInteraction(ctx context.Context, req domain.InteractionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// UpdateInteractionStatus moves a logged interaction to status
func (m *LocalStore) UpdateInteractionStatus(ctx context.Context, id string, status domain.InteractionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// RestorePost stores a detail and resets its preview
func (m *LocalStore) RestorePost(ctx context.Context, detail domain.PostDetail) error {
	args := m.Called(ctx, detail)
	return args.Error(0)
}

// Interactions returns logged interactions
func (m *LocalStore) Interactions(ctx context.Context, postID string) ([]domain.UserInteraction, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserInteraction), args.Error(1)
}

// SaveDraft stores a draft
func (m *LocalStore) SaveDraft(ctx context.Context, req domain.NewPostRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// PurgeExpired deletes expired records
func (m *LocalStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	args := m.Called(ctx, ttl)
	return args.Int(0), args.Error(1)
}

// Clear removes everything
func (m *LocalStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close closes the store
func (m *LocalStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MediaStore is a mock implementation of store.MediaStore
type MediaStore struct {
	mock.Mock
}

// LoadMedia returns stored media
func (m *MediaStore) LoadMedia(ctx context.Context, url string) (*store.MediaRecord, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.MediaRecord), args.Error(1)
}

// SaveMedia stores media
func (m *MediaStore) SaveMedia(ctx context.Context, url string, data []byte) error {
	args := m.Called(ctx, url, data)
	return args.Error(0)
}

// DeleteMedia removes media
func (m *MediaStore) DeleteMedia(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// PurgeExpired deletes expired media
func (m *MediaStore) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	args := m.Called(ctx, ttl)
	return args.Int(0), args.Error(1)
}

// Clear removes all media
func (m *MediaStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close closes the store
func (m *MediaStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ store.LocalStore = (*LocalStore)(nil)
	_ store.MediaStore = (*MediaStore)(nil)
)
