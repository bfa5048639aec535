package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/repository"
	"github.com/joshdurbin/newsfeed/internal/repository/mocks"
	storemocks "github.com/joshdurbin/newsfeed/internal/store/mocks"
)

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestCommands(opts ...Option) (*Commands, *mocks.PostRepository, *mocks.MediaRepository, *bytes.Buffer) {
	posts := &mocks.PostRepository{}
	media := &mocks.MediaRepository{}
	var out bytes.Buffer
	return NewCommands(posts, media, &out, opts...), posts, media, &out
}

func TestCommands_Feed(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		pageToken  string
		setupMocks func(*mocks.PostRepository)
		wantErr    bool
		contains   []string
	}{
		{
			name: "stored list",
			setupMocks: func(m *mocks.PostRepository) {
				m.On("FetchList", ctx).Return([]domain.PostPreview{
					{PostID: "p1", Author: "Ada", CreatedAt: testTime, LikeCount: 3, Liked: true, ContentSummary: "hello"},
				}, nil)
			},
			contains: []string{"p1", "Ada", "2024-01-02 03:04:05", "3*", "hello"},
		},
		{
			name:      "remote page with next token",
			pageToken: "tok",
			setupMocks: func(m *mocks.PostRepository) {
				m.On("FetchPage", ctx, "tok").Return(&domain.FeedPage{
					Feed:   []domain.PostPreview{{PostID: "p2", CreatedAt: testTime}},
					Paging: domain.Paging{Next: "tok2"},
				}, nil)
			},
			contains: []string{"p2", "Next page: tok2"},
		},
		{
			name: "empty",
			setupMocks: func(m *mocks.PostRepository) {
				m.On("FetchList", ctx).Return([]domain.PostPreview{}, nil)
			},
			contains: []string{"No posts found"},
		},
		{
			name: "error",
			setupMocks: func(m *mocks.PostRepository) {
				m.On("FetchList", ctx).Return(nil, assert.AnError)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, posts, _, out := newTestCommands()
			tt.setupMocks(posts)

			err := cmds.Feed(ctx, tt.pageToken)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
			posts.AssertExpectations(t)
		})
	}
}

func TestCommands_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		cmds, posts, _, out := newTestCommands()
		posts.On("FetchDetail", ctx, "p1").Return(&domain.PostDetail{
			ID:          "p1",
			Content:     "hello world",
			Author:      domain.AuthorPreview{Name: "Ada"},
			CreatedAt:   testTime,
			LikesCount:  4,
			Attachments: []domain.Attachment{{ContentURL: "http://x/a.png", Type: "image"}},
		}, nil)

		require.NoError(t, cmds.Get(ctx, "p1"))
		assert.Contains(t, out.String(), "Author: Ada")
		assert.Contains(t, out.String(), "Likes: 4 (liked: false)")
		assert.Contains(t, out.String(), "Attachment 1: http://x/a.png")
	})

	t.Run("not found", func(t *testing.T) {
		cmds, posts, _, out := newTestCommands()
		posts.On("FetchDetail", ctx, "nope").Return(nil, fmt.Errorf("failed to fetch post nope: %w", domain.PostNotFoundError("nope")))

		require.NoError(t, cmds.Get(ctx, "nope"))
		assert.Contains(t, out.String(), "Post 'nope' not found")
	})

	t.Run("error", func(t *testing.T) {
		cmds, posts, _, _ := newTestCommands()
		posts.On("FetchDetail", ctx, "p1").Return(nil, assert.AnError)

		assert.ErrorIs(t, cmds.Get(ctx, "p1"), assert.AnError)
	})
}

func TestCommands_Interact(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		action   domain.Action
		result   domain.InteractionResult
		err      error
		wantErr  error
		contains string
	}{
		{
			name:     "liked",
			action:   domain.ActionLike,
			result:   domain.InteractionResult{PostID: "p1", Liked: true, LikesCount: 5},
			contains: "Post 'p1' liked: likes 5 (liked: true)",
		},
		{
			name:     "shared",
			action:   domain.ActionShare,
			result:   domain.InteractionResult{PostID: "p1", LikesCount: 5},
			contains: "Post 'p1' shared",
		},
		{
			name:     "soft local failure",
			action:   domain.ActionUnlike,
			result:   domain.InteractionResult{PostID: "p1", LikesCount: 4},
			err:      fmt.Errorf("%w: %w", repository.ErrLocalPersistence, assert.AnError),
			contains: "Warning:",
		},
		{
			name:     "rolled back",
			action:   domain.ActionLike,
			result:   domain.InteractionResult{PostID: "p1", LikesCount: 4},
			err:      fmt.Errorf("%w: %w", repository.ErrInteractionFailed, assert.AnError),
			wantErr:  repository.ErrInteractionFailed,
			contains: "Post 'p1' restored: likes 4",
		},
		{
			name:     "not found",
			action:   domain.ActionLike,
			err:      domain.PostNotFoundError("p1"),
			contains: "Post 'p1' not found",
		},
		{
			name:    "cancelled",
			action:  domain.ActionLike,
			err:     context.Canceled,
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, posts, _, out := newTestCommands()
			posts.On("Interact", ctx, "p1", tt.action).Return(tt.result, tt.err)

			err := cmds.Interact(ctx, "p1", tt.action)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.contains != "" {
				assert.Contains(t, out.String(), tt.contains)
			}
			posts.AssertExpectations(t)
		})
	}
}

func TestCommands_Create(t *testing.T) {
	ctx := context.Background()
	cmds, posts, _, out := newTestCommands()

	posts.On("Create", ctx, mock.MatchedBy(func(req domain.NewPostRequest) bool {
		return req.Content == "hi" && len(req.Attachments) == 1 && req.Attachments[0].Type == "image"
	})).Return(&domain.PostDetail{ID: "n1", CreatedAt: testTime, Attachments: make([]domain.Attachment, 1)}, nil)

	require.NoError(t, cmds.Create(ctx, "hi", []string{"http://x/a.png"}))
	assert.Contains(t, out.String(), "ID: n1")
	assert.Contains(t, out.String(), "Attachments: 1")
	posts.AssertExpectations(t)
}

func TestCommands_Gallery(t *testing.T) {
	ctx := context.Background()
	cmds, _, media, out := newTestCommands()

	media.On("LoadAllMedia", ctx).Return(domain.MediaGroups{
		Pinned:  []domain.Media{{URL: "http://x/1.png"}},
		Recents: []domain.Media{{URL: "http://x/2.png"}},
	}, nil)

	require.NoError(t, cmds.Gallery(ctx))
	assert.Contains(t, out.String(), "Pinned:\n  http://x/1.png")
	assert.Contains(t, out.String(), "Recents:\n  http://x/2.png")
}

func TestCommands_Image(t *testing.T) {
	ctx := context.Background()
	url := "http://x/1.png"
	want := domain.Media{URL: url, Type: domain.MediaRecents}

	t.Run("size only", func(t *testing.T) {
		cmds, _, media, out := newTestCommands()
		media.On("FetchImage", ctx, want).Return(want.WithData([]byte{1, 2, 3}), nil)

		require.NoError(t, cmds.Image(ctx, url, ""))
		assert.Contains(t, out.String(), "3 bytes")
	})

	t.Run("to file", func(t *testing.T) {
		cmds, _, media, _ := newTestCommands()
		media.On("FetchImage", ctx, want).Return(want.WithData([]byte{1, 2, 3}), nil)

		path := filepath.Join(t.TempDir(), "img.png")
		require.NoError(t, cmds.Image(ctx, url, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, data)
	})

	t.Run("error", func(t *testing.T) {
		cmds, _, media, _ := newTestCommands()
		media.On("FetchImage", ctx, want).Return(domain.Media{}, assert.AnError)

		assert.ErrorIs(t, cmds.Image(ctx, url, ""), assert.AnError)
	})
}

func TestCommands_Sweep(t *testing.T) {
	ctx := context.Background()
	local := &storemocks.LocalStore{}
	mediaStore := &storemocks.MediaStore{}
	local.On("PurgeExpired", mock.Anything, time.Hour).Return(2, nil)
	mediaStore.On("PurgeExpired", mock.Anything, time.Hour).Return(3, nil)

	cmds, _, _, out := newTestCommands(WithSweepers(time.Hour, local, mediaStore))

	require.NoError(t, cmds.Sweep(ctx))
	assert.Contains(t, out.String(), "Removed 5 expired records")
	local.AssertExpectations(t)
	mediaStore.AssertExpectations(t)
}

type clearFunc func(context.Context) error

func (f clearFunc) Clear(ctx context.Context) error { return f(ctx) }

func TestCommands_ClearCache(t *testing.T) {
	ctx := context.Background()

	t.Run("clears everything", func(t *testing.T) {
		cleared := false
		cmds, posts, _, out := newTestCommands(WithClearers(clearFunc(func(context.Context) error {
			cleared = true
			return nil
		})))
		posts.On("Clear", ctx).Return(nil)

		require.NoError(t, cmds.ClearCache(ctx))
		assert.True(t, cleared)
		assert.Contains(t, out.String(), "Local data cleared")
	})

	t.Run("post repository error", func(t *testing.T) {
		cmds, posts, _, _ := newTestCommands(WithClearers(clearFunc(func(context.Context) error {
			t.Fatal("media cleared after post failure")
			return nil
		})))
		posts.On("Clear", ctx).Return(assert.AnError)

		assert.ErrorIs(t, cmds.ClearCache(ctx), assert.AnError)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
