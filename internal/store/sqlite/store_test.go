package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_New(t *testing.T) {
	dbPath := createTempDB(t)
	defer os.Remove(dbPath)

	s, err := New(dbPath)
	require.NoError(t, err)
	assert.NotNil(t, s.db)
	assert.NoError(t, s.db.Ping())

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 3, count)

	assert.NoError(t, s.Close())
}

func TestStore_New_Reopen(t *testing.T) {
	dbPath := createTempDB(t)
	defer os.Remove(dbPath)

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), detail("p1", 3)))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.LoadOne(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Detail.LikesCount)
}

func TestStore_New_InvalidPath(t *testing.T) {
	s, err := New("/invalid/path/to/database.db")
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create_post_tables", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 3, migrations[2].Version)
	assert.Contains(t, migrations[2].SQL, "cached_media")
}

func TestStore_LoadOne(t *testing.T) {
	s, clock := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	_, err := s.LoadOne(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	want := detail("p1", 5)
	want.Attachments = []domain.Attachment{{ContentURL: "https://img.example.com/a.png", Type: "image"}}
	require.NoError(t, s.Upsert(ctx, want))

	rec, err := s.LoadOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, rec.Detail.ID)
	assert.Equal(t, want.Attachments, rec.Detail.Attachments)
	assert.True(t, want.CreatedAt.Equal(rec.Detail.CreatedAt))
	assert.True(t, clock.Now().Equal(rec.StoredAt))
}

func TestStore_Upsert_Overwrites(t *testing.T) {
	s, clock := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, detail("p1", 1)))
	clock.Advance(time.Hour)
	require.NoError(t, s.Upsert(ctx, detail("p1", 9)))

	rec, err := s.LoadOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Detail.LikesCount)
	assert.True(t, clock.Now().Equal(rec.StoredAt))
}

func TestStore_SaveAll_LoadAll(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	previews := []domain.PostPreview{
		{PostID: "old", CreatedAt: base},
		{PostID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{PostID: "mid", CreatedAt: base.Add(time.Hour)},
	}
	require.NoError(t, s.SaveAll(ctx, previews))
	require.NoError(t, s.SaveAll(ctx, nil))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].Preview.PostID)
	assert.Equal(t, "mid", records[1].Preview.PostID)
	assert.Equal(t, "old", records[2].Preview.PostID)

	// upsert by id
	require.NoError(t, s.SaveAll(ctx, []domain.PostPreview{{PostID: "old", CreatedAt: base, LikeCount: 4}}))
	records, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 4, records[2].Preview.LikeCount)
}

func TestStore_Delete(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, detail("p1", 0)))
	require.NoError(t, s.SaveAll(ctx, []domain.PostPreview{{PostID: "p1"}}))

	require.NoError(t, s.Delete(ctx, "p1"))

	_, err := s.LoadOne(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_RecordInteraction(t *testing.T) {
	tests := []struct {
		name        string
		action      domain.Action
		wantLiked   bool
		wantLikes   int
		wantShared  int
		wantPreview int
	}{
		{name: "like", action: domain.ActionLike, wantLiked: true, wantLikes: 3, wantShared: 1, wantPreview: 3},
		{name: "unlike", action: domain.ActionUnlike, wantLiked: false, wantLikes: 1, wantShared: 1, wantPreview: 1},
		{name: "share", action: domain.ActionShare, wantLiked: false, wantLikes: 2, wantShared: 2, wantPreview: 2},
		{name: "bookmark", action: domain.ActionBookmark, wantLiked: false, wantLikes: 2, wantShared: 1, wantPreview: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := setupTestStore(t)
			defer teardownTestStore(t, s)
			ctx := context.Background()

			d := detail("p1", 2)
			d.SharedCount = 1
			require.NoError(t, s.Upsert(ctx, d))
			require.NoError(t, s.SaveAll(ctx, []domain.PostPreview{d.Preview()}))
			storedAt := clock.Now()
			clock.Advance(time.Minute)

			id, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "p1", Action: tt.action})
			require.NoError(t, err)

			rec, err := s.LoadOne(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLiked, rec.Detail.Liked)
			assert.Equal(t, tt.wantLikes, rec.Detail.LikesCount)
			assert.Equal(t, tt.wantShared, rec.Detail.SharedCount)
			assert.True(t, storedAt.Equal(rec.StoredAt), "interaction must not refresh storedAt")

			records, err := s.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.wantPreview, records[0].Preview.LikeCount)

			log, err := s.Interactions(ctx, "p1")
			require.NoError(t, err)
			require.Len(t, log, 1)
			assert.Equal(t, tt.action, log[0].Action)
			assert.Equal(t, domain.InteractionPending, log[0].Status)
			assert.Equal(t, store.LocalUserID, log[0].UserID)
			assert.Equal(t, id, log[0].ID)
			assert.True(t, clock.Now().Equal(log[0].CreatedAt))
		})
	}
}

func TestStore_RecordInteraction_UnknownPost(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	_, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "ghost", Action: domain.ActionLike})
	require.NoError(t, err)

	_, err = s.LoadOne(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	log, err := s.Interactions(ctx, "ghost")
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestStore_RecordInteraction_InvalidAction(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)

	_, err := s.RecordInteraction(context.Background(), domain.InteractionRequest{PostID: "p1", Action: "poke"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestStore_UpdateInteractionStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       domain.InteractionStatus
		wantFailures int
	}{
		{name: "completed", status: domain.InteractionCompleted, wantFailures: 0},
		{name: "cancelled", status: domain.InteractionCancelled, wantFailures: 0},
		{name: "failed", status: domain.InteractionFailed, wantFailures: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := setupTestStore(t)
			defer teardownTestStore(t, s)
			ctx := context.Background()

			id, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "p1", Action: domain.ActionLike})
			require.NoError(t, err)
			clock.Advance(time.Second)

			require.NoError(t, s.UpdateInteractionStatus(ctx, id, tt.status))

			log, err := s.Interactions(ctx, "p1")
			require.NoError(t, err)
			require.Len(t, log, 1)
			assert.Equal(t, tt.status, log[0].Status)
			assert.Equal(t, tt.wantFailures, log[0].FailureCount)
			assert.True(t, clock.Now().Equal(log[0].UpdatedAt))
		})
	}
}

func TestStore_UpdateInteractionStatus_Unknown(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)

	err := s.UpdateInteractionStatus(context.Background(), "missing", domain.InteractionFailed)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_RestorePost(t *testing.T) {
	s, clock := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	original := detail("p1", 2)
	require.NoError(t, s.Upsert(ctx, original))
	require.NoError(t, s.SaveAll(ctx, []domain.PostPreview{original.Preview()}))
	listedAt := clock.Now()
	clock.Advance(time.Minute)

	id, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "p1", Action: domain.ActionLike})
	require.NoError(t, err)
	require.NoError(t, s.RestorePost(ctx, original))
	require.NoError(t, s.UpdateInteractionStatus(ctx, id, domain.InteractionFailed))

	rec, err := s.LoadOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, original, rec.Detail)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Preview.Liked)
	assert.Equal(t, 2, records[0].Preview.LikeCount)
	assert.True(t, listedAt.Equal(records[0].StoredAt), "restore must not refresh the preview storedAt")

	log, err := s.Interactions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, domain.InteractionFailed, log[0].Status)
	assert.Equal(t, 1, log[0].FailureCount)
}

func TestStore_RestorePost_WithoutPreview(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.RestorePost(ctx, detail("p1", 4)))

	rec, err := s.LoadOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Detail.LikesCount)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_PurgeExpired(t *testing.T) {
	s, clock := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, detail("stale", 0)))
	require.NoError(t, s.SaveAll(ctx, []domain.PostPreview{{PostID: "stale"}}))
	clock.Advance(store.DefaultTTL)
	require.NoError(t, s.Upsert(ctx, detail("fresh", 0)))
	clock.Advance(time.Second)

	n, err := s.PurgeExpired(ctx, store.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.LoadOne(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.LoadOne(ctx, "fresh")
	assert.NoError(t, err)

	n, err = s.PurgeExpired(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Clear(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, detail("p1", 0)))
	require.NoError(t, s.SaveDraft(ctx, domain.NewPostRequest{ID: "draft", Content: "hello"}))
	_, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "p1", Action: domain.ActionLike})
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))

	_, err = s.LoadOne(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	log, err := s.Interactions(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, log)

	var drafts int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM post_drafts").Scan(&drafts))
	assert.Zero(t, drafts)
}

func TestStore_SaveDraft(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	req := domain.NewPostRequest{ID: "draft-1", Content: "first"}
	require.NoError(t, s.SaveDraft(ctx, req))
	req.Content = "second"
	require.NoError(t, s.SaveDraft(ctx, req))

	var payload string
	require.NoError(t, s.db.QueryRow("SELECT payload FROM post_drafts WHERE id = ?", "draft-1").Scan(&payload))
	assert.Contains(t, payload, "second")
}

func TestStore_ConcurrentWrites(t *testing.T) {
	s, _ := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, detail("p1", 0)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordInteraction(ctx, domain.InteractionRequest{PostID: "p1", Action: domain.ActionShare})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.LoadOne(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Detail.SharedCount)
}

func TestMediaStore(t *testing.T) {
	s, clock := setupTestStore(t)
	defer teardownTestStore(t, s)
	ctx := context.Background()
	media := s.Media()

	_, err := media.LoadMedia(ctx, "https://img.example.com/1.png")
	assert.ErrorIs(t, err, store.ErrNotFound)

	data := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, media.SaveMedia(ctx, "https://img.example.com/1.png", data))

	rec, err := media.LoadMedia(ctx, "https://img.example.com/1.png")
	require.NoError(t, err)
	assert.Equal(t, data, rec.Data)
	assert.True(t, clock.Now().Equal(rec.StoredAt))

	clock.Advance(store.DefaultTTL + time.Second)
	require.NoError(t, media.SaveMedia(ctx, "https://img.example.com/2.png", data))

	n, err := media.PurgeExpired(ctx, store.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, media.DeleteMedia(ctx, "https://img.example.com/2.png"))
	_, err = media.LoadMedia(ctx, "https://img.example.com/2.png")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, media.SaveMedia(ctx, "https://img.example.com/3.png", data))
	require.NoError(t, media.Clear(ctx))
	_, err = media.LoadMedia(ctx, "https://img.example.com/3.png")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, media.Close())
}

func detail(id string, likes int) domain.PostDetail {
	return domain.PostDetail{
		ID:         id,
		Content:    "content of " + id,
		Author:     domain.AuthorPreview{ID: "a1", Name: "Ada"},
		CreatedAt:  time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC),
		LikesCount: likes,
	}
}

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func setupTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)}

	s, err := New(createTempDB(t), WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func teardownTestStore(t *testing.T, s *Store) {
	t.Helper()
	if s != nil {
		s.Close()
	}
}
