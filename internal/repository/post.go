package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/newsfeed/internal/cache"
	"github.com/joshdurbin/newsfeed/internal/datasource/remote"
	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/events"
	"github.com/joshdurbin/newsfeed/internal/store"
)

var _ PostRepository = (*PostRepo)(nil)

// PostRepo implements PostRepository
type PostRepo struct {
	remote  remote.PostRemote
	local   store.LocalStore
	details *cache.EntryCache[domain.PostDetail]
	pages   *cache.EntryCache[domain.FeedPage]
	changes *events.Broadcaster[domain.InteractionChanged]
	locks   *keyedMutex
	opts    Options
}

// NewPostRepo creates a PostRepo over the given data sources
func NewPostRepo(rem remote.PostRemote, local store.LocalStore, opts Options) *PostRepo {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PostRepo{
		remote:  rem,
		local:   local,
		details: cache.New(opts.DetailCache),
		pages:   cache.New(opts.PageCache),
		changes: events.NewBroadcaster[domain.InteractionChanged](),
		locks:   newKeyedMutex(),
		opts:    opts,
	}
}

// FetchList returns the stored feed if every record is fresh, otherwise the
// first remote page
func (r *PostRepo) FetchList(ctx context.Context) ([]domain.PostPreview, error) {
	records, err := r.local.LoadAll(ctx)
	if err != nil {
		log.Printf("[WARN] failed to load stored feed: %v", err)
	}

	if len(records) > 0 {
		now := r.opts.Now()
		previews := make([]domain.PostPreview, 0, len(records))
		for _, rec := range records {
			if rec.Expired(now, r.opts.TTL) {
				previews = nil
				break
			}
			previews = append(previews, rec.Preview)
		}
		if previews != nil {
			return previews, nil
		}
	}

	page, err := r.FetchPage(ctx, "")
	if err != nil {
		return nil, err
	}
	return page.Feed, nil
}

// FetchPage returns one remote feed page and stores its previews
func (r *PostRepo) FetchPage(ctx context.Context, pageToken string) (*domain.FeedPage, error) {
	page, err := r.pages.GetOrLoad(ctx, pageToken, func(ctx context.Context) (domain.FeedPage, error) {
		page, err := r.remote.FetchFeed(ctx, pageToken)
		if err != nil {
			return domain.FeedPage{}, err
		}
		if err := r.local.SaveAll(ctx, page.Feed); err != nil {
			log.Printf("[WARN] failed to store feed page %q: %v", pageToken, err)
		}
		return *page, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	page.Feed = append([]domain.PostPreview(nil), page.Feed...)
	return &page, nil
}

// FetchDetail returns the post for id. A resident cache entry, ready or in
// flight, short-circuits disk and network. Otherwise a single load per id
// checks the local store and falls back to the remote.
func (r *PostRepo) FetchDetail(ctx context.Context, id string) (*domain.PostDetail, error) {
	detail, err := r.details.GetOrLoad(ctx, id, func(ctx context.Context) (domain.PostDetail, error) {
		return r.loadDetail(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post %s: %w", id, err)
	}

	detail = detail.Clone()
	return &detail, nil
}

func (r *PostRepo) loadDetail(ctx context.Context, id string) (domain.PostDetail, error) {
	rec, err := r.local.LoadOne(ctx, id)
	switch {
	case err == nil && !rec.Expired(r.opts.Now(), r.opts.TTL):
		return rec.Detail, nil
	case err == nil:
		if err := r.local.Delete(ctx, id); err != nil {
			log.Printf("[WARN] failed to purge expired post %s: %v", id, err)
		}
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("[WARN] failed to read stored post %s: %v", id, err)
	}

	detail, err := r.remote.FetchPostDetail(ctx, id)
	if err != nil {
		return domain.PostDetail{}, err
	}
	if err := r.local.Upsert(ctx, *detail); err != nil {
		log.Printf("[WARN] failed to store post %s: %v", id, err)
	}
	return *detail, nil
}

// SavePost replaces the cached detail and writes it to the local store
func (r *PostRepo) SavePost(ctx context.Context, detail domain.PostDetail) error {
	r.details.Set(detail.ID, cache.Ready(detail.Clone()))
	if err := r.local.Upsert(ctx, detail); err != nil {
		return fmt.Errorf("failed to save post %s: %w", detail.ID, err)
	}
	return nil
}

// Create publishes req and stores it as a draft concurrently. Both must
// succeed; the new post is then cached and the feed pages are dropped so
// the next list includes it.
func (r *PostRepo) Create(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyPost
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var g errgroup.Group
	g.Go(func() error { return r.remote.CreatePost(ctx, req) })
	g.Go(func() error { return r.local.SaveDraft(ctx, req) })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	detail := req.Detail(r.opts.Author, r.opts.Now())
	r.details.Set(detail.ID, cache.Ready(detail))
	r.pages.Clear()

	if err := r.local.Upsert(ctx, detail); err != nil {
		log.Printf("[WARN] failed to store created post %s: %v", detail.ID, err)
	}
	if err := r.local.SaveAll(ctx, []domain.PostPreview{detail.Preview()}); err != nil {
		log.Printf("[WARN] failed to store created post %s: %v", detail.ID, err)
	}

	detail = detail.Clone()
	return &detail, nil
}

// Subscribe returns a channel of interaction outcomes and its cancel func
func (r *PostRepo) Subscribe(buffer int) (<-chan domain.InteractionChanged, func()) {
	return r.changes.Subscribe(buffer)
}

// Invalidate drops the cached detail for id
func (r *PostRepo) Invalidate(id string) {
	r.details.Invalidate(id)
}

// Clear drops all cached entries and clears the local store
func (r *PostRepo) Clear(ctx context.Context) error {
	r.details.Clear()
	r.pages.Clear()
	if err := r.local.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear local store: %w", err)
	}
	return nil
}

// Close stops delivering change notifications
func (r *PostRepo) Close() {
	r.changes.Close()
}
