package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joshdurbin/newsfeed/internal/cache"
	"github.com/joshdurbin/newsfeed/internal/datasource/remote"
	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

var _ MediaRepository = (*MediaRepo)(nil)

// MediaRepo implements MediaRepository. Images are coalesced per URL in a
// cost bounded cache, then read from the media store, then downloaded.
type MediaRepo struct {
	remote remote.MediaRemote
	local  store.MediaStore
	urls   URLProvider
	images *cache.EntryCache[domain.Media]
	opts   MediaOptions
}

// NewMediaRepo creates a MediaRepo
func NewMediaRepo(rem remote.MediaRemote, local store.MediaStore, urls URLProvider, opts MediaOptions) *MediaRepo {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MediaRepo{
		remote: rem,
		local:  local,
		urls:   urls,
		images: cache.New(opts.Cache),
		opts:   opts,
	}
}

// LoadAllMedia lists the gallery: the first domain.PinnedMediaCount URLs are
// pinned, the rest are recents
func (r *MediaRepo) LoadAllMedia(ctx context.Context) (domain.MediaGroups, error) {
	urls, err := r.urls.MediaURLs(ctx)
	if err != nil {
		return domain.MediaGroups{}, fmt.Errorf("failed to list media: %w", err)
	}
	return domain.GroupMedia(domain.MediaFromURLs(urls)), nil
}

// FetchImage returns media with Data filled in
func (r *MediaRepo) FetchImage(ctx context.Context, media domain.Media) (domain.Media, error) {
	if media.URL == "" {
		return media, fmt.Errorf("failed to fetch image: %w", remote.ErrNoData)
	}

	loaded, err := r.images.GetOrLoad(ctx, media.URL, func(ctx context.Context) (domain.Media, error) {
		data, err := r.loadImage(ctx, media.URL)
		if err != nil {
			return domain.Media{}, err
		}
		return media.WithData(data), nil
	})
	if err != nil {
		return media, fmt.Errorf("failed to fetch image %s: %w", media.URL, err)
	}

	// the cached copy may belong to another gallery item with the same URL
	return media.WithData(loaded.Data), nil
}

func (r *MediaRepo) loadImage(ctx context.Context, url string) ([]byte, error) {
	rec, err := r.local.LoadMedia(ctx, url)
	switch {
	case err == nil && !rec.Expired(r.opts.Now(), r.opts.TTL):
		return rec.Data, nil
	case err == nil:
		if err := r.local.DeleteMedia(ctx, url); err != nil {
			log.Printf("[WARN] failed to purge expired media %s: %v", url, err)
		}
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("[WARN] failed to read stored media %s: %v", url, err)
	}

	data, err := r.remote.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := r.local.SaveMedia(ctx, url, data); err != nil {
		log.Printf("[WARN] failed to store media %s: %v", url, err)
	}
	return data, nil
}

// Clear drops cached images and clears the media store
func (r *MediaRepo) Clear(ctx context.Context) error {
	r.images.Clear()
	if err := r.local.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear media store: %w", err)
	}
	return nil
}

// StaticURLs is a fixed URLProvider
type StaticURLs []string

// MediaURLs returns the list
func (s StaticURLs) MediaURLs(context.Context) ([]string, error) {
	return s, nil
}

// FeedLister is the part of PostRepository FeedURLs needs
type FeedLister interface {
	FetchList(ctx context.Context) ([]domain.PostPreview, error)
}

// FeedURLs lists the attachment preview images of the current feed
type FeedURLs struct {
	Posts FeedLister
}

// MediaURLs returns one URL per previewed attachment, in feed order
func (f FeedURLs) MediaURLs(ctx context.Context) ([]string, error) {
	previews, err := f.Posts.FetchList(ctx)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, p := range previews {
		if p.AttachmentPreviewImageURL != "" {
			urls = append(urls, p.AttachmentPreviewImageURL)
		}
	}
	return urls, nil
}
