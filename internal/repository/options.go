package repository

import (
	"time"

	"github.com/joshdurbin/newsfeed/internal/cache"
	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/store"
)

// Options configures a PostRepo
type Options struct {
	// TTL is how long disk records stay fresh; 0 never expires them
	TTL time.Duration

	DetailCache cache.Options[domain.PostDetail]
	PageCache   cache.Options[domain.FeedPage]

	// SerializeInteractions runs interactions on the same post one at a
	// time. Without it a slow reconcile can overwrite the optimistic value
	// of a later interaction on the same post.
	SerializeInteractions bool

	// Author is attached to posts created through Create
	Author domain.AuthorPreview

	// Now is the clock used for expiry; nil means time.Now
	Now func() time.Time
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		TTL:         store.DefaultTTL,
		DetailCache: cache.Options[domain.PostDetail]{Capacity: 200},
		PageCache:   cache.Options[domain.FeedPage]{Capacity: 20},
		Author:      domain.AuthorPreview{ID: "me", Name: "Me"},
	}
}

// MediaOptions configures a MediaRepo
type MediaOptions struct {
	TTL   time.Duration
	Cache cache.Options[domain.Media]
	Now   func() time.Time
}

// DefaultMediaCost is the cost limit of the media cache
const DefaultMediaCost = 100 << 20

// DefaultMediaOptions returns the production defaults: 200 images or
// 100 MiB, whichever is reached first
func DefaultMediaOptions() MediaOptions {
	return MediaOptions{
		TTL: store.DefaultTTL,
		Cache: cache.Options[domain.Media]{
			Capacity: 200,
			MaxCost:  DefaultMediaCost,
			Cost:     func(m domain.Media) int64 { return int64(len(m.Data)) },
		},
	}
}
