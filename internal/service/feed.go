package service

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshdurbin/newsfeed/internal/domain"
)

// ServerAuthor is the author assigned to posts created through the API
var ServerAuthor = domain.AuthorPreview{ID: "me", Name: "Me"}

// Options configures the in-memory feed
type Options struct {
	BaseURL  string
	Posts    int
	PageSize int
	Now      func() time.Time
}

// Feed is an in-memory FeedService seeded with generated posts
type Feed struct {
	mu       sync.RWMutex
	posts    []*domain.PostDetail // newest first
	byID     map[string]*domain.PostDetail
	pageSize int
	now      func() time.Time
}

// NewFeed creates a Feed seeded with opts.Posts generated posts
func NewFeed(opts Options) *Feed {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}

	f := &Feed{
		byID:     make(map[string]*domain.PostDetail),
		pageSize: opts.PageSize,
		now:      opts.Now,
	}
	for _, p := range GeneratePosts(opts.Posts, opts.Now(), strings.TrimRight(opts.BaseURL, "/")) {
		f.posts = append(f.posts, &p)
		f.byID[p.ID] = &p
	}
	return f
}

// Feed returns one page of previews
func (f *Feed) Feed(ctx context.Context, pageToken string, multiply int) (*domain.FeedPage, error) {
	offset, err := decodeToken(pageToken)
	if err != nil {
		return nil, err
	}
	multiply = max(multiply, 1)

	f.mu.RLock()
	defer f.mu.RUnlock()

	total := len(f.posts) * multiply
	if offset > total {
		return nil, fmt.Errorf("%w: offset %d past end of feed", ErrInvalidToken, offset)
	}

	end := min(offset+f.pageSize, total)
	page := &domain.FeedPage{Feed: make([]domain.PostPreview, 0, end-offset)}
	for i := offset; i < end; i++ {
		page.Feed = append(page.Feed, f.posts[i%len(f.posts)].Preview())
	}
	if end < total {
		page.Paging.Next = encodeToken(end)
	}
	return page, nil
}

// Post returns a copy of the post with the given id
func (f *Feed) Post(ctx context.Context, id string) (*domain.PostDetail, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.byID[id]
	if !ok {
		return nil, domain.PostNotFoundError(id)
	}
	d := p.Clone()
	return &d, nil
}

// CreatePost adds a post to the head of the feed
func (f *Feed) CreatePost(ctx context.Context, req domain.NewPostRequest) (*domain.PostDetail, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrInvalidPost
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byID[req.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePost, req.ID)
	}

	d := req.Detail(ServerAuthor, f.now().UTC())
	f.posts = slices.Insert(f.posts, 0, &d)
	f.byID[d.ID] = &d

	out := d.Clone()
	return &out, nil
}

// Interact applies the action to the stored post and returns its new state
func (f *Feed) Interact(ctx context.Context, req domain.InteractionRequest) (domain.InteractionResult, error) {
	if err := req.Action.Validate(); err != nil {
		return domain.InteractionResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byID[req.PostID]
	if !ok {
		return domain.InteractionResult{}, domain.PostNotFoundError(req.PostID)
	}

	*p = req.Action.Apply(*p)
	return domain.ResultFrom(*p), nil
}

// Image renders the tile for a media name such as "post-0001-0.png"
func (f *Feed) Image(ctx context.Context, name string) ([]byte, error) {
	if name == "" || path.Ext(name) != ".png" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMedia, name)
	}
	return renderImage(strings.TrimSuffix(name, ".png"))
}

var _ FeedService = (*Feed)(nil)
