// Package cli renders repository operations for the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/repository"
	"github.com/joshdurbin/newsfeed/internal/store"
)

// Clearer drops cached and stored data
type Clearer interface {
	Clear(ctx context.Context) error
}

// Commands provides command-line operations over the repositories
type Commands struct {
	posts    repository.PostRepository
	media    repository.MediaRepository
	clearers []Clearer
	sweepers []store.Sweeper
	ttl      time.Duration
	out      io.Writer
}

// Option configures Commands
type Option func(*Commands)

// WithSweepers sets the stores purged by Sweep and the TTL they are purged with
func WithSweepers(ttl time.Duration, sweepers ...store.Sweeper) Option {
	return func(c *Commands) {
		c.ttl = ttl
		c.sweepers = sweepers
	}
}

// WithClearers sets what ClearCache empties besides the post repository
func WithClearers(clearers ...Clearer) Option {
	return func(c *Commands) { c.clearers = clearers }
}

// NewCommands creates a new Commands instance writing to out; nil means stdout
func NewCommands(posts repository.PostRepository, media repository.MediaRepository, out io.Writer, opts ...Option) *Commands {
	if out == nil {
		out = os.Stdout
	}
	c := &Commands{posts: posts, media: media, out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed displays the feed. An empty pageToken lists the stored feed when it
// is fresh; otherwise the given remote page is shown with its next token.
func (c *Commands) Feed(ctx context.Context, pageToken string) error {
	var (
		previews []domain.PostPreview
		next     string
	)
	if pageToken == "" {
		list, err := c.posts.FetchList(ctx)
		if err != nil {
			return err
		}
		previews = list
	} else {
		page, err := c.posts.FetchPage(ctx, pageToken)
		if err != nil {
			return err
		}
		previews, next = page.Feed, page.Paging.Next
	}

	if len(previews) == 0 {
		fmt.Fprintln(c.out, "No posts found")
		return nil
	}

	fmt.Fprintf(c.out, "%-38s %-20s %-20s %-7s %s\n", "Post ID", "Author", "Created At", "Likes", "Summary")
	fmt.Fprintln(c.out, strings.Repeat("-", 120))

	for _, p := range previews {
		likes := fmt.Sprintf("%d", p.LikeCount)
		if p.Liked {
			likes += "*"
		}
		fmt.Fprintf(c.out, "%-38s %-20s %-20s %-7s %s\n",
			p.PostID,
			truncate(p.Author, 20),
			p.CreatedAt.Format("2006-01-02 15:04:05"),
			likes,
			truncate(p.ContentSummary, 40),
		)
	}

	if next != "" {
		fmt.Fprintf(c.out, "\nNext page: %s\n", next)
	}
	return nil
}

// Get retrieves and displays a post
func (c *Commands) Get(ctx context.Context, id string) error {
	post, err := c.posts.FetchDetail(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			fmt.Fprintf(c.out, "Post '%s' not found\n", id)
			return nil
		}
		return err
	}

	fmt.Fprintf(c.out, "Post Information:\n")
	fmt.Fprintf(c.out, "ID: %s\n", post.ID)
	fmt.Fprintf(c.out, "Author: %s\n", post.Author.Name)
	fmt.Fprintf(c.out, "Created At: %s\n", post.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(c.out, "Likes: %d (liked: %t)\n", post.LikesCount, post.Liked)
	fmt.Fprintf(c.out, "Shares: %d\n", post.SharedCount)
	fmt.Fprintf(c.out, "Content: %s\n", post.Content)
	for i, a := range post.Attachments {
		fmt.Fprintf(c.out, "Attachment %d: %s (%s)\n", i+1, a.ContentURL, a.Type)
	}
	return nil
}

// Interact applies action to post id and displays the outcome. A local
// persistence failure is reported as a warning since the server accepted
// the change.
func (c *Commands) Interact(ctx context.Context, id string, action domain.Action) error {
	result, err := c.posts.Interact(ctx, id, action)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrLocalPersistence):
		fmt.Fprintf(c.out, "Warning: %v\n", err)
	case errors.Is(err, domain.ErrPostNotFound):
		fmt.Fprintf(c.out, "Post '%s' not found\n", id)
		return nil
	case errors.Is(err, repository.ErrInteractionFailed):
		fmt.Fprintf(c.out, "Post '%s' restored: likes %d (liked: %t)\n", result.PostID, result.LikesCount, result.Liked)
		return err
	default:
		return err
	}

	fmt.Fprintf(c.out, "Post '%s' %s: likes %d (liked: %t)\n", result.PostID, pastTense(action), result.LikesCount, result.Liked)
	return nil
}

// Create publishes a post and displays it
func (c *Commands) Create(ctx context.Context, content string, imageURLs []string) error {
	req := domain.NewPostRequest{Content: content}
	for _, u := range imageURLs {
		req.Attachments = append(req.Attachments, domain.Attachment{ContentURL: u, Type: "image"})
	}

	post, err := c.posts.Create(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Post created:\n")
	fmt.Fprintf(c.out, "ID: %s\n", post.ID)
	fmt.Fprintf(c.out, "Created At: %s\n", post.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(c.out, "Attachments: %d\n", len(post.Attachments))
	return nil
}

// Gallery displays the pinned and recent images
func (c *Commands) Gallery(ctx context.Context) error {
	groups, err := c.media.LoadAllMedia(ctx)
	if err != nil {
		return err
	}
	if len(groups.Pinned)+len(groups.Recents) == 0 {
		fmt.Fprintln(c.out, "No images found")
		return nil
	}

	for _, section := range []struct {
		name  string
		items []domain.Media
	}{
		{"Pinned", groups.Pinned},
		{"Recents", groups.Recents},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Fprintf(c.out, "%s:\n", section.name)
		for _, m := range section.items {
			fmt.Fprintf(c.out, "  %s\n", m.URL)
		}
	}
	return nil
}

// Image downloads url, through the media cache, into path. An empty path
// only reports the size.
func (c *Commands) Image(ctx context.Context, url, path string) error {
	m, err := c.media.FetchImage(ctx, domain.Media{URL: url, Type: domain.MediaRecents})
	if err != nil {
		return err
	}

	if path == "" {
		fmt.Fprintf(c.out, "Image %s: %d bytes\n", url, len(m.Data))
		return nil
	}
	if err := os.WriteFile(path, m.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Fprintf(c.out, "Image %s saved to %s (%d bytes)\n", url, path, len(m.Data))
	return nil
}

// Sweep purges expired records from the local stores
func (c *Commands) Sweep(ctx context.Context) error {
	n, err := repository.Sweep(ctx, c.ttl, c.sweepers...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Removed %d expired records\n", n)
	return nil
}

// ClearCache empties every cache and local store
func (c *Commands) ClearCache(ctx context.Context) error {
	if err := c.posts.Clear(ctx); err != nil {
		return err
	}
	for _, cl := range c.clearers {
		if err := cl.Clear(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.out, "Local data cleared")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func pastTense(a domain.Action) string {
	switch a {
	case domain.ActionLike:
		return "liked"
	case domain.ActionUnlike:
		return "unliked"
	}
	return string(a)
}
