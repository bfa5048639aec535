package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/joshdurbin/newsfeed/internal/retry"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// ErrNoData is returned when an image download succeeds with an empty body
var ErrNoData = errors.New("empty media response")

// MediaRemote downloads image bytes
type MediaRemote interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// MediaDataSource downloads absolute image URLs with retries
type MediaDataSource struct {
	httpClient *http.Client
	opts       options
}

// NewMediaDataSource creates a MediaDataSource; a nil hc uses http.DefaultClient
func NewMediaDataSource(hc *http.Client, opts ...Option) *MediaDataSource {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &MediaDataSource{httpClient: hc, opts: newOptions(opts)}
}

// Download fetches url. Non-2xx responses and empty bodies are errors.
func (d *MediaDataSource) Download(ctx context.Context, url string) ([]byte, error) {
	opts := d.opts.retryOptions("download " + url)
	opts = append(opts, retry.WithShouldRetry(func(err error, attempt int) bool {
		return errors.Is(err, ErrNoData) || d.opts.shouldRetry(err, attempt)
	}))

	data, err := retry.Do(ctx, d.opts.retry, func(ctx context.Context) ([]byte, error) {
		return d.download(ctx, url)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	return data, nil
}

func (d *MediaDataSource) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &client.Error{Kind: client.KindInvalidURL, Err: err}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &client.Error{Kind: client.KindCancelled, Err: ctxErr}
		}
		return nil, &client.Error{Kind: client.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &client.Error{Kind: client.KindNetwork, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &client.Error{Kind: client.KindRequestFailed, StatusCode: resp.StatusCode, Body: data}
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}
	return data, nil
}

var _ MediaRemote = (*MediaDataSource)(nil)
