package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshdurbin/newsfeed/internal/cache/prom"
	"github.com/joshdurbin/newsfeed/internal/cli"
	"github.com/joshdurbin/newsfeed/internal/config"
	"github.com/joshdurbin/newsfeed/internal/datasource/remote"
	"github.com/joshdurbin/newsfeed/internal/repository"
	"github.com/joshdurbin/newsfeed/internal/store"
	redisstore "github.com/joshdurbin/newsfeed/internal/store/redis"
	"github.com/joshdurbin/newsfeed/internal/store/sqlite"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

const metricsNamespace = "newsfeed"

// app is the client side wiring: transport, data sources, stores and
// repositories
type app struct {
	cfg        *config.Config
	reg        *prometheus.Registry
	local      store.LocalStore
	mediaStore store.MediaStore
	posts      *repository.PostRepo
	media      *repository.MediaRepo
	janitor    *repository.Janitor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	local, mediaStore, err := openStores(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	remoteOpts := []remote.Option{
		remote.WithRetry(cfg.RetryPolicy()),
		remote.WithRetryStatusCodes(cfg.Retry.StatusCodes),
		remote.WithRetryLogging(cfg.Logging.Verbose),
	}

	// operation level retries live in the data sources
	c := client.NewClient(clientConfig(cfg.API, cfg.Logging.Verbose),
		client.WithRetryPolicy(nil),
		client.WithInterceptors(interceptors(cfg.API)...),
		client.WithMetrics(client.NewPromMetrics(reg, metricsNamespace)),
	)

	posts := repository.NewPostRepo(
		remote.NewPostDataSource(c, remoteOpts...),
		local,
		cfg.PostOptions(
			prom.New(reg, metricsNamespace, "details"),
			prom.New(reg, metricsNamespace, "pages"),
		),
	)

	media := repository.NewMediaRepo(
		remote.NewMediaDataSource(&http.Client{Timeout: cfg.API.Timeout}, remoteOpts...),
		mediaStore,
		repository.FeedURLs{Posts: posts},
		cfg.MediaOptions(prom.New(reg, metricsNamespace, "media")),
	)

	a := &app{
		cfg:        cfg,
		reg:        reg,
		local:      local,
		mediaStore: mediaStore,
		posts:      posts,
		media:      media,
		janitor:    repository.NewJanitor(cfg.Store.TTL, local, mediaStore),
	}

	if cfg.Cache.SweepInterval > 0 && cfg.Store.TTL > 0 {
		if err := a.janitor.Start(ctx, cfg.Cache.SweepInterval); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start sweeper: %w", err)
		}
	}
	return a, nil
}

func (a *app) commands() *cli.Commands {
	return cli.NewCommands(a.posts, a.media, nil,
		cli.WithSweepers(a.cfg.Store.TTL, a.local, a.mediaStore),
		cli.WithClearers(a.media),
	)
}

// Close stops the sweeper and closes the stores
func (a *app) Close() {
	a.janitor.Stop()
	a.posts.Close()
	if err := a.mediaStore.Close(); err != nil {
		log.Printf("[ERROR] Error closing media store: %v", err)
	}
	if err := a.local.Close(); err != nil {
		log.Printf("[ERROR] Error closing local store: %v", err)
	}
}

// writeMetrics dumps the client metrics in the Prometheus text format
func (a *app) writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, a.reg); err != nil {
		log.Printf("[ERROR] Failed to write metrics to %s: %v", path, err)
	}
}

func openStores(ctx context.Context, cfg config.StoreConfig) (store.LocalStore, store.MediaStore, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		s := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return s, s.Media(), nil
	default:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Media(), nil
	}
}

func clientConfig(api config.APIConfig, verbose bool) client.Config {
	cfg := client.DefaultConfig(api.BaseURL)
	cfg.Timeout = api.Timeout
	cfg.Verbose = verbose
	return cfg
}

func interceptors(api config.APIConfig) []client.Interceptor {
	ics := []client.Interceptor{&client.TracingInterceptor{}}
	if api.AuthToken != "" {
		ics = append(ics, client.NewAuthInterceptor(api.AuthToken))
	}
	if api.Fixtures {
		ics = append(ics, &client.FixturesInterceptor{
			Fixtures:       client.FixtureDir(api.FixtureDir),
			FeedMultiplier: api.FeedMultiplier,
		})
	}
	if api.RateLimit > 0 {
		ics = append(ics, client.NewRateLimitInterceptor(api.RateLimit, api.RateBurst))
	}
	return ics
}
