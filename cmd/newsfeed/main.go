package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joshdurbin/newsfeed/internal/config"
	"github.com/joshdurbin/newsfeed/internal/domain"
	"github.com/joshdurbin/newsfeed/internal/service"
	"github.com/joshdurbin/newsfeed/internal/telemetry"
	httpTransport "github.com/joshdurbin/newsfeed/internal/transport/http"
)

var (
	cfg               *config.Config
	shutdownTelemetry = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:               "newsfeed",
	Short:             "A news feed client with an offline-first cache",
	Long:              "A news feed client that reads through memory and a local store before the network, and applies likes and shares optimistically",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fixture feed server",
	RunE:  runServe,
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List the feed",
	RunE:  runFeed,
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post commands",
}

var postGetCmd = &cobra.Command{
	Use:   "get [POST_ID]",
	Short: "Show a post",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostGet,
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a post",
	RunE:  runPostCreate,
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Image gallery commands",
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the gallery",
	RunE:  runImageList,
}

var imageGetCmd = &cobra.Command{
	Use:   "get [URL]",
	Short: "Download an image through the media cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runImageGet,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Local cache maintenance",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired records from the local store",
	RunE:  runCacheSweep,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove everything from the local store",
	RunE:  runCacheClear,
}

func interactCmd(use, short string, action domain.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [POST_ID]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.commands().Interact(ctx, args[0], action)
			})
		},
	}
}

// clientFlags override NEWSFEED_* environment variables
func clientFlags(pf *pflag.FlagSet) {
	pf.StringP("api-url", "u", "", "Feed API base URL")
	pf.String("token", "", "Bearer token sent with every request")
	pf.String("store", "", "Local store backend (sqlite or redis)")
	pf.String("db-path", "", "SQLite database file path")
	pf.String("redis-addr", "", "Redis address for the redis store")
	pf.Duration("ttl", 0, "How long stored records stay fresh")
	pf.Float64("rate-limit", 0, "Maximum requests per second, 0 for unlimited")
	pf.Bool("fixtures", false, "Route requests to named server fixtures")
	pf.String("fixture-dir", "", "Directory holding client fixtures")
	pf.Bool("serialize-interactions", false, "Run interactions on the same post one at a time")
	pf.String("metrics-file", "", "Write client metrics to this file on exit")
	pf.BoolP("verbose", "v", false, "Enable verbose logging (HTTP requests/responses and retries)")
}

func serverFlags(f *pflag.FlagSet) {
	f.StringP("port", "p", "", "Server port")
	f.Int("posts", 0, "Number of generated posts")
	f.Int("page-size", 0, "Posts per feed page")
	f.String("server-fixture-dir", "", "Directory the server may read fixtures from")
	f.Float64("fail-rate", 0, "Fraction of requests answered with --fail-status")
	f.Int("fail-status", 0, "Status code of injected failures")
	f.Duration("latency", 0, "Delay added to every request")
}

func init() {
	clientFlags(rootCmd.PersistentFlags())
	serverFlags(serveCmd.Flags())

	feedCmd.Flags().String("page", "", "Fetch this remote page token instead of the stored feed")

	postCreateCmd.Flags().String("content", "", "Post text")
	postCreateCmd.Flags().StringSlice("image", nil, "Attachment image URL, repeatable")
	postCreateCmd.MarkFlagRequired("content")

	imageGetCmd.Flags().StringP("out", "o", "", "Write the image to this file")

	postCmd.AddCommand(
		postGetCmd,
		postCreateCmd,
		interactCmd("like", "Like a post", domain.ActionLike),
		interactCmd("unlike", "Remove a like", domain.ActionUnlike),
		interactCmd("share", "Share a post", domain.ActionShare),
		interactCmd("bookmark", "Bookmark a post", domain.ActionBookmark),
	)
	imageCmd.AddCommand(imageListCmd, imageGetCmd)
	cacheCmd.AddCommand(cacheSweepCmd, cacheClearCmd)
	rootCmd.AddCommand(serveCmd, feedCmd, postCmd, imageCmd, cacheCmd)
}

// setup loads the configuration, applies flags and starts telemetry
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(c, cmd.Flags())
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c

	shutdown, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return err
	}
	shutdownTelemetry = shutdown
	return nil
}

// applyFlags overrides cfg with the flags set on the command line
func applyFlags(c *config.Config, flags *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}

	set("api-url", func() { c.API.BaseURL, _ = flags.GetString("api-url") })
	set("token", func() { c.API.AuthToken, _ = flags.GetString("token") })
	set("store", func() { c.Store.Backend, _ = flags.GetString("store") })
	set("db-path", func() { c.Store.Path, _ = flags.GetString("db-path") })
	set("redis-addr", func() { c.Store.RedisAddr, _ = flags.GetString("redis-addr") })
	set("ttl", func() { c.Store.TTL, _ = flags.GetDuration("ttl") })
	set("rate-limit", func() { c.API.RateLimit, _ = flags.GetFloat64("rate-limit") })
	set("fixtures", func() { c.API.Fixtures, _ = flags.GetBool("fixtures") })
	set("fixture-dir", func() { c.API.FixtureDir, _ = flags.GetString("fixture-dir") })
	set("serialize-interactions", func() { c.Cache.SerializeInteractions, _ = flags.GetBool("serialize-interactions") })
	set("verbose", func() { c.Logging.Verbose, _ = flags.GetBool("verbose") })

	set("port", func() { c.Server.Port, _ = flags.GetString("port") })
	set("posts", func() { c.Server.Posts, _ = flags.GetInt("posts") })
	set("page-size", func() { c.Server.PageSize, _ = flags.GetInt("page-size") })
	set("server-fixture-dir", func() { c.Server.FixtureDir, _ = flags.GetString("server-fixture-dir") })
	set("fail-rate", func() { c.Server.FailRate, _ = flags.GetFloat64("fail-rate") })
	set("fail-status", func() { c.Server.FailStatus, _ = flags.GetInt("fail-status") })
	set("latency", func() { c.Server.Latency, _ = flags.GetDuration("latency") })
}

// withApp wires the client, runs fn and tears everything down
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	err = fn(ctx, a)
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	a.writeMetrics(metricsFile)
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Printf("Starting fixture server with config: port=%s posts=%d page-size=%d fail-rate=%.2f",
		cfg.Server.Port, cfg.Server.Posts, cfg.Server.PageSize, cfg.Server.FailRate)

	feed := service.NewFeed(service.Options{
		BaseURL:  "http://localhost:" + cfg.Server.Port,
		Posts:    cfg.Server.Posts,
		PageSize: cfg.Server.PageSize,
	})
	server := httpTransport.NewServer(feed, cfg.Server, cfg.Logging.Verbose, prometheus.NewRegistry())

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-cmd.Context().Done():
		log.Printf("Received signal, shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Error during server shutdown: %v", err)
		}
	}

	log.Println("Server stopped")
	return nil
}

func runFeed(cmd *cobra.Command, args []string) error {
	page, _ := cmd.Flags().GetString("page")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Feed(ctx, page)
	})
}

func runPostGet(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Get(ctx, args[0])
	})
}

func runPostCreate(cmd *cobra.Command, args []string) error {
	content, _ := cmd.Flags().GetString("content")
	images, _ := cmd.Flags().GetStringSlice("image")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Create(ctx, content, images)
	})
}

func runImageList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Gallery(ctx)
	})
}

func runImageGet(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Image(ctx, args[0], out)
	})
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().Sweep(ctx)
	})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.commands().ClearCache(ctx)
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdownTelemetry(shutdownCtx); serr != nil {
		log.Printf("[ERROR] Failed to flush traces: %v", serr)
	}
	cancel()

	if err != nil {
		log.Fatal(err)
	}
}
