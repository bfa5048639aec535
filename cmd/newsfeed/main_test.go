package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/newsfeed/internal/config"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	clientFlags(fs)
	serverFlags(fs)
	return fs
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		assert func(*testing.T, *config.Config)
	}{
		{
			name: "unset flags keep defaults",
			args: nil,
			assert: func(t *testing.T, c *config.Config) {
				assert.Equal(t, config.Default(), c)
			},
		},
		{
			name: "client flags",
			args: []string{"--api-url", "http://feed.test", "--store", "redis", "--redis-addr", "r:6379", "--rate-limit", "2.5", "--ttl", "1h", "-v"},
			assert: func(t *testing.T, c *config.Config) {
				assert.Equal(t, "http://feed.test", c.API.BaseURL)
				assert.Equal(t, config.BackendRedis, c.Store.Backend)
				assert.Equal(t, "r:6379", c.Store.RedisAddr)
				assert.Equal(t, 2.5, c.API.RateLimit)
				assert.Equal(t, time.Hour, c.Store.TTL)
				assert.True(t, c.Logging.Verbose)
			},
		},
		{
			name: "server flags",
			args: []string{"--port", "9090", "--posts", "5", "--fail-rate", "0.25", "--latency", "50ms"},
			assert: func(t *testing.T, c *config.Config) {
				assert.Equal(t, "9090", c.Server.Port)
				assert.Equal(t, 5, c.Server.Posts)
				assert.Equal(t, 0.25, c.Server.FailRate)
				assert.Equal(t, 50*time.Millisecond, c.Server.Latency)
			},
		},
		{
			name: "explicit zero overrides",
			args: []string{"--ttl", "0s"},
			assert: func(t *testing.T, c *config.Config) {
				assert.Zero(t, c.Store.TTL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testFlags()
			require.NoError(t, fs.Parse(tt.args))

			c := config.Default()
			applyFlags(c, fs)
			tt.assert(t, c)
		})
	}
}

func TestInterceptors(t *testing.T) {
	api := config.Default().API
	assert.Len(t, interceptors(api), 1)

	api.AuthToken = "secret"
	api.Fixtures = true
	api.RateLimit = 10
	assert.Len(t, interceptors(api), 4)
}
