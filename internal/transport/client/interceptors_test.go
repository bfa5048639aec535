package client

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type staticFixtures map[string]string

func (s staticFixtures) Resolve(name string) (string, bool) {
	loc, ok := s[name]
	return loc, ok
}

func newRequest(t *testing.T, method, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, rawURL, nil)
	require.NoError(t, err)
	return req
}

func TestFixturesInterceptor_Adapt(t *testing.T) {
	fixtures := staticFixtures{
		"feed_fixture":      "file:///feed_fixture.json",
		"post_detail_p_1":   "file:///post_detail_p_1.json",
		"post_detail_p_123": "file:///post_detail_p_123.json",
	}

	tests := []struct {
		name         string
		method       string
		url          string
		fixtures     FixtureResolver
		wantFixture  string
		wantURL      string
		wantMultiply string
	}{
		{
			name:         "feed request",
			method:       http.MethodGet,
			url:          "https://api.example.com/feed",
			fixtures:     fixtures,
			wantFixture:  "fixture:feed_fixture",
			wantURL:      "file:///feed_fixture.json",
			wantMultiply: "100",
		},
		{
			name:     "feed request without fixture",
			method:   http.MethodGet,
			url:      "https://api.example.com/feed",
			fixtures: staticFixtures{},
		},
		{
			name:        "post detail request",
			method:      http.MethodGet,
			url:         "https://api.example.com/posts/p_1",
			fixtures:    fixtures,
			wantFixture: "fixture:post_detail_p_1",
			wantURL:     "file:///post_detail_p_1.json",
		},
		{
			name:        "post detail extracts id",
			method:      http.MethodGet,
			url:         "https://api.example.com/posts/p_123",
			fixtures:    fixtures,
			wantFixture: "fixture:post_detail_p_123",
			wantURL:     "file:///post_detail_p_123.json",
		},
		{
			name:     "post detail without fixture",
			method:   http.MethodGet,
			url:      "https://api.example.com/posts/p_9",
			fixtures: fixtures,
		},
		{
			name:        "interaction request",
			method:      http.MethodPost,
			url:         "https://api.example.com/posts/p_456/interact",
			fixtures:    fixtures,
			wantFixture: "interaction:p_456",
		},
		{
			name:     "interaction path with GET is untouched",
			method:   http.MethodGet,
			url:      "https://api.example.com/posts/p_456/interact",
			fixtures: fixtures,
		},
		{
			name:     "non matching request",
			method:   http.MethodGet,
			url:      "https://api.example.com/users/profile",
			fixtures: fixtures,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := &FixturesInterceptor{Fixtures: tt.fixtures, FeedMultiplier: 100}
			req := newRequest(t, tt.method, tt.url)

			got, err := ic.Adapt(t.Context(), req)
			require.NoError(t, err)

			assert.Equal(t, tt.url, got.URL.String())
			assert.Equal(t, tt.wantFixture, got.Header.Get(HeaderFixture))
			assert.Equal(t, tt.wantURL, got.Header.Get(HeaderFixtureURL))
			assert.Equal(t, tt.wantMultiply, got.Header.Get(HeaderFixtureMultiply))
			if tt.wantFixture != "" {
				assert.Equal(t, "application/json", got.Header.Get("Accept"))
			}
			assert.Empty(t, req.Header.Get(HeaderFixture), "original request must not be mutated")
		})
	}
}

func TestExtractPostID(t *testing.T) {
	assert.Equal(t, "p_123", extractPostID("/posts/p_123"))
	assert.Equal(t, "p_456", extractPostID("/posts/p_456/interact"))
	assert.Equal(t, "unknown", extractPostID("/posts"))
	assert.Equal(t, "unknown", extractPostID("/posts/"))
}

func TestRequestTypeDetection(t *testing.T) {
	assert.True(t, isFeedRequest("/feed"))
	assert.False(t, isFeedRequest("/posts"))
	assert.True(t, isPostDetailRequest("/posts/p_1"))
	assert.False(t, isPostDetailRequest("/posts/p_1/interact"))
	assert.True(t, isInteractionRequest("/posts/p_1/interact", http.MethodPost))
	assert.False(t, isInteractionRequest("/posts/p_1/interact", http.MethodGet))
}

func TestFixtureDir_Resolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed_fixture.json"), []byte(`{"feed":[]}`), 0o644))

	loc, ok := FixtureDir(dir).Resolve("feed_fixture")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(loc, "file://"))
	assert.True(t, strings.HasSuffix(loc, "/feed_fixture.json"))

	_, ok = FixtureDir(dir).Resolve("post_detail_p_1")
	assert.False(t, ok)
}

func TestHeaderInterceptor(t *testing.T) {
	ic := NewAuthInterceptor("secret")
	req := newRequest(t, http.MethodGet, "https://api.example.com/feed")

	got, err := ic.Adapt(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	ic := &LoggingInterceptor{Logger: log.New(&buf, "", 0)}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "https://api.example.com/posts", strings.NewReader(`{"id":"p_1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")

	ic.WillSend(req)
	ic.DidReceive(&http.Response{StatusCode: http.StatusCreated, Request: req}, []byte(`{"ok":true}`))

	out := buf.String()
	assert.Contains(t, out, "[HTTP REQUEST] POST https://api.example.com/posts")
	assert.Contains(t, out, `body={"id":"p_1"}`)
	assert.Contains(t, out, "Authorization=[redacted]")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, `[HTTP RESPONSE] 201 https://api.example.com/posts body={"ok":true}`)
}

func TestRateLimitInterceptor(t *testing.T) {
	ic := NewRateLimitInterceptor(1, 1)
	req := newRequest(t, http.MethodGet, "https://api.example.com/feed")

	_, err := ic.Adapt(t.Context(), req)
	require.NoError(t, err)

	// the bucket is empty, so the next call has to wait longer than the deadline allows
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = ic.Adapt(ctx, req)
	assert.Error(t, err)
}

func TestTracingInterceptor_InjectsTraceContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(t.Context(), sc)

	ic := &TracingInterceptor{Propagator: propagation.TraceContext{}}
	req := newRequest(t, http.MethodGet, "https://api.example.com/feed")

	got, err := ic.Adapt(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", got.Header.Get("traceparent"))
}
