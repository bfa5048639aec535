package client

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

// Interceptor sees every request a Client sends. Adapt may rewrite the
// request once before the first attempt; WillSend and DidReceive observe
// each attempt and must not mutate what they are given. Interceptors take
// no part in retries or error classification.
type Interceptor interface {
	Adapt(ctx context.Context, req *http.Request) (*http.Request, error)
	WillSend(req *http.Request)
	DidReceive(resp *http.Response, body []byte)
}

// InterceptorFuncs builds an Interceptor from optional funcs
type InterceptorFuncs struct {
	AdaptFunc      func(ctx context.Context, req *http.Request) (*http.Request, error)
	WillSendFunc   func(req *http.Request)
	DidReceiveFunc func(resp *http.Response, body []byte)
}

func (f InterceptorFuncs) Adapt(ctx context.Context, req *http.Request) (*http.Request, error) {
	if f.AdaptFunc == nil {
		return req, nil
	}
	return f.AdaptFunc(ctx, req)
}

func (f InterceptorFuncs) WillSend(req *http.Request) {
	if f.WillSendFunc != nil {
		f.WillSendFunc(req)
	}
}

func (f InterceptorFuncs) DidReceive(resp *http.Response, body []byte) {
	if f.DidReceiveFunc != nil {
		f.DidReceiveFunc(resp, body)
	}
}

// HeaderInterceptor sets static headers, such as auth, on every request
type HeaderInterceptor struct {
	Headers map[string]string
}

// NewAuthInterceptor sends token as a bearer Authorization header
func NewAuthInterceptor(token string) *HeaderInterceptor {
	return &HeaderInterceptor{Headers: map[string]string{"Authorization": "Bearer " + token}}
}

func (h *HeaderInterceptor) Adapt(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	for k, v := range h.Headers {
		r.Header.Set(k, v)
	}
	return r, nil
}

func (*HeaderInterceptor) WillSend(*http.Request)            {}
func (*HeaderInterceptor) DidReceive(*http.Response, []byte) {}

const maxLoggedBody = 1024

// LoggingInterceptor logs requests and responses
type LoggingInterceptor struct {
	Logger *log.Logger
}

func (l *LoggingInterceptor) printf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (*LoggingInterceptor) Adapt(_ context.Context, req *http.Request) (*http.Request, error) {
	return req, nil
}

func (l *LoggingInterceptor) WillSend(req *http.Request) {
	headers := make([]string, 0, len(req.Header))
	for k := range req.Header {
		v := req.Header.Get(k)
		if strings.EqualFold(k, "Authorization") {
			v = "[redacted]"
		}
		headers = append(headers, k+"="+v)
	}
	slices.Sort(headers)

	var body string
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			b, _ := io.ReadAll(io.LimitReader(rc, maxLoggedBody))
			rc.Close()
			body = string(b)
		}
	}
	l.printf("[HTTP REQUEST] %s %s headers=%v body=%s", req.Method, req.URL, headers, body)
}

func (l *LoggingInterceptor) DidReceive(resp *http.Response, body []byte) {
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
	}
	l.printf("[HTTP RESPONSE] %d %s body=%s", resp.StatusCode, resp.Request.URL, body)
}

// Fixture request headers understood by the fixture server
const (
	HeaderFixture         = "X-Debug-Fixture"
	HeaderFixtureURL      = "X-Debug-Fixture-URL"
	HeaderFixtureMultiply = "X-Debug-Fixture-Multiply"
)

// FixtureResolver finds the location of a named JSON fixture
type FixtureResolver interface {
	Resolve(name string) (string, bool)
}

// FixtureDir resolves fixtures to <dir>/<name>.json file URLs when the file exists
type FixtureDir string

func (d FixtureDir) Resolve(name string) (string, bool) {
	p := filepath.Join(string(d), name+".json")
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), true
}

// FixturesInterceptor tags feed, detail and interaction requests so the
// fixture server answers them from canned JSON. Requests whose fixture
// cannot be resolved pass through untouched.
type FixturesInterceptor struct {
	Fixtures FixtureResolver

	// FeedMultiplier asks the server to repeat the feed fixture; values
	// below 2 are not sent.
	FeedMultiplier int
}

func (f *FixturesInterceptor) Adapt(ctx context.Context, req *http.Request) (*http.Request, error) {
	if req.URL == nil {
		return req, nil
	}
	path := req.URL.Path

	switch {
	case isInteractionRequest(path, req.Method):
		r := req.Clone(ctx)
		r.Header.Set("Accept", "application/json")
		r.Header.Set(HeaderFixture, "interaction:"+extractPostID(path))
		return r, nil

	case isFeedRequest(path):
		return f.tag(ctx, req, "feed_fixture", f.FeedMultiplier), nil

	case isPostDetailRequest(path):
		return f.tag(ctx, req, "post_detail_"+extractPostID(path), 0), nil
	}
	return req, nil
}

func (f *FixturesInterceptor) tag(ctx context.Context, req *http.Request, name string, multiply int) *http.Request {
	if f.Fixtures == nil {
		return req
	}
	loc, ok := f.Fixtures.Resolve(name)
	if !ok {
		return req
	}
	r := req.Clone(ctx)
	r.Header.Set("Accept", "application/json")
	r.Header.Set(HeaderFixture, "fixture:"+name)
	r.Header.Set(HeaderFixtureURL, loc)
	if multiply > 1 {
		r.Header.Set(HeaderFixtureMultiply, strconv.Itoa(multiply))
	}
	return r
}

func (*FixturesInterceptor) WillSend(*http.Request)            {}
func (*FixturesInterceptor) DidReceive(*http.Response, []byte) {}

func isFeedRequest(path string) bool {
	return strings.Contains(path, "/feed")
}

func isPostDetailRequest(path string) bool {
	return strings.Contains(path, "/posts/") && !strings.Contains(path, "/interact")
}

func isInteractionRequest(path, method string) bool {
	return method == http.MethodPost && strings.Contains(path, "/interact")
}

func extractPostID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	i := slices.Index(parts, "posts")
	if i < 0 || i+1 >= len(parts) || parts[i+1] == "" {
		return "unknown"
	}
	return parts[i+1]
}

// RateLimitInterceptor throttles outgoing requests with a token bucket.
// Adapt blocks until a token is available or ctx is done.
type RateLimitInterceptor struct {
	limiter *rate.Limiter
}

// NewRateLimitInterceptor allows rps requests per second with the given burst
func NewRateLimitInterceptor(rps float64, burst int) *RateLimitInterceptor {
	return &RateLimitInterceptor{limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
}

func (r *RateLimitInterceptor) Adapt(ctx context.Context, req *http.Request) (*http.Request, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (*RateLimitInterceptor) WillSend(*http.Request)            {}
func (*RateLimitInterceptor) DidReceive(*http.Response, []byte) {}

// TracingInterceptor injects the trace context of ctx into request headers
type TracingInterceptor struct {
	// Propagator defaults to the global otel propagator
	Propagator propagation.TextMapPropagator
}

func (t *TracingInterceptor) Adapt(ctx context.Context, req *http.Request) (*http.Request, error) {
	p := t.Propagator
	if p == nil {
		p = otel.GetTextMapPropagator()
	}
	r := req.Clone(ctx)
	p.Inject(ctx, propagation.HeaderCarrier(r.Header))
	return r, nil
}

func (*TracingInterceptor) WillSend(*http.Request)            {}
func (*TracingInterceptor) DidReceive(*http.Response, []byte) {}

var (
	_ Interceptor = InterceptorFuncs{}
	_ Interceptor = (*HeaderInterceptor)(nil)
	_ Interceptor = (*LoggingInterceptor)(nil)
	_ Interceptor = (*FixturesInterceptor)(nil)
	_ Interceptor = (*RateLimitInterceptor)(nil)
	_ Interceptor = (*TracingInterceptor)(nil)
)
