package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joshdurbin/newsfeed/internal/transport/client"

// QueryItem is a single ordered query parameter
type QueryItem struct {
	Name  string
	Value string
}

// Endpoint describes a request relative to the client's base URL
type Endpoint struct {
	Path    string
	Method  string
	Query   []QueryItem
	Headers map[string]string
}

// Get is a GET endpoint
func Get(path string, query ...QueryItem) Endpoint {
	return Endpoint{Path: path, Method: http.MethodGet, Query: query}
}

// Post is a POST endpoint
func Post(path string) Endpoint {
	return Endpoint{Path: path, Method: http.MethodPost}
}

// Config holds the request-building defaults of a Client
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	DefaultHeaders  map[string]string
	AdditionalQuery []QueryItem

	// Encoder and Decoder default to encoding/json
	Encoder func(v any) ([]byte, error)
	Decoder func(data []byte, v any) error

	// Verbose logs every request and response
	Verbose bool
}

// DefaultConfig returns a JSON config for baseURL with a 30s timeout
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
		DefaultHeaders: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
	}
}

// Client sends endpoints through the interceptor chain with retries
type Client struct {
	config       Config
	httpClient   *http.Client
	interceptors []Interceptor
	retryPolicy  RetryPolicy
	metrics      Metrics
	tracer       trace.Tracer
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is
// overwritten by Config.Timeout when that is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInterceptors appends interceptors to the chain, in order
func WithInterceptors(ics ...Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, ics...) }
}

// WithRetryPolicy sets the retry policy. Nil disables transport retries.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retryPolicy = p }
}

// WithMetrics sets the request metrics sink
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider sets the provider used for client spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// NewClient creates a Client. It retries with DefaultRetryPolicy unless
// WithRetryPolicy says otherwise.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Encoder == nil {
		cfg.Encoder = json.Marshal
	}
	if cfg.Decoder == nil {
		cfg.Decoder = json.Unmarshal
	}

	c := &Client{
		config:      cfg,
		httpClient:  &http.Client{},
		retryPolicy: DefaultRetryPolicy(),
		metrics:     NoopMetrics{},
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		sleep:       sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Timeout > 0 {
		c.httpClient.Timeout = cfg.Timeout
	}
	if cfg.Verbose {
		c.interceptors = append(c.interceptors, &LoggingInterceptor{})
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string { return c.config.BaseURL }

// Do sends ep with an optional body and decodes a 2xx response into out.
// A nil body sends no payload; a nil out skips decoding.
func (c *Client) Do(ctx context.Context, ep Endpoint, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = c.config.Encoder(body)
		if err != nil {
			return &Error{Kind: KindEncodingFailed, Err: err}
		}
	}

	data, err := c.execute(ctx, ep, payload)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := c.config.Decoder(data, out); err != nil {
		return &Error{Kind: KindDecodingFailed, Err: err}
	}
	return nil
}

// Send decodes the response of a body-less request into a new Resp
func Send[Resp any](ctx context.Context, c *Client, ep Endpoint) (*Resp, error) {
	var out Resp
	if err := c.Do(ctx, ep, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendBody encodes req as the body and decodes the response into a new Resp
func SendBody[Req, Resp any](ctx context.Context, c *Client, ep Endpoint, req Req) (*Resp, error) {
	var out Resp
	if err := c.Do(ctx, ep, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendNoContent sends ep with an optional body and ignores the response body
func SendNoContent(ctx context.Context, c *Client, ep Endpoint, body any) error {
	return c.Do(ctx, ep, body, nil)
}

func (c *Client) buildRequest(ctx context.Context, ep Endpoint, payload []byte) (*http.Request, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{Kind: KindInvalidURL, Err: fmt.Errorf("base URL %q", c.config.BaseURL)}
	}

	u := base.JoinPath(strings.TrimPrefix(ep.Path, "/"))
	u.RawQuery = encodeQuery(base.RawQuery, c.config.AdditionalQuery, ep.Query)

	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Err: err}
	}

	for k, v := range c.config.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func encodeQuery(raw string, groups ...[]QueryItem) string {
	var parts []string
	if raw != "" {
		parts = append(parts, raw)
	}
	for _, items := range groups {
		for _, q := range items {
			parts = append(parts, url.QueryEscape(q.Name)+"="+url.QueryEscape(q.Value))
		}
	}
	return strings.Join(parts, "&")
}

func (c *Client) execute(ctx context.Context, ep Endpoint, payload []byte) ([]byte, error) {
	req, err := c.buildRequest(ctx, ep, payload)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
	)
	req = req.WithContext(ctx)

	for _, ic := range c.interceptors {
		req, err = ic.Adapt(ctx, req)
		if err != nil {
			herr := classify(ctx, err)
			recordSpan(span, 0, 0, herr)
			return nil, herr
		}
	}

	for attempt := 1; ; attempt++ {
		status, data, err := c.attempt(ctx, req)
		if err == nil {
			recordSpan(span, status, attempt, nil)
			return data, nil
		}

		delay, ok := c.retryDelay(err, attempt)
		if !ok {
			recordSpan(span, status, attempt, err)
			return nil, err
		}

		c.metrics.Retry(req.Method, attempt)
		if c.config.Verbose {
			log.Printf("[HTTP RETRY] %s %s attempt %d failed: %v; retrying in %s", req.Method, req.URL, attempt, err, delay)
		}
		if err := c.sleep(ctx, delay); err != nil {
			cerr := &Error{Kind: KindCancelled, Err: err}
			recordSpan(span, status, attempt, cerr)
			return nil, cerr
		}
	}
}

func (c *Client) attempt(ctx context.Context, req *http.Request) (int, []byte, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return 0, nil, &Error{Kind: KindEncodingFailed, Err: err}
		}
		r.Body = body
	}

	for _, ic := range c.interceptors {
		ic.WillSend(r)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(r)
	if err != nil {
		c.metrics.Request(r.Method, 0, time.Since(start))
		return 0, nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.Request(r.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp.StatusCode, nil, classify(ctx, err)
	}

	for _, ic := range c.interceptors {
		ic.DidReceive(resp, data)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, data, &Error{Kind: KindRequestFailed, StatusCode: resp.StatusCode, Body: data}
	}
	return resp.StatusCode, data, nil
}

func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	if c.retryPolicy == nil || errors.Is(err, ErrCancelled) {
		return 0, false
	}
	return c.retryPolicy.RetryDelay(err, attempt)
}

// classify maps a send failure onto the error taxonomy. The caller's context
// being done means cancellation; anything else from the round trip,
// per-request timeouts included, is a network error.
func classify(ctx context.Context, err error) error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindCancelled, Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

func recordSpan(span trace.Span, status, attempts int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if attempts > 0 {
		span.SetAttributes(attribute.Int("http.request.resend_count", attempts-1))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
