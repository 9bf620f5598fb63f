package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 8 << 20

// Client performs reads against the backend REST API.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	header   http.Header
	username string
	password string
	logger   *zap.Logger
	flights  singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// WithBasicAuth authenticates every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		header:  http.Header{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL resolves req against the base URL.
func (c *Client) URL(req Request) (string, error) {
	path, err := req.Path()
	if err != nil {
		return "", err
	}
	u := *c.baseURL
	escaped := c.baseURL.EscapedPath() + "/" + strings.TrimLeft(path, "/")
	if u.Path, err = url.PathUnescape(escaped); err != nil {
		return "", &Error{Kind: KindConfiguration, Op: "expand", URL: req.Endpoint, Err: err}
	}
	u.RawPath = escaped
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String(), nil
}

// Get performs req and normalizes the response envelope.
func (c *Client) Get(ctx context.Context, req Request) (*Envelope, error) {
	target, err := c.URL(req)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, target)
}

// get shares one HTTP call between concurrent callers of the same URL. A
// caller whose context is canceled returns ErrCanceled at once; the shared
// call keeps running for the others and its result is ignored by the
// canceled caller.
func (c *Client) get(ctx context.Context, target string) (*Envelope, error) {
	ch := c.flights.DoChan(target, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithDeadline(callCtx, deadline)
			defer cancel()
		}
		return c.do(callCtx, target)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %s", ErrCanceled, target)
		}
		return nil, &Error{Kind: KindNetwork, Op: "get", URL: target, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Envelope), nil
	}
}

func (c *Client) do(ctx context.Context, target string) (*Envelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: "get", URL: target, Err: err}
	}
	for k, values := range c.header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("resource request failed", zap.String("url", target), zap.Error(err))
		return nil, &Error{Kind: KindNetwork, Op: "get", URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: "read", URL: target, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("resource request",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindNetwork, Op: "get", URL: target, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode", URL: target, Status: resp.StatusCode, Err: err}
	}
	return env, nil
}

// Fetch performs req and decodes the normalized items into T.
func Fetch[T any](ctx context.Context, c *Client, req Request) ([]T, error) {
	env, err := c.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := Decode[T](env)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode", URL: req.Endpoint, Err: err}
	}
	return items, nil
}

// FetchAll follows "next" links until the last page or limit items. A limit
// of zero means no limit.
func FetchAll[T any](ctx context.Context, c *Client, req Request, limit int) ([]T, error) {
	env, err := c.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	var out []T
	for {
		items, err := Decode[T](env)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Op: "decode", URL: req.Endpoint, Err: err}
		}
		out = append(out, items...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if env.Next == "" {
			break
		}
		next, err := c.resolve(env.Next)
		if err != nil {
			return nil, err
		}
		if env, err = c.get(ctx, next); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// resolve keeps pagination on the configured host.
func (c *Client) resolve(next string) (string, error) {
	u, err := c.baseURL.Parse(next)
	if err != nil {
		return "", &Error{Kind: KindDecode, Op: "paginate", URL: next, Err: err}
	}
	if u.Host != c.baseURL.Host {
		return "", &Error{Kind: KindDecode, Op: "paginate", URL: next, Err: fmt.Errorf("next link leaves %s", c.baseURL.Host)}
	}
	return u.String(), nil
}

// FetchOne performs req and decodes the record. A body without a record
// falls back to the first item; with neither, ok is false.
func FetchOne[T any](ctx context.Context, c *Client, req Request) (v T, ok bool, err error) {
	env, err := c.Get(ctx, req)
	if err != nil {
		return v, false, err
	}
	raw := env.Record
	if raw == nil && len(env.Items) > 0 {
		raw = env.Items[0]
	}
	if raw == nil {
		return v, false, nil
	}
	items, err := Decode[T](&Envelope{Items: append(env.Items[:0:0], raw)})
	if err != nil {
		return v, false, &Error{Kind: KindDecode, Op: "decode", URL: req.Endpoint, Err: err}
	}
	return items[0], true, nil
}
