package swr

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openhis/slotkit/internal/resource"
)

type reply struct {
	data any
	err  error
}

type call struct {
	key   string
	ctx   context.Context
	reply chan reply
}

func (c *call) resolve(data any) { c.reply <- reply{data: data} }

func (c *call) fail(err error) { c.reply <- reply{err: err} }

// gate hands every fetch to the test, which decides when and how it ends.
type gate struct {
	calls chan *call
}

func newGate() *gate {
	return &gate{calls: make(chan *call, 16)}
}

func (g *gate) fetcher(key string) Fetcher {
	return func(ctx context.Context) (any, error) {
		c := &call{key: key, ctx: ctx, reply: make(chan reply, 1)}
		g.calls <- c
		select {
		case r := <-c.reply:
			return r.data, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", resource.ErrCanceled, key)
		}
	}
}

// stubborn is like fetcher but ignores cancellation, as a backend call that
// is already on the wire does.
func (g *gate) stubborn(key string) Fetcher {
	return func(ctx context.Context) (any, error) {
		c := &call{key: key, ctx: ctx, reply: make(chan reply, 1)}
		g.calls <- c
		r := <-c.reply
		return r.data, r.err
	}
}

func (g *gate) typed(ctx context.Context, key string) (string, error) {
	v, err := g.fetcher(key)(ctx)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *gate) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return nil
	}
}

func (g *gate) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected fetch for %s", c.key)
	case <-time.After(50 * time.Millisecond):
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func withClock(c *testClock) Option {
	return func(s *Store) { s.now = c.Now }
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := NewStore(append([]Option{WithSweepInterval(time.Hour)}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

// recorder collects listener deliveries.
type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) listen(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *recorder) data() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, res := range r.results {
		if res.Data != nil {
			out = append(out, res.Data)
		}
	}
	return out
}

func (r *recorder) last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return Result{}, false
	}
	return r.results[len(r.results)-1], true
}
