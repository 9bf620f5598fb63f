// Package swr binds remote resources to their consumers with
// stale-while-revalidate semantics.
//
// A Store keeps one entry per cache key. Subscribing to a key returns the
// last known result immediately and, when the entry is missing or stale,
// issues one fetch for it. Further subscriptions attach to the request that
// is already in flight. Results are committed in issuance order: a response
// from an older request never replaces the result of a newer one. Results
// that arrive after every subscriber has left are discarded.
package swr

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/web/cache"
)

// Fetcher performs the remote read for one key.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives committed results in commit order.
type Listener func(Result)

// Result is the state of a key as seen by its subscribers.
type Result struct {
	Key       string
	Data      any
	Err       error
	IsLoading bool
	UpdatedAt time.Time
}

// HasData reports whether the result carries data.
func (r Result) HasData() bool {
	return r.Data != nil
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Entries     int `json:"entries"`
	InFlight    int `json:"in_flight"`
	Subscribers int `json:"subscribers"`
}

type entry struct {
	key       string
	result    Result
	fetchedAt time.Time
	lastUsed  time.Time

	issued    uint64
	committed uint64
	inflight  bool
	abort     context.CancelFunc

	version uint64
	subs    map[*Subscription]struct{}
}

func (e *entry) stale(now time.Time, freshFor time.Duration) bool {
	return e.fetchedAt.IsZero() || now.Sub(e.fetchedAt) >= freshFor
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	freshFor   time.Duration
	retainFor  time.Duration
	sweepEvery time.Duration
	backing    cache.Cache
	backingTTL time.Duration
	abortIdle  bool
	logger     *zap.Logger
	now        func() time.Time

	events *dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithFreshFor sets how long a committed result is served without
// revalidation. Zero revalidates on every new subscription.
func WithFreshFor(d time.Duration) Option {
	return func(s *Store) { s.freshFor = d }
}

// WithRetainFor sets how long an entry without subscribers is kept.
func WithRetainFor(d time.Duration) Option {
	return func(s *Store) { s.retainFor = d }
}

// WithSweepInterval sets how often idle entries are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepEvery = d }
}

// WithBacking persists last-known-good data so new entries start from it.
func WithBacking(c cache.Cache, ttl time.Duration) Option {
	return func(s *Store) {
		s.backing = c
		s.backingTTL = ttl
	}
}

// WithAbortIdle cancels the in-flight request of a key once its last
// subscriber leaves. When false the request completes and its result is
// dropped.
func WithAbortIdle(abort bool) Option {
	return func(s *Store) { s.abortIdle = abort }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store and starts its dispatcher and janitor.
func NewStore(opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		entries:    make(map[string]*entry),
		freshFor:   2 * time.Second,
		retainFor:  5 * time.Minute,
		sweepEvery: time.Minute,
		abortIdle:  true,
		logger:     zap.NewNop(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = newDispatcher()

	s.wg.Add(1)
	go s.janitor()

	return s
}

// Subscribe registers interest in key. The returned subscription reports the
// current result at once; listener, when non-nil, receives every later
// commit. An empty key subscribes to nothing and never fetches.
func (s *Store) Subscribe(key string, fetch Fetcher, listener Listener) *Subscription {
	sub := newSubscription(s, key, listener)
	if key == "" {
		return sub
	}

	seed, seeded := s.seed(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.closed = true
		return sub
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key, subs: make(map[*Subscription]struct{})}
		e.result.Key = key
		if seeded {
			e.result.Data = seed
		}
		s.entries[key] = e
	}
	e.lastUsed = s.now()

	issue := fetch != nil && !e.inflight && e.stale(s.now(), s.freshFor)
	sub.fetch = fetch
	// The subscriber reads its initial state from Result, so the loading
	// transition caused by its own subscription is not delivered to it.
	sub.version = e.version
	if issue {
		sub.version++
	}
	e.subs[sub] = struct{}{}

	if issue {
		s.issueLocked(e, fetch)
	}
	return sub
}

// seed loads the persisted data of key when the store has no entry for it.
func (s *Store) seed(key string) (any, bool) {
	if s.backing == nil {
		return nil, false
	}
	s.mu.Lock()
	_, exists := s.entries[key]
	s.mu.Unlock()
	if exists {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()

	var raw json.RawMessage
	if err := cache.GetJSON(ctx, s.backing, cache.StorageKey(key), &raw); err != nil {
		if !cache.IsCacheMiss(err) {
			s.logger.Warn("seed from backing cache failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return raw, true
}

// issueLocked starts a new request for e, aborting the one it supersedes.
// The caller holds s.mu.
func (s *Store) issueLocked(e *entry, fetch Fetcher) {
	if fetch == nil {
		return
	}
	e.abortLocked()
	e.issued++
	gen := e.issued

	ctx, cancel := context.WithCancel(s.ctx)
	e.abort = cancel
	e.inflight = true
	e.result.IsLoading = true
	s.bumpLocked(e)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		data, err := fetch(ctx)
		s.commit(e, gen, data, err)
	}()
}

// abortLocked cancels the in-flight request of e, if any.
func (e *entry) abortLocked() {
	if e.abort != nil {
		e.abort()
		e.abort = nil
	}
	e.inflight = false
}

// commit applies the outcome of request gen of e. Generations are only
// comparable within one entry, so results for an evicted entry are dropped.
func (s *Store) commit(e *entry, gen uint64, data any, err error) {
	key := e.key
	s.mu.Lock()
	if s.entries[key] != e || gen <= e.committed {
		s.mu.Unlock()
		return
	}
	current := gen == e.issued
	if current {
		e.inflight = false
		e.abort = nil
	}

	switch {
	case resource.IsCanceled(err) || errors.Is(err, context.Canceled):
		if current && e.result.IsLoading {
			e.result.IsLoading = false
			s.bumpLocked(e)
		}
		s.mu.Unlock()
		return
	case len(e.subs) == 0:
		e.result.IsLoading = e.inflight
		s.mu.Unlock()
		s.logger.Debug("dropping result without subscribers", zap.String("key", key))
		return
	}

	now := s.now()
	e.committed = gen
	e.result.IsLoading = e.inflight
	e.result.Err = err
	if err == nil {
		e.result.Data = data
		e.result.UpdatedAt = now
		e.fetchedAt = now
	}
	s.bumpLocked(e)
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("resource fetch failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.persist(key, data)
}

// bumpLocked records a state change of e and queues it for subscribers.
func (s *Store) bumpLocked(e *entry) {
	e.version++
	res := e.result
	for sub := range e.subs {
		if sub.listener != nil {
			s.events.push(delivery{sub: sub, result: res, version: e.version})
		}
	}
}

func (s *Store) persist(key string, data any) {
	if s.backing == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer cancel()
		if err := cache.SetJSON(ctx, s.backing, cache.StorageKey(key), data, s.backingTTL); err != nil {
			s.logger.Warn("persist to backing cache failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// Revalidate issues a new request for key even if one is in flight. The
// newer request supersedes the older one. It returns false when no
// subscription holds a fetcher for key.
func (s *Store) Revalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.closed {
		return false
	}
	fetch := e.fetcherLocked()
	if fetch == nil {
		return false
	}
	s.issueLocked(e, fetch)
	return true
}

func (e *entry) fetcherLocked() Fetcher {
	for sub := range e.subs {
		if sub.fetch != nil {
			return sub.fetch
		}
	}
	return nil
}

// Mutate replaces the data of key locally. Any request issued before the
// mutation can no longer overwrite it. When revalidate is true a fresh
// request is issued afterwards.
func (s *Store) Mutate(key string, data any, revalidate bool) {
	if key == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key, subs: make(map[*Subscription]struct{})}
		e.result.Key = key
		s.entries[key] = e
	}

	now := s.now()
	e.abortLocked()
	e.issued++
	e.committed = e.issued
	e.result.Data = data
	e.result.Err = nil
	e.result.IsLoading = false
	e.result.UpdatedAt = now
	e.fetchedAt = now
	e.lastUsed = now
	s.bumpLocked(e)

	if revalidate {
		s.issueLocked(e, e.fetcherLocked())
	}
	s.mu.Unlock()

	s.persist(key, data)
}

// Peek returns the current result of key without subscribing.
func (s *Store) Peek(key string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Result{Key: key}, false
	}
	return e.result, true
}

// Stats reports entry and subscriber counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	st.Entries = len(s.entries)
	for _, e := range s.entries {
		if e.inflight {
			st.InFlight++
		}
		st.Subscribers += len(e.subs)
	}
	return st
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sub.key]
	if !ok {
		return
	}
	delete(e.subs, sub)
	e.lastUsed = s.now()

	if len(e.subs) == 0 && e.inflight && s.abortIdle {
		// Abandon the request; a later subscription issues a new one.
		e.abortLocked()
		e.result.IsLoading = false
	}
}

func (s *Store) janitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts idle entries older than the retention window.
func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, e := range s.entries {
		if len(e.subs) == 0 && !e.inflight && now.Sub(e.lastUsed) >= s.retainFor {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

// Close cancels in-flight requests, waits for background work and stops
// delivering results. It does not close the backing cache.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.events.close()
}
