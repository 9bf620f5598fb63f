package swr

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openhis/slotkit/internal/resource"
)

// State is the typed view of a Result.
type State[T any] struct {
	Key       string
	Data      T
	HasData   bool
	Err       error
	IsLoading bool
}

// FetchFunc reads the value of key.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Hook follows one key at a time. Changing the key withdraws interest in the
// previous one, so a late response for it is never reflected in the hook.
type Hook[T any] struct {
	store    *Store
	fetch    FetchFunc[T]
	onChange func(State[T])

	mu      sync.Mutex
	key     string
	sub     *Subscription
	changed chan struct{}
	closed  bool
}

// Use creates a hook. onChange may be nil.
func Use[T any](s *Store, fetch FetchFunc[T], onChange func(State[T])) *Hook[T] {
	return &Hook[T]{
		store:    s,
		fetch:    fetch,
		onChange: onChange,
		changed:  make(chan struct{}),
	}
}

// UseKey creates a hook already following key.
func UseKey[T any](s *Store, key string, fetch FetchFunc[T], onChange func(State[T])) *Hook[T] {
	h := Use(s, fetch, onChange)
	h.SetKey(key)
	return h
}

// SetKey switches the hook to key. Setting the current key again is a no-op.
func (h *Hook[T]) SetKey(key string) {
	h.mu.Lock()
	if h.closed || (h.sub != nil && h.key == key) {
		h.mu.Unlock()
		return
	}
	old := h.sub
	h.key = key
	h.sub = nil
	h.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	fetch := h.fetch
	sub := h.store.Subscribe(key, func(ctx context.Context) (any, error) {
		return fetch(ctx, key)
	}, func(r Result) {
		h.receive(key, r)
	})

	h.mu.Lock()
	if h.closed || h.key != key || h.sub != nil {
		h.mu.Unlock()
		sub.Cancel()
		return
	}
	h.sub = sub
	h.signalLocked()
	h.mu.Unlock()
}

func (h *Hook[T]) receive(key string, r Result) {
	h.mu.Lock()
	if h.closed || h.key != key {
		h.mu.Unlock()
		return
	}
	h.signalLocked()
	onChange := h.onChange
	h.mu.Unlock()

	if onChange != nil {
		onChange(convert[T](r))
	}
}

func (h *Hook[T]) signalLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// Key returns the key the hook follows.
func (h *Hook[T]) Key() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.key
}

// Result returns the current state of the followed key.
func (h *Hook[T]) Result() State[T] {
	h.mu.Lock()
	sub, key := h.sub, h.key
	h.mu.Unlock()

	if sub == nil {
		return State[T]{Key: key}
	}
	return convert[T](sub.Result())
}

// Wait blocks until the followed key is no longer loading or ctx ends. It
// returns the latest state either way.
func (h *Hook[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		h.mu.Lock()
		ch := h.changed
		h.mu.Unlock()

		st := h.Result()
		if !st.IsLoading {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ch:
		}
	}
}

// Revalidate forces a new request for the followed key.
func (h *Hook[T]) Revalidate() bool {
	return h.store.Revalidate(h.Key())
}

// Mutate replaces the followed key's data locally.
func (h *Hook[T]) Mutate(data T, revalidate bool) {
	h.store.Mutate(h.Key(), data, revalidate)
}

// Close withdraws interest. The hook cannot be reused.
func (h *Hook[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sub := h.sub
	h.sub = nil
	h.signalLocked()
	h.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// convert types r.Data. Seeded entries hold raw JSON that is decoded here.
func convert[T any](r Result) State[T] {
	st := State[T]{Key: r.Key, Err: r.Err, IsLoading: r.IsLoading}
	switch v := r.Data.(type) {
	case nil:
	case T:
		st.Data = v
		st.HasData = true
	case json.RawMessage:
		if err := json.Unmarshal(v, &st.Data); err != nil {
			if st.Err == nil {
				st.Err = &resource.Error{Kind: resource.KindDecode, Op: "seed", URL: r.Key, Err: err}
			}
		} else {
			st.HasData = true
		}
	default:
		// Another subscriber stored the key under a different type; convert
		// through its JSON form.
		raw, err := json.Marshal(v)
		if err == nil {
			err = json.Unmarshal(raw, &st.Data)
		}
		if err != nil {
			if st.Err == nil {
				st.Err = &resource.Error{Kind: resource.KindDecode, Op: "convert", URL: r.Key, Err: fmt.Errorf("%T: %w", r.Data, err)}
			}
		} else {
			st.HasData = true
		}
	}
	return st
}

// List returns a FetchFunc that reads the request encoded in the key and
// decodes its items.
func List[T any](c *resource.Client) FetchFunc[[]T] {
	return func(ctx context.Context, key string) ([]T, error) {
		return resource.Fetch[T](ctx, c, resource.RequestFromKey(key))
	}
}

// Record returns a FetchFunc that reads a single record. A missing record
// yields the zero value.
func Record[T any](c *resource.Client) FetchFunc[T] {
	return func(ctx context.Context, key string) (T, error) {
		v, _, err := resource.FetchOne[T](ctx, c, resource.RequestFromKey(key))
		return v, err
	}
}
