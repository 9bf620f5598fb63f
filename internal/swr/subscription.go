package swr

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is an explicit token of interest in one key. Cancel must be
// called when the interest ends.
type Subscription struct {
	id       string
	key      string
	store    *Store
	listener Listener
	fetch    Fetcher

	// version is the entry version the subscriber has already seen; guarded
	// by the dispatcher.
	version uint64

	mu     sync.Mutex
	closed bool
	last   Result
}

func newSubscription(s *Store, key string, listener Listener) *Subscription {
	return &Subscription{
		id:       uuid.NewString(),
		key:      key,
		store:    s,
		listener: listener,
		last:     Result{Key: key},
	}
}

// ID uniquely identifies the subscription.
func (sub *Subscription) ID() string { return sub.id }

// Key returns the subscribed key.
func (sub *Subscription) Key() string { return sub.key }

// Result returns the current result of the key. After Cancel it returns the
// last result observed before cancellation.
func (sub *Subscription) Result() Result {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || sub.key == "" {
		return sub.last
	}
	res, ok := sub.store.Peek(sub.key)
	if ok {
		sub.last = res
	}
	return sub.last
}

// Active reports whether Cancel has not been called.
func (sub *Subscription) Active() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return !sub.closed
}

// Cancel withdraws interest. Results arriving afterwards are not delivered.
// It is safe to call more than once and from a listener.
func (sub *Subscription) Cancel() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	if sub.key != "" {
		if res, ok := sub.store.Peek(sub.key); ok {
			sub.last = res
		}
	}
	sub.closed = true
	sub.mu.Unlock()

	if sub.key != "" {
		sub.store.unsubscribe(sub)
	}
}
