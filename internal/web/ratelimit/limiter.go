// Package ratelimit bounds how often a client may hit an endpoint.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info is the state of a key after a call to Allow.
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}
