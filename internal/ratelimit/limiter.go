package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	DefaultLimit  = 3
	DefaultWindow = time.Hour
)

// Limiter enforces a per-IP submission ceiling over a fixed window.
//
// Over-limit policy: a rejected attempt moves the stored count to limit+1 and
// no further. The record keeps rejecting until its original expiry, and a
// burst of rejected attempts cannot push the counter (or the block) further.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	clock  func() time.Time
}

type Option func(*Limiter)

func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

func NewLimiter(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{store: store, limit: limit, window: window, clock: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Key hashes the IP so raw addresses never land in the backing store.
func Key(ip string) string {
	h := xxh3.HashString128(strings.TrimSpace(ip)).Bytes()
	return hex.EncodeToString(h[:])
}

// CheckAndIncrement counts one attempt for ip and reports whether it fits
// under the limit. A store error is returned as-is; callers decide whether
// to fail open.
func (l *Limiter) CheckAndIncrement(ctx context.Context, ip string) (Decision, error) {
	if l.store == nil {
		return Decision{}, fmt.Errorf("%w: store not configured", ErrStoreFailure)
	}
	rec, err := l.store.Increment(ctx, Key(ip), l.clock().UTC(), l.window, l.limit+1)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	d := Decision{Allowed: rec.Count <= l.limit, Count: rec.Count, Limit: l.limit}
	if !d.Allowed {
		d.Message = MessageExceeded
	}
	return d, nil
}

// Status reports the current counter for ip without mutating it.
func (l *Limiter) Status(ctx context.Context, ip string) (Status, error) {
	now := l.clock().UTC()
	rec, ok, err := l.store.Get(ctx, Key(ip), now)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if !ok {
		return Status{Count: 0, Limit: l.limit, Remaining: l.limit, ResetTime: now.Add(l.window)}, nil
	}
	remaining := l.limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Count:     rec.Count,
		Limit:     l.limit,
		Remaining: remaining,
		ResetTime: rec.WindowStart.Add(l.window),
	}, nil
}

// Clear drops the record for ip. It reports whether a record existed.
func (l *Limiter) Clear(ctx context.Context, ip string) (bool, error) {
	if strings.TrimSpace(ip) == "" {
		return false, ErrInvalidArgument
	}
	return l.store.Delete(ctx, Key(ip))
}

// ClearAll drops every record and returns how many were removed.
func (l *Limiter) ClearAll(ctx context.Context) (int, error) {
	return l.store.DeleteAll(ctx)
}

// Active lists live records. Keys are hashes; raw IPs are not recoverable.
func (l *Limiter) Active(ctx context.Context) ([]Entry, error) {
	return l.store.List(ctx, l.clock().UTC(), l.window)
}
