package cache

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls how [WithRetry] repeats store calls that failed
// with [ErrNetwork]. The n-th wait lasts n*Delay.
type RetryPolicy struct {
	// Attempts is the total number of calls. Defaults to 3.
	Attempts int
	// Delay is the first wait. Defaults to 200ms.
	Delay time.Duration
}

// WithRetry wraps c so Get, Set, Delete and Clear survive transient
// network failures. Misses and other errors are returned at once.
func WithRetry(c Cache, p RetryPolicy) Cache {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 200 * time.Millisecond
	}
	return &retrying{Cache: c, policy: p}
}

type retrying struct {
	Cache
	policy RetryPolicy
}

func (c *retrying) Get(ctx context.Context, key string) (data []byte, hit bool, err error) {
	err = c.policy.do(ctx, func() error {
		data, hit, err = c.Cache.Get(ctx, key)
		return err
	})
	return data, hit, err
}

func (c *retrying) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.policy.do(ctx, func() error { return c.Cache.Set(ctx, key, data, ttl) })
}

func (c *retrying) Delete(ctx context.Context, key string) error {
	return c.policy.do(ctx, func() error { return c.Cache.Delete(ctx, key) })
}

// Clear forwards to the wrapped backend when it supports clearing.
func (c *retrying) Clear(ctx context.Context) (n int, err error) {
	cl, ok := c.Cache.(Clearer)
	if !ok {
		return 0, nil
	}
	err = c.policy.do(ctx, func() error {
		n, err = cl.Clear(ctx)
		return err
	})
	return n, err
}

// Unwrap returns the wrapped backend.
func (c *retrying) Unwrap() Cache { return c.Cache }

func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrNetwork) || attempt >= p.Attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.Delay):
		}
	}
}
