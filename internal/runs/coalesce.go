package runs

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// Coalescer shares one in-flight build between identical concurrent requests.
type Coalescer struct {
	group singleflight.Group
}

// Do runs fn once per key among concurrent callers. A follower whose leader
// was cancelled retries on its own context.
func (c *Coalescer) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	resultChan := c.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Shared && res.Err != nil && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
			return fn(ctx)
		}
		return res.Val, res.Err
	}
}
