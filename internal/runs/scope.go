package runs

import (
	"context"
	"net/http"

	"github.com/tierline/tierline/internal/platform/httpx"
	"github.com/tierline/tierline/internal/shared"
)

// Scope derives the supersession scope of r on route.
func Scope(r *http.Request, route string) string {
	return route + "|" + httpx.ClientKey(r)
}

// Do runs fn as the newest run of scope. It fails with shared.ErrSuperseded
// when a newer run of the same scope began before fn returned.
func (t *Tracker) Do(ctx context.Context, scope string, fn func(context.Context) error) error {
	runCtx, run := t.Begin(ctx, scope)
	defer t.Finish(run)

	if err := fn(runCtx); err != nil {
		return Err(runCtx, err)
	}
	if !t.Current(ctx, run) {
		return shared.ErrSuperseded
	}
	return nil
}
