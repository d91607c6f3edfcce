// Package runs lets a newer request supersede an in-flight one of the same scope.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tierline/tierline/internal/shared"
)

const keyPrefix = "tierline:runs:"

// Run is one in-flight request of a scope.
type Run struct {
	ID         uuid.UUID
	Scope      string
	Generation int64
	StartedAt  time.Time
	cancel     context.CancelCauseFunc
}

// Tracker hands out monotonically increasing generations per scope and
// cancels the previous run of a scope when a new one begins. With a Redis
// client the generation counter is shared across instances.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Run
	local  map[string]int64
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTracker constructs a Tracker. client may be nil.
func NewTracker(client *redis.Client, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		active: make(map[string]*Run),
		local:  make(map[string]int64),
		client: client,
		ttl:    24 * time.Hour,
		logger: logger,
	}
}

// Begin starts a run of scope. The returned context is cancelled with
// shared.ErrSuperseded when a newer run of the same scope begins.
func (t *Tracker) Begin(ctx context.Context, scope string) (context.Context, *Run) {
	gen := t.nextGeneration(ctx, scope)
	runCtx, cancel := context.WithCancelCause(ctx)
	run := &Run{ID: uuid.New(), Scope: scope, Generation: gen, StartedAt: time.Now(), cancel: cancel}

	t.mu.Lock()
	prev := t.active[scope]
	if prev == nil || prev.Generation < gen {
		t.active[scope] = run
	}
	t.mu.Unlock()

	if prev != nil && prev.Generation < gen {
		prev.cancel(shared.ErrSuperseded)
	}
	return runCtx, run
}

// Current reports whether run is still the newest run of its scope.
func (t *Tracker) Current(ctx context.Context, run *Run) bool {
	if run == nil {
		return false
	}
	t.mu.Lock()
	active := t.active[run.Scope]
	t.mu.Unlock()
	if active != nil && active.Generation > run.Generation {
		return false
	}
	if t.client == nil {
		return true
	}
	latest, err := t.client.Get(ctx, keyPrefix+run.Scope).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.Warn("runs: read generation", slog.String("scope", run.Scope), slog.Any("error", err))
		}
		return true
	}
	return latest <= run.Generation
}

// Finish releases run. It is safe to call more than once.
func (t *Tracker) Finish(run *Run) {
	if run == nil {
		return
	}
	t.mu.Lock()
	if t.active[run.Scope] == run {
		delete(t.active, run.Scope)
	}
	t.mu.Unlock()
	run.cancel(nil)
}

// Err translates an error returned under a run context into
// shared.ErrSuperseded when the run was replaced.
func Err(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(ctx), shared.ErrSuperseded) {
		return shared.ErrSuperseded
	}
	return err
}

func (t *Tracker) nextGeneration(ctx context.Context, scope string) int64 {
	t.mu.Lock()
	t.local[scope]++
	localGen := t.local[scope]
	t.mu.Unlock()
	if t.client == nil {
		return localGen
	}

	key := keyPrefix + scope
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("runs: shared generation unavailable", slog.String("scope", scope), slog.Any("error", err))
		return localGen
	}
	gen := incr.Val()

	t.mu.Lock()
	if gen > t.local[scope] {
		t.local[scope] = gen
	}
	t.mu.Unlock()
	return gen
}

// String identifies a run in logs.
func (r *Run) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%s(%s)", r.Scope, strconv.FormatInt(r.Generation, 10), r.ID)
}
