package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/tierline/tierline/internal/program"
)

// DefaultMaxDepth bounds the tree expansion when a request names no depth.
const DefaultMaxDepth = 25

// Request describes one level report. A zero MaxDepth uses the builder's
// configured depth; explicit depths run from 1 to 100.
type Request struct {
	RootID   string `json:"root" validate:"required,max=64"`
	MaxDepth int    `json:"depth" validate:"gte=0,lte=100"`
}

// Source provides the program records a level report needs.
type Source interface {
	ResolveMember(ctx context.Context, publicID string) (program.Member, error)
	Members(ctx context.Context) ([]program.Member, error)
	ActiveHoldings(ctx context.Context) ([]program.PackageHolding, error)
}

// Options tunes a Builder.
type Options struct {
	MaxDepth     int
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Builder produces level reports.
type Builder struct {
	source       Source
	validate     *validator.Validate
	maxDepth     int
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewBuilder constructs a Builder.
func NewBuilder(source Source, opts Options) *Builder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		source:       source,
		validate:     program.NewValidator(),
		maxDepth:     opts.MaxDepth,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock used for GeneratedAt.
func (b *Builder) WithNow(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Build resolves the root member and expands its referral tree. An unknown
// root fails with a *program.NotFoundError, invalid input with a
// *program.ValidationError.
func (b *Builder) Build(ctx context.Context, req Request) (Report, error) {
	if err := program.Validate(b.validate, req); err != nil {
		return Report{}, err
	}
	maxDepth := req.MaxDepth
	if maxDepth == 0 {
		maxDepth = b.maxDepth
	}
	if b.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.fetchTimeout)
		defer cancel()
	}

	root, err := b.source.ResolveMember(ctx, req.RootID)
	if err != nil {
		return Report{}, err
	}

	var (
		members  []program.Member
		holdings []program.PackageHolding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = b.source.Members(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		holdings, err = b.source.ActiveHoldings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("hierarchy: load tree of %s: %w", root.MemberID, err)
	}

	levels, truncated := BuildLevels(root, members, holdings, maxDepth)
	report := Report{
		Root:        levels[0].Nodes[0],
		MaxDepth:    maxDepth,
		Truncated:   truncated,
		Levels:      levels,
		GeneratedAt: b.now(),
	}
	b.logger.Debug("level report built",
		slog.String("root", root.MemberID),
		slog.Int("levels", len(levels)),
		slog.Bool("truncated", truncated),
	)
	return report, nil
}
