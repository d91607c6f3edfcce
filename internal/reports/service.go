package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/tierline/tierline/internal/program"
)

// Request selects a report and its window.
type Request struct {
	Kind            Kind   `json:"report" validate:"required"`
	From            string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To              string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	ShowZeroBalance bool   `json:"show_zero"`
}

// Source provides the program records a report needs.
type Source interface {
	Members(ctx context.Context) ([]program.Member, error)
	Ledger(ctx context.Context, memberKey string) ([]program.LedgerEntry, error)
	Withdrawals(ctx context.Context, memberKey string, status program.WithdrawalStatus) ([]program.Withdrawal, error)
}

// Config tunes a Service.
type Config struct {
	Concurrency  int
	FetchTimeout time.Duration
	Location     *time.Location
	Profiles     Profiles
	Logger       *slog.Logger
	Metrics      *Metrics
}

// Service fetches program records and aggregates reports.
type Service struct {
	source       Source
	validate     *validator.Validate
	concurrency  int
	fetchTimeout time.Duration
	location     *time.Location
	profiles     Profiles
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
}

// NewService constructs a Service.
func NewService(source Source, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Profiles.ByStyle == nil {
		cfg.Profiles = DefaultProfiles()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		source:       source,
		validate:     program.NewValidator(),
		concurrency:  cfg.Concurrency,
		fetchTimeout: cfg.FetchTimeout,
		location:     cfg.Location,
		profiles:     cfg.Profiles,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock used for GeneratedAt.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Location is the time zone calendar days are evaluated in.
func (s *Service) Location() *time.Location {
	return s.location
}

// Today returns the current calendar day in the report location.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(DateLayout)
}

// Validate checks req and returns its definition.
func (s *Service) Validate(req Request) (Definition, error) {
	if err := program.Validate(s.validate, req); err != nil {
		return Definition{}, err
	}
	def, ok := Lookup(req.Kind)
	if !ok {
		return Definition{}, &program.ValidationError{Field: "report", Reason: fmt.Sprintf("unknown report %q", req.Kind)}
	}
	if req.From != "" && req.To != "" && req.From > req.To {
		return Definition{}, &program.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	return def, nil
}

// Run loads a snapshot and aggregates the requested report. Members whose
// records fail to load are listed in Result.Skipped rather than failing the run.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	def, err := s.Validate(req)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()

	snap, err := s.Snapshot(ctx, def)
	if err != nil {
		return Result{}, err
	}
	result := Aggregate(snap, def, req, s.profiles.For(def), s.location)
	result.GeneratedAt = s.now()

	s.metrics.observe(def.Kind, time.Since(start), len(result.Rows), len(result.Skipped))
	logger := s.logger.With(slog.String("report", string(def.Kind)))
	if len(result.Skipped) > 0 {
		logger.Warn("members could not be loaded", slog.Int("skipped", len(result.Skipped)))
	}
	if result.UndatedExcluded > 0 {
		logger.Info("undated entries excluded by date window", slog.Int("entries", result.UndatedExcluded))
	}
	logger.Debug("report aggregated", slog.Int("rows", len(result.Rows)), slog.Duration("duration", time.Since(start)))
	return result, nil
}

// Snapshot loads every member and, concurrently, their ledgers and, for
// payout reports, their paid withdrawals.
func (s *Service) Snapshot(ctx context.Context, def Definition) (Snapshot, error) {
	members, err := s.source.Members(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reports: list members: %w", err)
	}

	ledgers := make([][]program.LedgerEntry, len(members))
	withdrawals := make([][]program.Withdrawal, len(members))
	failures := make([]error, len(members))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range members {
		g.Go(func() error {
			ledgers[i], withdrawals[i], failures[i] = s.fetchMember(ctx, m.Key, def.Style == StylePayout)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("reports: load snapshot: %w", err)
	}

	snap := Snapshot{
		Members:     members,
		Ledgers:     make(map[string][]program.LedgerEntry, len(members)),
		Withdrawals: make(map[string][]program.Withdrawal, len(members)),
	}
	for i, m := range members {
		if failures[i] != nil {
			snap.Skipped = append(snap.Skipped, Skip{MemberKey: m.Key, MemberID: m.MemberID, Reason: failures[i].Error()})
			s.logger.Warn("skip member", slog.String("member_id", m.MemberID), slog.Any("error", failures[i]))
			continue
		}
		snap.Ledgers[m.Key] = ledgers[i]
		snap.Withdrawals[m.Key] = withdrawals[i]
	}
	return snap, nil
}

func (s *Service) fetchMember(ctx context.Context, key string, withWithdrawals bool) ([]program.LedgerEntry, []program.Withdrawal, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	entries, err := s.source.Ledger(fetchCtx, key)
	if err != nil {
		return nil, nil, err
	}
	if !withWithdrawals {
		return entries, nil, nil
	}
	paid, err := s.source.Withdrawals(fetchCtx, key, program.WithdrawalPaid)
	if err != nil {
		return nil, nil, err
	}
	return entries, paid, nil
}
