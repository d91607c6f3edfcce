// Package portal assembles the member-facing dashboard and income history.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/shared"
)

// Source provides the program records the portal reads.
type Source interface {
	ResolveMember(ctx context.Context, publicID string) (program.Member, error)
	DirectReferrals(ctx context.Context, key string) ([]program.Member, error)
	Ledger(ctx context.Context, memberKey string) ([]program.LedgerEntry, error)
	Withdrawals(ctx context.Context, memberKey string, status program.WithdrawalStatus) ([]program.Withdrawal, error)
	Holdings(ctx context.Context, memberKey string) ([]program.PackageHolding, error)
}

// Referral is a direct referral as shown on the dashboard.
type Referral struct {
	MemberID string               `json:"member_id"`
	Name     string               `json:"name"`
	Status   program.MemberStatus `json:"status"`
	JoinedAt *time.Time           `json:"joined_at,omitempty"`
}

// Dashboard summarises one member.
type Dashboard struct {
	Member               program.Member                        `json:"member"`
	WalletBalance        decimal.Decimal                       `json:"wallet_balance"`
	ReferralCount        int                                   `json:"referral_count"`
	Referrals            []Referral                            `json:"referrals"`
	IncomeByType         map[program.EntryType]decimal.Decimal `json:"income_by_type"`
	TotalIncome          decimal.Decimal                       `json:"total_income"`
	TotalWithdrawn       decimal.Decimal                       `json:"total_withdrawn"`
	ActiveBusinessVolume decimal.Decimal                       `json:"active_business_volume"`
	GeneratedAt          time.Time                             `json:"generated_at"`
}

// HistoryFilter narrows an income history listing.
type HistoryFilter struct {
	Type    string `json:"type" validate:"omitempty,max=64"`
	From    string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To      string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Page    int    `json:"page" validate:"gte=0"`
	PerPage int    `json:"per_page" validate:"gte=0,lte=200"`
}

// History is one page of a member's income ledger, newest first.
type History struct {
	MemberID   string                `json:"member_id"`
	Entries    []program.LedgerEntry `json:"entries"`
	Total      decimal.Decimal       `json:"total"`
	Pagination shared.Pagination     `json:"pagination"`
}

// Options tunes a Service.
type Options struct {
	Location *time.Location
	Logger   *slog.Logger
}

// Service builds portal views.
type Service struct {
	source   Source
	validate *validator.Validate
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(source Source, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		source:   source,
		validate: program.NewValidator(),
		location: opts.Location,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Dashboard loads the dashboard of the member with publicID.
func (s *Service) Dashboard(ctx context.Context, publicID string) (Dashboard, error) {
	member, err := s.source.ResolveMember(ctx, publicID)
	if err != nil {
		return Dashboard{}, err
	}

	var (
		referrals []program.Member
		entries   []program.LedgerEntry
		paid      []program.Withdrawal
		holdings  []program.PackageHolding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		referrals, err = s.source.DirectReferrals(gctx, member.Key)
		return err
	})
	g.Go(func() (err error) {
		entries, err = s.source.Ledger(gctx, member.Key)
		return err
	})
	g.Go(func() (err error) {
		paid, err = s.source.Withdrawals(gctx, member.Key, program.WithdrawalPaid)
		return err
	})
	g.Go(func() (err error) {
		holdings, err = s.source.Holdings(gctx, member.Key)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("portal: dashboard of %s: %w", member.MemberID, err)
	}

	d := Dashboard{
		Member:               member,
		WalletBalance:        member.WalletBalance,
		ReferralCount:        len(referrals),
		Referrals:            make([]Referral, 0, len(referrals)),
		IncomeByType:         make(map[program.EntryType]decimal.Decimal),
		TotalIncome:          decimal.Zero,
		TotalWithdrawn:       decimal.Zero,
		ActiveBusinessVolume: decimal.Zero,
		GeneratedAt:          s.now(),
	}
	for _, r := range referrals {
		d.Referrals = append(d.Referrals, Referral{MemberID: r.MemberID, Name: r.Name, Status: r.Status, JoinedAt: r.CreatedAt})
	}
	for _, e := range entries {
		if e.Status == program.EntryRejected {
			continue
		}
		d.IncomeByType[e.Type] = d.IncomeByType[e.Type].Add(e.Amount)
		d.TotalIncome = d.TotalIncome.Add(e.Amount)
	}
	for _, w := range paid {
		d.TotalWithdrawn = d.TotalWithdrawn.Add(w.PaidAmount())
	}
	for _, h := range holdings {
		if h.Active() {
			d.ActiveBusinessVolume = d.ActiveBusinessVolume.Add(h.Amount)
		}
	}
	return d, nil
}

// IncomeHistory lists the ledger entries of the member with publicID that
// match filter, newest first. Undated entries sort last and are only listed
// while the window is unbounded.
func (s *Service) IncomeHistory(ctx context.Context, publicID string, filter HistoryFilter) (History, error) {
	if err := program.Validate(s.validate, filter); err != nil {
		return History{}, err
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return History{}, &program.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	member, err := s.source.ResolveMember(ctx, publicID)
	if err != nil {
		return History{}, err
	}
	entries, err := s.source.Ledger(ctx, member.Key)
	if err != nil {
		return History{}, fmt.Errorf("portal: income history of %s: %w", member.MemberID, err)
	}

	window := reports.Window{From: filter.From, To: filter.To, Location: s.location}
	var wantType program.EntryType
	if filter.Type != "" {
		wantType = program.ParseEntryType(filter.Type)
	}
	matched := make([]program.LedgerEntry, 0, len(entries))
	total := decimal.Zero
	for _, e := range entries {
		if wantType != "" && e.Type != wantType {
			continue
		}
		if !window.Contains(e.CreatedAt) {
			continue
		}
		matched = append(matched, e)
		if e.Status != program.EntryRejected {
			total = total.Add(e.Amount)
		}
	}
	sortNewestFirst(matched)

	pagination := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start, end := pagination.Bounds()
	return History{
		MemberID:   member.MemberID,
		Entries:    matched[start:end],
		Total:      total,
		Pagination: pagination,
	}, nil
}

func sortNewestFirst(entries []program.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].CreatedAt, entries[j].CreatedAt
		switch {
		case a == nil && b == nil:
			return entries[i].ID > entries[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return entries[i].ID > entries[j].ID
		}
	})
}
