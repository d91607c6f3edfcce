package reports_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/program/programtest"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/shared"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC)
}

func payoutFixture() *programtest.Fixture {
	f := programtest.New()
	f.AddMember(programtest.Member{Key: "ka", MemberID: "TL001", Name: "Asha"})
	f.AddMember(programtest.Member{Key: "kb", MemberID: "TL002", Name: "Bela", ReferrerKey: "ka"})
	f.AddMember(programtest.Member{Key: "kc", MemberID: "TL003", Name: "Chen", ReferrerKey: "ka"})
	f.AddEntry("ka", "direct_referral", 1000, day(1))
	f.AddEntry("ka", "daily_roi", 200, day(5))
	f.AddEntry("kb", "level_roi", 100, day(20))
	f.AddWithdrawal("ka", "paid", 500, 425)
	f.AddWithdrawal("ka", "pending", 100, 85)
	return f
}

func TestRunPayoutReport(t *testing.T) {
	f := payoutFixture()
	svc := reports.NewService(f.Repository(), reports.Config{})
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	result, err := svc.Run(context.Background(), reports.Request{Kind: reports.KindPayout})
	require.NoError(t, err)
	assert.Equal(t, now, result.GeneratedAt)
	assert.Equal(t, 3, result.Members)
	require.Len(t, result.Rows, 2, "member without income or withdrawals has zero balance")

	asha := result.Rows[0]
	assert.Equal(t, "TL001", asha.MemberID)
	assert.True(t, asha.TotalIncome.Equal(decimal.NewFromInt(1200)))
	assert.True(t, asha.NetAmount.Equal(decimal.NewFromInt(1020)))
	assert.True(t, asha.AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.True(t, asha.BalanceToBePaid.Equal(decimal.NewFromInt(520)))
}

func TestRunAppliesWindow(t *testing.T) {
	svc := reports.NewService(payoutFixture().Repository(), reports.Config{})
	result, err := svc.Run(context.Background(), reports.Request{Kind: reports.KindPayout, From: "2025-03-02", To: "2025-03-19"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.True(t, result.Rows[0].TotalIncome.Equal(decimal.NewFromInt(200)))
}

func TestRunSkipsMembersWhoseLedgerFails(t *testing.T) {
	f := payoutFixture()
	f.Store.FailCollection(program.IncomeCollection("kb"), errors.New("ledger unavailable"))
	reg := prometheus.NewRegistry()
	metrics, err := reports.NewMetrics(reg)
	require.NoError(t, err)
	svc := reports.NewService(f.Repository(), reports.Config{Metrics: metrics, Concurrency: 2})

	result, err := svc.Run(context.Background(), reports.Request{Kind: reports.KindPayout, ShowZeroBalance: true})
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "TL002", result.Skipped[0].MemberID)
	assert.Contains(t, result.Skipped[0].Reason, "ledger unavailable")
	assert.Len(t, result.Rows, 2)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.SkippedCollector()))
}

func TestRunFailsWhenMembersCannotBeListed(t *testing.T) {
	f := payoutFixture()
	f.Store.FailCollection(program.CollectionUsers, errors.New("directory offline"))
	svc := reports.NewService(f.Repository(), reports.Config{})
	_, err := svc.Run(context.Background(), reports.Request{Kind: reports.KindDirectIncome})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory offline")
}

func TestRunValidatesRequest(t *testing.T) {
	svc := reports.NewService(payoutFixture().Repository(), reports.Config{})
	cases := []reports.Request{
		{},
		{Kind: "weekly"},
		{Kind: reports.KindPayout, From: "01-03-2025"},
		{Kind: reports.KindPayout, From: "2025-03-10", To: "2025-03-01"},
	}
	for _, req := range cases {
		_, err := svc.Run(context.Background(), req)
		require.ErrorIs(t, err, shared.ErrValidation, "%+v", req)
	}
}

func TestRunCancelled(t *testing.T) {
	svc := reports.NewService(payoutFixture().Repository(), reports.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, reports.Request{Kind: reports.KindPayout})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := reports.NewMetrics(reg)
	require.NoError(t, err)
	_, err = reports.NewMetrics(reg)
	require.NoError(t, err)
}

func TestRunPayoutCountsMixedCasePaidWithdrawals(t *testing.T) {
	f := programtest.New()
	f.AddMember(programtest.Member{Key: "ka", MemberID: "TL001", Name: "Asha"})
	f.AddEntry("ka", "direct_referral", 1000, day(1))
	f.AddWithdrawal("ka", "Paid", 300, 255).AddWithdrawal("ka", "PAID", 200, 170).AddWithdrawal("ka", "Pending", 100, 85)
	svc := reports.NewService(f.Repository(), reports.Config{})

	result, err := svc.Run(context.Background(), reports.Request{Kind: reports.KindPayout})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.True(t, result.Rows[0].AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.True(t, result.Rows[0].BalanceToBePaid.Equal(decimal.NewFromInt(350)))
}
