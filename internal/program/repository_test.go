package program_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/program/programtest"
	"github.com/tierline/tierline/internal/shared"
)

func newFixture() *programtest.Fixture {
	f := programtest.New()
	f.AddMember(programtest.Member{Key: "ka", MemberID: "TL001", Name: "Asha"})
	f.AddMember(programtest.Member{Key: "kb", MemberID: "TL002", Name: "Bela", ReferrerKey: "ka"})
	f.AddMember(programtest.Member{Key: "kc", MemberID: "TL003", Name: "Chen", ReferrerKey: "ka"})
	return f
}

func TestResolveMemberIsCaseInsensitive(t *testing.T) {
	repo := newFixture().Repository()
	m, err := repo.ResolveMember(context.Background(), "  tl002 ")
	require.NoError(t, err)
	assert.Equal(t, "kb", m.Key)
	assert.Equal(t, "ka", m.ReferrerKey)
}

func TestResolveMemberErrors(t *testing.T) {
	repo := newFixture().Repository()

	_, err := repo.ResolveMember(context.Background(), "   ")
	var verr *program.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = repo.ResolveMember(context.Background(), "TL999")
	var nerr *program.NotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestResolveMemberDanglingIndex(t *testing.T) {
	f := newFixture()
	f.Store.Put(program.CollectionMemberIndex, "tl404", map[string]any{"key": "ghost"})
	_, err := f.Repository().ResolveMember(context.Background(), "TL404")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDirectReferralsSortedByMemberID(t *testing.T) {
	repo := newFixture().Repository()
	refs, err := repo.DirectReferrals(context.Background(), "ka")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "TL002", refs[0].MemberID)
	assert.Equal(t, "TL003", refs[1].MemberID)
}

func TestLedgerMissingIsEmpty(t *testing.T) {
	repo := newFixture().Repository()
	entries, err := repo.Ledger(context.Background(), "kc")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerSkipsInvalidEntries(t *testing.T) {
	f := newFixture()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f.AddEntry("kb", "direct_referral", 100, at)
	f.Store.Put(program.IncomeCollection("kb"), "broken", map[string]any{"amount": 5})

	entries, err := f.Repository().Ledger(context.Background(), "kb")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, program.EntryDirectReferral, entries[0].Type)
}

func TestLedgerPropagatesFetchFailure(t *testing.T) {
	f := newFixture()
	f.Store.FailCollection(program.IncomeCollection("kb"), errors.New("unavailable"))
	_, err := f.Repository().Ledger(context.Background(), "kb")
	require.Error(t, err)
}

func TestActiveHoldingsAndWithdrawals(t *testing.T) {
	f := newFixture()
	f.AddHolding("kb", "active", 500).AddHolding("kb", "inactive", 9999)
	f.AddWithdrawal("kb", "paid", 100, 85).AddWithdrawal("kb", "pending", 50, 40)
	repo := f.Repository()

	holdings, err := repo.ActiveHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	paid, err := repo.Withdrawals(context.Background(), "kb", program.WithdrawalPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)

	all, err := repo.Withdrawals(context.Background(), "kb", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStatusMatchingIgnoresStoredCase(t *testing.T) {
	f := newFixture()
	f.AddHolding("kb", "Active", 500).AddHolding("kc", " ACTIVE ", 300).AddHolding("kc", "Inactive", 9999)
	f.AddWithdrawal("kb", "Paid", 100, 85).AddWithdrawal("kb", "PENDING", 50, 40)
	repo := f.Repository()

	holdings, err := repo.ActiveHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	for _, h := range holdings {
		assert.True(t, h.Active())
	}

	paid, err := repo.Withdrawals(context.Background(), "kb", program.WithdrawalPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, program.WithdrawalPaid, paid[0].Status)

	pending, err := repo.Withdrawals(context.Background(), "kb", program.WithdrawalPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
