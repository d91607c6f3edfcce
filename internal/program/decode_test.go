package program

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/docstore"
)

func TestDecodeMemberRequiresMemberID(t *testing.T) {
	_, err := DecodeMember(docstore.Document{ID: "k1", Data: map[string]any{"name": "No Id"}})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "memberId", decodeErr.Field)
}

func TestDecodeMemberDefaults(t *testing.T) {
	m, err := DecodeMember(docstore.Document{ID: "k1", Data: map[string]any{
		"memberId":   " TL001 ",
		"sponsorKey": "k0",
		"status":     "Active-Investor",
	}})
	require.NoError(t, err)
	assert.Equal(t, "TL001", m.MemberID)
	assert.Equal(t, "k0", m.ReferrerKey)
	assert.Equal(t, StatusActiveInvestor, m.Status)
	assert.True(t, m.WalletBalance.IsZero())
	assert.Nil(t, m.CreatedAt)
}

func TestParseMemberStatusUnknownIsPending(t *testing.T) {
	assert.Equal(t, StatusPending, ParseMemberStatus("mystery"))
	assert.Equal(t, StatusAutoBlocked, ParseMemberStatus("autoBlocked"))
	assert.Equal(t, StatusActiveLeader, ParseMemberStatus("active_leader"))
}

func TestDecodeHoldingFallsBackToPrice(t *testing.T) {
	h, err := DecodeHolding(docstore.Document{ID: "h1", Data: map[string]any{
		"memberKey": "k1",
		"status":    "ACTIVE",
		"price":     "1,500.25",
	}})
	require.NoError(t, err)
	assert.True(t, h.Active())
	assert.True(t, h.Amount.Equal(decimal.RequireFromString("1500.25")), h.Amount.String())
}

func TestDecodeHoldingRejectsGarbageAmount(t *testing.T) {
	_, err := DecodeHolding(docstore.Document{ID: "h1", Data: map[string]any{
		"memberKey": "k1",
		"amount":    []any{1},
	}})
	require.Error(t, err)
}

func TestDecodeLedgerEntryTimestamps(t *testing.T) {
	want := time.Date(2025, 1, 31, 18, 30, 0, 0, time.UTC)
	cases := map[string]any{
		"time":      want,
		"rfc3339":   "2025-01-31T18:30:00Z",
		"millis":    float64(want.UnixMilli()),
		"firestore": map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(0)},
		"number":    json.Number("1738348200000"),
	}
	for name, raw := range cases {
		entry, err := DecodeLedgerEntry("k1", docstore.Document{ID: "e1", Data: map[string]any{
			"type":      "daily_roi",
			"amount":    12.5,
			"createdAt": raw,
		}})
		require.NoError(t, err, name)
		require.NotNil(t, entry.CreatedAt, name)
		assert.True(t, want.Equal(*entry.CreatedAt), "%s: got %s", name, entry.CreatedAt)
	}
}

func TestDecodeLedgerEntryMetadataAndType(t *testing.T) {
	entry, err := DecodeLedgerEntry("k1", docstore.Document{ID: "e1", Data: map[string]any{
		"type":   "Level ROI",
		"amount": "40",
		"status": "Approved",
		"metadata": map[string]any{
			"sourceMemberId": "TL007",
			"level":          float64(3),
			"baseAmount":     800.0,
			"percentage":     5.0,
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, EntryLevelROI, entry.Type)
	assert.Equal(t, EntryApproved, entry.Status)
	require.NotNil(t, entry.Metadata)
	assert.Equal(t, "TL007", entry.Metadata.SourceMemberID)
	assert.Equal(t, 3, entry.Metadata.Level)
	assert.True(t, entry.Metadata.BaseAmount.Equal(decimal.NewFromInt(800)))
	assert.Nil(t, entry.CreatedAt)
}

func TestParseEntryTypeKeepsUnknown(t *testing.T) {
	assert.Equal(t, EntryType("matching_bonus"), ParseEntryType("matching_bonus"))
	assert.Equal(t, EntryDirectReferral, ParseEntryType("directReferral"))
}

func TestWithdrawalPaidAmountFallsBackToNet(t *testing.T) {
	w := Withdrawal{NetAmount: decimal.NewFromInt(85)}
	assert.True(t, w.PaidAmount().Equal(decimal.NewFromInt(85)))
	w.AmountRequested = decimal.NewFromInt(100)
	assert.True(t, w.PaidAmount().Equal(decimal.NewFromInt(100)))
}

func TestSortEntriesUndatedLast(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	entries := []LedgerEntry{{ID: "c"}, {ID: "b", CreatedAt: &t2}, {ID: "a", CreatedAt: &t1}, {ID: "0"}}
	SortEntries(entries)
	ids := []string{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID}
	assert.Equal(t, []string{"a", "b", "0", "c"}, ids)
}
