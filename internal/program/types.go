// Package program holds the typed records of the referral program and reads
// them from the document store.
package program

import (
	"time"

	"github.com/shopspring/decimal"
)

// MemberStatus is the activation state of a member.
type MemberStatus string

const (
	StatusPending        MemberStatus = "pending"
	StatusActiveInvestor MemberStatus = "active_investor"
	StatusActiveLeader   MemberStatus = "active_leader"
	StatusBlocked        MemberStatus = "blocked"
	StatusAutoBlocked    MemberStatus = "auto_blocked"
)

// Member is a participant of the program. ReferrerKey is empty at the root.
type Member struct {
	Key           string          `json:"key"`
	MemberID      string          `json:"member_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	ReferrerKey   string          `json:"referrer_key,omitempty"`
	Status        MemberStatus    `json:"status"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

// HoldingStatus is the state of a package holding.
type HoldingStatus string

const (
	HoldingActive   HoldingStatus = "active"
	HoldingInactive HoldingStatus = "inactive"
)

// PackageHolding is an investment package owned by one member.
type PackageHolding struct {
	ID          string          `json:"id"`
	MemberKey   string          `json:"member_key"`
	Status      HoldingStatus   `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	PackageName string          `json:"package_name,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// Active reports whether the holding contributes to business volume.
func (h PackageHolding) Active() bool {
	return h.Status == HoldingActive
}

// EntryType classifies a ledger entry. Unknown types are kept verbatim.
type EntryType string

const (
	EntryDirectReferral  EntryType = "direct_referral"
	EntryLevelReferral   EntryType = "level_referral"
	EntryDailyROI        EntryType = "daily_roi"
	EntryLevelROI        EntryType = "level_roi"
	EntryBonus           EntryType = "bonus"
	EntryAdminAdjustment EntryType = "admin_adjustment"
)

// EntryStatus is the processing state of a ledger entry.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryApproved  EntryStatus = "approved"
	EntryCompleted EntryStatus = "completed"
	EntryRejected  EntryStatus = "rejected"
	EntryPaid      EntryStatus = "paid"
)

// EntryMetadata carries the optional provenance of a ledger entry.
type EntryMetadata struct {
	SourceMemberID string           `json:"source_member_id,omitempty"`
	Level          int              `json:"level,omitempty"`
	BaseAmount     *decimal.Decimal `json:"base_amount,omitempty"`
	Percentage     *decimal.Decimal `json:"percentage,omitempty"`
}

// LedgerEntry is one immutable record of a member's income ledger.
type LedgerEntry struct {
	ID        string          `json:"id"`
	MemberKey string          `json:"member_key"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Status    EntryStatus     `json:"status"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
	Metadata  *EntryMetadata  `json:"metadata,omitempty"`
}

// WithdrawalStatus is the state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalPaid      WithdrawalStatus = "paid"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// Withdrawal is a payout request made by a member.
type Withdrawal struct {
	ID              string           `json:"id"`
	MemberKey       string           `json:"member_key"`
	Status          WithdrawalStatus `json:"status"`
	AmountRequested decimal.Decimal  `json:"amount_requested"`
	NetAmount       decimal.Decimal  `json:"net_amount"`
	CreatedAt       *time.Time       `json:"created_at,omitempty"`
}

// PaidAmount is the amount counted against a member's balance: the requested
// amount, or the net amount when nothing was requested.
func (w Withdrawal) PaidAmount() decimal.Decimal {
	if w.AmountRequested.IsPositive() {
		return w.AmountRequested
	}
	return w.NetAmount
}
