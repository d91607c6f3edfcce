// Package programtest builds in-memory program data for tests.
package programtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/tierline/tierline/internal/docstore/memstore"
	"github.com/tierline/tierline/internal/program"
)

// Fixture populates a memstore.Store with program documents.
type Fixture struct {
	Store *memstore.Store
	seq   int
}

// New returns an empty fixture.
func New() *Fixture {
	return &Fixture{Store: memstore.New()}
}

// Member describes a member document.
type Member struct {
	Key         string
	MemberID    string
	Name        string
	Phone       string
	ReferrerKey string
	Status      string
}

// AddMember stores a users document and its member index entry.
func (f *Fixture) AddMember(m Member) *Fixture {
	data := map[string]any{
		"memberId": m.MemberID,
		"name":     m.Name,
		"phone":    m.Phone,
		"status":   m.Status,
	}
	if m.ReferrerKey != "" {
		data["referrerKey"] = m.ReferrerKey
	} else {
		data["referrerKey"] = nil
	}
	f.Store.Put(program.CollectionUsers, m.Key, data)
	f.Store.Put(program.CollectionMemberIndex, strings.ToLower(m.MemberID), map[string]any{"key": m.Key})
	return f
}

// AddHolding stores a holdings document.
func (f *Fixture) AddHolding(memberKey, status string, amount float64) *Fixture {
	f.seq++
	f.Store.Put(program.CollectionHoldings, fmt.Sprintf("h%04d", f.seq), map[string]any{
		"memberKey": memberKey,
		"status":    status,
		"amount":    amount,
	})
	return f
}

// AddEntry stores a ledger entry. A zero at leaves the entry undated.
func (f *Fixture) AddEntry(memberKey, entryType string, amount float64, at time.Time) *Fixture {
	return f.AddEntryWithStatus(memberKey, entryType, "completed", amount, at)
}

// AddEntryWithStatus stores a ledger entry with an explicit status.
func (f *Fixture) AddEntryWithStatus(memberKey, entryType, status string, amount float64, at time.Time) *Fixture {
	f.seq++
	data := map[string]any{
		"type":   entryType,
		"amount": amount,
		"status": status,
	}
	if !at.IsZero() {
		data["createdAt"] = at
	}
	f.Store.Put(program.IncomeCollection(memberKey), fmt.Sprintf("e%04d", f.seq), data)
	return f
}

// AddWithdrawal stores a withdrawals document.
func (f *Fixture) AddWithdrawal(memberKey, status string, requested, net float64) *Fixture {
	f.seq++
	f.Store.Put(program.CollectionWithdrawals, fmt.Sprintf("w%04d", f.seq), map[string]any{
		"memberKey":       memberKey,
		"status":          status,
		"amountRequested": requested,
		"netAmount":       net,
	})
	return f
}

// Repository returns a program.Repository over the fixture store.
func (f *Fixture) Repository() *program.Repository {
	return program.NewRepository(f.Store, nil)
}
