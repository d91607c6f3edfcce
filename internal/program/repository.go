package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tierline/tierline/internal/docstore"
)

// Collection names of the program's document store.
const (
	CollectionUsers       = "users"
	CollectionMemberIndex = "memberIndex"
	CollectionHoldings    = "holdings"
	CollectionWithdrawals = "withdrawals"
	incomeSubcollection   = "income"
)

// IncomeCollection returns the ledger sub-collection path of a member.
func IncomeCollection(memberKey string) string {
	return docstore.Path(CollectionUsers, memberKey, incomeSubcollection)
}

type indexer interface {
	EnsureIndex(ctx context.Context, collection string, fields ...string) error
}

// Repository reads typed program records from a document store.
type Repository struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(store docstore.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, logger: logger}
}

// EnsureIndexes creates the secondary indexes used by the repository queries
// when the underlying store supports them.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	idx, ok := r.store.(indexer)
	if !ok {
		return nil
	}
	specs := []struct {
		collection string
		fields     []string
	}{
		{CollectionUsers, []string{"referrerKey"}},
		{CollectionHoldings, []string{"memberKey"}},
		{CollectionWithdrawals, []string{"memberKey"}},
		{IncomeCollection("_"), []string{"createdAt"}},
	}
	var errs []error
	for _, spec := range specs {
		if err := idx.EnsureIndex(ctx, spec.collection, spec.fields...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveMember looks up a member by public id, case-insensitively, through
// the member index.
func (r *Repository) ResolveMember(ctx context.Context, publicID string) (Member, error) {
	id := strings.ToLower(strings.TrimSpace(publicID))
	if id == "" {
		return Member{}, &ValidationError{Field: "member_id", Reason: "must not be empty"}
	}
	if strings.Contains(id, "/") {
		return Member{}, &ValidationError{Field: "member_id", Reason: "contains invalid characters"}
	}
	entry, err := r.store.Get(ctx, CollectionMemberIndex, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Member{}, &NotFoundError{Kind: "member", ID: strings.TrimSpace(publicID)}
	}
	if err != nil {
		return Member{}, fmt.Errorf("program: resolve member: %w", err)
	}
	key, err := requiredString(entry.Data, "key")
	if err != nil {
		return Member{}, decodeErr(CollectionMemberIndex, entry.ID, "key", err)
	}
	return r.Member(ctx, key)
}

// Member loads a member by internal key.
func (r *Repository) Member(ctx context.Context, key string) (Member, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, key)
	if errors.Is(err, docstore.ErrNotFound) {
		return Member{}, &NotFoundError{Kind: "member", ID: key}
	}
	if err != nil {
		return Member{}, fmt.Errorf("program: load member: %w", err)
	}
	return DecodeMember(doc)
}

// Members loads the whole membership. Invalid documents are skipped.
func (r *Repository) Members(ctx context.Context) ([]Member, error) {
	docs, err := r.store.Find(ctx, CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("program: list members: %w", err)
	}
	return decodeAll(r.logger, docs, DecodeMember), nil
}

// DirectReferrals lists the members referred by key.
func (r *Repository) DirectReferrals(ctx context.Context, key string) ([]Member, error) {
	docs, err := r.store.Find(ctx, CollectionUsers, docstore.Eq("referrerKey", key))
	if err != nil {
		return nil, fmt.Errorf("program: list referrals: %w", err)
	}
	members := decodeAll(r.logger, docs, DecodeMember)
	sort.SliceStable(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })
	return members, nil
}

// ActiveHoldings lists every active package holding. Status is matched after
// decoding so stored casing does not matter.
func (r *Repository) ActiveHoldings(ctx context.Context) ([]PackageHolding, error) {
	docs, err := r.store.Find(ctx, CollectionHoldings)
	if err != nil {
		return nil, fmt.Errorf("program: list active holdings: %w", err)
	}
	holdings := decodeAll(r.logger, docs, DecodeHolding)
	active := holdings[:0]
	for _, h := range holdings {
		if h.Active() {
			active = append(active, h)
		}
	}
	return active, nil
}

// Holdings lists the package holdings of one member.
func (r *Repository) Holdings(ctx context.Context, memberKey string) ([]PackageHolding, error) {
	docs, err := r.store.Find(ctx, CollectionHoldings, docstore.Eq("memberKey", memberKey))
	if err != nil {
		return nil, fmt.Errorf("program: list holdings: %w", err)
	}
	return decodeAll(r.logger, docs, DecodeHolding), nil
}

// Ledger returns a member's income entries ordered by creation time, undated
// entries last. A member without a ledger has no entries.
func (r *Repository) Ledger(ctx context.Context, memberKey string) ([]LedgerEntry, error) {
	docs, err := r.store.Find(ctx, IncomeCollection(memberKey))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("program: load ledger of %s: %w", memberKey, err)
	}
	entries := decodeAll(r.logger, docs, func(doc docstore.Document) (LedgerEntry, error) {
		return DecodeLedgerEntry(memberKey, doc)
	})
	SortEntries(entries)
	return entries, nil
}

// Withdrawals lists a member's withdrawals, optionally restricted to status.
// Status is compared on the decoded, lower-cased value.
func (r *Repository) Withdrawals(ctx context.Context, memberKey string, status WithdrawalStatus) ([]Withdrawal, error) {
	docs, err := r.store.Find(ctx, CollectionWithdrawals, docstore.Eq("memberKey", memberKey))
	if err != nil {
		return nil, fmt.Errorf("program: list withdrawals of %s: %w", memberKey, err)
	}
	withdrawals := decodeAll(r.logger, docs, DecodeWithdrawal)
	if status == "" {
		return withdrawals, nil
	}
	matched := withdrawals[:0]
	for _, w := range withdrawals {
		if w.Status == status {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

// SortEntries orders entries by creation time ascending, undated last, then by id.
func SortEntries(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].CreatedAt, entries[j].CreatedAt
		switch {
		case a == nil && b == nil:
			return entries[i].ID < entries[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return entries[i].ID < entries[j].ID
		}
	})
}

func decodeAll[T any](logger *slog.Logger, docs []docstore.Document, decode func(docstore.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			logger.Warn("skip invalid document", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		out = append(out, v)
	}
	return out
}
