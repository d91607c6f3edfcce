package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tierline/tierline/internal/docstore"
)

var errWrongType = errors.New("unexpected type")

// DecodeMember validates a users document.
func DecodeMember(doc docstore.Document) (Member, error) {
	memberID, err := requiredString(doc.Data, "memberId")
	if err != nil {
		return Member{}, decodeErr(CollectionUsers, doc.ID, "memberId", err)
	}
	balance, err := optionalDecimal(doc.Data, "walletBalance")
	if err != nil {
		return Member{}, decodeErr(CollectionUsers, doc.ID, "walletBalance", err)
	}
	createdAt, err := optionalTime(doc.Data, "createdAt")
	if err != nil {
		return Member{}, decodeErr(CollectionUsers, doc.ID, "createdAt", err)
	}
	referrer := optionalString(doc.Data, "referrerKey")
	if referrer == "" {
		referrer = optionalString(doc.Data, "sponsorKey")
	}
	return Member{
		Key:           doc.ID,
		MemberID:      memberID,
		Name:          optionalString(doc.Data, "name"),
		Phone:         optionalString(doc.Data, "phone"),
		Email:         optionalString(doc.Data, "email"),
		ReferrerKey:   referrer,
		Status:        ParseMemberStatus(optionalString(doc.Data, "status")),
		WalletBalance: balance,
		CreatedAt:     createdAt,
	}, nil
}

// DecodeHolding validates a holdings document. The amount falls back to
// the price field when absent.
func DecodeHolding(doc docstore.Document) (PackageHolding, error) {
	memberKey, err := requiredString(doc.Data, "memberKey")
	if err != nil {
		return PackageHolding{}, decodeErr(CollectionHoldings, doc.ID, "memberKey", err)
	}
	field := "amount"
	if _, ok := doc.Data[field]; !ok || doc.Data[field] == nil {
		field = "price"
	}
	amount, err := optionalDecimal(doc.Data, field)
	if err != nil {
		return PackageHolding{}, decodeErr(CollectionHoldings, doc.ID, field, err)
	}
	createdAt, err := optionalTime(doc.Data, "createdAt")
	if err != nil {
		return PackageHolding{}, decodeErr(CollectionHoldings, doc.ID, "createdAt", err)
	}
	status := HoldingInactive
	if strings.EqualFold(strings.TrimSpace(optionalString(doc.Data, "status")), string(HoldingActive)) {
		status = HoldingActive
	}
	return PackageHolding{
		ID:          doc.ID,
		MemberKey:   memberKey,
		Status:      status,
		Amount:      amount,
		PackageName: optionalString(doc.Data, "packageName"),
		CreatedAt:   createdAt,
	}, nil
}

// DecodeLedgerEntry validates an income ledger document of memberKey.
func DecodeLedgerEntry(memberKey string, doc docstore.Document) (LedgerEntry, error) {
	collection := IncomeCollection(memberKey)
	rawType, err := requiredString(doc.Data, "type")
	if err != nil {
		return LedgerEntry{}, decodeErr(collection, doc.ID, "type", err)
	}
	amount, err := optionalDecimal(doc.Data, "amount")
	if err != nil {
		return LedgerEntry{}, decodeErr(collection, doc.ID, "amount", err)
	}
	createdAt, err := optionalTime(doc.Data, "createdAt")
	if err != nil {
		return LedgerEntry{}, decodeErr(collection, doc.ID, "createdAt", err)
	}
	meta, err := decodeMetadata(doc.Data["metadata"])
	if err != nil {
		return LedgerEntry{}, decodeErr(collection, doc.ID, "metadata", err)
	}
	return LedgerEntry{
		ID:        doc.ID,
		MemberKey: memberKey,
		Type:      ParseEntryType(rawType),
		Amount:    amount,
		Status:    EntryStatus(strings.ToLower(strings.TrimSpace(optionalString(doc.Data, "status")))),
		CreatedAt: createdAt,
		Metadata:  meta,
	}, nil
}

// DecodeWithdrawal validates a withdrawals document.
func DecodeWithdrawal(doc docstore.Document) (Withdrawal, error) {
	memberKey, err := requiredString(doc.Data, "memberKey")
	if err != nil {
		return Withdrawal{}, decodeErr(CollectionWithdrawals, doc.ID, "memberKey", err)
	}
	requested, err := optionalDecimal(doc.Data, "amountRequested")
	if err != nil {
		return Withdrawal{}, decodeErr(CollectionWithdrawals, doc.ID, "amountRequested", err)
	}
	net, err := optionalDecimal(doc.Data, "netAmount")
	if err != nil {
		return Withdrawal{}, decodeErr(CollectionWithdrawals, doc.ID, "netAmount", err)
	}
	createdAt, err := optionalTime(doc.Data, "createdAt")
	if err != nil {
		return Withdrawal{}, decodeErr(CollectionWithdrawals, doc.ID, "createdAt", err)
	}
	return Withdrawal{
		ID:              doc.ID,
		MemberKey:       memberKey,
		Status:          WithdrawalStatus(strings.ToLower(strings.TrimSpace(optionalString(doc.Data, "status")))),
		AmountRequested: requested,
		NetAmount:       net,
		CreatedAt:       createdAt,
	}, nil
}

// ParseMemberStatus maps the stored spelling (snake, kebab, camel or spaced)
// onto a MemberStatus. Unknown values are treated as pending.
func ParseMemberStatus(raw string) MemberStatus {
	switch compactKey(raw) {
	case "activeinvestor":
		return StatusActiveInvestor
	case "activeleader":
		return StatusActiveLeader
	case "blocked":
		return StatusBlocked
	case "autoblocked":
		return StatusAutoBlocked
	default:
		return StatusPending
	}
}

// ParseEntryType maps the stored spelling onto a known EntryType, keeping
// unknown values verbatim.
func ParseEntryType(raw string) EntryType {
	switch compactKey(raw) {
	case "directreferral", "direct":
		return EntryDirectReferral
	case "levelreferral", "level":
		return EntryLevelReferral
	case "dailyroi", "roi":
		return EntryDailyROI
	case "levelroi", "levelonroi":
		return EntryLevelROI
	case "bonus":
		return EntryBonus
	case "adminadjustment", "adjustment":
		return EntryAdminAdjustment
	default:
		return EntryType(strings.TrimSpace(raw))
	}
}

func compactKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeMetadata(raw any) (*EntryMetadata, error) {
	if raw == nil {
		return nil, nil
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, errWrongType
	}
	meta := &EntryMetadata{SourceMemberID: optionalString(data, "sourceMemberId")}
	if v, ok := data["level"]; ok && v != nil {
		level, err := toDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("level: %w", err)
		}
		meta.Level = int(level.IntPart())
	}
	for field, dst := range map[string]**decimal.Decimal{"baseAmount": &meta.BaseAmount, "percentage": &meta.Percentage} {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		d, err := toDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		*dst = &d
	}
	return meta, nil
}

func decodeErr(collection, id, field string, err error) error {
	return &DecodeError{Collection: collection, ID: id, Field: field, Reason: err.Error()}
}

func requiredString(data map[string]any, field string) (string, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", errors.New("required")
	}
	s, ok := v.(string)
	if !ok {
		return "", errWrongType
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("required")
	}
	return s, nil
}

func optionalString(data map[string]any, field string) string {
	switch v := data[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func optionalDecimal(data map[string]any, field string) (decimal.Decimal, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	return toDecimal(v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, errWrongType
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if cleaned == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(cleaned)
	default:
		return decimal.Zero, errWrongType
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func optionalTime(data map[string]any, field string) (*time.Time, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return nil, nil
	}
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	case map[string]any:
		secs, ok := firstPresent(t, "seconds", "_seconds")
		if !ok {
			return time.Time{}, errWrongType
		}
		s, err := toDecimal(secs)
		if err != nil {
			return time.Time{}, err
		}
		var nanos int64
		if raw, ok := firstPresent(t, "nanoseconds", "_nanoseconds"); ok {
			n, err := toDecimal(raw)
			if err != nil {
				return time.Time{}, err
			}
			nanos = n.IntPart()
		}
		return time.Unix(s.IntPart(), nanos).UTC(), nil
	default:
		ms, err := toDecimal(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms.IntPart()).UTC(), nil
	}
}

func firstPresent(data map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
