// Package reports aggregates member ledgers into income and payout reports.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tierline/tierline/internal/program"
)

// Kind names a report.
type Kind string

const (
	KindDirectIncome   Kind = "direct-income"
	KindLevelIncome    Kind = "level-income"
	KindROIIncome      Kind = "roi-income"
	KindLevelROIIncome Kind = "level-roi-income"
	KindBonusIncome    Kind = "bonus-income"
	KindPayout         Kind = "payout"
)

// Style selects the inclusion rule and deduction defaults of a report.
type Style string

const (
	// StyleIncome rows need at least one qualifying entry.
	StyleIncome Style = "income"
	// StylePayout rows need a non-zero balance unless zero balances are shown.
	StylePayout Style = "payout"
)

// Bucket sums the entries of one or more types.
type Bucket struct {
	Key   string
	Label string
	Types []program.EntryType
}

// Definition declares how a report is aggregated and which columns it shows.
type Definition struct {
	Kind    Kind
	Title   string
	Style   Style
	Buckets []Bucket
	Columns []Column
}

func (d Definition) bucketFor(t program.EntryType) (string, bool) {
	for _, b := range d.Buckets {
		for _, bt := range b.Types {
			if bt == t {
				return b.Key, true
			}
		}
	}
	return "", false
}

var definitions = map[Kind]Definition{}

func init() {
	register(KindDirectIncome, "Direct Income", StyleIncome,
		Bucket{Key: "direct", Label: "Direct Income", Types: []program.EntryType{program.EntryDirectReferral}})
	register(KindLevelIncome, "Level Income", StyleIncome,
		Bucket{Key: "level", Label: "Level Income", Types: []program.EntryType{program.EntryLevelReferral}})
	register(KindROIIncome, "ROI Income", StyleIncome,
		Bucket{Key: "roi", Label: "ROI Income", Types: []program.EntryType{program.EntryDailyROI}})
	register(KindLevelROIIncome, "Level on ROI Income", StyleIncome,
		Bucket{Key: "level_roi", Label: "Level ROI Income", Types: []program.EntryType{program.EntryLevelROI}})
	register(KindBonusIncome, "Bonus Income", StyleIncome,
		Bucket{Key: "bonus", Label: "Bonus", Types: []program.EntryType{program.EntryBonus, program.EntryAdminAdjustment}})
	register(KindPayout, "Consolidated Payout", StylePayout,
		Bucket{Key: "direct", Label: "Direct Income", Types: []program.EntryType{program.EntryDirectReferral}},
		Bucket{Key: "roi", Label: "ROI Income", Types: []program.EntryType{program.EntryDailyROI}},
		Bucket{Key: "level_roi", Label: "Level ROI Income", Types: []program.EntryType{program.EntryLevelROI}},
		Bucket{Key: "level", Label: "Level Income", Types: []program.EntryType{program.EntryLevelReferral}},
	)
}

func register(kind Kind, title string, style Style, buckets ...Bucket) {
	def := Definition{Kind: kind, Title: title, Style: style, Buckets: buckets}
	def.Columns = buildColumns(def)
	definitions[kind] = def
}

// Lookup returns the definition of kind.
func Lookup(kind Kind) (Definition, bool) {
	def, ok := definitions[kind]
	return def, ok
}

// Kinds lists every report kind in name order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(definitions))
	for k := range definitions {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Column is one displayed and exported field of a report.
type Column struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Numeric bool   `json:"numeric"`
	text    func(Row) string
	amount  func(Row) decimal.Decimal
}

// Text returns the cell of a textual column.
func (c Column) Text(r Row) string {
	if c.text == nil {
		return ""
	}
	return c.text(r)
}

// Amount returns the cell of a numeric column.
func (c Column) Amount(r Row) decimal.Decimal {
	if c.amount == nil {
		return decimal.Zero
	}
	return c.amount(r)
}

func textColumn(key, label string, fn func(Row) string) Column {
	return Column{Key: key, Label: label, text: fn}
}

func amountColumn(key, label string, fn func(Row) decimal.Decimal) Column {
	return Column{Key: key, Label: label, Numeric: true, amount: fn}
}

func buildColumns(def Definition) []Column {
	cols := []Column{
		textColumn("member_id", "Member ID", func(r Row) string { return r.MemberID }),
		textColumn("name", "Name", func(r Row) string { return r.Name }),
		textColumn("phone", "Phone", func(r Row) string { return r.Phone }),
	}
	for _, b := range def.Buckets {
		key := b.Key
		cols = append(cols, amountColumn(key, b.Label, func(r Row) decimal.Decimal { return r.Bucket(key) }))
	}
	cols = append(cols,
		amountColumn("total_income", "Total Income", func(r Row) decimal.Decimal { return r.TotalIncome }),
		amountColumn("tds", "TDS", func(r Row) decimal.Decimal { return r.TDS }),
		amountColumn("admin_charge", "Admin Charge", func(r Row) decimal.Decimal { return r.AdminCharge }),
		amountColumn("total_deductions", "Total Deductions", func(r Row) decimal.Decimal { return r.TotalDeductions }),
		amountColumn("net_amount", "Net Amount", func(r Row) decimal.Decimal { return r.NetAmount }),
	)
	if def.Style == StylePayout {
		cols = append(cols,
			amountColumn("amount_paid", "Amount Paid", func(r Row) decimal.Decimal { return r.AmountPaid }),
			amountColumn("balance_to_be_paid", "Balance To Be Paid", func(r Row) decimal.Decimal { return r.BalanceToBePaid }),
		)
	}
	return cols
}
