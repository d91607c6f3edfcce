package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tierline/tierline/internal/program"
)

// DateLayout is the calendar-day format of report windows.
const DateLayout = "2006-01-02"

// Window is an inclusive calendar-day range. Empty bounds are open.
type Window struct {
	From     string
	To       string
	Location *time.Location
}

// Bounded reports whether either bound is set.
func (w Window) Bounded() bool {
	return w.From != "" || w.To != ""
}

// Contains reports whether an entry created at t falls inside the window.
// Undated entries are only included while the window is unbounded.
func (w Window) Contains(t *time.Time) bool {
	if !w.Bounded() {
		return true
	}
	if t == nil {
		return false
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	day := t.In(loc).Format(DateLayout)
	if w.From != "" && day < w.From {
		return false
	}
	if w.To != "" && day > w.To {
		return false
	}
	return true
}

// Skip records a member whose records could not be loaded.
type Skip struct {
	MemberKey string `json:"member_key"`
	MemberID  string `json:"member_id"`
	Reason    string `json:"reason"`
}

// Snapshot is the point-in-time input of an aggregation.
type Snapshot struct {
	Members     []program.Member
	Ledgers     map[string][]program.LedgerEntry
	Withdrawals map[string][]program.Withdrawal
	Skipped     []Skip
}

// Row is the aggregated ledger of one member.
type Row struct {
	MemberKey       string                     `json:"member_key"`
	MemberID        string                     `json:"member_id"`
	Name            string                     `json:"name"`
	Phone           string                     `json:"phone,omitempty"`
	Status          program.MemberStatus       `json:"status,omitempty"`
	Entries         int                        `json:"entries"`
	Buckets         map[string]decimal.Decimal `json:"buckets"`
	TotalIncome     decimal.Decimal            `json:"total_income"`
	TDS             decimal.Decimal            `json:"tds"`
	AdminCharge     decimal.Decimal            `json:"admin_charge"`
	TotalDeductions decimal.Decimal            `json:"total_deductions"`
	NetAmount       decimal.Decimal            `json:"net_amount"`
	AmountPaid      decimal.Decimal            `json:"amount_paid"`
	BalanceToBePaid decimal.Decimal            `json:"balance_to_be_paid"`
}

// Bucket returns the summed amount of a bucket.
func (r Row) Bucket(key string) decimal.Decimal {
	return r.Buckets[key]
}

// Result is an aggregated report.
type Result struct {
	Kind            Kind      `json:"report"`
	Title           string    `json:"title"`
	From            string    `json:"from,omitempty"`
	To              string    `json:"to,omitempty"`
	ShowZeroBalance bool      `json:"show_zero_balance"`
	Rows            []Row     `json:"rows"`
	Totals          Row       `json:"totals"`
	Skipped         []Skip    `json:"skipped"`
	UndatedExcluded int       `json:"undated_excluded"`
	Members         int       `json:"members"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Aggregate computes the report rows of def over snap. It is a pure
// function of its inputs.
func Aggregate(snap Snapshot, def Definition, req Request, profile Profile, loc *time.Location) Result {
	window := Window{From: req.From, To: req.To, Location: loc}
	skipped := make(map[string]struct{}, len(snap.Skipped))
	for _, s := range snap.Skipped {
		skipped[s.MemberKey] = struct{}{}
	}

	result := Result{
		Kind:            def.Kind,
		Title:           def.Title,
		From:            req.From,
		To:              req.To,
		ShowZeroBalance: req.ShowZeroBalance,
		Rows:            []Row{},
		Skipped:         append([]Skip{}, snap.Skipped...),
		Members:         len(snap.Members),
	}

	for _, m := range snap.Members {
		if _, ok := skipped[m.Key]; ok {
			continue
		}
		row, undated := aggregateMember(m, snap.Ledgers[m.Key], def, window)
		result.UndatedExcluded += undated
		if def.Style == StylePayout {
			row.AmountPaid = paidTotal(snap.Withdrawals[m.Key])
		}
		applyDeductions(&row, profile)
		if !include(row, def.Style, req.ShowZeroBalance) {
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		if result.Rows[i].MemberID != result.Rows[j].MemberID {
			return result.Rows[i].MemberID < result.Rows[j].MemberID
		}
		return result.Rows[i].MemberKey < result.Rows[j].MemberKey
	})
	result.Totals = totals(result.Rows, def)
	return result
}

func aggregateMember(m program.Member, entries []program.LedgerEntry, def Definition, window Window) (Row, int) {
	row := Row{
		MemberKey: m.Key,
		MemberID:  m.MemberID,
		Name:      m.Name,
		Phone:     m.Phone,
		Status:    m.Status,
		Buckets:   make(map[string]decimal.Decimal, len(def.Buckets)),
	}
	for _, b := range def.Buckets {
		row.Buckets[b.Key] = decimal.Zero
	}
	undated := 0
	for _, e := range entries {
		if e.Status == program.EntryRejected {
			continue
		}
		key, ok := def.bucketFor(e.Type)
		if !ok {
			continue
		}
		if !window.Contains(e.CreatedAt) {
			if e.CreatedAt == nil {
				undated++
			}
			continue
		}
		row.Buckets[key] = row.Buckets[key].Add(e.Amount)
		row.Entries++
	}
	total := decimal.Zero
	for _, b := range def.Buckets {
		total = total.Add(row.Buckets[b.Key])
	}
	row.TotalIncome = total
	return row, undated
}

func paidTotal(withdrawals []program.Withdrawal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range withdrawals {
		if w.Status != program.WithdrawalPaid {
			continue
		}
		total = total.Add(w.PaidAmount())
	}
	return total
}

func applyDeductions(row *Row, profile Profile) {
	row.TDS = row.TotalIncome.Mul(profile.TDSRate)
	row.AdminCharge = row.TotalIncome.Mul(profile.AdminRate)
	row.TotalDeductions = row.TDS.Add(row.AdminCharge)
	row.NetAmount = row.TotalIncome.Sub(row.TotalDeductions)
	row.BalanceToBePaid = row.NetAmount.Sub(row.AmountPaid)
}

func include(row Row, style Style, showZero bool) bool {
	switch style {
	case StylePayout:
		return showZero || !row.BalanceToBePaid.IsZero()
	default:
		return row.Entries > 0
	}
}

func totals(rows []Row, def Definition) Row {
	t := Row{
		Name:            "Total",
		Buckets:         make(map[string]decimal.Decimal, len(def.Buckets)),
		TotalIncome:     decimal.Zero,
		TDS:             decimal.Zero,
		AdminCharge:     decimal.Zero,
		TotalDeductions: decimal.Zero,
		NetAmount:       decimal.Zero,
		AmountPaid:      decimal.Zero,
		BalanceToBePaid: decimal.Zero,
	}
	for _, b := range def.Buckets {
		t.Buckets[b.Key] = decimal.Zero
	}
	for _, r := range rows {
		t.Entries += r.Entries
		for k, v := range r.Buckets {
			t.Buckets[k] = t.Buckets[k].Add(v)
		}
		t.TotalIncome = t.TotalIncome.Add(r.TotalIncome)
		t.TDS = t.TDS.Add(r.TDS)
		t.AdminCharge = t.AdminCharge.Add(r.AdminCharge)
		t.TotalDeductions = t.TotalDeductions.Add(r.TotalDeductions)
		t.NetAmount = t.NetAmount.Add(r.NetAmount)
		t.AmountPaid = t.AmountPaid.Add(r.AmountPaid)
		t.BalanceToBePaid = t.BalanceToBePaid.Add(r.BalanceToBePaid)
	}
	return t
}
