package reports

import (
	"sort"
	"strings"

	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/shared"
)

// Query narrows and orders aggregated rows for display.
type Query struct {
	Search  string
	SortBy  string
	Desc    bool
	Page    int
	PerPage int
}

// Page is one page of rows after searching and sorting.
type Page struct {
	Rows       []Row             `json:"rows"`
	Matched    int               `json:"matched"`
	Pagination shared.Pagination `json:"pagination"`
}

// Apply filters rows by a case-insensitive substring of name, member id or
// phone, stable-sorts them by a declared column and paginates. rows is not
// modified. A PerPage below zero returns every matching row.
func Apply(rows []Row, def Definition, q Query) (Page, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]Row, 0, len(rows))
	for _, r := range rows {
		if needle == "" || matches(r, needle) {
			matched = append(matched, r)
		}
	}

	if q.SortBy != "" {
		col, ok := findColumn(def, q.SortBy)
		if !ok {
			return Page{}, errUnknownColumn(q.SortBy)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(col, matched[i], matched[j])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.PerPage < 0 {
		return Page{Rows: matched, Matched: len(matched), Pagination: shared.NewPagination(1, max(len(matched), 1), len(matched))}, nil
	}
	p := shared.NewPagination(q.Page, q.PerPage, len(matched))
	start, end := p.Bounds()
	return Page{Rows: matched[start:end], Matched: len(matched), Pagination: p}, nil
}

func matches(r Row, needle string) bool {
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.MemberID), needle) ||
		strings.Contains(strings.ToLower(r.Phone), needle)
}

func findColumn(def Definition, key string) (Column, bool) {
	for _, c := range def.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

func compare(col Column, a, b Row) int {
	if col.Numeric {
		return col.Amount(a).Cmp(col.Amount(b))
	}
	return strings.Compare(strings.ToLower(col.Text(a)), strings.ToLower(col.Text(b)))
}

func errUnknownColumn(key string) error {
	return &program.ValidationError{Field: "sort", Reason: "unknown column " + key}
}
