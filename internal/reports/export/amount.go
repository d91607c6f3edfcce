// Package export writes reports as CSV files.
package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/tierline/tierline/internal/program"
)

// Mode selects how amounts are rendered.
type Mode string

const (
	// ModeRaw writes plain two-decimal numbers, e.g. 1234.50.
	ModeRaw Mode = "raw"
	// ModeFormatted writes grouped currency strings, e.g. ₹1,234.50.
	ModeFormatted Mode = "formatted"
)

// ParseMode accepts "", "raw" or "formatted".
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeFormatted:
		return ModeFormatted, nil
	default:
		return "", &program.ValidationError{Field: "format", Reason: `must be "raw" or "formatted"`}
	}
}

// Format renders amounts for export.
type Format struct {
	Mode   Mode
	Symbol string
	Lang   language.Tag
}

// RawFormat writes plain numbers.
func RawFormat() Format {
	return Format{Mode: ModeRaw}
}

var regionIndia = language.MustParseRegion("IN")

// Amount renders d rounded to two decimals. Formatted amounts always use ','
// for grouping and '.' for the decimal point so ParseAmount can read them
// back; the locale only picks the grouping pattern (lakh/crore for India,
// thousands elsewhere).
func (f Format) Amount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	if f.Mode != ModeFormatted {
		return fixed
	}
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	if strings.Trim(fixed, "0.") == "" {
		sign = ""
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + f.Symbol + group(whole, f.indianGrouping()) + "." + frac
}

func (f Format) indianGrouping() bool {
	region, _ := f.Lang.Region()
	return region == regionIndia
}

// group inserts separators into a string of digits.
func group(digits string, indian bool) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	size := 3
	if indian {
		size = 2
	}
	var parts []string
	for len(head) > size {
		parts = append([]string{head[len(head)-size:]}, parts...)
		head = head[:len(head)-size]
	}
	parts = append([]string{head}, parts...)
	return strings.Join(append(parts, tail), ",")
}

// ParseAmount reads an amount written in either mode back into a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("export: no amount in %q", s)
	}
	return decimal.NewFromString(cleaned)
}
