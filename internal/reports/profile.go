package reports

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Profile holds the deduction fractions applied to total income.
type Profile struct {
	TDSRate   decimal.Decimal
	AdminRate decimal.Decimal
}

// Rate is the combined deduction fraction.
func (p Profile) Rate() decimal.Decimal {
	return p.TDSRate.Add(p.AdminRate)
}

// Profiles resolves the deduction profile of a report: a kind-specific entry
// wins over the style default.
type Profiles struct {
	ByStyle map[Style]Profile
	ByKind  map[Kind]Profile
}

// DefaultProfiles returns the built-in deduction rates.
func DefaultProfiles() Profiles {
	return Profiles{
		ByStyle: map[Style]Profile{
			StyleIncome: {TDSRate: decimal.RequireFromString("0.05"), AdminRate: decimal.RequireFromString("0.10")},
			StylePayout: {TDSRate: decimal.Zero, AdminRate: decimal.RequireFromString("0.15")},
		},
		ByKind: map[Kind]Profile{},
	}
}

// For returns the profile applied to def.
func (p Profiles) For(def Definition) Profile {
	if prof, ok := p.ByKind[def.Kind]; ok {
		return prof
	}
	if prof, ok := p.ByStyle[def.Style]; ok {
		return prof
	}
	return Profile{}
}

type profileFile struct {
	Styles map[string]rateSpec `yaml:"styles"`
	Kinds  map[string]rateSpec `yaml:"reports"`
}

type rateSpec struct {
	TDS   *float64 `yaml:"tds"`
	Admin *float64 `yaml:"admin"`
}

// LoadProfiles reads deduction overrides from a YAML file of the form
//
//	styles:
//	  income: {tds: 0.05, admin: 0.10}
//	  payout: {tds: 0, admin: 0.15}
//	reports:
//	  roi-income: {tds: 0.05, admin: 0.10}
//
// Omitted entries keep the built-in defaults. An empty path returns the defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profiles{}, fmt.Errorf("reports: read profiles: %w", err)
	}
	return ParseProfiles(raw)
}

// ParseProfiles applies YAML overrides on top of DefaultProfiles.
func ParseProfiles(raw []byte) (Profiles, error) {
	profiles := DefaultProfiles()
	var file profileFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Profiles{}, fmt.Errorf("reports: parse profiles: %w", err)
	}
	for name, spec := range file.Styles {
		style := Style(name)
		if style != StyleIncome && style != StylePayout {
			return Profiles{}, fmt.Errorf("reports: unknown style %q", name)
		}
		prof, err := spec.merge(profiles.ByStyle[style])
		if err != nil {
			return Profiles{}, fmt.Errorf("reports: style %s: %w", name, err)
		}
		profiles.ByStyle[style] = prof
	}
	for name, spec := range file.Kinds {
		def, ok := Lookup(Kind(name))
		if !ok {
			return Profiles{}, fmt.Errorf("reports: unknown report %q", name)
		}
		prof, err := spec.merge(profiles.ByStyle[def.Style])
		if err != nil {
			return Profiles{}, fmt.Errorf("reports: report %s: %w", name, err)
		}
		profiles.ByKind[def.Kind] = prof
	}
	return profiles, nil
}

func (s rateSpec) merge(base Profile) (Profile, error) {
	out := base
	if s.TDS != nil {
		out.TDSRate = decimal.NewFromFloat(*s.TDS)
	}
	if s.Admin != nil {
		out.AdminRate = decimal.NewFromFloat(*s.Admin)
	}
	one := decimal.NewFromInt(1)
	if out.TDSRate.IsNegative() || out.AdminRate.IsNegative() || out.Rate().GreaterThan(one) {
		return Profile{}, fmt.Errorf("rates must be non-negative and sum to at most 1")
	}
	return out, nil
}
