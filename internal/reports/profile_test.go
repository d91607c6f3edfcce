package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	income := profiles.For(mustDef(t, KindDirectIncome))
	assert.True(t, income.Rate().Equal(dec("0.15")))
	payout := profiles.For(mustDef(t, KindPayout))
	assert.True(t, payout.AdminRate.Equal(dec("0.15")))
	assert.True(t, payout.TDSRate.IsZero())
}

func TestParseProfilesOverrides(t *testing.T) {
	raw := []byte(`
styles:
  payout:
    admin: 0.12
reports:
  roi-income:
    tds: 0.02
`)
	profiles, err := ParseProfiles(raw)
	require.NoError(t, err)

	payout := profiles.For(mustDef(t, KindPayout))
	assert.True(t, payout.AdminRate.Equal(dec("0.12")))
	assert.True(t, payout.TDSRate.IsZero())

	roi := profiles.For(mustDef(t, KindROIIncome))
	assert.True(t, roi.TDSRate.Equal(dec("0.02")))
	assert.True(t, roi.AdminRate.Equal(dec("0.1")))

	direct := profiles.For(mustDef(t, KindDirectIncome))
	assert.True(t, direct.TDSRate.Equal(dec("0.05")))
}

func TestParseProfilesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown style":  "styles:\n  weekly: {admin: 0.1}\n",
		"unknown report": "reports:\n  nope: {admin: 0.1}\n",
		"negative":       "styles:\n  income: {tds: -0.1}\n",
		"over one":       "styles:\n  income: {tds: 0.6, admin: 0.5}\n",
		"not yaml":       "styles: [",
	}
	for name, raw := range cases {
		_, err := ParseProfiles([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestLoadProfilesWithoutPathUsesDefaults(t *testing.T) {
	profiles, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfiles(), profiles)
}
