package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierline/tierline/internal/shared"
)

func sampleRows() []Row {
	return []Row{
		{MemberID: "TL001", Name: "Asha Rao", Phone: "98450", NetAmount: dec("100")},
		{MemberID: "TL002", Name: "Bela", Phone: "99000", NetAmount: dec("300")},
		{MemberID: "TL003", Name: "Chen", Phone: "98451", NetAmount: dec("100")},
		{MemberID: "TL004", Name: "Dev", Phone: "70000", NetAmount: dec("200")},
	}
}

func TestApplySearchMatchesNameIDAndPhone(t *testing.T) {
	def := mustDef(t, KindDirectIncome)
	rows := sampleRows()

	for needle, want := range map[string]int{"asha": 1, "tl00": 4, "9845": 2, "zzz": 0} {
		page, err := Apply(rows, def, Query{Search: needle})
		require.NoError(t, err)
		assert.Equal(t, want, page.Matched, needle)
	}
}

func TestApplySortIsStableAndLeavesInputAlone(t *testing.T) {
	def := mustDef(t, KindDirectIncome)
	rows := sampleRows()

	page, err := Apply(rows, def, Query{SortBy: "net_amount"})
	require.NoError(t, err)
	ids := []string{page.Rows[0].MemberID, page.Rows[1].MemberID, page.Rows[2].MemberID, page.Rows[3].MemberID}
	assert.Equal(t, []string{"TL001", "TL003", "TL004", "TL002"}, ids)

	page, err = Apply(rows, def, Query{SortBy: "net_amount", Desc: true})
	require.NoError(t, err)
	ids = []string{page.Rows[0].MemberID, page.Rows[1].MemberID, page.Rows[2].MemberID, page.Rows[3].MemberID}
	assert.Equal(t, []string{"TL002", "TL004", "TL001", "TL003"}, ids)

	assert.Equal(t, sampleRows(), rows)
}

func TestApplyPaginates(t *testing.T) {
	def := mustDef(t, KindDirectIncome)
	page, err := Apply(sampleRows(), def, Query{Page: 2, PerPage: 3})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "TL004", page.Rows[0].MemberID)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	all, err := Apply(sampleRows(), def, Query{PerPage: -1})
	require.NoError(t, err)
	assert.Len(t, all.Rows, 4)
}

func TestApplyRejectsUnknownSortColumn(t *testing.T) {
	_, err := Apply(sampleRows(), mustDef(t, KindDirectIncome), Query{SortBy: "balance_to_be_paid"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
