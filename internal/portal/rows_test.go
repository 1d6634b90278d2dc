package portal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

func TestParseRowsTable(t *testing.T) {
	t.Parallel()

	html := `<table class="table">
  <thead><tr><th>Nazwa</th><th>Identyfikator</th><th>Tryb</th><th>Data</th></tr></thead>
  <tbody>
    <tr><td> Dostawa
        przełączników </td><td>ocds-148610-0001</td><td>Tryb podstawowy</td><td>2026-10-19</td></tr>
    <tr><td><a href="#">Serwery</a></td><td><span>ocds-148610-0002</span></td><td>Przetarg nieograniczony</td></tr>
  </tbody>
</table>`

	rows, rowErrs, err := ParseRows(html)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Equal(t, []tender.Row{
		{Title: "Dostawa przełączników", Identifier: "ocds-148610-0001", Mode: "Tryb podstawowy"},
		{Title: "Serwery", Identifier: "ocds-148610-0002", Mode: "Przetarg nieograniczony"},
	}, rows)
}

func TestParseRowsKeepsRenderedLineBreaks(t *testing.T) {
	t.Parallel()

	html := `<table><tbody>
<tr><td>Dostawa<br>przełączników</td><td> ocds-148610-0003 </td><td><div>Tryb podstawowy</div><div>bez negocjacji</div></td></tr>
</tbody></table>`

	rows, rowErrs, err := ParseRows(html)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Equal(t, []tender.Row{{
		Title:      "Dostawa\nprzełączników",
		Identifier: "ocds-148610-0003",
		Mode:       "Tryb podstawowy\nbez negocjacji",
	}}, rows)
}

func TestParseRowsBodyFragment(t *testing.T) {
	t.Parallel()

	rows, _, err := ParseRows(`<tbody><tr><td>A</td><td>ID-1</td><td>M</td></tr></tbody>`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ID-1", rows[0].Identifier)
}

func TestParseRowsPlaceholderAndShortRows(t *testing.T) {
	t.Parallel()

	html := `<table><tbody>
<tr><td colspan="6">Brak wyników</td></tr>
<tr><td>only</td><td>two</td></tr>
<tr><td>T</td><td>ID-2</td><td>M</td></tr>
</tbody></table>`

	rows, rowErrs, err := ParseRows(html)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ID-2", rows[0].Identifier)
	require.Len(t, rowErrs, 1)
	var rowErr *RowError
	require.True(t, errors.As(rowErrs[0], &rowErr))
	assert.Equal(t, 1, rowErr.Index)
	assert.Equal(t, 2, rowErr.Cells)
}

func TestParseRowsEmptyBody(t *testing.T) {
	t.Parallel()

	rows, rowErrs, err := ParseRows(`<table><tbody></tbody></table>`)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, rowErrs)
}
