package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// RowError describes a result row that could not be turned into a tender.Row.
type RowError struct {
	Index int
	Cells int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d has %d cells, want at least 3", e.Index, e.Cells)
}

// ParseRows extracts the first three cells of every body row in a rendered
// results table. Single-cell rows are the portal's empty-state placeholder and
// are dropped silently; other short rows are reported as RowErrors.
func ParseRows(html string) ([]tender.Row, []error, error) {
	fragment := strings.TrimSpace(html)
	if !strings.HasPrefix(strings.ToLower(fragment), "<table") {
		fragment = "<table>" + fragment + "</table>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, nil, fmt.Errorf("parse results table: %w", err)
	}

	var (
		rows    []tender.Row
		rowErrs []error
	)
	doc.Find("tbody > tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		switch n := cells.Length(); {
		case n == 1:
			return
		case n < 3:
			rowErrs = append(rowErrs, &RowError{Index: i, Cells: n})
			return
		}
		rows = append(rows, tender.Row{
			Title:      cellText(cells.Eq(0)),
			Identifier: cellText(cells.Eq(1)),
			Mode:       cellText(cells.Eq(2)),
		})
	})
	return rows, rowErrs, nil
}

// lineBreak marks rendered line boundaries while the cell is flattened to text.
const lineBreak = "\u2028"

// cellText returns the cell's text the way a browser renders it: source
// whitespace collapses, while <br> and block elements start a new line.
func cellText(s *goquery.Selection) string {
	cell := s.Clone()
	cell.Find("br").ReplaceWithHtml(lineBreak)
	cell.Find("div, p, li").BeforeHtml(lineBreak).AfterHtml(lineBreak)

	var lines []string
	for _, part := range strings.Split(cell.Text(), lineBreak) {
		if line := strings.Join(strings.Fields(part), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
