package domain

import (
	"fmt"
	"strings"
)

// Table is a stored header+rows record used by lexical table search.
type Table struct {
	// ID is {report}_p{page}_table{n}, n being the extraction order.
	ID string

	// Report is the report the table was extracted from.
	Report string

	// Page is the page of the source ContentUnit.
	Page int

	// Header is row 0 of the table, possibly blank.
	Header []string

	// Rows holds every row after the header.
	Rows [][]string
}

// TableID renders the table identifier.
func TableID(report string, page, n int) string {
	return fmt.Sprintf("%s_p%d_table%d", report, page, n)
}

// Key identifies a logical table across page splits: same report, same header.
func (t *Table) Key() string {
	return t.Report + "\x00" + strings.Join(t.Header, "\x1f")
}

// SearchText is the lowercased header and row text matched by table search.
func (t *Table) SearchText() string {
	parts := make([]string, 0, len(t.Header)+len(t.Rows)*len(t.Header))
	parts = append(parts, t.Header...)
	for _, row := range t.Rows {
		parts = append(parts, row...)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
