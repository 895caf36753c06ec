// Package table normalises extracted table payloads.
//
// Extraction hands tables over as a column -> row -> cell mapping
// ({"0": {"0": "Port", "1": "Tanger"}, "1": {...}}), either decoded or in
// its JSON form. This package turns that mapping into the canonical grid,
// the " | " text rendering that gets chunked, and the header+rows records
// used by lexical table search.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Cells is a table keyed by column index, then row index.
type Cells map[string]map[string]any

// Parse decodes the JSON form of a table.
func Parse(raw string) (Cells, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var cells Cells
	if err := dec.Decode(&cells); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedTable, err)
	}
	return cells, nil
}

// Encode returns the JSON form of a table. Keys are emitted sorted, so
// equal tables always encode to equal strings.
func Encode(cells Cells) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cells); err != nil {
		return "", fmt.Errorf("encode table: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Dimensions returns the column count (distinct column keys) and the row
// count (entries of the first column).
func (c Cells) Dimensions() (cols, rows int) {
	if len(c) == 0 {
		return 0, 0
	}
	return len(c), len(c[c.firstColumn()])
}

// firstColumn is column "0" when present, otherwise the lowest key.
func (c Cells) firstColumn() string {
	if _, ok := c["0"]; ok {
		return "0"
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys[0]
}

// Grid returns every constructed row. Columns and rows are addressed by
// their decimal index; a missing key yields an empty cell.
func (c Cells) Grid() [][]string {
	cols, rows := c.Dimensions()
	grid := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		row := make([]string, cols)
		for j := 0; j < cols; j++ {
			row[j] = cellString(c[strconv.Itoa(j)][strconv.Itoa(i)])
		}
		grid = append(grid, row)
	}
	return grid
}

// ToText renders the table one row per line with cells joined by " | ".
// Trailing empty cells are dropped and rows left empty are omitted.
func ToText(c Cells) string {
	var lines []string
	for _, row := range c.Grid() {
		row = trimTrailingEmpty(row)
		if isBlank(row) {
			continue
		}
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n")
}

// TextFromContent renders the JSON form of a table. Malformed payloads are
// logged and render as an empty string.
func TextFromContent(content string) string {
	cells, err := Parse(content)
	if err != nil {
		logger.Warn("table text: %v", err)
		return ""
	}
	return ToText(cells)
}

// Split returns row 0 as the header and every other row as data.
// Unlike ToText no row is dropped, even a blank header.
func Split(c Cells) (header []string, rows [][]string) {
	grid := c.Grid()
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], grid[1:]
}

// FixVerticalBlock recovers tables the extraction layer fused into a single
// cell. A 1x1 table whose cell holds at least six non-empty lines, in a
// multiple of three, is laid out as a three-column table (label, value-1,
// value-2), three lines per row. The first row becomes the header.
func FixVerticalBlock(c Cells) (Cells, bool) {
	cols, rows := c.Dimensions()
	if cols != 1 || rows != 1 {
		return c, false
	}

	var raw any
	for _, col := range c {
		for _, v := range col {
			raw = v
		}
	}
	text, ok := raw.(string)
	if !ok {
		return c, false
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 6 || len(lines)%3 != 0 {
		return c, false
	}

	fixed := Cells{"0": {}, "1": {}, "2": {}}
	for i, l := range lines {
		col, row := strconv.Itoa(i%3), strconv.Itoa(i/3)
		fixed[col][row] = l
	}
	logger.Debug("rebuilt vertically merged table: %d rows", len(lines)/3)
	return fixed, true
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.ReplaceAll(x, "\n", " "))
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// lessKey orders numeric keys numerically and everything else lexically after them.
func lessKey(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
