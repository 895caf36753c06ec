package table

import (
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// ExtractTables builds the table collection from every table unit of the
// given reports, in report then unit order. Tables that cannot be decoded
// or hold no cells are skipped with a warning. IDs number tables in
// extraction order.
func ExtractTables(reports []domain.Report) []domain.Table {
	var tables []domain.Table
	for i := range reports {
		r := &reports[i]
		for _, u := range r.Units {
			if u.Kind != domain.ContentKindTable {
				continue
			}
			cells, err := Parse(u.Content)
			if err != nil {
				logger.Warn("skip table of %s page %d: %v", r.Name, u.Page, err)
				continue
			}
			header, rows := Split(cells)
			if header == nil {
				logger.Warn("skip empty table of %s page %d", r.Name, u.Page)
				continue
			}
			if rows == nil {
				rows = [][]string{}
			}
			tables = append(tables, domain.Table{
				ID:     domain.TableID(r.Name, u.Page, len(tables)),
				Report: r.Name,
				Page:   u.Page,
				Header: header,
				Rows:   rows,
			})
		}
	}
	logger.Debug("extracted %d tables from %d reports", len(tables), len(reports))
	return tables
}

// Extractor adapts ExtractTables to the driven.TableExtractor port.
type Extractor struct{}

// ExtractTables implements driven.TableExtractor.
func (Extractor) ExtractTables(reports []domain.Report) []domain.Table {
	return ExtractTables(reports)
}
