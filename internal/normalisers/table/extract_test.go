package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

func TestExtractTables(t *testing.T) {
	reports := []domain.Report{
		{
			Name: "A.pdf",
			Units: []domain.ContentUnit{
				{Page: 1, Kind: domain.ContentKindText, Content: "Intro."},
				{Page: 1, Kind: domain.ContentKindTable, Content: `{"0": {"0": "Port", "1": "Tanger"}, "1": {"0": "Trafic", "1": "12"}}`},
				{Page: 2, Kind: domain.ContentKindTable, Content: `broken`},
				{Page: 3, Kind: domain.ContentKindTable, Content: `{}`},
			},
		},
		{
			Name: "B.pdf",
			Units: []domain.ContentUnit{
				{Page: 4, Kind: domain.ContentKindTable, Content: `{"0": {"0": "Seul"}}`},
			},
		},
	}

	tables := ExtractTables(reports)

	require.Len(t, tables, 2)
	assert.Equal(t, domain.Table{
		ID:     "A.pdf_p1_table0",
		Report: "A.pdf",
		Page:   1,
		Header: []string{"Port", "Trafic"},
		Rows:   [][]string{{"Tanger", "12"}},
	}, tables[0])
	assert.Equal(t, "B.pdf_p4_table1", tables[1].ID)
	assert.Equal(t, []string{"Seul"}, tables[1].Header)
	assert.Empty(t, tables[1].Rows)
}

func TestExtractTables_Deterministic(t *testing.T) {
	reports := []domain.Report{{
		Name: "A.pdf",
		Units: []domain.ContentUnit{
			{Page: 1, Kind: domain.ContentKindTable, Content: `{"0": {"0": "h", "1": "v"}}`},
			{Page: 2, Kind: domain.ContentKindTable, Content: `{"0": {"0": "h", "1": "w"}}`},
		},
	}}

	assert.Equal(t, ExtractTables(reports), ExtractTables(reports))
}
