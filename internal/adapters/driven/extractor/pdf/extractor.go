// Package pdf extracts page-scoped content units from PDF reports.
//
// Page text comes from github.com/ledongthuc/pdf. Tables are not detected
// from the PDF drawing operators; they are read from an optional sidecar
// file produced by an external table detector:
//
//	{dir}/{report base name}.tables.json
//	[{"page": 3, "flavor": "lattice", "cells": {"0": {"0": "Port", ...}, ...}}, ...]
package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
	"github.com/ihssane2002/chatbot-entreprise/internal/normalisers/table"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// SidecarSuffix is appended to the report base name to locate its tables.
const SidecarSuffix = ".tables.json"

// Extractor reads PDF bytes into content units.
type Extractor struct {
	tablesDir string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTablesDir sets the directory holding table sidecars. Empty disables tables.
func WithTablesDir(dir string) Option {
	return func(e *Extractor) {
		e.tablesDir = dir
	}
}

// New creates an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sidecarTable is one entry of a tables sidecar.
type sidecarTable struct {
	Page   int             `json:"page"`
	Flavor string          `json:"flavor"`
	Cells  json.RawMessage `json:"cells"`
}

// Extract returns, page by page, the page text followed by the page's tables.
// Pages without text yield a unit holding domain.NoTextMarker.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) ([]domain.ContentUnit, error) {
	pages, err := pageTexts(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, name, err)
	}
	tables := e.tableUnits(name)

	units := make([]domain.ContentUnit, 0, len(pages)+len(tables))
	ti := 0
	for i, text := range pages {
		page := i + 1
		if strings.TrimSpace(text) == "" {
			text = domain.NoTextMarker
		}
		units = append(units, domain.ContentUnit{Page: page, Kind: domain.ContentKindText, Content: text})
		for ti < len(tables) && tables[ti].Page <= page {
			units = append(units, tables[ti])
			ti++
		}
	}
	// Tables referencing pages past the end are kept, in page order.
	units = append(units, tables[ti:]...)

	logger.Debug("extracted %s: %d pages, %d tables", name, len(pages), len(tables))
	return units, nil
}

// pageTexts returns the plain text of every page, in order.
func pageTexts(ctx context.Context, data []byte) (texts []string, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	texts = make([]string, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, fname := range p.Fonts() {
			f := p.Font(fname)
			fonts[fname] = &f
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			logger.Warn("page %d: no text: %v", i, err)
			continue
		}
		texts[i-1] = strings.TrimSpace(text)
	}
	return texts, nil
}

// tableUnits loads the sidecar of a report. A missing sidecar means no
// tables; an unreadable one is logged and ignored.
func (e *Extractor) tableUnits(name string) []domain.ContentUnit {
	if e.tablesDir == "" {
		return nil
	}
	path := SidecarPath(e.tablesDir, name)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		logger.Warn("read tables of %s: %v", name, err)
		return nil
	}

	var entries []sidecarTable
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Warn("decode tables of %s: %v", name, err)
		return nil
	}

	units := make([]domain.ContentUnit, 0, len(entries))
	for _, entry := range entries {
		if entry.Page < 1 {
			logger.Warn("skip table of %s with page %d", name, entry.Page)
			continue
		}
		cells, err := table.Parse(string(entry.Cells))
		if err != nil {
			logger.Warn("skip table of %s page %d: %v", name, entry.Page, err)
			continue
		}
		cells, _ = table.FixVerticalBlock(cells)
		content, err := table.Encode(cells)
		if err != nil {
			logger.Warn("skip table of %s page %d: %v", name, entry.Page, err)
			continue
		}
		units = append(units, domain.ContentUnit{
			Page:    entry.Page,
			Kind:    domain.ContentKindTable,
			Flavor:  entry.Flavor,
			Content: content,
		})
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].Page < units[j].Page })
	return units
}

// SidecarPath returns where the tables of a report are expected.
func SidecarPath(dir, name string) string {
	base := filepath.Base(name)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+SidecarSuffix)
}
