// Package filesystem provides the document corpus over a local directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure Corpus implements the interface.
var _ driven.Corpus = (*Corpus)(nil)

// Corpus is a flat directory of PDF reports. Sub-directories and non-PDF
// files are ignored; names are base file names.
type Corpus struct {
	rootPath string
}

// New creates a corpus rooted at rootPath. The directory is created on first write.
func New(rootPath string) *Corpus {
	return &Corpus{rootPath: rootPath}
}

// Root returns the corpus directory.
func (c *Corpus) Root() string {
	return c.rootPath
}

// List returns every PDF in the directory ordered by name.
// A missing directory is an empty corpus.
func (c *Corpus) List(ctx context.Context) ([]domain.SourceDocument, error) {
	entries, err := os.ReadDir(c.rootPath)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.SourceDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	docs := make([]domain.SourceDocument, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsPDF(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		docs = append(docs, domain.SourceDocument{
			Name:    entry.Name(),
			Path:    filepath.Join(c.rootPath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Read returns a document's bytes.
func (c *Corpus) Read(_ context.Context, name string) ([]byte, error) {
	path, err := c.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Write stores a document atomically: it is written to a temporary file
// in the same directory, then renamed over the target.
func (c *Corpus) Write(_ context.Context, name string, data []byte) error {
	path, err := c.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.rootPath, 0o755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.rootPath, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a regular file with that name exists.
func (c *Corpus) Exists(_ context.Context, name string) (bool, error) {
	path, err := c.path(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", name, err)
	}
	return info.Mode().IsRegular(), nil
}

// path resolves a document name inside the root, rejecting anything that
// is not a plain base name.
func (c *Corpus) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: document name %q", domain.ErrInvalidInput, name)
	}
	return filepath.Join(c.rootPath, name), nil
}

// IsPDF reports whether name has a .pdf extension, case-insensitively.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
