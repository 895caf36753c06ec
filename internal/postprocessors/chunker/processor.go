// Package chunker splits report content into bounded-size chunks with
// deterministic identifiers.
package chunker

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
	"github.com/ihssane2002/chatbot-entreprise/internal/normalisers/table"
)

// DefaultMaxLength is the default number of characters per chunk.
const DefaultMaxLength = 500

// DefaultTableThreshold is the rendered table length above which a table
// is split like text instead of kept as one chunk.
const DefaultTableThreshold = 1000

// Processor turns reports into chunks.
type Processor struct {
	maxLength      int
	tableThreshold int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxLength sets the chunk size limit in characters.
func WithMaxLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// WithTableThreshold sets the rendered table length that triggers re-chunking.
func WithTableThreshold(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.tableThreshold = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxLength:      DefaultMaxLength,
		tableThreshold: DefaultTableThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Flatten chunks every report in order. The result only depends on the
// reports, so identical reports always produce identical chunks and ids.
func (p *Processor) Flatten(ctx context.Context, reports []domain.Report) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for i := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := p.Process(ctx, &reports[i])
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// Process chunks a single report. Text units are split on sentence
// boundaries; table units are rendered to text and kept whole unless the
// rendering exceeds the table threshold.
func (p *Processor) Process(_ context.Context, report *domain.Report) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	next := make(map[slot]int)

	emit := func(u domain.ContentUnit, pieces []string) {
		for _, piece := range pieces {
			key := slot{page: u.Page, kind: u.Kind}
			idx := next[key]
			next[key]++
			chunks = append(chunks, domain.Chunk{
				ID:      domain.ChunkID(report.Name, u.Page, u.Kind, idx),
				Report:  report.Name,
				Page:    u.Page,
				Kind:    u.Kind,
				Index:   idx,
				Content: piece,
			})
		}
	}

	for _, u := range report.Units {
		switch u.Kind {
		case domain.ContentKindText:
			// The empty-page marker is chunked like any other text.
			emit(u, ChunkText(u.Content, p.maxLength))

		case domain.ContentKindTable:
			text := strings.TrimSpace(table.TextFromContent(u.Content))
			if text == "" {
				continue
			}
			if utf8.RuneCountInString(text) > p.tableThreshold {
				emit(u, ChunkText(text, p.maxLength))
			} else {
				emit(u, []string{text})
			}

		default:
			logger.Warn("skip unit of %s page %d: unknown kind %q", report.Name, u.Page, u.Kind)
		}
	}
	return chunks, nil
}

type slot struct {
	page int
	kind domain.ContentKind
}

// ChunkText splits text into chunks of at most maxLength characters without
// cutting sentences. Sentences end at '.', '?' or '!' followed by
// whitespace. A single sentence longer than maxLength becomes its own chunk.
// Blank chunks are never returned.
func ChunkText(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var chunks []string
	flush := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, s)
		}
	}

	current := ""
	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence)+1 <= maxLength {
			current += " " + sentence
			continue
		}
		flush(current)
		current = sentence
	}
	flush(current)
	return chunks
}

// splitSentences splits after sentence-ending punctuation followed by
// whitespace. The whitespace run is dropped.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	return append(sentences, string(runes[start:]))
}

func isTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}
