package services

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// MaxPromptTableRows caps the rows rendered per table in a prompt.
const MaxPromptTableRows = 10

// comparativeMarkers flag questions that ask to compare reports.
var comparativeMarkers = []string{
	"compar", "différence", "différencier", "vs", "contre", "meilleur", "par rapport", "différences",
}

// PromptAssembler composes retrieved context into the answer prompt.
type PromptAssembler struct {
	prompts driven.PromptStore
}

// NewPromptAssembler creates an assembler. A nil store uses driven.DefaultPrompts.
func NewPromptAssembler(prompts driven.PromptStore) *PromptAssembler {
	return &PromptAssembler{prompts: prompts}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *PromptAssembler) SetPromptStore(store driven.PromptStore) {
	a.prompts = store
}

// template loads a prompt, falling back to the built-in default.
func (a *PromptAssembler) template(name string) string {
	if a.prompts != nil {
		p, err := a.prompts.Load(name)
		if err == nil && strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p)
		}
		if err != nil {
			logger.Warn("load prompt %q: %v", name, err)
		}
	}
	return driven.DefaultPrompts[name]
}

// System returns the system message sent with every answer request.
func (a *PromptAssembler) System() string {
	return a.template(driven.PromptSystem)
}

// Unavailable returns the answer used when the model stays unavailable.
func (a *PromptAssembler) Unavailable() string {
	return a.template(driven.PromptUnavailable)
}

// Build composes the user prompt: preamble, conversation history, chunk
// excerpts grouped by report, tables, the question and answering rules.
func (a *PromptAssembler) Build(question string, history []domain.HistoryTurn, rc *domain.RetrievalContext) string {
	var b strings.Builder

	b.WriteString(a.template(driven.PromptPreamble))
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("### Historique de la conversation :\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", turn.Question, turn.Answer)
		}
		b.WriteString("\n")
	}

	if rc != nil {
		for _, group := range groupByReport(rc.Chunks) {
			fmt.Fprintf(&b, "### Extraits du rapport : %s\n", group.report)
			b.WriteString(strings.Join(group.contents, "\n\n"))
			b.WriteString("\n\n")
		}

		if len(rc.Tables) > 0 {
			b.WriteString("### Tableaux extraits :\n")
			for _, t := range rc.Tables {
				fmt.Fprintf(&b, "**Rapport : %s | Page : %d**\n", t.Report, t.Page)
				b.WriteString(FormatMarkdownTable(t.Header, t.Rows, MaxPromptTableRows))
				b.WriteString("\n\n")
			}
		}
	}

	fmt.Fprintf(&b, "---\n**Question posée :**\n%s\n---\n", question)
	b.WriteString(a.template(driven.PromptInstructions))
	b.WriteString("\n")

	if IsComparative(question) {
		b.WriteString("\n")
		b.WriteString(a.template(driven.PromptComparative))
		b.WriteString("\n")
	}
	return b.String()
}

type reportGroup struct {
	report   string
	contents []string
}

// groupByReport groups chunk contents by report in first-seen order.
func groupByReport(chunks []domain.ScoredChunk) []reportGroup {
	var groups []reportGroup
	index := make(map[string]int)
	for i := range chunks {
		name := chunks[i].Report
		if name == "" {
			name = "Rapport inconnu"
		}
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, reportGroup{report: name})
		}
		groups[pos].contents = append(groups[pos].contents, chunks[i].Content)
	}
	return groups
}

// FormatMarkdownTable renders a header and at most maxRows rows as a
// markdown table. Pipes inside cells are escaped.
func FormatMarkdownTable(header []string, rows [][]string, maxRows int) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		escaped := make([]string, len(cells))
		for i, c := range cells {
			escaped[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString(strings.Join(escaped, " | "))
		b.WriteString(" |\n")
	}

	writeRow(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	if maxRows >= 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// IsComparative reports whether the question asks to compare reports.
func IsComparative(question string) bool {
	q := strings.ToLower(question)
	for _, m := range comparativeMarkers {
		if strings.Contains(q, m) {
			return true
		}
	}
	return false
}

// AppendReportsUsed appends a section linking every report the answer drew on.
// Names are sorted and escaped under baseURL.
func AppendReportsUsed(answer string, reports []string, baseURL string) string {
	answer = strings.TrimSpace(answer)
	if len(reports) == 0 {
		return answer
	}
	names := append([]string(nil), reports...)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n---\n**Rapports utilisés :**\n")
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- [%s](%s%s)", name, baseURL, url.PathEscape(name))
	}
	return b.String()
}
