package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// snippetLength bounds the chunk text printed per result.
const snippetLength = 200

var (
	searchCandidates int
	searchJSON       bool

	tablesLimit int
	tablesJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Search report chunks",
	Long: `Embeds the question, fetches the nearest chunks from the vector index
and reranks them with the cross-encoder. At most 10 chunks are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var tablesCmd = &cobra.Command{
	Use:   "tables [question]",
	Short: "Search report tables",
	Long: `Scores every merged table by how many question words appear in its
header and rows, and shows the best matches.`,
	Args:        cobra.ExactArgs(1),
	RunE:        runTables,
	Annotations: map[string]string{bootstrapAnnotation: bootstrapStorage},
}

func init() {
	searchCmd.Flags().IntVarP(&searchCandidates, "candidates", "k", domain.DefaultChunkCandidates, "vector candidates to rerank")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	tablesCmd.Flags().IntVarP(&tablesLimit, "limit", "n", domain.DefaultTableLimit, "maximum number of tables")
	tablesCmd.Flags().BoolVar(&tablesJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tablesCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Retriever == nil {
		return errors.New("search service not configured")
	}

	chunks, err := s.Retriever.SearchChunks(cmd.Context(), args[0], searchCandidates)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, chunks)
	}

	if len(chunks) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range chunks {
		c := &chunks[i]
		cmd.Printf("  [%d] %s, page %d (rerank %.2f, vector %.2f)\n", i+1, c.Report, c.Page, c.RerankScore, c.VectorScore)
		cmd.Printf("      %s\n", snippet(c.Content))
		cmd.Println()
	}
	return nil
}

func runTables(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Retriever == nil {
		return errors.New("search service not configured")
	}

	tables, err := s.Retriever.SearchTables(cmd.Context(), args[0], tablesLimit)
	if err != nil {
		return fmt.Errorf("table search failed: %w", err)
	}

	if tablesJSON {
		return outputJSON(cmd, tables)
	}

	if len(tables) == 0 {
		cmd.Println("No tables found.")
		return nil
	}

	for i := range tables {
		t := &tables[i]
		cmd.Printf("  [%d] %s, page %d (score %d)\n", i+1, t.Report, t.Page, t.Score)
		cmd.Printf("      %s\n", strings.Join(t.Header, " | "))
		for _, row := range t.Rows {
			cmd.Printf("      %s\n", strings.Join(row, " | "))
		}
		cmd.Println()
	}
	return nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// snippet flattens whitespace and truncates s for one-line display.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetLength {
		return s
	}
	return string(r[:snippetLength]) + "..."
}
