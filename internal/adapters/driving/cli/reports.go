package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/normalisers/table"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect extracted reports",
	Long:  `List stored reports or print the content extracted from one of them.`,
}

var reportsListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List stored reports",
	Args:        cobra.NoArgs,
	RunE:        runReportsList,
	Annotations: map[string]string{bootstrapAnnotation: bootstrapStorage},
}

var reportsShowCmd = &cobra.Command{
	Use:         "show [name]",
	Short:       "Print the extracted content of a report",
	Args:        cobra.ExactArgs(1),
	RunE:        runReportsShow,
	Annotations: map[string]string{bootstrapAnnotation: bootstrapStorage},
}

// reportsPage restricts show to one page.
var reportsPage int

func init() {
	reportsShowCmd.Flags().IntVarP(&reportsPage, "page", "p", 0, "only print this page")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Reports == nil {
		return errors.New("report store not configured")
	}

	reports, err := s.Reports.ListReports(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if len(reports) == 0 {
		cmd.Println("No reports found. Run 'chatbot sync' to extract the report directory.")
		return nil
	}

	cmd.Println("Reports:")
	cmd.Println()
	for i := range reports {
		r := &reports[i]
		pages, tables := reportStats(r)
		cmd.Printf("  %s\n", r.Name)
		cmd.Printf("    Pages: %d, tables: %d\n", pages, tables)
		cmd.Printf("    Fingerprint: %s\n", r.Fingerprint)
		if !r.ExtractedAt.IsZero() {
			cmd.Printf("    Extracted: %s\n", r.ExtractedAt.Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d reports\n", len(reports))
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Reports == nil {
		return errors.New("report store not configured")
	}

	report, err := s.Reports.GetReport(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("report not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}

	cmd.Printf("Report: %s\n", report.Name)
	page := 0
	printed := false
	for _, u := range report.Units {
		if reportsPage > 0 && u.Page != reportsPage {
			continue
		}
		if u.Page != page {
			page = u.Page
			cmd.Printf("\n--- Page %d ---\n\n", page)
		}
		if u.Kind == domain.ContentKindTable {
			cmd.Printf("[table]\n%s\n\n", table.TextFromContent(u.Content))
		} else {
			cmd.Printf("%s\n\n", u.Content)
		}
		printed = true
	}
	if !printed && reportsPage > 0 {
		cmd.Printf("\nNo content on page %d.\n", reportsPage)
	}
	return nil
}

// reportStats returns the page count and the number of table units.
func reportStats(r *domain.Report) (pages, tables int) {
	for _, u := range r.Units {
		if u.Page > pages {
			pages = u.Page
		}
		if u.Kind == domain.ContentKindTable {
			tables++
		}
	}
	return pages, tables
}
